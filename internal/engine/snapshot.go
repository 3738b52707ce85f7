package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/talgya/luna-sim/internal/actors"
	"github.com/talgya/luna-sim/internal/domain"
	"github.com/talgya/luna-sim/internal/persistence"
)

// SnapshotStore persists serialized snapshots. Satisfied by
// *persistence.DB.
type SnapshotStore interface {
	SaveSnapshot(name, description string, simTime time.Time, tick uint64, state []byte) (int64, error)
	LoadSnapshot(id int64) (persistence.SnapshotMeta, []byte, error)
	ListSnapshots() ([]persistence.SnapshotMeta, error)
}

// Snapshot is the complete orchestrator-owned state as one document.
type Snapshot struct {
	Tick     uint64           `json:"tick"`
	SimTime  time.Time        `json:"sim_time"`
	Speed    float64          `json:"speed"`
	RunState RunState         `json:"run_state"`
	Scenario string           `json:"scenario"`
	Order    []actors.ActorID `json:"pool_order"`
	Inactive []actors.ActorID `json:"pool_inactive"`
	Actors   []actors.Actor   `json:"actors"`
	Domain   domain.State     `json:"domain"`
	Metrics  Metrics          `json:"metrics"`
}

// SnapshotState serializes the current state. Call between ticks only.
func (o *Orchestrator) SnapshotState() ([]byte, error) {
	snap := Snapshot{
		Tick:     o.tick,
		SimTime:  o.clock.SimTime,
		Speed:    o.clock.Speed,
		RunState: o.clock.State,
		Scenario: string(o.scenario),
		Order:    o.pool.Order(),
		Inactive: o.pool.InactiveIDs(),
		Domain:   o.store.Export(),
		Metrics:  o.metrics.clone(),
	}
	for _, a := range o.pool.All() {
		snap.Actors = append(snap.Actors, *a)
	}
	return json.Marshal(snap)
}

// RestoreState replaces all orchestrator-owned state from a serialized
// snapshot. The clock comes back paused; the caller resumes explicitly.
func (o *Orchestrator) RestoreState(state []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(state, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	pool := NewPool(o.cfg.ActiveFraction)
	var maxID actors.ActorID
	for i := range snap.Actors {
		a := snap.Actors[i]
		pool.byID[a.ID] = &a
		if a.ID > maxID {
			maxID = a.ID
		}
	}
	pool.order = snap.Order
	pool.inactive = snap.Inactive

	o.tick = snap.Tick
	o.clock.SimTime = snap.SimTime
	o.clock.Speed = snap.Speed
	o.clock.State = StatePaused
	o.scenario = actors.Scenario(snap.Scenario)
	o.pool = pool
	o.store.Import(snap.Domain)
	o.metrics = snap.Metrics
	if o.metrics.ByAction == nil {
		o.metrics.ByAction = make(map[string]uint64)
	}
	o.spawner.SetNextID(maxID + 1)

	o.lastHour = snap.SimTime.Truncate(time.Hour)
	o.lastDay = snap.SimTime.Truncate(24 * time.Hour)
	o.refreshSummary()
	return nil
}

// CreateSnapshot serializes current state and stores it.
func (o *Orchestrator) CreateSnapshot(name, description string) (int64, error) {
	if o.snapshots == nil {
		return 0, fmt.Errorf("no snapshot store configured")
	}
	state, err := o.SnapshotState()
	if err != nil {
		return 0, err
	}
	return o.snapshots.SaveSnapshot(name, description, o.clock.SimTime, o.tick, state)
}

// RestoreSnapshot loads a stored snapshot and installs it.
func (o *Orchestrator) RestoreSnapshot(id int64) error {
	if o.snapshots == nil {
		return fmt.Errorf("no snapshot store configured")
	}
	_, state, err := o.snapshots.LoadSnapshot(id)
	if err != nil {
		return fmt.Errorf("%w: id %d", ErrSnapshotNotFound, id)
	}
	return o.RestoreState(state)
}

// ListSnapshots returns stored snapshot metadata, newest first.
func (o *Orchestrator) ListSnapshots() ([]persistence.SnapshotMeta, error) {
	if o.snapshots == nil {
		return nil, fmt.Errorf("no snapshot store configured")
	}
	return o.snapshots.ListSnapshots()
}

// CreateSnapshotAtBoundary captures a snapshot between ticks. Safe to call
// while the Run loop is live.
func (o *Orchestrator) CreateSnapshotAtBoundary(name, description string) (int64, error) {
	var id int64
	err := o.AtBoundary(func() error {
		var err error
		id, err = o.CreateSnapshot(name, description)
		return err
	})
	return id, err
}

// RestoreSnapshotAtBoundary restores a snapshot between ticks. The clock
// comes back paused.
func (o *Orchestrator) RestoreSnapshotAtBoundary(id int64) error {
	return o.AtBoundary(func() error {
		return o.RestoreSnapshot(id)
	})
}
