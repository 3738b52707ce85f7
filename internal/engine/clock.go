// Package engine provides the tick-based simulation orchestrator: the
// clock, the actor pool, the action executor, and the command queue that
// serializes all control-plane mutations through the tick loop.
package engine

import (
	"errors"
	"time"
)

// Validation errors returned synchronously from control commands. The
// orchestrator's state is unchanged when one of these comes back.
var (
	ErrInvalidSpeed     = errors.New("speed multiplier must be > 0")
	ErrSpawnOutOfRange  = errors.New("spawn count out of range")
	ErrUnknownScenario  = errors.New("unknown scenario")
	ErrUnknownChannel   = errors.New("unknown channel")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrUnknownAction    = errors.New("unknown action")
	ErrUnknownScope     = errors.New("unknown adjustment scope")
	ErrNotRunning       = errors.New("simulation is not running")
	ErrAlreadyRunning   = errors.New("simulation is already running")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// RunState is the clock's lifecycle state.
type RunState string

const (
	StateStopped RunState = "stopped"
	StateRunning RunState = "running"
	StatePaused  RunState = "paused"
)

// Clock owns simulated time. Time advances only while running, by
// wall-clock delta times the speed multiplier.
type Clock struct {
	SimTime time.Time
	Speed   float64
	State   RunState
}

// NewClock creates a stopped clock at the given simulated start time.
func NewClock(start time.Time) *Clock {
	return &Clock{SimTime: start.UTC(), Speed: 1.0, State: StateStopped}
}

// Advance moves simulated time forward by wall × speed if the clock is
// running, returning the simulated delta (zero when paused or stopped).
func (c *Clock) Advance(wall time.Duration) time.Duration {
	if c.State != StateRunning {
		return 0
	}
	d := time.Duration(float64(wall) * c.Speed)
	c.SimTime = c.SimTime.Add(d)
	return d
}

// SetSpeed updates the multiplier. Rejected for m <= 0. Takes effect on
// the next advance; a stopped clock just records it for the next run.
func (c *Clock) SetSpeed(m float64) error {
	if m <= 0 {
		return ErrInvalidSpeed
	}
	c.Speed = m
	return nil
}

// Start transitions stopped -> running.
func (c *Clock) Start() error {
	if c.State == StateRunning {
		return ErrAlreadyRunning
	}
	c.State = StateRunning
	return nil
}

// Pause transitions running -> paused.
func (c *Clock) Pause() error {
	if c.State != StateRunning {
		return ErrNotRunning
	}
	c.State = StatePaused
	return nil
}

// Resume transitions paused -> running.
func (c *Clock) Resume() error {
	if c.State != StatePaused {
		return ErrNotRunning
	}
	c.State = StateRunning
	return nil
}

// Stop transitions to stopped from any state.
func (c *Clock) Stop() {
	c.State = StateStopped
}
