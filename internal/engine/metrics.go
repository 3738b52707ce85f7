package engine

import (
	"sync"
	"time"

	"github.com/talgya/luna-sim/internal/actors"
)

// Metrics counts what the simulation has done since start (or reset).
type Metrics struct {
	TicksProcessed    uint64 `json:"ticks_processed"`
	ActorsProcessed   uint64 `json:"actors_processed"`
	EventsGenerated   uint64 `json:"events_generated"`
	ActionsExecuted   uint64 `json:"actions_executed"`
	ActionsSkipped    uint64 `json:"actions_skipped"`
	ActorFailures     uint64 `json:"actor_failures"`
	BookingsCreated   uint64 `json:"bookings_created"`
	BookingsConfirmed uint64 `json:"bookings_confirmed"`
	BookingsCancelled uint64 `json:"bookings_cancelled"`
	InvitesSent       uint64 `json:"invites_sent"`
	InvitesAccepted   uint64 `json:"invites_accepted"`
	InvitesDeclined   uint64 `json:"invites_declined"`

	ByAction map[string]uint64 `json:"by_action"`
}

func newMetrics() Metrics {
	return Metrics{ByAction: make(map[string]uint64)}
}

func (m *Metrics) countAction(a actors.Action) {
	m.ActionsExecuted++
	m.ByAction[a.String()]++
}

// clone returns a deep copy safe to hand to readers.
func (m *Metrics) clone() Metrics {
	out := *m
	out.ByAction = make(map[string]uint64, len(m.ByAction))
	for k, v := range m.ByAction {
		out.ByAction[k] = v
	}
	return out
}

// DecisionEntry records why one actor's action did not complete normally.
type DecisionEntry struct {
	Tick    uint64         `json:"tick"`
	SimTime time.Time      `json:"sim_time"`
	ActorID actors.ActorID `json:"actor_id"`
	Action  string         `json:"action"`
	Reason  string         `json:"reason"`
}

// decisionLog is a bounded ring; the oldest entries fall off.
type decisionLog struct {
	mu      sync.Mutex
	entries []DecisionEntry
	max     int
}

func newDecisionLog(max int) *decisionLog {
	if max <= 0 {
		max = 512
	}
	return &decisionLog{max: max}
}

func (l *decisionLog) add(e DecisionEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
}

// recent returns up to n newest entries, oldest first.
func (l *decisionLog) recent(n int) []DecisionEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]DecisionEntry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}
