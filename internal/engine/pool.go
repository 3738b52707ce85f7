package engine

import (
	"math/rand"
	"sort"

	"github.com/talgya/luna-sim/internal/actors"
)

// Pool holds the actor universe: an ordered active set processed every
// tick plus an inactive reserve. Membership only changes at tick
// boundaries; the orchestrator is the sole caller of the mutating methods.
type Pool struct {
	order    []actors.ActorID
	byID     map[actors.ActorID]*actors.Actor
	inactive []actors.ActorID
	pending  []*actors.Actor

	// ActiveFraction is the target share of the universe kept active.
	ActiveFraction float64
}

// NewPool creates an empty pool with the given active-fraction target.
func NewPool(activeFraction float64) *Pool {
	if activeFraction <= 0 || activeFraction > 1 {
		activeFraction = 0.6
	}
	return &Pool{
		byID:           make(map[actors.ActorID]*actors.Actor),
		ActiveFraction: activeFraction,
	}
}

// Seed installs an initial batch, splitting it into active and inactive
// according to the fraction target. Call once before the loop starts.
func (p *Pool) Seed(batch []*actors.Actor) {
	activeN := int(float64(len(batch)) * p.ActiveFraction)
	if activeN < 1 && len(batch) > 0 {
		activeN = 1
	}
	for i, a := range batch {
		p.byID[a.ID] = a
		if i < activeN {
			p.order = append(p.order, a.ID)
		} else {
			p.inactive = append(p.inactive, a.ID)
		}
	}
}

// QueueSpawn stages newly spawned actors for admission at the next tick
// boundary.
func (p *Pool) QueueSpawn(batch []*actors.Actor) {
	p.pending = append(p.pending, batch...)
}

// AdmitPending moves staged actors into the active set, appending them to
// the processing order. Returns how many were admitted.
func (p *Pool) AdmitPending() int {
	n := len(p.pending)
	for _, a := range p.pending {
		p.byID[a.ID] = a
		p.order = append(p.order, a.ID)
	}
	p.pending = nil
	return n
}

// MaintainFraction promotes inactive actors while the active set is below
// the fraction target. Promotion order is randomized so the same reserves
// do not always wake first. Returns how many were promoted.
func (p *Pool) MaintainFraction(rng *rand.Rand) int {
	target := int(float64(len(p.byID)) * p.ActiveFraction)
	promoted := 0
	for len(p.order) < target && len(p.inactive) > 0 {
		i := rng.Intn(len(p.inactive))
		id := p.inactive[i]
		p.inactive = append(p.inactive[:i], p.inactive[i+1:]...)
		p.order = append(p.order, id)
		promoted++
	}
	return promoted
}

// Retire demotes an actor to the inactive reserve. No-op if the actor is
// not active.
func (p *Pool) Retire(id actors.ActorID) {
	for i, got := range p.order {
		if got == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			p.inactive = append(p.inactive, id)
			return
		}
	}
}

// RetireLaziest demotes up to n active actors with the lowest activity
// scores. Ties break by id so demotion stays deterministic. Returns how
// many were demoted.
func (p *Pool) RetireLaziest(n int) int {
	if n <= 0 || len(p.order) == 0 {
		return 0
	}
	if n > len(p.order) {
		n = len(p.order)
	}

	ids := make([]actors.ActorID, len(p.order))
	copy(ids, p.order)
	sort.Slice(ids, func(i, j int) bool {
		ai, aj := p.byID[ids[i]], p.byID[ids[j]]
		if ai.ActivityScore != aj.ActivityScore {
			return ai.ActivityScore < aj.ActivityScore
		}
		return ids[i] < ids[j]
	})

	for _, id := range ids[:n] {
		p.Retire(id)
	}
	return n
}

// Active returns the active actors in processing order. The slice is
// rebuilt per call; the actor pointers are shared.
func (p *Pool) Active() []*actors.Actor {
	out := make([]*actors.Actor, 0, len(p.order))
	for _, id := range p.order {
		if a, ok := p.byID[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Get looks up any actor in the universe, active or not.
func (p *Pool) Get(id actors.ActorID) (*actors.Actor, bool) {
	a, ok := p.byID[id]
	return a, ok
}

// All returns every actor in the universe, active first in processing
// order, then the inactive reserve.
func (p *Pool) All() []*actors.Actor {
	out := p.Active()
	for _, id := range p.inactive {
		if a, ok := p.byID[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

// ActiveLen reports the active set size; Len the universe size;
// PendingLen how many actors await admission.
func (p *Pool) ActiveLen() int  { return len(p.order) }
func (p *Pool) Len() int        { return len(p.byID) }
func (p *Pool) PendingLen() int { return len(p.pending) }

// Order returns a copy of the active processing order.
func (p *Pool) Order() []actors.ActorID {
	out := make([]actors.ActorID, len(p.order))
	copy(out, p.order)
	return out
}

// InactiveIDs returns a copy of the inactive reserve ids.
func (p *Pool) InactiveIDs() []actors.ActorID {
	out := make([]actors.ActorID, len(p.inactive))
	copy(out, p.inactive)
	return out
}
