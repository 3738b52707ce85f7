package engine

import (
	"testing"

	"github.com/talgya/luna-sim/internal/actors"
)

// poolWith admits every given activity score as an active actor, ids 1..n.
func poolWith(scores ...float64) *Pool {
	p := NewPool(0.6)
	batch := make([]*actors.Actor, len(scores))
	for i, score := range scores {
		batch[i] = &actors.Actor{ID: actors.ActorID(i + 1), ActivityScore: score}
	}
	p.QueueSpawn(batch)
	p.AdmitPending()
	return p
}

func TestRetireLaziestDemotesLowestScores(t *testing.T) {
	p := poolWith(0.9, 0.2, 0.5, 0.2, 0.8)

	if got := p.RetireLaziest(2); got != 2 {
		t.Fatalf("demoted %d, want 2", got)
	}

	// The two 0.2 scorers rest; the survivors keep their processing order.
	want := []actors.ActorID{1, 3, 5}
	order := p.Order()
	if len(order) != len(want) {
		t.Fatalf("active order %v, want %v", order, want)
	}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("active order %v, want %v", order, want)
		}
	}

	rested := map[actors.ActorID]bool{}
	for _, id := range p.InactiveIDs() {
		rested[id] = true
	}
	if !rested[2] || !rested[4] {
		t.Fatalf("inactive reserve %v, want actors 2 and 4", p.InactiveIDs())
	}
}

func TestRetireLaziestBoundedByActiveSet(t *testing.T) {
	p := poolWith(0.3, 0.6)

	if got := p.RetireLaziest(10); got != 2 {
		t.Fatalf("demoted %d, want all 2", got)
	}
	if p.ActiveLen() != 0 || len(p.InactiveIDs()) != 2 {
		t.Fatalf("active %d inactive %d after full demotion", p.ActiveLen(), len(p.InactiveIDs()))
	}
	if got := p.RetireLaziest(1); got != 0 {
		t.Fatalf("demoted %d from an empty active set", got)
	}
}
