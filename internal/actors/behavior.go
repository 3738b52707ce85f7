// Behavior engine — combines base probabilities, persona, scenario, and
// context modifiers into a normalized action distribution, then draws one
// action per actor per tick.
package actors

import (
	"math/rand"
)

// WeightEpsilon is the floor applied to every action weight before
// normalization. No action is ever impossible.
const WeightEpsilon = 1e-3

// WeightsFor builds the action weight vector for an actor: base weights
// multiplied element-wise by the persona template, the active scenario, and
// any context modifier sets (temporal, environmental), floored at epsilon
// and renormalized to sum to 1.
func WeightsFor(a *Actor, scenario Scenario, context ...Modifiers) Weights {
	w := BaseWeights()

	tmpl := Template(a.Persona)
	for action, factor := range tmpl.Modifiers {
		w[action] *= factor
	}

	sm := ScenarioMods(scenario)
	for i := range w {
		w[i] *= sm[i]
	}

	for _, m := range context {
		for i := range w {
			w[i] *= m[i]
		}
	}

	return w.Normalize()
}

// Normalize floors every weight at epsilon and rescales so the vector sums
// to 1.
func (w Weights) Normalize() Weights {
	var sum float64
	for i := range w {
		if w[i] < WeightEpsilon {
			w[i] = WeightEpsilon
		}
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

// Draw selects one action by weighted random selection. The weights must be
// normalized. Deterministic for a fixed rng state.
func (w Weights) Draw(rng *rand.Rand) Action {
	r := rng.Float64()
	var cum float64
	for i := range w {
		cum += w[i]
		if r < cum {
			return Action(i)
		}
	}
	// Floating point residue — the last action absorbs it.
	return Action(NumActions - 1)
}

// Decide picks the actor's action for this tick.
func Decide(a *Actor, scenario Scenario, rng *rand.Rand, context ...Modifiers) Action {
	return WeightsFor(a, scenario, context...).Draw(rng)
}

// AcceptsInvite draws whether an actor accepts an invitation. The base
// acceptance rate is 70%, shifted by persona sociability.
func AcceptsInvite(a *Actor, rng *rand.Rand) bool {
	rate := 0.7 + Template(a.Persona).Sociability
	if rate < 0.05 {
		rate = 0.05
	}
	if rate > 0.95 {
		rate = 0.95
	}
	return rng.Float64() < rate
}
