// Preference and state evolution: per-action nudges applied inside the
// tick, plus the periodic social-influence and seasonal-drift passes run
// at the daily boundary.
package engine

import (
	"github.com/talgya/luna-sim/internal/actors"
	"github.com/talgya/luna-sim/internal/domain"
	"github.com/talgya/luna-sim/internal/temporal"
)

// Learning rates per action kind, and the caps that bound any single
// adjustment pass.
const (
	RateBrowse   = 0.02
	RateInterest = 0.05
	RateBooking  = 0.10
	RateCancel   = -0.03
	NudgeCap     = 0.15

	RateSocial   = 0.02
	SocialCap    = 0.15
	RateSeasonal = 0.01
)

func nudgePref(prefs map[string]float64, key string, rate float64) {
	if key == "" {
		return
	}
	if rate > NudgeCap {
		rate = NudgeCap
	} else if rate < -NudgeCap {
		rate = -NudgeCap
	}
	prefs[key] = clamp01(prefs[key] + rate)
}

// actionNudge moves an actor's preferences toward (or away from) a venue
// after an executed action. Ambiance moves at half the cuisine rate.
func actionNudge(a *actors.Actor, v *domain.Venue, rate float64) {
	if v == nil {
		return
	}
	nudgePref(a.Prefs.Cuisine, v.Cuisine, rate)
	for _, amb := range v.Ambiance {
		nudgePref(a.Prefs.Ambiance, amb, rate/2)
	}
}

// socialInfluence pulls an actor's cuisine preferences toward the blended
// preferences of their friends, weighted by interaction count. Total
// movement per cuisine is capped so one pass never dominates taste.
func socialInfluence(a *actors.Actor, lookup func(actors.ActorID) (*actors.Actor, bool)) {
	if len(a.Friends) == 0 {
		return
	}

	total := 0
	for _, n := range a.Friends {
		total += n
	}
	if total == 0 {
		return
	}

	// Blend friend preferences, interaction-weighted.
	blend := make(map[string]float64)
	for _, id := range a.FriendIDs() {
		friend, ok := lookup(id)
		if !ok {
			continue
		}
		w := float64(a.Friends[id]) / float64(total)
		for cuisine, pref := range friend.Prefs.Cuisine {
			blend[cuisine] += pref * w
		}
	}

	for cuisine, target := range blend {
		cur := a.Prefs.Cuisine[cuisine]
		delta := (target - cur) * RateSocial
		if delta > SocialCap {
			delta = SocialCap
		} else if delta < -SocialCap {
			delta = -SocialCap
		}
		a.Prefs.Cuisine[cuisine] = clamp01(cur + delta)
	}
}

type seasonalShift struct {
	boostCuisine    []string
	decreaseCuisine []string
	boostAmbiance   []string
}

var seasonalShifts = map[temporal.Season]seasonalShift{
	temporal.Winter: {
		boostCuisine:    []string{"comfort", "italian", "steakhouse"},
		decreaseCuisine: []string{"salad", "seafood"},
		boostAmbiance:   []string{"cozy"},
	},
	temporal.Spring: {
		boostCuisine:    []string{"brunch", "salad", "mediterranean"},
		decreaseCuisine: []string{"comfort"},
		boostAmbiance:   []string{"outdoor"},
	},
	temporal.Summer: {
		boostCuisine:    []string{"seafood", "salad", "mediterranean"},
		decreaseCuisine: []string{"comfort", "steakhouse"},
		boostAmbiance:   []string{"outdoor", "rooftop"},
	},
	temporal.Fall: {
		boostCuisine:    []string{"comfort", "american", "asian"},
		decreaseCuisine: []string{"salad"},
		boostAmbiance:   []string{"cozy"},
	},
}

// seasonalDrift applies the slow taste drift for the current season.
func seasonalDrift(a *actors.Actor, season temporal.Season) {
	shift, ok := seasonalShifts[season]
	if !ok {
		return
	}
	for _, c := range shift.boostCuisine {
		nudgePref(a.Prefs.Cuisine, c, RateSeasonal)
	}
	for _, c := range shift.decreaseCuisine {
		nudgePref(a.Prefs.Cuisine, c, -RateSeasonal)
	}
	for _, amb := range shift.boostAmbiance {
		nudgePref(a.Prefs.Ambiance, amb, RateSeasonal)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
