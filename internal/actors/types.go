// Package actors provides the actor data model, persona templates, and the
// probabilistic behavior engine that decides what each actor does per tick.
package actors

// ActorID is a unique identifier for a simulated actor.
type ActorID uint64

// Action enumerates the closed set of things an actor can do in one tick.
type Action uint8

const (
	ActionBrowse          Action = iota // Look at a venue
	ActionCheckFriends                  // View a friend's activity
	ActionExpressInterest               // Mark a venue as interesting
	ActionSendInvite                    // Invite a friend to a venue
	ActionRespondInvite                 // Accept or decline a pending invite
	ActionMakeBooking                   // Reserve a table
)

// NumActions is the size of the action set.
const NumActions = 6

var actionNames = [NumActions]string{
	"browse",
	"check_friends",
	"express_interest",
	"send_invite",
	"respond_invite",
	"make_booking",
}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "unknown"
}

// ParseAction maps an action name back to its enum value.
func ParseAction(name string) (Action, bool) {
	for i, n := range actionNames {
		if n == name {
			return Action(i), true
		}
	}
	return 0, false
}

// Weights is a probability vector over the action set. Not necessarily
// normalized until Normalize is called.
type Weights [NumActions]float64

// Modifiers is a multiplicative adjustment over the action set.
// The identity modifier is all ones.
type Modifiers [NumActions]float64

// NoModifiers returns the identity modifier set.
func NoModifiers() Modifiers {
	return Modifiers{1, 1, 1, 1, 1, 1}
}

// Scale multiplies one action's modifier in place.
func (m *Modifiers) Scale(a Action, factor float64) {
	m[a] *= factor
}

// BaseWeights returns the platform-wide base action probabilities.
func BaseWeights() Weights {
	return Weights{
		ActionBrowse:          0.40,
		ActionCheckFriends:    0.20,
		ActionExpressInterest: 0.15,
		ActionSendInvite:      0.10,
		ActionRespondInvite:   0.10,
		ActionMakeBooking:     0.05,
	}
}

// PreferenceVector holds an actor's dining preferences. Cuisine and ambiance
// affinities are bounded to [0,1]; the price range is in dollars per head.
type PreferenceVector struct {
	Cuisine  map[string]float64 `json:"cuisine"`
	Ambiance map[string]float64 `json:"ambiance"`
	PriceMin float64            `json:"price_min"`
	PriceMax float64            `json:"price_max"`
}

// Clone returns a deep copy of the preference vector.
func (p PreferenceVector) Clone() PreferenceVector {
	out := PreferenceVector{
		Cuisine:  make(map[string]float64, len(p.Cuisine)),
		Ambiance: make(map[string]float64, len(p.Ambiance)),
		PriceMin: p.PriceMin,
		PriceMax: p.PriceMax,
	}
	for k, v := range p.Cuisine {
		out.Cuisine[k] = v
	}
	for k, v := range p.Ambiance {
		out.Ambiance[k] = v
	}
	return out
}

// PriceMid returns the midpoint of the actor's comfortable price range.
func (p PreferenceVector) PriceMid() float64 {
	return (p.PriceMin + p.PriceMax) / 2
}

// Actor is a synthetic platform user driven by the behavior engine.
// Owned exclusively by the orchestrator's pool; mutated only during the
// tick it is scheduled in.
type Actor struct {
	ID      ActorID `json:"id"`
	Name    string  `json:"name"`
	Persona Persona `json:"persona"`

	Prefs PreferenceVector `json:"prefs"`

	// Friends maps friend id to interaction count. The count weights
	// social influence during the daily evolution pass.
	Friends map[ActorID]int `json:"friends"`

	// ActivityScore scales how likely the actor is to act on any given
	// tick. 0.0–1.0.
	ActivityScore float64 `json:"activity_score"`

	// OpenToInvites gates whether other actors may target this one.
	OpenToInvites bool `json:"open_to_invites"`

	JoinedTick uint64 `json:"joined_tick"`
}

// FriendIDs returns the actor's friend ids in ascending order.
// Stable iteration order keeps per-tick draws reproducible.
func (a *Actor) FriendIDs() []ActorID {
	ids := make([]ActorID, 0, len(a.Friends))
	for id := range a.Friends {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}

// RecordInteraction bumps the interaction count with a friend, creating the
// link if it does not exist yet.
func (a *Actor) RecordInteraction(friend ActorID) {
	if a.Friends == nil {
		a.Friends = make(map[ActorID]int)
	}
	a.Friends[friend]++
}
