// Actor spawning — creates synthetic users with a persona, seeded
// preferences, and an initial activity score.
package actors

import (
	"math/rand"
)

// Cuisines the platform models. Preference vectors are seeded over this set.
var Cuisines = []string{
	"american", "asian", "brunch", "comfort", "italian",
	"mediterranean", "salad", "seafood", "steakhouse",
}

// Ambiances the platform models.
var Ambiances = []string{
	"casual", "cozy", "lively", "outdoor", "rooftop", "upscale",
}

var firstNames = []string{
	"Ava", "Ben", "Chloe", "Dan", "Elena", "Felix", "Grace", "Hugo",
	"Isla", "Jonah", "Kira", "Liam", "Maya", "Noah", "Olive", "Priya",
	"Quinn", "Rosa", "Sam", "Tara", "Umar", "Vera", "Wes", "Yara", "Zane",
}

var lastNames = []string{
	"Alvarez", "Brooks", "Chen", "Diaz", "Ellis", "Fischer", "Gupta",
	"Hayes", "Ito", "Jensen", "Khan", "Lopez", "Moreau", "Nguyen",
	"Okafor", "Park", "Quist", "Rossi", "Silva", "Tanaka", "Ueda",
	"Vance", "Walsh", "Young", "Zhou",
}

// Spawner creates actors for the simulation.
type Spawner struct {
	rng    *rand.Rand
	nextID ActorID
}

// NewSpawner creates an actor spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{
		rng:    rand.New(rand.NewSource(seed + 17)),
		nextID: 1,
	}
}

// SetNextID sets the next actor ID to be issued (used when restoring).
func (s *Spawner) SetNextID(id ActorID) {
	s.nextID = id
}

// SpawnBatch creates count actors with randomly assigned personas.
func (s *Spawner) SpawnBatch(count int, tick uint64) []*Actor {
	out := make([]*Actor, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, s.spawnOne(tick))
	}
	return out
}

func (s *Spawner) spawnOne(tick uint64) *Actor {
	id := s.nextID
	s.nextID++

	persona := AllPersonas[s.rng.Intn(len(AllPersonas))]
	tmpl := Template(persona)

	lo, hi := tmpl.ActivityRange[0], tmpl.ActivityRange[1]
	activity := lo + s.rng.Float64()*(hi-lo)

	return &Actor{
		ID:            id,
		Name:          s.generateName(),
		Persona:       persona,
		Prefs:         s.seedPrefs(tmpl),
		Friends:       make(map[ActorID]int),
		ActivityScore: activity,
		OpenToInvites: s.rng.Float64() > 0.3,
		JoinedTick:    tick,
	}
}

// seedPrefs builds the starting preference vector: favored cuisines score
// high, the rest low, all independently drawn.
func (s *Spawner) seedPrefs(tmpl PersonaTemplate) PreferenceVector {
	favored := make(map[string]bool, len(tmpl.FavoredCuisines))
	for _, c := range tmpl.FavoredCuisines {
		favored[c] = true
	}

	prefs := PreferenceVector{
		Cuisine:  make(map[string]float64, len(Cuisines)),
		Ambiance: make(map[string]float64, len(Ambiances)),
		PriceMin: tmpl.PriceRange[0],
		PriceMax: tmpl.PriceRange[1],
	}
	for _, c := range Cuisines {
		if favored[c] {
			prefs.Cuisine[c] = 0.6 + s.rng.Float64()*0.3
		} else {
			prefs.Cuisine[c] = 0.1 + s.rng.Float64()*0.3
		}
	}
	for _, a := range Ambiances {
		prefs.Ambiance[a] = 0.2 + s.rng.Float64()*0.5
	}
	return prefs
}

func (s *Spawner) generateName() string {
	first := firstNames[s.rng.Intn(len(firstNames))]
	last := lastNames[s.rng.Intn(len(lastNames))]
	return first + " " + last
}

// Befriend wires an initial social graph: each actor gets a few mutual
// links drawn from the batch.
func (s *Spawner) Befriend(batch []*Actor, avgFriends int) {
	if len(batch) < 2 || avgFriends <= 0 {
		return
	}
	for _, a := range batch {
		n := 1 + s.rng.Intn(avgFriends*2)
		for j := 0; j < n; j++ {
			other := batch[s.rng.Intn(len(batch))]
			if other.ID == a.ID {
				continue
			}
			a.RecordInteraction(other.ID)
			other.RecordInteraction(a.ID)
		}
	}
}
