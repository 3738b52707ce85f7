package actors

import "testing"

func TestSpawnBatchAssignsValidPersonas(t *testing.T) {
	s := NewSpawner(42)
	batch := s.SpawnBatch(50, 10)

	if len(batch) != 50 {
		t.Fatalf("spawned %d actors, want 50", len(batch))
	}

	seen := map[ActorID]bool{}
	for _, a := range batch {
		if seen[a.ID] {
			t.Errorf("duplicate actor id %d", a.ID)
		}
		seen[a.ID] = true

		if !KnownPersona(string(a.Persona)) {
			t.Errorf("actor %d has unknown persona %q", a.ID, a.Persona)
		}
		if a.JoinedTick != 10 {
			t.Errorf("actor %d joined at tick %d, want 10", a.ID, a.JoinedTick)
		}
		if a.ActivityScore <= 0 || a.ActivityScore > 1 {
			t.Errorf("actor %d activity score %f out of range", a.ID, a.ActivityScore)
		}
		for c, v := range a.Prefs.Cuisine {
			if v < 0 || v > 1 {
				t.Errorf("actor %d cuisine %s preference %f out of [0,1]", a.ID, c, v)
			}
		}
		if a.Prefs.PriceMin >= a.Prefs.PriceMax {
			t.Errorf("actor %d price range [%f,%f] inverted", a.ID, a.Prefs.PriceMin, a.Prefs.PriceMax)
		}
	}
}

func TestSpawnerDeterministicForSameSeed(t *testing.T) {
	a := NewSpawner(99).SpawnBatch(10, 0)
	b := NewSpawner(99).SpawnBatch(10, 0)

	for i := range a {
		if a[i].Name != b[i].Name || a[i].Persona != b[i].Persona {
			t.Errorf("actor %d differs across identically seeded spawners: %s/%s vs %s/%s",
				i, a[i].Name, a[i].Persona, b[i].Name, b[i].Persona)
		}
	}
}

func TestBefriendWiresMutualLinks(t *testing.T) {
	s := NewSpawner(7)
	batch := s.SpawnBatch(20, 0)
	s.Befriend(batch, 3)

	byID := map[ActorID]*Actor{}
	for _, a := range batch {
		byID[a.ID] = a
	}

	linked := 0
	for _, a := range batch {
		for friend := range a.Friends {
			linked++
			if _, ok := byID[friend].Friends[a.ID]; !ok {
				t.Errorf("link %d -> %d is not mutual", a.ID, friend)
			}
		}
	}
	if linked == 0 {
		t.Error("no friendships created")
	}
}

func TestFriendIDsSorted(t *testing.T) {
	a := testActor(PersonaFoodieExplorer)
	a.Friends = map[ActorID]int{9: 1, 3: 2, 7: 1, 1: 5}

	ids := a.FriendIDs()
	for i := 1; i < len(ids); i++ {
		if ids[i] < ids[i-1] {
			t.Fatalf("friend ids not sorted: %v", ids)
		}
	}
}
