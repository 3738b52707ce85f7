package domain

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/talgya/luna-sim/internal/actors"
)

func seededStore() *Store {
	s := NewStore()
	s.SeedDefaults()
	return s
}

func TestSeedDefaultsLoadsRoster(t *testing.T) {
	s := seededStore()
	venues := s.Venues()
	if len(venues) == 0 {
		t.Fatal("no venues seeded")
	}
	for _, v := range venues {
		if v.Capacity <= 0 {
			t.Errorf("venue %s has capacity %d", v.Name, v.Capacity)
		}
		if !v.AcceptsReservations {
			t.Errorf("venue %s does not accept reservations", v.Name)
		}
	}
}

func TestCreateBookingSeatsParty(t *testing.T) {
	s := seededStore()
	v := s.Venues()[0]

	b, err := s.CreateBooking(1, v.ID, 4, time.Now(), "ABCD1234", nil)
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if b.Status != BookingPending {
		t.Errorf("new booking status %s, want pending", b.Status)
	}
	if v.Occupancy != 4 {
		t.Errorf("venue occupancy %d after party of 4, want 4", v.Occupancy)
	}
	if v.BookingCount != 1 {
		t.Errorf("venue booking count %d, want 1", v.BookingCount)
	}
}

func TestCreateBookingRejectsFullVenue(t *testing.T) {
	s := seededStore()
	v := s.Venues()[0]
	v.Occupancy = v.Capacity - 2

	_, err := s.CreateBooking(1, v.ID, 4, time.Now(), "ABCD1234", nil)
	if !errors.Is(err, ErrVenueFull) {
		t.Fatalf("booking over capacity: err = %v, want ErrVenueFull", err)
	}
	if v.Occupancy != v.Capacity-2 {
		t.Errorf("occupancy mutated on failed booking: %d", v.Occupancy)
	}
}

func TestCancelBookingReleasesSeats(t *testing.T) {
	s := seededStore()
	v := s.Venues()[0]

	b, _ := s.CreateBooking(1, v.ID, 3, time.Now(), "ABCD1234", nil)
	if _, err := s.CancelBooking(b.ID); err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if v.Occupancy != 0 {
		t.Errorf("occupancy %d after cancel, want 0", v.Occupancy)
	}
	if b.Status != BookingCancelled {
		t.Errorf("status %s after cancel", b.Status)
	}
}

func TestCompleteStaleReleasesSeats(t *testing.T) {
	s := seededStore()
	v := s.Venues()[0]
	slot := time.Date(2026, time.June, 3, 12, 0, 0, 0, time.UTC)

	b, _ := s.CreateBooking(1, v.ID, 2, slot, "ABCD1234", nil)
	s.ConfirmBooking(b.ID)

	done := s.CompleteStale(slot.Add(2 * time.Hour))
	if len(done) != 1 || done[0].ID != b.ID {
		t.Fatalf("CompleteStale returned %v, want booking %d", done, b.ID)
	}
	if b.Status != BookingCompleted {
		t.Errorf("status %s, want completed", b.Status)
	}
	if v.Occupancy != 0 {
		t.Errorf("occupancy %d after completion, want 0", v.Occupancy)
	}
}

func TestUpcomingBookingsFiltersStatusAndTime(t *testing.T) {
	s := seededStore()
	v := s.Venues()[0]
	now := time.Date(2026, time.June, 3, 12, 0, 0, 0, time.UTC)

	past, _ := s.CreateBooking(1, v.ID, 2, now.Add(-2*time.Hour), "AAAA1111", nil)
	s.ConfirmBooking(past.ID)
	future, _ := s.CreateBooking(2, v.ID, 2, now.Add(3*time.Hour), "BBBB2222", nil)
	s.ConfirmBooking(future.ID)
	// Third booking stays pending and must not surface.
	s.CreateBooking(3, v.ID, 2, now.Add(4*time.Hour), "CCCC3333", nil)

	up := s.UpcomingBookings(now)
	if len(up) != 1 || up[0].ID != future.ID {
		t.Fatalf("upcoming = %d bookings, want just booking %d", len(up), future.ID)
	}
}

func TestDuplicateInviteRejected(t *testing.T) {
	s := seededStore()
	v := s.Venues()[0]
	now := time.Now()

	if _, err := s.Invite(1, 2, v.ID, now); err != nil {
		t.Fatalf("first invite: %v", err)
	}
	if _, err := s.Invite(1, 2, v.ID, now); !errors.Is(err, ErrDuplicateInvite) {
		t.Fatalf("second invite err = %v, want ErrDuplicateInvite", err)
	}
	// A different venue is fine.
	if _, err := s.Invite(1, 2, s.Venues()[1].ID, now); err != nil {
		t.Errorf("invite to second venue: %v", err)
	}
}

func TestRespondInviteResolvesOldestFirst(t *testing.T) {
	s := seededStore()
	now := time.Now()
	first, _ := s.Invite(1, 3, s.Venues()[0].ID, now)
	s.Invite(2, 3, s.Venues()[1].ID, now)

	pending := s.PendingInviteFor(3)
	if pending == nil || pending.ID != first.ID {
		t.Fatalf("PendingInviteFor returned %v, want invite %d", pending, first.ID)
	}

	if _, err := s.RespondInvite(pending.ID, true); err != nil {
		t.Fatalf("RespondInvite: %v", err)
	}
	if pending.Status != InviteAccepted {
		t.Errorf("status %s after accept", pending.Status)
	}

	next := s.PendingInviteFor(3)
	if next == nil || next.ID == first.ID {
		t.Errorf("second pending invite not surfaced: %v", next)
	}
}

func TestPickByAffinityFavorsPreferredCuisine(t *testing.T) {
	s := seededStore()
	prefs := actors.PreferenceVector{
		Cuisine:  map[string]float64{"italian": 0.95},
		Ambiance: map[string]float64{},
		PriceMin: 20, PriceMax: 100,
	}

	rng := rand.New(rand.NewSource(21))
	hits := 0
	const n = 5000
	for i := 0; i < n; i++ {
		if s.PickByAffinity(prefs, rng).Cuisine == "italian" {
			hits++
		}
	}
	// One italian venue out of twelve; affinity should lift it well above 1/12.
	if rate := float64(hits) / n; rate < 0.15 {
		t.Errorf("italian pick rate %.3f, want noticeably above uniform 0.083", rate)
	}
}

func TestRecalcTrendingFlagsHotVenues(t *testing.T) {
	s := seededStore()
	hot := s.Venues()[2]
	hot.ViewCount = 100
	hot.BookingCount = 20

	changed := s.RecalcTrending()
	if len(changed) != 1 || changed[0].ID != hot.ID {
		t.Fatalf("RecalcTrending changed %v, want just venue %d", changed, hot.ID)
	}
	if !hot.Trending {
		t.Error("hot venue not flagged trending")
	}

	// Cooling off clears the flag.
	for i := 0; i < 8; i++ {
		s.DecayActivity()
	}
	changed = s.RecalcTrending()
	if hot.Trending {
		t.Error("venue still trending after decay")
	}
	if len(changed) != 1 {
		t.Errorf("expected one flag change on cooldown, got %d", len(changed))
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	s := seededStore()
	v := s.Venues()[0]
	b, _ := s.CreateBooking(1, v.ID, 2, time.Date(2026, time.June, 3, 19, 0, 0, 0, time.UTC), "ZZTOP123", []actors.ActorID{2})
	s.Invite(1, 2, v.ID, time.Now())

	snap := s.Export()

	// Mutate, then restore.
	s.CancelBooking(b.ID)
	v.ViewCount = 999

	s.Import(snap)

	rv, _ := s.Venue(v.ID)
	if rv.ViewCount == 999 {
		t.Error("venue state not restored")
	}
	rb, err := s.Booking(b.ID)
	if err != nil || rb.Status != BookingPending {
		t.Errorf("booking not restored: %v %v", rb, err)
	}
	if rv.Occupancy != 2 {
		t.Errorf("restored occupancy %d, want 2", rv.Occupancy)
	}

	// New bookings pick up after the snapshot's id counter.
	nb, _ := s.CreateBooking(3, v.ID, 2, time.Now(), "AAAA1111", nil)
	if nb.ID <= b.ID {
		t.Errorf("new booking id %d not after restored counter %d", nb.ID, b.ID)
	}
}

func TestImportEmptyStateRestartsIDCounters(t *testing.T) {
	s := seededStore()
	v := s.Venues()[0]
	s.CreateBooking(1, v.ID, 2, time.Now(), "ABCD1234", nil)
	s.Invite(1, 2, v.ID, time.Now())

	// A zero-value State is what a full reset imports.
	s.Import(State{})
	s.SeedDefaults()

	b, err := s.CreateBooking(1, s.Venues()[0].ID, 2, time.Now(), "EFGH5678", nil)
	if err != nil {
		t.Fatalf("CreateBooking after reset: %v", err)
	}
	if b.ID != 1 {
		t.Errorf("first post-reset booking id %d, want 1", b.ID)
	}
	inv, err := s.Invite(1, 2, s.Venues()[0].ID, time.Now())
	if err != nil {
		t.Fatalf("Invite after reset: %v", err)
	}
	if inv.ID != 1 {
		t.Errorf("first post-reset invite id %d, want 1", inv.ID)
	}
}

func TestConfirmationCodeShape(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	code := ConfirmationCode(rng)
	if len(code) != 8 {
		t.Fatalf("code %q length %d, want 8", code, len(code))
	}
	for _, c := range code {
		if !(c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			t.Errorf("code %q contains invalid character %q", code, c)
		}
	}
}

func TestNextMealSlot(t *testing.T) {
	day := func(h int) time.Time {
		return time.Date(2026, time.June, 3, h, 30, 0, 0, time.UTC)
	}
	if got := NextMealSlot(day(9)); got.Hour() != 12 || got.Day() != 3 {
		t.Errorf("morning slot = %v, want same-day lunch", got)
	}
	if got := NextMealSlot(day(14)); got.Hour() != 19 || got.Day() != 3 {
		t.Errorf("afternoon slot = %v, want same-day dinner", got)
	}
	if got := NextMealSlot(day(20)); got.Hour() != 12 || got.Day() != 4 {
		t.Errorf("evening slot = %v, want next-day lunch", got)
	}
}
