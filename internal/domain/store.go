// In-memory domain store. Single-writer: only the orchestrator's tick loop
// mutates it, so no locking here.
package domain

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/talgya/luna-sim/internal/actors"
)

// Store holds venues, bookings, and invitations.
type Store struct {
	venues   map[VenueID]*Venue
	order    []VenueID // Insertion order, for deterministic iteration
	bookings map[BookingID]*Booking
	invites  map[InviteID]*Invitation

	nextBooking BookingID
	nextInvite  InviteID
}

// NewStore creates an empty domain store.
func NewStore() *Store {
	return &Store{
		venues:      make(map[VenueID]*Venue),
		bookings:    make(map[BookingID]*Booking),
		invites:     make(map[InviteID]*Invitation),
		nextBooking: 1,
		nextInvite:  1,
	}
}

// seedVenues is the fixed starting venue roster.
var seedVenues = []Venue{
	{ID: 1, Name: "The Brass Fig", Cuisine: "american", PriceLevel: 2, Ambiance: []string{"casual", "lively"}, Rating: 4.2, Capacity: 60},
	{ID: 2, Name: "Luna Rossa", Cuisine: "italian", PriceLevel: 3, Ambiance: []string{"cozy", "upscale"}, Rating: 4.5, Capacity: 45},
	{ID: 3, Name: "Dumpling Theory", Cuisine: "asian", PriceLevel: 2, Ambiance: []string{"casual", "lively"}, Rating: 4.4, Capacity: 50},
	{ID: 4, Name: "Harborline Oyster Bar", Cuisine: "seafood", PriceLevel: 3, Ambiance: []string{"upscale", "outdoor"}, Rating: 4.3, Capacity: 40},
	{ID: 5, Name: "Cedar & Smoke", Cuisine: "steakhouse", PriceLevel: 4, Ambiance: []string{"upscale", "cozy"}, Rating: 4.6, Capacity: 35},
	{ID: 6, Name: "Verde Bowl", Cuisine: "salad", PriceLevel: 1, Ambiance: []string{"casual"}, Rating: 4.0, Capacity: 30},
	{ID: 7, Name: "Meze Hour", Cuisine: "mediterranean", PriceLevel: 2, Ambiance: []string{"casual", "outdoor"}, Rating: 4.3, Capacity: 55},
	{ID: 8, Name: "Sunday Stack", Cuisine: "brunch", PriceLevel: 2, Ambiance: []string{"casual", "lively"}, Rating: 4.1, Capacity: 65},
	{ID: 9, Name: "Hearth Home Kitchen", Cuisine: "comfort", PriceLevel: 1, Ambiance: []string{"cozy", "casual"}, Rating: 4.0, Capacity: 70},
	{ID: 10, Name: "Skyline Terrace", Cuisine: "american", PriceLevel: 3, Ambiance: []string{"rooftop", "upscale"}, Rating: 4.4, Capacity: 50},
	{ID: 11, Name: "Noodle Atlas", Cuisine: "asian", PriceLevel: 1, Ambiance: []string{"casual"}, Rating: 4.2, Capacity: 40},
	{ID: 12, Name: "Olive & Thyme", Cuisine: "mediterranean", PriceLevel: 3, Ambiance: []string{"upscale", "cozy"}, Rating: 4.5, Capacity: 38},
}

// SeedDefaults loads the fixed venue roster. All venues accept reservations.
func (s *Store) SeedDefaults() {
	for i := range seedVenues {
		v := seedVenues[i] // copy
		v.AcceptsReservations = true
		s.AddVenue(&v)
	}
}

// AddVenue registers a venue.
func (s *Store) AddVenue(v *Venue) {
	s.venues[v.ID] = v
	s.order = append(s.order, v.ID)
}

// Venue looks up a venue by id.
func (s *Store) Venue(id VenueID) (*Venue, error) {
	v, ok := s.venues[id]
	if !ok {
		return nil, fmt.Errorf("venue %d: %w", id, ErrVenueNotFound)
	}
	return v, nil
}

// Venues returns every venue in insertion order.
func (s *Store) Venues() []*Venue {
	out := make([]*Venue, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.venues[id])
	}
	return out
}

// PickByAffinity selects a venue weighted by how well it matches the
// actor's preferences. Deterministic for a fixed rng state.
func (s *Store) PickByAffinity(prefs actors.PreferenceVector, rng *rand.Rand) *Venue {
	if len(s.order) == 0 {
		return nil
	}

	weights := make([]float64, len(s.order))
	var sum float64
	for i, id := range s.order {
		w := s.affinity(s.venues[id], prefs)
		weights[i] = w
		sum += w
	}

	r := rng.Float64() * sum
	var cum float64
	for i, w := range weights {
		cum += w
		if r < cum {
			return s.venues[s.order[i]]
		}
	}
	return s.venues[s.order[len(s.order)-1]]
}

// affinity scores a venue against a preference vector. Always positive so
// every venue stays drawable.
func (s *Store) affinity(v *Venue, prefs actors.PreferenceVector) float64 {
	score := 0.1

	score += prefs.Cuisine[v.Cuisine]

	for _, amb := range v.Ambiance {
		score += prefs.Ambiance[amb] * 0.3
	}

	// Price fit: penalty grows with distance from the comfortable range.
	spend := v.AvgSpend()
	switch {
	case spend >= prefs.PriceMin && spend <= prefs.PriceMax:
		score += 0.4
	case spend < prefs.PriceMin:
		score += 0.2
	default:
		over := (spend - prefs.PriceMax) / 50
		score += clampF(0.2-over, 0, 0.2)
	}

	// Trending venues draw extra looks.
	if v.Trending {
		score *= 1.3
	}
	return score
}

// RecordView bumps a venue's rolling view count.
func (s *Store) RecordView(id VenueID) {
	if v, ok := s.venues[id]; ok {
		v.ViewCount++
	}
}

// CreateBooking validates capacity and creates a pending booking, seating
// the party immediately.
func (s *Store) CreateBooking(actor actors.ActorID, venueID VenueID, partySize int, at time.Time, code string, guests []actors.ActorID) (*Booking, error) {
	v, err := s.Venue(venueID)
	if err != nil {
		return nil, err
	}
	if !v.AcceptsReservations {
		return nil, fmt.Errorf("venue %d: %w", venueID, ErrNoReservations)
	}
	if v.Occupancy+partySize > v.Capacity {
		return nil, fmt.Errorf("venue %d (%d/%d seated, party of %d): %w",
			venueID, v.Occupancy, v.Capacity, partySize, ErrVenueFull)
	}

	b := &Booking{
		ID:           s.nextBooking,
		ActorID:      actor,
		VenueID:      venueID,
		PartySize:    partySize,
		Time:         at,
		DurationMin:  90,
		Status:       BookingPending,
		Confirmation: code,
		Guests:       guests,
	}
	s.nextBooking++
	s.bookings[b.ID] = b

	v.Occupancy += partySize
	v.BookingCount++
	return b, nil
}

// ConfirmBooking moves a pending booking to confirmed.
func (s *Store) ConfirmBooking(id BookingID) (*Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %d: %w", id, ErrBookingNotFound)
	}
	b.Status = BookingConfirmed
	return b, nil
}

// CancelBooking cancels a booking and releases its seats.
func (s *Store) CancelBooking(id BookingID) (*Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %d: %w", id, ErrBookingNotFound)
	}
	if b.Status == BookingCancelled || b.Status == BookingCompleted {
		return b, nil
	}
	b.Status = BookingCancelled
	if v, ok := s.venues[b.VenueID]; ok {
		v.Occupancy -= b.PartySize
		if v.Occupancy < 0 {
			v.Occupancy = 0
		}
	}
	return b, nil
}

// CompleteStale completes bookings whose slot has passed and releases their
// seats. Returns the completed bookings. Called hourly by the orchestrator.
func (s *Store) CompleteStale(now time.Time) []*Booking {
	var done []*Booking
	ids := make([]BookingID, 0, len(s.bookings))
	for id := range s.bookings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		b := s.bookings[id]
		if b.Status != BookingPending && b.Status != BookingConfirmed {
			continue
		}
		if now.After(b.Time.Add(time.Duration(b.DurationMin) * time.Minute)) {
			b.Status = BookingCompleted
			if v, ok := s.venues[b.VenueID]; ok {
				v.Occupancy -= b.PartySize
				if v.Occupancy < 0 {
					v.Occupancy = 0
				}
			}
			done = append(done, b)
		}
	}
	return done
}

// UpcomingBookings returns confirmed bookings whose slot is still ahead of
// now, in id order.
func (s *Store) UpcomingBookings(now time.Time) []*Booking {
	ids := make([]BookingID, 0, len(s.bookings))
	for id, b := range s.bookings {
		if b.Status == BookingConfirmed && b.Time.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*Booking, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.bookings[id])
	}
	return out
}

// Booking looks up a booking by id.
func (s *Store) Booking(id BookingID) (*Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %d: %w", id, ErrBookingNotFound)
	}
	return b, nil
}

// Invite creates a pending invitation. A second pending invite from the
// same inviter to the same invitee for the same venue is rejected.
func (s *Store) Invite(inviter, invitee actors.ActorID, venueID VenueID, at time.Time) (*Invitation, error) {
	if _, err := s.Venue(venueID); err != nil {
		return nil, err
	}
	for _, inv := range s.invites {
		if inv.Status == InvitePending && inv.Inviter == inviter && inv.Invitee == invitee && inv.VenueID == venueID {
			return nil, fmt.Errorf("invite %d -> %d venue %d: %w", inviter, invitee, venueID, ErrDuplicateInvite)
		}
	}

	inv := &Invitation{
		ID:      s.nextInvite,
		Inviter: inviter,
		Invitee: invitee,
		VenueID: venueID,
		Status:  InvitePending,
		SentAt:  at,
	}
	s.nextInvite++
	s.invites[inv.ID] = inv
	return inv, nil
}

// PendingInviteFor returns the oldest pending invitation addressed to an
// actor, or nil.
func (s *Store) PendingInviteFor(invitee actors.ActorID) *Invitation {
	var oldest *Invitation
	for _, inv := range s.invites {
		if inv.Status != InvitePending || inv.Invitee != invitee {
			continue
		}
		if oldest == nil || inv.ID < oldest.ID {
			oldest = inv
		}
	}
	return oldest
}

// RespondInvite resolves a pending invitation.
func (s *Store) RespondInvite(id InviteID, accepted bool) (*Invitation, error) {
	inv, ok := s.invites[id]
	if !ok || inv.Status != InvitePending {
		return nil, fmt.Errorf("invite %d: %w", id, ErrNoPendingInvite)
	}
	if accepted {
		inv.Status = InviteAccepted
	} else {
		inv.Status = InviteDeclined
	}
	return inv, nil
}

// RecalcTrending flags venues whose rolling activity is at least double the
// roster average. Returns the venues whose flag flipped.
func (s *Store) RecalcTrending() []*Venue {
	if len(s.order) == 0 {
		return nil
	}

	var total float64
	scores := make(map[VenueID]float64, len(s.order))
	for _, id := range s.order {
		v := s.venues[id]
		score := float64(v.ViewCount) + float64(v.BookingCount)*3
		scores[id] = score
		total += score
	}
	avg := total / float64(len(s.order))

	var changed []*Venue
	for _, id := range s.order {
		v := s.venues[id]
		want := avg > 0 && scores[id] >= avg*2
		if v.Trending != want {
			v.Trending = want
			changed = append(changed, v)
		}
	}
	return changed
}

// DecayActivity halves the rolling counts so trending reflects recent
// activity. Called daily.
func (s *Store) DecayActivity() {
	for _, v := range s.venues {
		v.ViewCount /= 2
		v.BookingCount /= 2
	}
}

// State is the serializable domain snapshot.
type State struct {
	Venues      []*Venue      `json:"venues"`
	Bookings    []*Booking    `json:"bookings"`
	Invites     []*Invitation `json:"invites"`
	NextBooking BookingID     `json:"next_booking"`
	NextInvite  InviteID      `json:"next_invite"`
}

// Export copies the full store state for snapshotting.
func (s *Store) Export() State {
	st := State{NextBooking: s.nextBooking, NextInvite: s.nextInvite}
	for _, id := range s.order {
		v := *s.venues[id]
		st.Venues = append(st.Venues, &v)
	}
	bids := make([]BookingID, 0, len(s.bookings))
	for id := range s.bookings {
		bids = append(bids, id)
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i] < bids[j] })
	for _, id := range bids {
		b := *s.bookings[id]
		st.Bookings = append(st.Bookings, &b)
	}
	iids := make([]InviteID, 0, len(s.invites))
	for id := range s.invites {
		iids = append(iids, id)
	}
	sort.Slice(iids, func(i, j int) bool { return iids[i] < iids[j] })
	for _, id := range iids {
		inv := *s.invites[id]
		st.Invites = append(st.Invites, &inv)
	}
	return st
}

// Import replaces the store state from a snapshot.
func (s *Store) Import(st State) {
	s.venues = make(map[VenueID]*Venue, len(st.Venues))
	s.order = s.order[:0]
	for _, v := range st.Venues {
		vv := *v
		s.AddVenue(&vv)
	}
	s.bookings = make(map[BookingID]*Booking, len(st.Bookings))
	for _, b := range st.Bookings {
		bb := *b
		s.bookings[bb.ID] = &bb
	}
	s.invites = make(map[InviteID]*Invitation, len(st.Invites))
	for _, inv := range st.Invites {
		ii := *inv
		s.invites[ii.ID] = &ii
	}
	s.nextBooking = st.NextBooking
	s.nextInvite = st.NextInvite
	// Snapshots from before any booking carry zero counters; ids start at 1.
	if s.nextBooking < 1 {
		s.nextBooking = 1
	}
	if s.nextInvite < 1 {
		s.nextInvite = 1
	}
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
