// Package domain models the booking-side collaborators the simulator acts
// against: venues, bookings, and invitations. The orchestrator's tick loop
// is the only writer.
package domain

import (
	"errors"
	"math/rand"
	"time"

	"github.com/talgya/luna-sim/internal/actors"
)

// Validation and precondition errors surfaced to the action executor.
var (
	ErrVenueNotFound   = errors.New("venue not found")
	ErrNoReservations  = errors.New("venue does not accept reservations")
	ErrVenueFull       = errors.New("venue at capacity")
	ErrDuplicateInvite = errors.New("invite already pending")
	ErrNoPendingInvite = errors.New("no pending invite")
	ErrBookingNotFound = errors.New("booking not found")
)

// VenueID identifies a venue.
type VenueID uint64

// BookingID identifies a booking.
type BookingID uint64

// InviteID identifies an invitation.
type InviteID uint64

// Venue is a restaurant, bar, or similar bookable place.
type Venue struct {
	ID         VenueID  `json:"id"`
	Name       string   `json:"name"`
	Cuisine    string   `json:"cuisine"`
	PriceLevel int      `json:"price_level"` // 1-4, like $-$$$$
	Ambiance   []string `json:"ambiance"`
	Rating     float64  `json:"rating"`

	Capacity            int  `json:"capacity"`
	Occupancy           int  `json:"occupancy"`
	AcceptsReservations bool `json:"accepts_reservations"`
	Trending            bool `json:"trending"`

	// Rolling activity counts feeding the trending recalculation.
	ViewCount    int `json:"view_count"`
	BookingCount int `json:"booking_count"`
}

// AvgSpend estimates dollars per head from the price level.
func (v *Venue) AvgSpend() float64 {
	return float64(v.PriceLevel) * 22
}

// BookingStatus tracks a booking through its lifecycle.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// Booking is a confirmed-or-pending table reservation.
type Booking struct {
	ID           BookingID       `json:"id"`
	ActorID      actors.ActorID  `json:"actor_id"`
	VenueID      VenueID         `json:"venue_id"`
	PartySize    int             `json:"party_size"`
	Time         time.Time       `json:"booking_time"`
	DurationMin  int             `json:"duration_minutes"`
	Status       BookingStatus   `json:"status"`
	Confirmation string          `json:"confirmation_code"`
	Guests       []actors.ActorID `json:"guests,omitempty"`
}

// InviteStatus tracks an invitation.
type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteDeclined InviteStatus = "declined"
)

// Invitation asks one actor to join another at a venue.
type Invitation struct {
	ID      InviteID       `json:"id"`
	Inviter actors.ActorID `json:"inviter_id"`
	Invitee actors.ActorID `json:"invitee_id"`
	VenueID VenueID        `json:"venue_id"`
	Status  InviteStatus   `json:"status"`
	SentAt  time.Time      `json:"sent_at"`
}

const confirmationAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ConfirmationCode draws an 8-character booking code.
func ConfirmationCode(rng *rand.Rand) string {
	b := make([]byte, 8)
	for i := range b {
		b[i] = confirmationAlphabet[rng.Intn(len(confirmationAlphabet))]
	}
	return string(b)
}

// NextMealSlot picks the default booking time: the next lunch or dinner
// after now.
func NextMealSlot(now time.Time) time.Time {
	switch hour := now.Hour(); {
	case hour < 11:
		return time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, now.Location())
	case hour < 17:
		return time.Date(now.Year(), now.Month(), now.Day(), 19, 0, 0, 0, now.Location())
	default:
		next := now.AddDate(0, 0, 1)
		return time.Date(next.Year(), next.Month(), next.Day(), 12, 0, 0, 0, next.Location())
	}
}
