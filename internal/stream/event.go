// Package stream is the multi-channel event bus: channel-addressed
// publish/subscribe with bounded per-channel history behind a pluggable
// storage backend.
package stream

import (
	"time"

	"github.com/talgya/luna-sim/internal/actors"
	"github.com/talgya/luna-sim/internal/domain"
)

// Channel names an independently-retained event stream.
type Channel string

const (
	ChannelUserActions   Channel = "user_actions"
	ChannelRecommend     Channel = "recommendations"
	ChannelBookings      Channel = "bookings"
	ChannelSocial        Channel = "social_interactions"
	ChannelSystemMetrics Channel = "system_metrics"
	ChannelControl       Channel = "simulation_control"
	ChannelEnvironmental Channel = "environmental"
)

// Channels lists every channel with a description, in a fixed order.
var Channels = []struct {
	Name        Channel `json:"name"`
	Description string  `json:"description"`
}{
	{ChannelUserActions, "User behavior events (browsing, searching, interests)"},
	{ChannelRecommend, "Venue picks and affinity scores"},
	{ChannelBookings, "Booking activities (created, confirmed, cancelled)"},
	{ChannelSocial, "Social interactions (invites, responses, friendships)"},
	{ChannelSystemMetrics, "System events and performance metrics"},
	{ChannelControl, "Simulation control events (start, pause, scenarios)"},
	{ChannelEnvironmental, "Environmental events (weather, traffic, special events)"},
}

// KnownChannel reports whether the name is a valid channel.
func KnownChannel(name string) bool {
	for _, c := range Channels {
		if string(c.Name) == name {
			return true
		}
	}
	return false
}

// Event is one immutable bus record. Seq is assigned at publish time and is
// monotonic per channel.
type Event struct {
	Channel   Channel          `json:"channel"`
	Type      string           `json:"event_type"`
	Seq       uint64           `json:"seq"`
	Payload   map[string]any   `json:"payload"`
	ActorID   actors.ActorID   `json:"actor_id,omitempty"`
	VenueID   domain.VenueID   `json:"venue_id,omitempty"`
	BookingID domain.BookingID `json:"booking_id,omitempty"`
	SimTime   time.Time        `json:"simulation_time"`
	CreatedAt time.Time        `json:"created_at"`
	Replayed  bool             `json:"replayed,omitempty"`
}

// Backend is the channel storage behind the bus. Implementations enforce
// the per-channel retention cap on append, evicting oldest-first.
type Backend interface {
	// Append stores an event (already sequence-stamped) and trims the
	// channel to its cap.
	Append(ev Event) error

	// History returns up to limit of the most recent retained events,
	// oldest first.
	History(ch Channel, limit int) ([]Event, error)

	// After returns retained events with Seq > seq, oldest first, up to
	// limit.
	After(ch Channel, seq uint64, limit int) ([]Event, error)

	// Len reports the number of retained events on a channel.
	Len(ch Channel) (int, error)

	// Clear drops all retained events on a channel.
	Clear(ch Channel) error
}
