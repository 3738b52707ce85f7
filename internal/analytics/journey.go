package analytics

import (
	"time"

	"github.com/talgya/luna-sim/internal/actors"
	"github.com/talgya/luna-sim/internal/stream"
)

// Milestone names a first-time achievement on an actor's journey.
type Milestone string

const (
	MilestoneFirstBrowse   Milestone = "first_browse"
	MilestoneFirstInterest Milestone = "first_interest"
	MilestoneFirstInvite   Milestone = "first_invite"
	MilestoneFirstBooking  Milestone = "first_booking"
)

var milestoneForType = map[string]Milestone{
	"venue_browsed":      MilestoneFirstBrowse,
	"interest_expressed": MilestoneFirstInterest,
	"invite_sent":        MilestoneFirstInvite,
	"booking_created":    MilestoneFirstBooking,
}

// JourneyStep is one event on an actor's timeline.
type JourneyStep struct {
	SimTime   time.Time      `json:"sim_time"`
	Channel   string         `json:"channel"`
	Type      string         `json:"event_type"`
	VenueID   uint64         `json:"venue_id,omitempty"`
	Milestone Milestone      `json:"milestone,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Journey is an actor's reconstructed history over a time window.
type Journey struct {
	ActorID    actors.ActorID          `json:"actor_id"`
	Steps      []JourneyStep           `json:"steps"`
	Milestones map[Milestone]time.Time `json:"milestones"`
	ByType     map[string]int          `json:"by_type"`
}

// BuildJourney reconstructs one actor's timeline from the behavioral
// channels over a simulated-time window.
func BuildJourney(src EventSource, actor actors.ActorID, from, to time.Time) (Journey, error) {
	j := Journey{
		ActorID:    actor,
		Milestones: make(map[Milestone]time.Time),
		ByType:     make(map[string]int),
	}

	channels := []stream.Channel{
		stream.ChannelUserActions,
		stream.ChannelSocial,
		stream.ChannelBookings,
	}

	var merged []stream.Event
	for _, ch := range channels {
		evs, err := src.EventsBetween(ch, from, to)
		if err != nil {
			return j, err
		}
		for _, ev := range evs {
			if ev.ActorID == actor {
				merged = append(merged, ev)
			}
		}
	}
	sortBySimTime(merged)

	for _, ev := range merged {
		step := JourneyStep{
			SimTime: ev.SimTime,
			Channel: string(ev.Channel),
			Type:    ev.Type,
			VenueID: uint64(ev.VenueID),
			Payload: ev.Payload,
		}
		if ms, ok := milestoneForType[ev.Type]; ok {
			if _, seen := j.Milestones[ms]; !seen {
				j.Milestones[ms] = ev.SimTime
				step.Milestone = ms
			}
		}
		j.Steps = append(j.Steps, step)
		j.ByType[ev.Type]++
	}
	return j, nil
}
