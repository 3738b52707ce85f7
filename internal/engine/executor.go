// Action executor — the closed handler table mapping each action to its
// effect on the domain, the actor, and the event stream.
package engine

import (
	"errors"
	"fmt"

	"github.com/talgya/luna-sim/internal/actors"
	"github.com/talgya/luna-sim/internal/domain"
	"github.com/talgya/luna-sim/internal/stream"
)

type actionHandler func(o *Orchestrator, a *actors.Actor) error

// handlers is the complete action table. Adding an action means adding a
// row here; Decide can never return anything outside it.
var handlers = map[actors.Action]actionHandler{
	actors.ActionBrowse:          execBrowse,
	actors.ActionCheckFriends:    execCheckFriends,
	actors.ActionExpressInterest: execExpressInterest,
	actors.ActionSendInvite:      execSendInvite,
	actors.ActionRespondInvite:   execRespondInvite,
	actors.ActionMakeBooking:     execMakeBooking,
}

// execute runs one actor's drawn action. Precondition failures degrade to
// an action_skipped event; anything else is a collaborator failure the
// caller records in the decision log.
func (o *Orchestrator) execute(a *actors.Actor, action actors.Action) error {
	h, ok := handlers[action]
	if !ok {
		return fmt.Errorf("no handler for action %q", action)
	}
	return h(o, a)
}

// skip records a degraded action: one event, one decision-log entry, no
// state change.
func (o *Orchestrator) skip(a *actors.Actor, action actors.Action, reason string) {
	o.metrics.ActionsSkipped++
	o.log.add(DecisionEntry{
		Tick:    o.tick,
		SimTime: o.clock.SimTime,
		ActorID: a.ID,
		Action:  action.String(),
		Reason:  reason,
	})
	o.emit(stream.Event{
		Channel: stream.ChannelUserActions,
		Type:    "action_skipped",
		ActorID: a.ID,
		Payload: map[string]any{"action": action.String(), "reason": reason},
	})
}

func execBrowse(o *Orchestrator, a *actors.Actor) error {
	venue := o.store.PickByAffinity(a.Prefs, o.rng)
	if venue == nil {
		o.skip(a, actors.ActionBrowse, "no venues available")
		return nil
	}
	o.store.RecordView(venue.ID)
	actionNudge(a, venue, RateBrowse)

	o.metrics.countAction(actors.ActionBrowse)
	o.emit(stream.Event{
		Channel: stream.ChannelUserActions,
		Type:    "venue_browsed",
		ActorID: a.ID,
		VenueID: venue.ID,
		Payload: map[string]any{
			"venue_name": venue.Name,
			"cuisine":    venue.Cuisine,
			"trending":   venue.Trending,
		},
	})
	o.emit(stream.Event{
		Channel: stream.ChannelRecommend,
		Type:    "venue_suggested",
		ActorID: a.ID,
		VenueID: venue.ID,
		Payload: map[string]any{
			"venue_name": venue.Name,
			"reason":     "preference_affinity",
		},
	})
	return nil
}

func execCheckFriends(o *Orchestrator, a *actors.Actor) error {
	friends := a.FriendIDs()
	if len(friends) == 0 {
		o.skip(a, actors.ActionCheckFriends, "no friends")
		return nil
	}
	friend := friends[o.rng.Intn(len(friends))]

	o.metrics.countAction(actors.ActionCheckFriends)
	o.emit(stream.Event{
		Channel: stream.ChannelSocial,
		Type:    "friend_activity_checked",
		ActorID: a.ID,
		Payload: map[string]any{"friend_id": uint64(friend)},
	})
	return nil
}

func execExpressInterest(o *Orchestrator, a *actors.Actor) error {
	venue := o.store.PickByAffinity(a.Prefs, o.rng)
	if venue == nil {
		o.skip(a, actors.ActionExpressInterest, "no venues available")
		return nil
	}
	o.store.RecordView(venue.ID)
	actionNudge(a, venue, RateInterest)

	o.metrics.countAction(actors.ActionExpressInterest)
	o.emit(stream.Event{
		Channel: stream.ChannelUserActions,
		Type:    "interest_expressed",
		ActorID: a.ID,
		VenueID: venue.ID,
		Payload: map[string]any{"venue_name": venue.Name, "cuisine": venue.Cuisine},
	})
	return nil
}

func execSendInvite(o *Orchestrator, a *actors.Actor) error {
	var open []actors.ActorID
	for _, id := range a.FriendIDs() {
		if friend, ok := o.pool.Get(id); ok && friend.OpenToInvites {
			open = append(open, id)
		}
	}
	if len(open) == 0 {
		o.skip(a, actors.ActionSendInvite, "no invitable friends")
		return nil
	}
	invitee := open[o.rng.Intn(len(open))]

	venue := o.store.PickByAffinity(a.Prefs, o.rng)
	if venue == nil {
		o.skip(a, actors.ActionSendInvite, "no venues available")
		return nil
	}

	inv, err := o.store.Invite(a.ID, invitee, venue.ID, o.clock.SimTime)
	if errors.Is(err, domain.ErrDuplicateInvite) {
		o.skip(a, actors.ActionSendInvite, "invite already pending")
		return nil
	}
	if err != nil {
		return fmt.Errorf("send invite: %w", err)
	}
	a.RecordInteraction(invitee)

	o.metrics.countAction(actors.ActionSendInvite)
	o.metrics.InvitesSent++
	o.emit(stream.Event{
		Channel: stream.ChannelSocial,
		Type:    "invite_sent",
		ActorID: a.ID,
		VenueID: venue.ID,
		Payload: map[string]any{
			"invite_id":  uint64(inv.ID),
			"invitee_id": uint64(invitee),
			"venue_name": venue.Name,
		},
	})
	return nil
}

func execRespondInvite(o *Orchestrator, a *actors.Actor) error {
	inv := o.store.PendingInviteFor(a.ID)
	if inv == nil {
		o.skip(a, actors.ActionRespondInvite, "no pending invite")
		return nil
	}

	accepted := actors.AcceptsInvite(a, o.rng)
	if _, err := o.store.RespondInvite(inv.ID, accepted); err != nil {
		return fmt.Errorf("respond invite: %w", err)
	}
	a.RecordInteraction(inv.Inviter)
	if inviter, ok := o.pool.Get(inv.Inviter); ok {
		inviter.RecordInteraction(a.ID)
	}

	eventType := "invite_declined"
	if accepted {
		eventType = "invite_accepted"
		o.metrics.InvitesAccepted++
		if venue, err := o.store.Venue(inv.VenueID); err == nil {
			actionNudge(a, venue, RateInterest)
		}
	} else {
		o.metrics.InvitesDeclined++
	}

	o.metrics.countAction(actors.ActionRespondInvite)
	o.emit(stream.Event{
		Channel: stream.ChannelSocial,
		Type:    eventType,
		ActorID: a.ID,
		VenueID: inv.VenueID,
		Payload: map[string]any{
			"invite_id":  uint64(inv.ID),
			"inviter_id": uint64(inv.Inviter),
		},
	})
	return nil
}

// execMakeBooking is the multi-step pipeline: validate the venue, pick a
// meal slot, create the record, invite companions, then confirm.
func execMakeBooking(o *Orchestrator, a *actors.Actor) error {
	venue := o.store.PickByAffinity(a.Prefs, o.rng)
	if venue == nil {
		o.skip(a, actors.ActionMakeBooking, "no venues available")
		return nil
	}
	if !venue.AcceptsReservations {
		o.skip(a, actors.ActionMakeBooking, "venue does not accept reservations")
		return nil
	}

	slot := domain.NextMealSlot(o.clock.SimTime)
	partySize := 2 + o.rng.Intn(3)

	// Peak periods hold back part of the floor: the hard capacity check
	// stays with the store, but a squeezed window turns away parties the
	// venue could physically seat.
	effective := int(float64(venue.Capacity) * o.venueMods.Availability)
	if effective < 1 {
		effective = 1
	}
	if venue.Occupancy+partySize > effective && venue.Occupancy+partySize <= venue.Capacity {
		o.skip(a, actors.ActionMakeBooking, "no tables this period")
		return nil
	}

	// Companions come from friends open to invites, up to party size.
	var guests []actors.ActorID
	for _, id := range a.FriendIDs() {
		if len(guests) >= partySize-1 {
			break
		}
		if friend, ok := o.pool.Get(id); ok && friend.OpenToInvites {
			guests = append(guests, id)
		}
	}

	booking, err := o.store.CreateBooking(a.ID, venue.ID, partySize, slot, domain.ConfirmationCode(o.rng), guests)
	if errors.Is(err, domain.ErrVenueFull) {
		o.skip(a, actors.ActionMakeBooking, "venue at capacity")
		return nil
	}
	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}

	o.metrics.BookingsCreated++
	o.emit(stream.Event{
		Channel:   stream.ChannelBookings,
		Type:      "booking_created",
		ActorID:   a.ID,
		VenueID:   venue.ID,
		BookingID: booking.ID,
		Payload: map[string]any{
			"venue_name":   venue.Name,
			"party_size":   partySize,
			"booking_time": slot.Format("2006-01-02 15:04"),
			"price_factor": o.venueMods.Price,
		},
	})

	// Best-effort invitations to the companions; duplicates are fine.
	for _, guest := range guests {
		inv, err := o.store.Invite(a.ID, guest, venue.ID, o.clock.SimTime)
		if err != nil {
			continue
		}
		a.RecordInteraction(guest)
		o.metrics.InvitesSent++
		o.emit(stream.Event{
			Channel: stream.ChannelSocial,
			Type:    "invite_sent",
			ActorID: a.ID,
			VenueID: venue.ID,
			Payload: map[string]any{
				"invite_id":  uint64(inv.ID),
				"invitee_id": uint64(guest),
				"venue_name": venue.Name,
				"booking_id": uint64(booking.ID),
			},
		})
	}

	if _, err := o.store.ConfirmBooking(booking.ID); err != nil {
		return fmt.Errorf("confirm booking: %w", err)
	}
	actionNudge(a, venue, RateBooking)

	o.metrics.countAction(actors.ActionMakeBooking)
	o.metrics.BookingsConfirmed++
	o.emit(stream.Event{
		Channel:   stream.ChannelBookings,
		Type:      "booking_confirmed",
		ActorID:   a.ID,
		VenueID:   venue.ID,
		BookingID: booking.ID,
		Payload: map[string]any{
			"confirmation_code": booking.Confirmation,
		},
	})
	return nil
}
