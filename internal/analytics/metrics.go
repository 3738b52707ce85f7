package analytics

import (
	"sort"
	"time"

	"github.com/talgya/luna-sim/internal/actors"
	"github.com/talgya/luna-sim/internal/stream"
)

// Bucket is one time slice of aggregated event counts.
type Bucket struct {
	Start  time.Time      `json:"start"`
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

// Aggregate slices events from the behavioral channels into fixed
// simulated-time buckets, counting by event type.
func Aggregate(src EventSource, channels []stream.Channel, from, to time.Time, bucket time.Duration) ([]Bucket, error) {
	if bucket <= 0 {
		bucket = time.Hour
	}
	if len(channels) == 0 {
		for _, c := range stream.Channels {
			channels = append(channels, c.Name)
		}
	}

	byStart := make(map[time.Time]*Bucket)
	for _, ch := range channels {
		evs, err := src.EventsBetween(ch, from, to)
		if err != nil {
			return nil, err
		}
		for _, ev := range evs {
			start := ev.SimTime.Truncate(bucket)
			b, ok := byStart[start]
			if !ok {
				b = &Bucket{Start: start, Counts: make(map[string]int)}
				byStart[start] = b
			}
			b.Counts[ev.Type]++
			b.Total++
		}
	}

	out := make([]Bucket, 0, len(byStart))
	for _, b := range byStart {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// Funnel reports how many unique actors reached each stage of the
// browse -> interest -> invite -> booking conversion path.
type Funnel struct {
	Browsed    int `json:"browsed"`
	Interested int `json:"interested"`
	Invited    int `json:"invited"`
	Booked     int `json:"booked"`

	InterestRate float64 `json:"interest_rate"`
	InviteRate   float64 `json:"invite_rate"`
	BookingRate  float64 `json:"booking_rate"`
}

// BuildFunnel computes the conversion funnel over a simulated-time window.
func BuildFunnel(src EventSource, from, to time.Time) (Funnel, error) {
	stageFor := map[string]int{
		"venue_browsed":      0,
		"interest_expressed": 1,
		"invite_sent":        2,
		"booking_created":    3,
	}

	reached := [4]map[actors.ActorID]struct{}{}
	for i := range reached {
		reached[i] = make(map[actors.ActorID]struct{})
	}

	for _, ch := range []stream.Channel{stream.ChannelUserActions, stream.ChannelSocial, stream.ChannelBookings} {
		evs, err := src.EventsBetween(ch, from, to)
		if err != nil {
			return Funnel{}, err
		}
		for _, ev := range evs {
			if stage, ok := stageFor[ev.Type]; ok && ev.ActorID != 0 {
				reached[stage][ev.ActorID] = struct{}{}
			}
		}
	}

	f := Funnel{
		Browsed:    len(reached[0]),
		Interested: len(reached[1]),
		Invited:    len(reached[2]),
		Booked:     len(reached[3]),
	}
	f.InterestRate = rate(f.Interested, f.Browsed)
	f.InviteRate = rate(f.Invited, f.Interested)
	f.BookingRate = rate(f.Booked, f.Browsed)
	return f, nil
}

func rate(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func sortBySimTime(evs []stream.Event) {
	sort.SliceStable(evs, func(i, j int) bool {
		if evs[i].SimTime.Equal(evs[j].SimTime) {
			if evs[i].Channel == evs[j].Channel {
				return evs[i].Seq < evs[j].Seq
			}
			return evs[i].Channel < evs[j].Channel
		}
		return evs[i].SimTime.Before(evs[j].SimTime)
	})
}
