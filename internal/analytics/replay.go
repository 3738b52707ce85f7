// Package analytics reads persisted stream history back out: historical
// replay onto the live bus, per-actor journeys, and aggregate metrics.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/talgya/luna-sim/internal/stream"
)

// EventSource serves historical events by simulated-time window. Satisfied
// by both stream backends.
type EventSource interface {
	EventsBetween(ch stream.Channel, from, to time.Time) ([]stream.Event, error)
}

// ReplaySummary reports what a replay pushed back onto the bus.
type ReplaySummary struct {
	From       time.Time      `json:"from"`
	To         time.Time      `json:"to"`
	Speed      float64        `json:"speed"`
	Total      int            `json:"total_events"`
	PerChannel map[string]int `json:"per_channel"`
}

// Replayer republishes historical events onto the live bus, marked as
// replayed so consumers can tell them from fresh traffic.
type Replayer struct {
	src EventSource
	bus *stream.Bus
}

// NewReplayer creates a replayer over an event source.
func NewReplayer(src EventSource, bus *stream.Bus) *Replayer {
	return &Replayer{src: src, bus: bus}
}

// Run replays the window across the given channels (all channels when
// empty), paced by the simulated-time gaps divided by speed. Speed <= 0
// replays as fast as possible. Blocks until done or the context ends.
func (r *Replayer) Run(ctx context.Context, channels []stream.Channel, from, to time.Time, speed float64) (ReplaySummary, error) {
	sum := ReplaySummary{From: from, To: to, Speed: speed, PerChannel: make(map[string]int)}
	if !to.After(from) {
		return sum, fmt.Errorf("replay window [%v, %v] is empty", from, to)
	}
	if len(channels) == 0 {
		for _, c := range stream.Channels {
			channels = append(channels, c.Name)
		}
	}

	var merged []stream.Event
	for _, ch := range channels {
		if !stream.KnownChannel(string(ch)) {
			return sum, fmt.Errorf("replay: unknown channel %q", ch)
		}
		evs, err := r.src.EventsBetween(ch, from, to)
		if err != nil {
			return sum, fmt.Errorf("replay load %s: %w", ch, err)
		}
		merged = append(merged, evs...)
	}

	// Interleave channels back into simulated-time order; ties keep the
	// original per-channel sequence.
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].SimTime.Equal(merged[j].SimTime) {
			if merged[i].Channel == merged[j].Channel {
				return merged[i].Seq < merged[j].Seq
			}
			return merged[i].Channel < merged[j].Channel
		}
		return merged[i].SimTime.Before(merged[j].SimTime)
	})

	slog.Info("replay starting", "events", len(merged), "from", from, "to", to, "speed", speed)

	var prev time.Time
	for _, ev := range merged {
		if speed > 0 && !prev.IsZero() {
			gap := time.Duration(float64(ev.SimTime.Sub(prev)) / speed)
			if gap > 0 {
				select {
				case <-ctx.Done():
					return sum, ctx.Err()
				case <-time.After(gap):
				}
			}
		}
		prev = ev.SimTime

		out := ev
		out.Replayed = true
		out.Seq = 0 // the bus assigns a fresh sequence
		if _, err := r.bus.Publish(out); err != nil {
			return sum, fmt.Errorf("replay publish: %w", err)
		}
		sum.Total++
		sum.PerChannel[string(ev.Channel)]++
	}
	return sum, nil
}
