package stream

import (
	"fmt"
	"sync"
	"time"
)

// DefaultSubscriberBuffer is the per-subscription queue depth. A consumer
// that falls further behind than this starts losing events.
const DefaultSubscriberBuffer = 256

// Subscription is one consumer's live cursor into a channel. Destroyed on
// Unsubscribe; never shared.
type Subscription struct {
	C       <-chan Event
	Channel Channel

	ch     chan Event
	closed bool
}

// Metrics summarizes bus activity.
type Metrics struct {
	EventsPublished   uint64         `json:"events_published"`
	EventsDropped     uint64         `json:"events_dropped"`
	ActiveSubscribers int            `json:"active_subscribers"`
	PerChannel        map[string]int `json:"per_channel"`
}

// Bus assigns per-channel sequence numbers, stores events in the backend,
// and fans them out to live subscribers. Publish never blocks on a slow
// consumer: a full subscriber queue drops the event for that consumer only.
type Bus struct {
	mu      sync.Mutex
	backend Backend
	seqs    map[Channel]uint64
	subs    map[Channel]map[*Subscription]struct{}

	published uint64
	dropped   uint64
	perChan   map[Channel]int
}

// NewBus creates a bus over a storage backend.
func NewBus(backend Backend) *Bus {
	return &Bus{
		backend: backend,
		seqs:    make(map[Channel]uint64),
		subs:    make(map[Channel]map[*Subscription]struct{}),
		perChan: make(map[Channel]int),
	}
}

// Publish stamps the event with the channel's next sequence number and a
// creation timestamp, stores it, and fans it out.
func (b *Bus) Publish(ev Event) (Event, error) {
	if !KnownChannel(string(ev.Channel)) {
		return Event{}, fmt.Errorf("publish: unknown channel %q", ev.Channel)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.seqs[ev.Channel]++
	ev.Seq = b.seqs[ev.Channel]
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	if err := b.backend.Append(ev); err != nil {
		return Event{}, fmt.Errorf("publish to %s: %w", ev.Channel, err)
	}

	b.published++
	b.perChan[ev.Channel]++

	for sub := range b.subs[ev.Channel] {
		select {
		case sub.ch <- ev:
		default:
			b.dropped++ // Slow consumer falls behind
		}
	}
	return ev, nil
}

// Subscribe returns a live subscription starting at "now".
func (b *Bus) Subscribe(ch Channel) (*Subscription, error) {
	return b.SubscribeFrom(ch, 0)
}

// SubscribeFrom returns a subscription backfilled with retained history
// after the given sequence number (0 means live-only).
func (b *Bus) SubscribeFrom(ch Channel, afterSeq uint64) (*Subscription, error) {
	if !KnownChannel(string(ch)) {
		return nil, fmt.Errorf("subscribe: unknown channel %q", ch)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{Channel: ch, ch: make(chan Event, DefaultSubscriberBuffer)}
	sub.C = sub.ch

	if afterSeq > 0 {
		backfill, err := b.backend.After(ch, afterSeq, DefaultSubscriberBuffer)
		if err != nil {
			return nil, fmt.Errorf("subscribe backfill on %s: %w", ch, err)
		}
		for _, ev := range backfill {
			sub.ch <- ev
		}
	}

	if b.subs[ch] == nil {
		b.subs[ch] = make(map[*Subscription]struct{})
	}
	b.subs[ch][sub] = struct{}{}
	return sub, nil
}

// Unsubscribe removes a subscription and closes its event channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub.closed {
		return
	}
	delete(b.subs[sub.Channel], sub)
	close(sub.ch)
	sub.closed = true
}

// History returns the most recent retained events, oldest first, without
// creating a subscription.
func (b *Bus) History(ch Channel, limit int) ([]Event, error) {
	if !KnownChannel(string(ch)) {
		return nil, fmt.Errorf("history: unknown channel %q", ch)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.backend.History(ch, limit)
}

// After returns retained events with Seq > seq, oldest first.
func (b *Bus) After(ch Channel, seq uint64, limit int) ([]Event, error) {
	if !KnownChannel(string(ch)) {
		return nil, fmt.Errorf("after: unknown channel %q", ch)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.backend.After(ch, seq, limit)
}

// Clear drops retained history on every channel. Sequence counters keep
// counting so replays stay unambiguous.
func (b *Bus) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range Channels {
		if err := b.backend.Clear(c.Name); err != nil {
			return fmt.Errorf("clear %s: %w", c.Name, err)
		}
	}
	return nil
}

// Metrics reports publish and subscriber counts.
func (b *Bus) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	m := Metrics{
		EventsPublished: b.published,
		EventsDropped:   b.dropped,
		PerChannel:      make(map[string]int, len(b.perChan)),
	}
	for ch, n := range b.perChan {
		m.PerChannel[string(ch)] = n
	}
	for _, subs := range b.subs {
		m.ActiveSubscribers += len(subs)
	}
	return m
}
