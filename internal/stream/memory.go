package stream

import (
	"sync"
	"time"
)

// DefaultMemoryCap bounds per-channel retained history in memory.
const DefaultMemoryCap = 1000

// MemoryBackend retains events in per-channel slices, trimmed oldest-first
// at the cap.
type MemoryBackend struct {
	mu      sync.Mutex
	cap     int
	streams map[Channel][]Event
}

// NewMemoryBackend creates an in-process backend with the given per-channel
// cap (0 uses the default).
func NewMemoryBackend(cap int) *MemoryBackend {
	if cap <= 0 {
		cap = DefaultMemoryCap
	}
	return &MemoryBackend{
		cap:     cap,
		streams: make(map[Channel][]Event),
	}
}

func (m *MemoryBackend) Append(ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := append(m.streams[ev.Channel], ev)
	if len(s) > m.cap {
		// Copy down rather than reslice so evicted events are freed.
		over := len(s) - m.cap
		copy(s, s[over:])
		s = s[:m.cap]
	}
	m.streams[ev.Channel] = s
	return nil
}

func (m *MemoryBackend) History(ch Channel, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.streams[ch]
	if limit > 0 && len(s) > limit {
		s = s[len(s)-limit:]
	}
	out := make([]Event, len(s))
	copy(out, s)
	return out, nil
}

func (m *MemoryBackend) After(ch Channel, seq uint64, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Event
	for _, ev := range m.streams[ch] {
		if ev.Seq > seq {
			out = append(out, ev)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryBackend) Len(ch Channel) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streams[ch]), nil
}

// EventsBetween returns retained events within a simulated-time window,
// oldest first. Used by replay.
func (m *MemoryBackend) EventsBetween(ch Channel, from, to time.Time) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Event
	for _, ev := range m.streams[ch] {
		if !ev.SimTime.Before(from) && !ev.SimTime.After(to) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *MemoryBackend) Clear(ch Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.streams, ch)
	return nil
}
