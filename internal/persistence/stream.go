// Durable event stream backend over SQLite. Retention follows the same
// contract as the in-memory backend: per-channel cap, oldest evicted first.
package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/talgya/luna-sim/internal/actors"
	"github.com/talgya/luna-sim/internal/domain"
	"github.com/talgya/luna-sim/internal/stream"
)

// DefaultStreamCap bounds per-channel retained history in the database.
// Larger than the in-memory cap since disk is cheap.
const DefaultStreamCap = 10000

// timeLayout is fixed-width so stored timestamps compare correctly as
// strings in SQL range filters. RFC3339Nano trims trailing zeros and
// does not.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// StreamBackend implements stream.Backend over SQLite.
type StreamBackend struct {
	db  *DB
	cap int
}

// NewStreamBackend creates a durable backend with the given per-channel cap
// (0 uses the default).
func NewStreamBackend(db *DB, cap int) *StreamBackend {
	if cap <= 0 {
		cap = DefaultStreamCap
	}
	return &StreamBackend{db: db, cap: cap}
}

type eventRow struct {
	Channel     string  `db:"channel"`
	Seq         uint64  `db:"seq"`
	EventType   string  `db:"event_type"`
	PayloadJSON string  `db:"payload_json"`
	ActorID     *uint64 `db:"actor_id"`
	VenueID     *uint64 `db:"venue_id"`
	BookingID   *uint64 `db:"booking_id"`
	SimTime     string  `db:"sim_time"`
	CreatedAt   string  `db:"created_at"`
}

func toRow(ev stream.Event) (eventRow, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return eventRow{}, fmt.Errorf("marshal payload: %w", err)
	}
	row := eventRow{
		Channel:     string(ev.Channel),
		Seq:         ev.Seq,
		EventType:   ev.Type,
		PayloadJSON: string(payload),
		SimTime:     ev.SimTime.UTC().Format(timeLayout),
		CreatedAt:   ev.CreatedAt.UTC().Format(timeLayout),
	}
	if ev.ActorID != 0 {
		id := uint64(ev.ActorID)
		row.ActorID = &id
	}
	if ev.VenueID != 0 {
		id := uint64(ev.VenueID)
		row.VenueID = &id
	}
	if ev.BookingID != 0 {
		id := uint64(ev.BookingID)
		row.BookingID = &id
	}
	return row, nil
}

func (r eventRow) toEvent() (stream.Event, error) {
	ev := stream.Event{
		Channel: stream.Channel(r.Channel),
		Type:    r.EventType,
		Seq:     r.Seq,
	}
	if err := json.Unmarshal([]byte(r.PayloadJSON), &ev.Payload); err != nil {
		return stream.Event{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	var err error
	if ev.SimTime, err = time.Parse(time.RFC3339Nano, r.SimTime); err != nil {
		return stream.Event{}, fmt.Errorf("parse sim_time: %w", err)
	}
	if ev.CreatedAt, err = time.Parse(time.RFC3339Nano, r.CreatedAt); err != nil {
		return stream.Event{}, fmt.Errorf("parse created_at: %w", err)
	}
	if r.ActorID != nil {
		ev.ActorID = actors.ActorID(*r.ActorID)
	}
	if r.VenueID != nil {
		ev.VenueID = domain.VenueID(*r.VenueID)
	}
	if r.BookingID != nil {
		ev.BookingID = domain.BookingID(*r.BookingID)
	}
	return ev, nil
}

// Append stores an event and trims the channel to the cap.
func (b *StreamBackend) Append(ev stream.Event) error {
	row, err := toRow(ev)
	if err != nil {
		return err
	}

	tx, err := b.db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.NamedExec(`INSERT INTO stream_events
		(channel, seq, event_type, payload_json, actor_id, venue_id, booking_id, sim_time, created_at)
		VALUES (:channel, :seq, :event_type, :payload_json, :actor_id, :venue_id, :booking_id, :sim_time, :created_at)`,
		row)
	if err != nil {
		return fmt.Errorf("insert event %s/%d: %w", ev.Channel, ev.Seq, err)
	}

	// Oldest-first eviction past the cap.
	_, err = tx.Exec(
		`DELETE FROM stream_events WHERE channel = ? AND seq <= (
			SELECT MAX(seq) FROM stream_events WHERE channel = ?
		) - ?`,
		string(ev.Channel), string(ev.Channel), b.cap)
	if err != nil {
		return fmt.Errorf("trim channel %s: %w", ev.Channel, err)
	}

	return tx.Commit()
}

// History returns up to limit of the most recent retained events, oldest
// first.
func (b *StreamBackend) History(ch stream.Channel, limit int) ([]stream.Event, error) {
	if limit <= 0 {
		limit = b.cap
	}
	var rows []eventRow
	err := b.db.conn.Select(&rows,
		`SELECT channel, seq, event_type, payload_json, actor_id, venue_id, booking_id, sim_time, created_at
		 FROM stream_events WHERE channel = ?
		 ORDER BY seq DESC LIMIT ?`,
		string(ch), limit)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", ch, err)
	}

	out := make([]stream.Event, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		ev, err := rows[i].toEvent()
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// After returns retained events with Seq > seq, oldest first.
func (b *StreamBackend) After(ch stream.Channel, seq uint64, limit int) ([]stream.Event, error) {
	if limit <= 0 {
		limit = b.cap
	}
	var rows []eventRow
	err := b.db.conn.Select(&rows,
		`SELECT channel, seq, event_type, payload_json, actor_id, venue_id, booking_id, sim_time, created_at
		 FROM stream_events WHERE channel = ? AND seq > ?
		 ORDER BY seq ASC LIMIT ?`,
		string(ch), seq, limit)
	if err != nil {
		return nil, fmt.Errorf("after %s/%d: %w", ch, seq, err)
	}

	out := make([]stream.Event, 0, len(rows))
	for _, r := range rows {
		ev, err := r.toEvent()
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// Len reports the number of retained events on a channel.
func (b *StreamBackend) Len(ch stream.Channel) (int, error) {
	var n int
	err := b.db.conn.Get(&n,
		"SELECT COUNT(*) FROM stream_events WHERE channel = ?", string(ch))
	return n, err
}

// Clear drops all retained events on a channel.
func (b *StreamBackend) Clear(ch stream.Channel) error {
	_, err := b.db.conn.Exec(
		"DELETE FROM stream_events WHERE channel = ?", string(ch))
	return err
}

// EventsBetween returns events across one channel within a simulated-time
// window, oldest first. Used by replay.
func (b *StreamBackend) EventsBetween(ch stream.Channel, from, to time.Time) ([]stream.Event, error) {
	var rows []eventRow
	err := b.db.conn.Select(&rows,
		`SELECT channel, seq, event_type, payload_json, actor_id, venue_id, booking_id, sim_time, created_at
		 FROM stream_events WHERE channel = ? AND sim_time >= ? AND sim_time <= ?
		 ORDER BY seq ASC`,
		string(ch), from.UTC().Format(timeLayout), to.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("events between on %s: %w", ch, err)
	}

	out := make([]stream.Event, 0, len(rows))
	for _, r := range rows {
		ev, err := r.toEvent()
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
