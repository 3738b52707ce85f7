// Snapshot store — zstd-compressed state blobs with metadata rows.
package persistence

import (
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
)

// SnapshotMeta describes a stored snapshot without its state blob.
type SnapshotMeta struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	SimTime     string    `db:"sim_time" json:"sim_time"`
	Tick        uint64    `db:"tick" json:"tick"`
	CreatedAt   time.Time `db:"-" json:"created_at"`

	CreatedAtRaw string `db:"created_at" json:"-"`
}

// SaveSnapshot compresses and stores a serialized state blob, returning the
// snapshot id.
func (db *DB) SaveSnapshot(name, description string, simTime time.Time, tick uint64, state []byte) (int64, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return 0, fmt.Errorf("zstd writer: %w", err)
	}
	blob := enc.EncodeAll(state, nil)
	enc.Close()

	res, err := db.conn.Exec(
		`INSERT INTO snapshots (name, description, sim_time, tick, created_at, state_blob)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		name, description,
		simTime.UTC().Format(time.RFC3339Nano), tick,
		time.Now().UTC().Format(time.RFC3339Nano), blob)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot %q: %w", name, err)
	}
	return res.LastInsertId()
}

// LoadSnapshot returns a snapshot's metadata and decompressed state blob.
func (db *DB) LoadSnapshot(id int64) (SnapshotMeta, []byte, error) {
	var row struct {
		SnapshotMeta
		Blob []byte `db:"state_blob"`
	}
	err := db.conn.Get(&row,
		`SELECT id, name, description, sim_time, tick, created_at, state_blob
		 FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return SnapshotMeta{}, nil, fmt.Errorf("load snapshot %d: %w", id, err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return SnapshotMeta{}, nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	state, err := dec.DecodeAll(row.Blob, nil)
	if err != nil {
		return SnapshotMeta{}, nil, fmt.Errorf("decompress snapshot %d: %w", id, err)
	}

	meta := row.SnapshotMeta
	meta.CreatedAt, _ = time.Parse(time.RFC3339Nano, meta.CreatedAtRaw)
	return meta, state, nil
}

// ListSnapshots returns snapshot metadata, newest first.
func (db *DB) ListSnapshots() ([]SnapshotMeta, error) {
	var rows []SnapshotMeta
	err := db.conn.Select(&rows,
		`SELECT id, name, description, sim_time, tick, created_at
		 FROM snapshots ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	for i := range rows {
		rows[i].CreatedAt, _ = time.Parse(time.RFC3339Nano, rows[i].CreatedAtRaw)
	}
	return rows, nil
}
