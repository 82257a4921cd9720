package snapshots

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Schema for the snapshots table (history.db).
const Schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	total_value INTEGER NOT NULL,
	allocations BLOB NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at);
`

// Repository handles snapshot database operations.
// Database: history.db (snapshots table)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new snapshots repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// Append stores a new snapshot.
func (r *Repository) Append(totalValue int64, allocations []AllocationEntry) error {
	blob, err := msgpack.Marshal(allocations)
	if err != nil {
		return fmt.Errorf("failed to encode allocations: %w", err)
	}

	query := "INSERT INTO snapshots (total_value, allocations, created_at) VALUES (?, ?, ?)"
	if _, err := r.db.Exec(query, totalValue, blob, time.Now().UTC().Unix()); err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	r.log.Debug().
		Int64("total_value", totalValue).
		Int("assets", len(allocations)).
		Msg("Snapshot recorded")

	return nil
}

// List returns the most recent snapshots, newest first.
func (r *Repository) List(limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, total_value, allocations, created_at
		FROM snapshots
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var snap Snapshot
		var blob []byte
		var createdAt int64

		if err := rows.Scan(&snap.ID, &snap.TotalValue, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}

		if err := msgpack.Unmarshal(blob, &snap.Allocations); err != nil {
			return nil, fmt.Errorf("failed to decode allocations for snapshot %d: %w", snap.ID, err)
		}

		snap.CreatedAt = time.Unix(createdAt, 0).UTC()
		snapshots = append(snapshots, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}

// ValueSeries returns the last n total values in chronological order, for
// trend calculations over the value history.
func (r *Repository) ValueSeries(n int) ([]float64, error) {
	if n <= 0 {
		n = 100
	}

	query := `
		SELECT total_value FROM (
			SELECT id, total_value
			FROM snapshots
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY id ASC
	`

	rows, err := r.db.Query(query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query value series: %w", err)
	}
	defer rows.Close()

	var series []float64
	for rows.Next() {
		var value int64
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		series = append(series, float64(value))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating value series: %w", err)
	}

	return series, nil
}

// Latest returns the most recent snapshot, or nil when none exist.
func (r *Repository) Latest() (*Snapshot, error) {
	snaps, err := r.List(1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return &snaps[0], nil
}
