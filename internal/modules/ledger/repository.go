package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/treasurer/internal/modules/treasury"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Schema for the ledger table (history.db).
const Schema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	uuid TEXT PRIMARY KEY,
	token TEXT NOT NULL,
	amount INTEGER NOT NULL,
	is_buy INTEGER NOT NULL,
	slippage_bps INTEGER NOT NULL DEFAULT 0,
	kind TEXT NOT NULL,
	caller TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_created_at ON ledger_entries(created_at);
`

// Repository handles ledger database operations.
// Database: history.db (ledger_entries table)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new ledger repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "ledger").Logger(),
	}
}

// Record implements treasury.ActionRecorder.
func (r *Repository) Record(rec treasury.ActionRecord) error {
	entry := Entry{
		UUID:        uuid.New().String(),
		Token:       rec.Token,
		Amount:      rec.Amount,
		IsBuy:       rec.IsBuy,
		SlippageBps: rec.SlippageBps,
		Kind:        rec.Kind,
		Caller:      rec.Caller,
		CreatedAt:   rec.Timestamp,
	}
	return r.Append(entry)
}

// Append inserts a new ledger entry.
func (r *Repository) Append(entry Entry) error {
	if entry.UUID == "" {
		entry.UUID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO ledger_entries (uuid, token, amount, is_buy, slippage_bps, kind, caller, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		entry.UUID,
		entry.Token,
		entry.Amount,
		boolToInt(entry.IsBuy),
		entry.SlippageBps,
		entry.Kind,
		entry.Caller,
		entry.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	r.log.Debug().
		Str("uuid", entry.UUID).
		Str("token", entry.Token).
		Str("kind", entry.Kind).
		Msg("Ledger entry appended")

	return nil
}

// List returns the most recent entries, newest first.
func (r *Repository) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT uuid, token, amount, is_buy, slippage_bps, kind, caller, created_at
		FROM ledger_entries
		ORDER BY created_at DESC, uuid
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var isBuy int
		var createdAt int64

		if err := rows.Scan(
			&entry.UUID,
			&entry.Token,
			&entry.Amount,
			&isBuy,
			&entry.SlippageBps,
			&entry.Kind,
			&entry.Caller,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}

		entry.IsBuy = isBuy == 1
		entry.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, nil
}

// ListByToken returns the most recent entries for one token, newest first.
func (r *Repository) ListByToken(token string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT uuid, token, amount, is_buy, slippage_bps, kind, caller, created_at
		FROM ledger_entries
		WHERE token = ?
		ORDER BY created_at DESC, uuid
		LIMIT ?
	`

	rows, err := r.db.Query(query, token, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries for %q: %w", token, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var isBuy int
		var createdAt int64

		if err := rows.Scan(
			&entry.UUID,
			&entry.Token,
			&entry.Amount,
			&isBuy,
			&entry.SlippageBps,
			&entry.Kind,
			&entry.Caller,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}

		entry.IsBuy = isBuy == 1
		entry.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, nil
}

// Count returns the total number of ledger entries.
func (r *Repository) Count() (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM ledger_entries").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
