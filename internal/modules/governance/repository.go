package governance

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrProposalNotFound is returned when a proposal uuid does not exist.
var ErrProposalNotFound = errors.New("proposal not found")

// Schema for the proposals table (treasury.db).
const Schema = `
CREATE TABLE IF NOT EXISTS proposals (
	uuid TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	actions TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	votes_for INTEGER NOT NULL DEFAULT 0,
	votes_against INTEGER NOT NULL DEFAULT 0,
	proposer TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	executed_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_proposals_status ON proposals(status);
`

// Repository handles proposal database operations.
// Database: treasury.db (proposals table)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new governance repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "governance").Logger(),
	}
}

// Insert stores a new proposal.
func (r *Repository) Insert(p Proposal) error {
	actions, err := json.Marshal(p.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}

	query := `
		INSERT INTO proposals (uuid, title, description, actions, status, votes_for, votes_against, proposer, created_at, updated_at, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		p.UUID,
		p.Title,
		p.Description,
		string(actions),
		p.Status,
		p.VotesFor,
		p.VotesAgainst,
		p.Proposer,
		p.CreatedAt.Unix(),
		p.UpdatedAt.Unix(),
		nullableUnix(p.ExecutedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert proposal: %w", err)
	}

	return nil
}

// Update overwrites the mutable fields of a proposal.
func (r *Repository) Update(p Proposal) error {
	query := `
		UPDATE proposals
		SET status = ?, votes_for = ?, votes_against = ?, updated_at = ?, executed_at = ?
		WHERE uuid = ?
	`

	result, err := r.db.Exec(query,
		p.Status,
		p.VotesFor,
		p.VotesAgainst,
		p.UpdatedAt.Unix(),
		nullableUnix(p.ExecutedAt),
		p.UUID,
	)
	if err != nil {
		return fmt.Errorf("failed to update proposal %s: %w", p.UUID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update proposal %s: %w", p.UUID, ErrProposalNotFound)
	}

	return nil
}

// Get returns one proposal by uuid.
func (r *Repository) Get(uuid string) (*Proposal, error) {
	query := `
		SELECT uuid, title, description, actions, status, votes_for, votes_against, proposer, created_at, updated_at, executed_at
		FROM proposals
		WHERE uuid = ?
	`

	p, err := scanProposal(r.db.QueryRow(query, uuid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get proposal %s: %w", uuid, ErrProposalNotFound)
		}
		return nil, fmt.Errorf("failed to get proposal %s: %w", uuid, err)
	}

	return p, nil
}

// List returns the most recent proposals, newest first.
func (r *Repository) List(limit int) ([]Proposal, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT uuid, title, description, actions, status, votes_for, votes_against, proposer, created_at, updated_at, executed_at
		FROM proposals
		ORDER BY created_at DESC, uuid
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query proposals: %w", err)
	}
	defer rows.Close()

	var proposals []Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		proposals = append(proposals, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating proposals: %w", err)
	}

	return proposals, nil
}

// Metrics aggregates proposal counts, participation and approval rate.
func (r *Repository) Metrics() (*Metrics, error) {
	query := `
		SELECT status, COUNT(*), COALESCE(SUM(votes_for + votes_against), 0)
		FROM proposals
		GROUP BY status
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query proposal metrics: %w", err)
	}
	defer rows.Close()

	metrics := &Metrics{}
	for rows.Next() {
		var status string
		var count, votes int64
		if err := rows.Scan(&status, &count, &votes); err != nil {
			return nil, fmt.Errorf("failed to scan proposal metrics: %w", err)
		}

		metrics.Total += count
		metrics.TotalVotes += votes
		switch status {
		case StatusPending:
			metrics.Pending = count
		case StatusApproved:
			metrics.Approved = count
		case StatusRejected:
			metrics.Rejected = count
		case StatusExecuted:
			metrics.Executed = count
		case StatusFailed:
			metrics.Failed = count
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating proposal metrics: %w", err)
	}

	decided := metrics.Approved + metrics.Rejected + metrics.Executed + metrics.Failed
	if decided > 0 {
		metrics.ApprovalRate = float64(metrics.Approved+metrics.Executed) / float64(decided)
	}

	return metrics, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProposal(row rowScanner) (*Proposal, error) {
	var p Proposal
	var actions string
	var createdAt, updatedAt int64
	var executedAt sql.NullInt64

	if err := row.Scan(
		&p.UUID,
		&p.Title,
		&p.Description,
		&actions,
		&p.Status,
		&p.VotesFor,
		&p.VotesAgainst,
		&p.Proposer,
		&createdAt,
		&updatedAt,
		&executedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(actions), &p.Actions); err != nil {
		return nil, fmt.Errorf("failed to decode actions for proposal %s: %w", p.UUID, err)
	}

	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if executedAt.Valid {
		executed := time.Unix(executedAt.Int64, 0).UTC()
		p.ExecutedAt = &executed
	}

	return &p, nil
}

func nullableUnix(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}
