package treasury

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Setting keys stored in the settings table.
const (
	SettingRebalancingEnabled   = "rebalancing_enabled"
	SettingRebalancingThreshold = "rebalancing_threshold_bps"
)

// Schema for the treasury database (treasury.db).
const Schema = `
CREATE TABLE IF NOT EXISTS assets (
	token TEXT PRIMARY KEY,
	balance INTEGER NOT NULL DEFAULT 0,
	target_allocation INTEGER NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	position INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// AssetRecord is an asset row plus its registry position.
type AssetRecord struct {
	Asset    Asset
	Position int64
}

// Repository handles treasury registry persistence.
// Database: treasury.db (assets, settings tables)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new treasury repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "treasury").Logger(),
	}
}

// LoadAll returns all asset rows ordered by registry position.
func (r *Repository) LoadAll() ([]AssetRecord, error) {
	query := `
		SELECT token, balance, target_allocation, is_active, position, created_at, updated_at
		FROM assets
		ORDER BY position ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var records []AssetRecord
	for rows.Next() {
		var rec AssetRecord
		var isActive int
		var createdAt, updatedAt int64

		if err := rows.Scan(
			&rec.Asset.Token,
			&rec.Asset.Balance,
			&rec.Asset.TargetAllocation,
			&isActive,
			&rec.Position,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}

		rec.Asset.IsActive = isActive == 1
		rec.Asset.CreatedAt = time.Unix(createdAt, 0).UTC()
		rec.Asset.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}

	return records, nil
}

// SaveAsset inserts or replaces an asset row at the given position.
func (r *Repository) SaveAsset(asset Asset, position int64) error {
	query := `
		INSERT INTO assets (token, balance, target_allocation, is_active, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET
			balance = excluded.balance,
			target_allocation = excluded.target_allocation,
			is_active = excluded.is_active,
			position = excluded.position,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query,
		asset.Token,
		asset.Balance,
		asset.TargetAllocation,
		boolToInt(asset.IsActive),
		position,
		asset.CreatedAt.Unix(),
		asset.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save asset %q: %w", asset.Token, err)
	}

	r.log.Debug().
		Str("token", asset.Token).
		Int64("target_bps", asset.TargetAllocation).
		Msg("Asset saved")

	return nil
}

// UpdateAsset updates the mutable columns of an existing asset row.
func (r *Repository) UpdateAsset(asset Asset) error {
	query := `
		UPDATE assets
		SET balance = ?, target_allocation = ?, is_active = ?, updated_at = ?
		WHERE token = ?
	`

	result, err := r.db.Exec(query,
		asset.Balance,
		asset.TargetAllocation,
		boolToInt(asset.IsActive),
		asset.UpdatedAt.Unix(),
		asset.Token,
	)
	if err != nil {
		return fmt.Errorf("failed to update asset %q: %w", asset.Token, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("update asset %q: %w", asset.Token, ErrUnknownAsset)
	}

	return nil
}

// UpdateAssets updates multiple asset rows in one transaction. Either every
// row is written or none are.
func (r *Repository) UpdateAssets(assets []Asset) error {
	if len(assets) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		UPDATE assets
		SET balance = ?, target_allocation = ?, is_active = ?, updated_at = ?
		WHERE token = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare update: %w", err)
	}
	defer stmt.Close()

	for _, asset := range assets {
		if _, err := stmt.Exec(
			asset.Balance,
			asset.TargetAllocation,
			boolToInt(asset.IsActive),
			asset.UpdatedAt.Unix(),
			asset.Token,
		); err != nil {
			return fmt.Errorf("failed to update asset %q: %w", asset.Token, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit asset updates: %w", err)
	}

	return nil
}

// GetSettingBool reads a boolean setting, returning the default when unset.
func (r *Repository) GetSettingBool(key string, defaultValue bool) (bool, error) {
	value, err := r.getSetting(key)
	if err == sql.ErrNoRows {
		return defaultValue, nil
	}
	if err != nil {
		return defaultValue, err
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid boolean setting %q=%q: %w", key, value, err)
	}
	return parsed, nil
}

// SetSettingBool writes a boolean setting.
func (r *Repository) SetSettingBool(key string, value bool) error {
	return r.setSetting(key, strconv.FormatBool(value))
}

// GetSettingInt64 reads an integer setting, returning the default when unset.
func (r *Repository) GetSettingInt64(key string, defaultValue int64) (int64, error) {
	value, err := r.getSetting(key)
	if err == sql.ErrNoRows {
		return defaultValue, nil
	}
	if err != nil {
		return defaultValue, err
	}

	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid integer setting %q=%q: %w", key, value, err)
	}
	return parsed, nil
}

// SetSettingInt64 writes an integer setting.
func (r *Repository) SetSettingInt64(key string, value int64) error {
	return r.setSetting(key, strconv.FormatInt(value, 10))
}

func (r *Repository) getSetting(key string) (string, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	return value, err
}

func (r *Repository) setSetting(key, value string) error {
	query := `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := r.db.Exec(query, key, value); err != nil {
		return fmt.Errorf("failed to set setting %q: %w", key, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
