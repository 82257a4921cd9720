package jobs

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/treasurer/internal/database"
)

// HealthCheckJob verifies SQLite integrity and WAL checkpoint status for
// the treasury and history databases.
type HealthCheckJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewHealthCheckJob creates a new health check job
func NewHealthCheckJob(treasuryDB, historyDB *database.DB, log zerolog.Logger) *HealthCheckJob {
	return &HealthCheckJob{
		databases: map[string]*database.DB{
			"treasury": treasuryDB,
			"history":  historyDB,
		},
		log: log.With().Str("job", "health_check").Logger(),
	}
}

// Name returns the job name
func (j *HealthCheckJob) Name() string {
	return "health_check"
}

// Run executes the health check
func (j *HealthCheckJob) Run() error {
	for name, db := range j.databases {
		if db == nil {
			j.log.Warn().Str("database", name).Msg("Database not initialized, skipping")
			continue
		}

		if err := j.checkIntegrity(name, db); err != nil {
			// Corruption is not auto-recoverable here; surface it loudly.
			j.log.Error().Err(err).Str("database", name).Msg("Database integrity check failed")
			return err
		}

		j.checkWALCheckpoint(name, db)
	}

	j.log.Debug().Msg("Health check completed")
	return nil
}

// checkIntegrity runs SQLite's PRAGMA integrity_check
func (j *HealthCheckJob) checkIntegrity(name string, db *database.DB) error {
	var result string
	if err := db.Conn().QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check on %s failed: %w", name, err)
	}

	if result != "ok" {
		return fmt.Errorf("database %s is corrupted: integrity check returned %q", name, result)
	}

	return nil
}

// checkWALCheckpoint monitors WAL checkpoint status. The pragma returns
// three columns: busy, log frames, checkpointed frames.
func (j *HealthCheckJob) checkWALCheckpoint(name string, db *database.DB) {
	var busy, logFrames, checkpointed int
	err := db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &logFrames, &checkpointed)
	if err != nil {
		j.log.Warn().Err(err).Str("database", name).Msg("Failed to check WAL checkpoint")
		return
	}

	if logFrames > 1000 {
		j.log.Warn().
			Str("database", name).
			Int("wal_frames", logFrames).
			Int("checkpointed", checkpointed).
			Msg("WAL file is large, checkpoint may be needed")
	}
}
