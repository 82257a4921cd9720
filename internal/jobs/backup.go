package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/treasurer/internal/reliability"
)

// BackupJob uploads a fresh backup archive to R2 and rotates old ones.
type BackupJob struct {
	r2Backup      *reliability.R2BackupService
	retentionDays int
	timeout       time.Duration
	log           zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(r2Backup *reliability.R2BackupService, retentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		r2Backup:      r2Backup,
		retentionDays: retentionDays,
		timeout:       10 * time.Minute,
		log:           log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run creates and uploads a backup, then rotates old ones
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.r2Backup.CreateAndUploadBackup(ctx); err != nil {
		return err
	}

	if err := j.r2Backup.RotateOldBackups(ctx, j.retentionDays); err != nil {
		// Rotation failure should not fail the backup itself.
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	return nil
}
