package jobs

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/treasurer/internal/modules/snapshots"
	"github.com/aristath/treasurer/internal/modules/treasury"
)

// SnapshotJob records the treasury's total value and allocation breakdown
// into the history database on a schedule.
type SnapshotJob struct {
	treasury  *treasury.Service
	snapshots *snapshots.Repository
	log       zerolog.Logger
}

// NewSnapshotJob creates a new snapshot job
func NewSnapshotJob(treasurySvc *treasury.Service, snapshotRepo *snapshots.Repository, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		treasury:  treasurySvc,
		snapshots: snapshotRepo,
		log:       log.With().Str("job", "snapshot").Logger(),
	}
}

// Name returns the job name
func (j *SnapshotJob) Name() string {
	return "snapshot"
}

// Run records one snapshot
func (j *SnapshotJob) Run() error {
	allocations := j.treasury.CurrentAllocations()

	entries := make([]snapshots.AllocationEntry, 0, len(allocations))
	var total int64
	for _, alloc := range allocations {
		entries = append(entries, snapshots.AllocationEntry{
			Token:      alloc.Token,
			Balance:    alloc.Balance,
			TargetBps:  alloc.TargetBps,
			CurrentBps: alloc.CurrentBps,
		})
		total += alloc.Balance
	}

	if err := j.snapshots.Append(total, entries); err != nil {
		return fmt.Errorf("failed to record snapshot: %w", err)
	}

	j.log.Debug().
		Int64("total_value", total).
		Int("assets", len(entries)).
		Msg("Snapshot recorded")

	return nil
}
