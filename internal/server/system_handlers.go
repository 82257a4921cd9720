package server

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/treasurer/internal/database"
	"github.com/aristath/treasurer/internal/scheduler"
)

// SystemHandlers serves process and host level status endpoints.
type SystemHandlers struct {
	log        zerolog.Logger
	startedAt  time.Time
	treasuryDB *database.DB
	historyDB  *database.DB
	backupJob  scheduler.Job
}

// NewSystemHandlers creates new system handlers
func NewSystemHandlers(treasuryDB, historyDB *database.DB, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		log:        log.With().Str("handler", "system").Logger(),
		startedAt:  time.Now().UTC(),
		treasuryDB: treasuryDB,
		historyDB:  historyDB,
	}
}

// SetBackupJob registers the backup job for manual triggering.
func (h *SystemHandlers) SetBackupJob(job scheduler.Job) {
	h.backupJob = job
}

// HandleSystemStatus returns process uptime plus host CPU and memory usage
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuAvg, ramPercent := h.systemStats()

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"cpu_percent":    cpuAvg,
		"ram_percent":    ramPercent,
		"databases": map[string]interface{}{
			"treasury": h.databaseStats(h.treasuryDB),
			"history":  h.databaseStats(h.historyDB),
		},
	})
}

// HandleTriggerBackup runs the R2 backup job immediately
// POST /api/system/backup
func (h *SystemHandlers) HandleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if h.backupJob == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "error",
			"message": "Backup job not configured",
		})
		return
	}

	h.log.Info().Msg("Manual backup triggered")

	if err := h.backupJob.Run(); err != nil {
		h.log.Error().Err(err).Msg("Manual backup failed")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Backup completed",
	})
}

// systemStats calculates CPU and RAM usage percentages.
// Uses a short 100ms sampling interval to avoid blocking the API call.
func (h *SystemHandlers) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// databaseStats reports the on-disk size of one database.
func (h *SystemHandlers) databaseStats(db *database.DB) map[string]interface{} {
	stats := map[string]interface{}{"path": "", "size_bytes": int64(0)}
	if db == nil {
		return stats
	}

	stats["path"] = db.Path()
	if info, err := os.Stat(db.Path()); err == nil {
		stats["size_bytes"] = info.Size()
	}

	return stats
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
