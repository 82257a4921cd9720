package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/treasurer/internal/config"
	"github.com/aristath/treasurer/internal/database"
	"github.com/aristath/treasurer/internal/domain"
	"github.com/aristath/treasurer/internal/events"
	"github.com/aristath/treasurer/internal/jobs"
	"github.com/aristath/treasurer/internal/modules/analysis"
	"github.com/aristath/treasurer/internal/modules/governance"
	"github.com/aristath/treasurer/internal/modules/ledger"
	"github.com/aristath/treasurer/internal/modules/snapshots"
	"github.com/aristath/treasurer/internal/modules/treasury"
	"github.com/aristath/treasurer/internal/reliability"
	"github.com/aristath/treasurer/internal/scheduler"
	"github.com/aristath/treasurer/internal/server"
	"github.com/aristath/treasurer/pkg/logger"
)

func main() {
	// Load configuration first so the logger level follows it
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting treasury service")

	// Databases: treasury.db holds current state, history.db the audit trail
	treasuryDB, err := database.New(filepath.Join(cfg.DataDir, "treasury.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open treasury database")
	}
	defer treasuryDB.Close()

	historyDB, err := database.New(filepath.Join(cfg.DataDir, "history.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer historyDB.Close()

	for _, migration := range []struct {
		db     *database.DB
		schema string
	}{
		{treasuryDB, treasury.Schema},
		{treasuryDB, governance.Schema},
		{historyDB, ledger.Schema},
		{historyDB, snapshots.Schema},
	} {
		if err := migration.db.Migrate(migration.schema); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
	}

	// Shared infrastructure
	resolver := domain.NewResolver(cfg.OwnerID, cfg.DAOID)
	bus := events.NewBus(log)

	// Repositories
	treasuryRepo := treasury.NewRepository(treasuryDB.Conn(), log)
	ledgerRepo := ledger.NewRepository(historyDB.Conn(), log)
	snapshotRepo := snapshots.NewRepository(historyDB.Conn(), log)
	governanceRepo := governance.NewRepository(treasuryDB.Conn(), log)

	// Core treasury service
	treasurySvc := treasury.NewService(treasury.ServiceConfig{
		ThresholdBps:       cfg.RebalancingThresholdBps,
		DefaultSlippageBps: cfg.DefaultSlippageBps,
		Repo:               treasuryRepo,
		Recorder:           ledgerRepo,
		Events:             bus,
		Swaps:              treasury.NewNoopSwapExecutor(log),
		Log:                log,
	})
	if err := treasurySvc.Load(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load treasury state")
	}

	analysisSvc := analysis.NewService(treasurySvc, snapshotRepo, log)
	governanceSvc := governance.NewService(governance.ServiceConfig{
		Repo:     governanceRepo,
		Treasury: treasurySvc,
		Events:   bus,
		Quorum:   1,
		Log:      log,
	})

	// Scheduler and background jobs
	sched := scheduler.New(log)
	registerJobs(sched, cfg, log, treasurySvc, snapshotRepo, bus, treasuryDB, historyDB)
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Log:        log,
		Config:     cfg,
		TreasuryDB: treasuryDB,
		HistoryDB:  historyDB,
		Resolver:   resolver,
		Bus:        bus,
		Treasury:   treasurySvc,
		Analysis:   analysisSvc,
		Governance: governanceSvc,
		LedgerRepo: ledgerRepo,
		Snapshots:  snapshotRepo,
	})

	// Off-site backups are optional; wire them only when R2 is configured
	if cfg.R2AccountID != "" {
		backupJob, err := buildBackupJob(cfg, log, treasuryDB, historyDB)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize R2 backups, continuing without")
		} else {
			srv.SystemHandlers().SetBackupJob(backupJob)
			if err := sched.AddJob(cfg.BackupSchedule, backupJob); err != nil {
				log.Error().Err(err).Msg("Failed to schedule backup job")
			}
		}
	} else {
		log.Info().Msg("R2 backups disabled (no account configured)")
	}

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func registerJobs(
	sched *scheduler.Scheduler,
	cfg *config.Config,
	log zerolog.Logger,
	treasurySvc *treasury.Service,
	snapshotRepo *snapshots.Repository,
	bus *events.Bus,
	treasuryDB, historyDB *database.DB,
) {
	jobSchedules := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.DeviationCheckSchedule, jobs.NewDeviationCheckJob(treasurySvc, bus, log)},
		{cfg.SnapshotSchedule, jobs.NewSnapshotJob(treasurySvc, snapshotRepo, log)},
		{"0 0 */6 * * *", jobs.NewHealthCheckJob(treasuryDB, historyDB, log)},
	}

	for _, entry := range jobSchedules {
		if err := sched.AddJob(entry.schedule, entry.job); err != nil {
			log.Fatal().Err(err).Str("job", entry.job.Name()).Msg("Failed to register job")
		}
	}
}

func buildBackupJob(cfg *config.Config, log zerolog.Logger, treasuryDB, historyDB *database.DB) (scheduler.Job, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	r2Client, err := reliability.NewR2Client(ctx, reliability.R2Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
	}, log)
	if err != nil {
		return nil, err
	}

	backupSvc := reliability.NewBackupService(log)
	backupSvc.Register("treasury", treasuryDB)
	backupSvc.Register("history", historyDB)

	r2Backup := reliability.NewR2BackupService(r2Client, backupSvc, cfg.DataDir, log)

	const retentionDays = 30
	return jobs.NewBackupJob(r2Backup, retentionDays, log), nil
}
