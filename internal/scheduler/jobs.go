package scheduler

import (
	"context"
	"time"

	"github.com/mstavrou/macrodash/internal/database"
	"github.com/mstavrou/macrodash/internal/domain"
	"github.com/mstavrou/macrodash/internal/refresh"
	"github.com/mstavrou/macrodash/internal/reliability"
	"github.com/rs/zerolog"
)

// Cron schedules for the standing jobs.
const (
	RefreshSchedule     = "5 * * * *"  // hourly, offset past the top of the hour
	NightlySchedule     = "30 2 * * *" // 02:30, after FRED's overnight revisions land
	BackupSchedule      = "0 3 * * SUN"
	MaintenanceSchedule = "15 4 * * *"

	refreshJobTimeout = 15 * time.Minute
	backupJobTimeout  = 30 * time.Minute
)

// RefreshJob runs the hourly refresh pass. Tiers whose cache is still
// fresh are skipped by the scheduler, so most passes are cheap.
type RefreshJob struct {
	runner *refresh.Runner
	log    zerolog.Logger
}

// NewRefreshJob creates the hourly refresh job.
func NewRefreshJob(runner *refresh.Runner, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		runner: runner,
		log:    log.With().Str("job", "refresh").Logger(),
	}
}

// Run executes a refresh pass over every tier in the catalog.
func (j *RefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), refreshJobTimeout)
	defer cancel()

	report, err := j.runner.Run(ctx, nil, false, time.Now())
	if err != nil {
		return err
	}

	if report.HasFailures() {
		j.log.Warn().
			Int("failed_tiers", len(report.FailedTiers())).
			Msg("Refresh pass finished with failures")
	}
	return nil
}

// Name returns the job name for the scheduler.
func (j *RefreshJob) Name() string {
	return "refresh"
}

// NightlyRefreshJob forces a refresh of the daily tier after the upstream
// overnight revision window, regardless of cache age.
type NightlyRefreshJob struct {
	runner *refresh.Runner
	log    zerolog.Logger
}

// NewNightlyRefreshJob creates the nightly forced refresh job.
func NewNightlyRefreshJob(runner *refresh.Runner, log zerolog.Logger) *NightlyRefreshJob {
	return &NightlyRefreshJob{
		runner: runner,
		log:    log.With().Str("job", "nightly_refresh").Logger(),
	}
}

// Run forces a refresh of the daily tier.
func (j *NightlyRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), refreshJobTimeout)
	defer cancel()

	report, err := j.runner.Run(ctx, []domain.Frequency{domain.Daily}, true, time.Now())
	if err != nil {
		return err
	}

	if report.HasFailures() {
		j.log.Warn().Msg("Nightly forced refresh failed, serving previous data")
	}
	return nil
}

// Name returns the job name for the scheduler.
func (j *NightlyRefreshJob) Name() string {
	return "nightly_refresh"
}

// BackupJob uploads a cache snapshot and rotates old backups.
type BackupJob struct {
	backup *reliability.BackupService
	log    zerolog.Logger
}

// NewBackupJob creates the weekly backup job.
func NewBackupJob(backup *reliability.BackupService, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backup: backup,
		log:    log.With().Str("job", "backup").Logger(),
	}
}

// Run creates and uploads a backup, then applies the retention policy.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupJobTimeout)
	defer cancel()

	if err := j.backup.CreateAndUploadBackup(ctx); err != nil {
		return err
	}
	return j.backup.RotateOldBackups(ctx)
}

// Name returns the job name for the scheduler.
func (j *BackupJob) Name() string {
	return "backup"
}

// MaintenanceJob keeps the sqlite cache database healthy: integrity
// check plus a WAL checkpoint to prevent bloat.
type MaintenanceJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewMaintenanceJob creates the daily maintenance job. Only wired when
// the cache runs on the sqlite backend.
func NewMaintenanceJob(db *database.DB, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:  db,
		log: log.With().Str("job", "maintenance").Logger(),
	}
}

// Run executes the daily maintenance pass.
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	j.log.Info().Msg("Starting daily maintenance")
	startTime := time.Now()

	if err := j.db.HealthCheck(ctx); err != nil {
		j.log.Error().Err(err).Msg("Cache database failed integrity check")
		return err
	}

	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		// Not critical, the checkpoint will be retried tomorrow.
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Daily maintenance completed successfully")

	return nil
}

// Name returns the job name for the scheduler.
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}
