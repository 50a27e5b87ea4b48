// Package main is the entry point for the macrodash data service.
// The service keeps a frequency-tiered cache of economic series warm,
// serves it over HTTP for the dashboard, and runs the recurring refresh,
// maintenance and backup jobs.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mstavrou/macrodash/internal/config"
	"github.com/mstavrou/macrodash/internal/di"
	"github.com/mstavrou/macrodash/internal/scheduler"
	"github.com/mstavrou/macrodash/internal/server"
	"github.com/mstavrou/macrodash/pkg/logger"
)

// main orchestrates the startup sequence:
// 1. Load configuration from environment variables
// 2. Initialize logging
// 3. Wire dependencies (cache store, registry, providers, refresh runner)
// 4. Register cron jobs (hourly refresh, nightly forced refresh, backups)
// 5. Start the HTTP server
// 6. Wait for shutdown signal and drain gracefully
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting macrodash")

	container, err := di.Wire(context.Background(), cfg, log, di.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// Cron jobs. The hourly pass is cheap when the cache is fresh, so a
	// tight schedule costs little and catches missed windows quickly.
	cron := scheduler.New(log)
	if err := cron.AddJob(scheduler.RefreshSchedule, scheduler.NewRefreshJob(container.Runner, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register refresh job")
	}
	if err := cron.AddJob(scheduler.NightlySchedule, scheduler.NewNightlyRefreshJob(container.Runner, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register nightly refresh job")
	}
	if container.CacheDB != nil {
		if err := cron.AddJob(scheduler.MaintenanceSchedule, scheduler.NewMaintenanceJob(container.CacheDB, log)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register maintenance job")
		}
	}
	if container.Backup != nil {
		if err := cron.AddJob(scheduler.BackupSchedule, scheduler.NewBackupJob(container.Backup, log)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	}
	cron.Start()
	defer cron.Stop()

	srv := server.New(server.Config{
		Log:       log,
		Container: container,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Warm the cache on startup so the dashboard has data immediately.
	// Tiers that are already fresh are skipped.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
		defer cancel()
		if _, err := container.Runner.Run(ctx, nil, false, time.Now()); err != nil {
			log.Error().Err(err).Msg("Startup refresh pass failed")
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
