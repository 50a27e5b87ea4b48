// Package di provides dependency injection wiring and initialization.
package di

import (
	"context"
	"fmt"

	"github.com/mstavrou/macrodash/internal/cache"
	"github.com/mstavrou/macrodash/internal/config"
	"github.com/mstavrou/macrodash/internal/database"
	"github.com/mstavrou/macrodash/internal/metrics"
	"github.com/mstavrou/macrodash/internal/providers"
	"github.com/mstavrou/macrodash/internal/providers/cboe"
	"github.com/mstavrou/macrodash/internal/providers/fred"
	"github.com/mstavrou/macrodash/internal/providers/yahoo"
	"github.com/mstavrou/macrodash/internal/refresh"
	"github.com/mstavrou/macrodash/internal/registry"
	"github.com/mstavrou/macrodash/internal/reliability"
	"github.com/mstavrou/macrodash/internal/sla"
	"github.com/rs/zerolog"
)

// Options tweak wiring for the non-server entry points.
type Options struct {
	// TestCatalog swaps the full series catalog for the small
	// one-series-per-tier catalog used by smoke runs.
	TestCatalog bool
}

// Wire initializes all dependencies and returns a fully configured container.
// This is the main entry point for dependency injection.
// Order of operations:
// 1. Open the cache store backend
// 2. Build the frequency cache
// 3. Load the series catalog and freshness policy
// 4. Register provider clients
// 5. Build the refresh scheduler and runner
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts Options) (*Container, error) {
	container := &Container{Config: cfg}

	store, cacheDB, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}
	container.CacheDB = cacheDB
	container.Cache = cache.New(store, log)

	reg, err := loadCatalog(cfg, opts)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to load series catalog: %w", err)
	}
	container.Registry = reg
	container.Policy = sla.Default()

	mux := providers.NewMux()
	mux.Register("fred", fred.NewClient(cfg.FredAPIKey, log))
	mux.Register("yahoo", yahoo.NewClient(log))
	mux.Register("cboe", cboe.NewClient(log))
	container.Providers = mux

	container.Metrics = metrics.New()
	container.Scheduler = refresh.NewScheduler(reg, container.Policy, container.Cache, mux, log)
	container.Runner = refresh.NewRunner(container.Scheduler, container.Metrics, log)

	if cfg.Backup.Enabled() {
		backup, err := reliability.NewBackupService(cfg, container.Cache, log)
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to initialize backup service: %w", err)
		}
		container.Backup = backup
	}

	log.Info().
		Str("backend", cfg.CacheBackend).
		Int("series", reg.Len()).
		Msg("Dependency injection wiring completed successfully")

	return container, nil
}

// openStore selects and opens the cache store backend from configuration.
// The returned *database.DB is non-nil only for the sqlite backend so the
// caller can expose its stats and run maintenance against it.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (cache.Store, *database.DB, error) {
	switch cfg.CacheBackend {
	case config.BackendSQLite:
		db, err := database.New(database.Config{
			Path:    cfg.CacheDBPath(),
			Profile: database.ProfileCache,
			Name:    "cache",
		})
		if err != nil {
			return nil, nil, err
		}
		store, err := cache.NewSQLiteStore(db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db, nil

	case config.BackendLevelDB:
		store, err := cache.NewLevelDBStore(cfg.LevelDBPath())
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case config.BackendPostgres:
		store, err := cache.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case config.BackendMemory:
		log.Warn().Msg("Using in-memory cache store, data will not survive restarts")
		return cache.NewMemoryStore(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

func loadCatalog(cfg *config.Config, opts Options) (*registry.Registry, error) {
	if opts.TestCatalog {
		return registry.TestCatalog(), nil
	}
	if cfg.CatalogPath != "" {
		return registry.LoadFile(cfg.CatalogPath)
	}
	return registry.Default(), nil
}
