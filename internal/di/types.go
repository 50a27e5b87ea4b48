/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application
 * dependencies. The Container is the single source of truth for all
 * service instances and is passed to handlers for access to services.
 */
package di

import (
	"github.com/mstavrou/macrodash/internal/cache"
	"github.com/mstavrou/macrodash/internal/config"
	"github.com/mstavrou/macrodash/internal/database"
	"github.com/mstavrou/macrodash/internal/metrics"
	"github.com/mstavrou/macrodash/internal/providers"
	"github.com/mstavrou/macrodash/internal/refresh"
	"github.com/mstavrou/macrodash/internal/registry"
	"github.com/mstavrou/macrodash/internal/reliability"
	"github.com/mstavrou/macrodash/internal/sla"
)

/**
 * Container holds all dependencies for the application.
 *
 * This is the single source of truth for all service instances.
 * The container is created by Wire() and passed to handlers.
 *
 * Architecture:
 * - CacheDB: SQLite database backing the frequency cache (nil for
 *   non-sqlite backends)
 * - Cache: frequency-tier cache on top of the configured Store backend
 * - Registry: the catalog of tracked series
 * - Policy: freshness rules per frequency tier
 * - Providers: multiplexer over the upstream data source clients
 * - Scheduler / Runner: refresh decision engine and run orchestrator
 * - Backup: optional S3-compatible cache backup service (nil when
 *   backups are not configured)
 */
type Container struct {
	Config *config.Config

	CacheDB *database.DB

	Cache     *cache.Cache
	Registry  *registry.Registry
	Policy    *sla.Policy
	Providers *providers.Mux
	Metrics   *metrics.Metrics
	Scheduler *refresh.Scheduler
	Runner    *refresh.Runner
	Backup    *reliability.BackupService
}

// Close releases every resource the container owns. Safe to call on a
// partially initialized container.
func (c *Container) Close() {
	if c.Cache != nil {
		c.Cache.Close()
	}
	if c.CacheDB != nil {
		c.CacheDB.Close()
	}
}
