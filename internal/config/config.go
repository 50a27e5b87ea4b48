// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Cache storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendLevelDB  = "leveldb"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds application configuration.
type Config struct {
	DataDir      string // base directory for cache database files
	Port         int
	LogLevel     string
	DevMode      bool
	CatalogPath  string // optional YAML series catalog; empty = built-in catalog
	CacheBackend string // sqlite, leveldb, postgres, memory
	PostgresDSN  string // required when CacheBackend is postgres
	FredAPIKey   string
	Backup       *BackupConfig
}

// BackupConfig holds S3-compatible snapshot backup settings. Enabled only
// when credentials and a bucket are configured.
type BackupConfig struct {
	Endpoint        string // custom endpoint for S3-compatible stores (R2, MinIO); empty = AWS
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int
}

// Enabled reports whether backups are configured.
func (b *BackupConfig) Enabled() bool {
	return b != nil && b.Bucket != "" && b.AccessKeyID != "" && b.SecretAccessKey != ""
}

// Load reads configuration from environment variables. A .env file is
// honored if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("MACRODASH_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:      absDataDir,
		Port:         getEnvAsInt("MACRODASH_PORT", 8080),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		CatalogPath:  getEnv("MACRODASH_CATALOG", ""),
		CacheBackend: getEnv("MACRODASH_CACHE_BACKEND", BackendSQLite),
		PostgresDSN:  getEnv("MACRODASH_POSTGRES_DSN", ""),
		FredAPIKey:   getEnv("FRED_API_KEY", ""),
		Backup: &BackupConfig{
			Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
			Region:          getEnv("BACKUP_S3_REGION", "auto"),
			Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
			AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	switch c.CacheBackend {
	case BackendSQLite, BackendLevelDB, BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("unknown cache backend %q", c.CacheBackend)
	}

	if c.CacheBackend == BackendPostgres && c.PostgresDSN == "" {
		return fmt.Errorf("MACRODASH_POSTGRES_DSN is required for the postgres cache backend")
	}

	// FRED key is optional: without it the FRED series fail per-series and
	// the rest of the catalog still refreshes.
	return nil
}

// CacheDBPath returns the sqlite cache database path.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataDir, "frequency_cache.db")
}

// LevelDBPath returns the leveldb cache directory path.
func (c *Config) LevelDBPath() string {
	return filepath.Join(c.DataDir, "frequency_cache.leveldb")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
