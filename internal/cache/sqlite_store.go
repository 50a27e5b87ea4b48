package cache

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mstavrou/macrodash/internal/database"
	"github.com/mstavrou/macrodash/internal/domain"
)

// sqliteSchema holds one row per tier. INSERT OR REPLACE gives the
// single-row atomic upsert the Store contract requires.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS frequency_cache (
	frequency  TEXT PRIMARY KEY,
	envelope   BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// SQLiteStore persists cache envelopes in a sqlite database. This is the
// default backend.
type SQLiteStore struct {
	db *database.DB
}

// NewSQLiteStore opens (or creates) the cache table on the given database.
func NewSQLiteStore(db *database.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to create frequency_cache table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get returns the stored envelope, or nil if the tier has no entry.
func (s *SQLiteStore) Get(ctx context.Context, freq domain.Frequency) ([]byte, error) {
	var envelope []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT envelope FROM frequency_cache WHERE frequency = ?", freq.String(),
	).Scan(&envelope)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read frequency_cache: %w", err)
	}
	return envelope, nil
}

// Put replaces the stored envelope for the tier.
func (s *SQLiteStore) Put(ctx context.Context, freq domain.Frequency, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO frequency_cache (frequency, envelope, updated_at) VALUES (?, ?, strftime('%s','now'))",
		freq.String(), value,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert frequency_cache: %w", err)
	}
	return nil
}

// Delete removes the tier's row.
func (s *SQLiteStore) Delete(ctx context.Context, freq domain.Frequency) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM frequency_cache WHERE frequency = ?", freq.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to delete from frequency_cache: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
