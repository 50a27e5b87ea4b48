package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mstavrou/macrodash/internal/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS frequency_cache (
	frequency  TEXT PRIMARY KEY,
	envelope   BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// PostgresStore persists cache envelopes in PostgreSQL via pgx. A single-row
// ON CONFLICT upsert satisfies the atomic replace-by-key contract, and a
// shared database lets multiple service instances serve one cache.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and ensures the cache table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create frequency_cache table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Get returns the stored envelope, or nil if the tier has no entry.
func (s *PostgresStore) Get(ctx context.Context, freq domain.Frequency) ([]byte, error) {
	var envelope []byte
	err := s.pool.QueryRow(ctx,
		"SELECT envelope FROM frequency_cache WHERE frequency = $1", freq.String(),
	).Scan(&envelope)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read frequency_cache: %w", err)
	}
	return envelope, nil
}

// Put replaces the stored envelope for the tier.
func (s *PostgresStore) Put(ctx context.Context, freq domain.Frequency, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO frequency_cache (frequency, envelope, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (frequency)
		DO UPDATE SET envelope = EXCLUDED.envelope, updated_at = now()`,
		freq.String(), value,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert frequency_cache: %w", err)
	}
	return nil
}

// Delete removes the tier's row.
func (s *PostgresStore) Delete(ctx context.Context, freq domain.Frequency) error {
	_, err := s.pool.Exec(ctx,
		"DELETE FROM frequency_cache WHERE frequency = $1", freq.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to delete from frequency_cache: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
