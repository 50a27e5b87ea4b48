// Package cache is the persistent per-tier store for fetched series data.
// Each tier holds one entry (payload + fetch timestamp + fallback flag),
// encoded as a single msgpack envelope so the payload and its timestamp are
// replaced atomically. Storage backends are pluggable; all of them provide
// atomic replace-by-key.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mstavrou/macrodash/internal/domain"
)

// Entry is the cached state for one tier. A tier that was never fetched has
// a nil Payload and a zero FetchedAt. Fallback marks a payload that was
// re-stamped after a failed refresh, so cache-age reporting can distinguish
// "fresh enough" from "serving stale because upstream is down".
type Entry struct {
	Frequency domain.Frequency `json:"frequency"`
	Payload   domain.Payload   `json:"payload,omitempty"`
	FetchedAt time.Time        `json:"fetched_at,omitempty"`
	Fallback  bool             `json:"fallback"`
}

// Empty reports whether the tier was never fetched.
func (e Entry) Empty() bool {
	return e.Payload == nil
}

// Cache owns the per-tier entries. All mutation goes through Write; readers
// never see a payload whose timestamp belongs to a different fetch.
type Cache struct {
	store Store
	log   zerolog.Logger
}

// New creates a cache on top of a storage backend.
func New(store Store, log zerolog.Logger) *Cache {
	return &Cache{
		store: store,
		log:   log.With().Str("component", "cache").Logger(),
	}
}

// Read returns the stored entry for a tier. A tier with no stored entry
// yields an empty Entry and no error; only backend infrastructure failures
// are reported, and those are wrapped as StorageError.
func (c *Cache) Read(ctx context.Context, freq domain.Frequency) (Entry, error) {
	raw, err := c.store.Get(ctx, freq)
	if err != nil {
		return Entry{}, &StorageError{Op: "read", Frequency: freq, Err: err}
	}
	if raw == nil {
		return Entry{Frequency: freq}, nil
	}

	entry, err := decodeEntry(freq, raw)
	if err != nil {
		// A corrupt envelope is treated as never-fetched: the next run
		// refreshes the tier and overwrites it.
		c.log.Warn().Err(err).Str("frequency", freq.String()).Msg("Discarding undecodable cache entry")
		return Entry{Frequency: freq}, nil
	}
	return entry, nil
}

// Write persists a new entry for the tier, fully replacing the prior one.
func (c *Cache) Write(ctx context.Context, freq domain.Frequency, payload domain.Payload, fetchedAt time.Time, fallback bool) error {
	raw, err := encodeEntry(payload, fetchedAt, fallback)
	if err != nil {
		return &StorageError{Op: "encode", Frequency: freq, Err: err}
	}
	if err := c.store.Put(ctx, freq, raw); err != nil {
		return &StorageError{Op: "write", Frequency: freq, Err: err}
	}

	c.log.Debug().
		Str("frequency", freq.String()).
		Int("series", len(payload)).
		Bool("fallback", fallback).
		Msg("Cache entry stored")
	return nil
}

// Age returns now minus the entry's fetch timestamp. The second return is
// false if the tier was never fetched.
func (c *Cache) Age(ctx context.Context, freq domain.Frequency, now time.Time) (time.Duration, bool, error) {
	entry, err := c.Read(ctx, freq)
	if err != nil {
		return 0, false, err
	}
	if entry.FetchedAt.IsZero() {
		return 0, false, nil
	}
	return now.Sub(entry.FetchedAt), true, nil
}

// MergedView unions the payloads of the given tiers into one dataset keyed
// by logical series name. Tiers with no payload contribute nothing. This is
// the sole read surface downstream consumers (API handlers, dashboard) use;
// the staleness and fallback bookkeeping stays internal.
func (c *Cache) MergedView(ctx context.Context, freqs ...domain.Frequency) (domain.Payload, error) {
	merged := make(domain.Payload)
	for _, freq := range freqs {
		entry, err := c.Read(ctx, freq)
		if err != nil {
			return nil, err
		}
		if entry.Payload != nil {
			merged.Merge(entry.Payload)
		}
	}
	return merged, nil
}

// Clear removes the stored entry for a tier. Operational escape hatch.
func (c *Cache) Clear(ctx context.Context, freq domain.Frequency) error {
	if err := c.store.Delete(ctx, freq); err != nil {
		return &StorageError{Op: "clear", Frequency: freq, Err: err}
	}
	c.log.Info().Str("frequency", freq.String()).Msg("Cache entry cleared")
	return nil
}

// Close releases the storage backend.
func (c *Cache) Close() error {
	return c.store.Close()
}

// StorageError reports that the durable store is unreachable or failing.
// Unlike per-series fetch failures, this class propagates out of a refresh
// run: without a working cache the subsystem's invariants are meaningless.
type StorageError struct {
	Op        string
	Frequency domain.Frequency
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cache storage %s failed for tier %s: %v", e.Op, e.Frequency, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
