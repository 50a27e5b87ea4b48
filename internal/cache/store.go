package cache

import (
	"context"
	"sync"

	"github.com/mstavrou/macrodash/internal/domain"
)

// Store is the durable key-value backend the cache sits on, keyed by tier.
// Get returns nil with no error when the key is absent. Put must replace the
// value atomically: readers see either the old envelope or the new one,
// never a torn write.
type Store interface {
	Get(ctx context.Context, freq domain.Frequency) ([]byte, error)
	Put(ctx context.Context, freq domain.Frequency, value []byte) error
	Delete(ctx context.Context, freq domain.Frequency) error
	Close() error
}

// MemoryStore is an in-process Store for tests and ephemeral runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[domain.Frequency][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[domain.Frequency][]byte)}
}

// Get returns the stored value, or nil if the tier has no entry.
func (s *MemoryStore) Get(_ context.Context, freq domain.Frequency) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.entries[freq]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Put replaces the stored value for the tier.
func (s *MemoryStore) Put(_ context.Context, freq domain.Frequency, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[freq] = stored
	return nil
}

// Delete removes the stored value for the tier.
func (s *MemoryStore) Delete(_ context.Context, freq domain.Frequency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, freq)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
