package cache

import (
	"context"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/mstavrou/macrodash/internal/domain"
)

// LevelDBStore persists cache envelopes in a LevelDB directory. A lighter
// file-based alternative to sqlite for deployments that want no SQL at all.
// LevelDB writes are atomic per key.
type LevelDBStore struct {
	db *leveldb.DB
}

// NewLevelDBStore opens (or creates) a LevelDB database at path.
func NewLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb cache at %s: %w", path, err)
	}
	return &LevelDBStore{db: db}, nil
}

func levelKey(freq domain.Frequency) []byte {
	return []byte("tier/" + freq.String())
}

// Get returns the stored envelope, or nil if the tier has no entry.
func (s *LevelDBStore) Get(_ context.Context, freq domain.Frequency) ([]byte, error) {
	value, err := s.db.Get(levelKey(freq), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read leveldb cache: %w", err)
	}
	return value, nil
}

// Put replaces the stored envelope for the tier.
func (s *LevelDBStore) Put(_ context.Context, freq domain.Frequency, value []byte) error {
	if err := s.db.Put(levelKey(freq), value, nil); err != nil {
		return fmt.Errorf("failed to write leveldb cache: %w", err)
	}
	return nil
}

// Delete removes the tier's key.
func (s *LevelDBStore) Delete(_ context.Context, freq domain.Frequency) error {
	if err := s.db.Delete(levelKey(freq), nil); err != nil {
		return fmt.Errorf("failed to delete from leveldb cache: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
