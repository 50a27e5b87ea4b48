package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstavrou/macrodash/internal/database"
	"github.com/mstavrou/macrodash/internal/domain"
)

func testPayload(name string, freq domain.Frequency, values ...float64) domain.Payload {
	obs := make([]domain.Observation, len(values))
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i, v := range values {
		obs[i] = domain.Observation{Date: base.AddDate(0, 0, i), Value: v}
	}
	return domain.Payload{
		name: {
			Name:         name,
			ProviderID:   "TEST",
			Source:       "fred",
			Frequency:    freq,
			Observations: obs,
		},
	}
}

func TestReadMissingTier(t *testing.T) {
	c := New(NewMemoryStore(), zerolog.Nop())

	entry, err := c.Read(context.Background(), domain.Daily)
	require.NoError(t, err)
	assert.True(t, entry.Empty())
	assert.True(t, entry.FetchedAt.IsZero())
	assert.Equal(t, domain.Daily, entry.Frequency)
}

func TestWriteReadRoundtrip(t *testing.T) {
	c := New(NewMemoryStore(), zerolog.Nop())
	ctx := context.Background()

	payload := testPayload("10Y Treasury Yield", domain.Daily, 4.1, 4.2, 4.3)
	fetchedAt := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)

	require.NoError(t, c.Write(ctx, domain.Daily, payload, fetchedAt, false))

	entry, err := c.Read(ctx, domain.Daily)
	require.NoError(t, err)
	assert.False(t, entry.Empty())
	assert.False(t, entry.Fallback)
	assert.Equal(t, fetchedAt.Unix(), entry.FetchedAt.Unix())

	series, ok := entry.Payload["10Y Treasury Yield"]
	require.True(t, ok)
	assert.Equal(t, []float64{4.1, 4.2, 4.3}, series.Values())
}

func TestWriteReplacesAtomically(t *testing.T) {
	c := New(NewMemoryStore(), zerolog.Nop())
	ctx := context.Background()

	first := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(12 * time.Hour)

	require.NoError(t, c.Write(ctx, domain.Daily, testPayload("A", domain.Daily, 1), first, false))
	require.NoError(t, c.Write(ctx, domain.Daily, testPayload("A", domain.Daily, 2), second, false))

	entry, err := c.Read(ctx, domain.Daily)
	require.NoError(t, err)
	// Payload and timestamp always belong to the same write.
	assert.Equal(t, second.Unix(), entry.FetchedAt.Unix())
	assert.Equal(t, []float64{2}, entry.Payload["A"].Values())
}

func TestFallbackFlagRoundtrip(t *testing.T) {
	c := New(NewMemoryStore(), zerolog.Nop())
	ctx := context.Background()

	fetchedAt := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, c.Write(ctx, domain.Weekly, testPayload("Claims", domain.Weekly, 220000), fetchedAt, true))

	entry, err := c.Read(ctx, domain.Weekly)
	require.NoError(t, err)
	assert.True(t, entry.Fallback)
	// The original fetch timestamp survives the fallback re-stamp.
	assert.Equal(t, fetchedAt.Unix(), entry.FetchedAt.Unix())
}

func TestReadCorruptEnvelope(t *testing.T) {
	store := NewMemoryStore()
	c := New(store, zerolog.Nop())
	ctx := context.Background()

	// 0xc1 is a reserved msgpack code that can never decode.
	require.NoError(t, store.Put(ctx, domain.Daily, []byte{0xc1, 0x00, 0x01}))

	entry, err := c.Read(ctx, domain.Daily)
	require.NoError(t, err, "corrupt entries are treated as never-fetched, not as errors")
	assert.True(t, entry.Empty())
}

// failingStore simulates a broken storage backend.
type failingStore struct{}

var errBackend = errors.New("disk on fire")

func (failingStore) Get(context.Context, domain.Frequency) ([]byte, error) { return nil, errBackend }
func (failingStore) Put(context.Context, domain.Frequency, []byte) error   { return errBackend }
func (failingStore) Delete(context.Context, domain.Frequency) error        { return errBackend }
func (failingStore) Close() error                                          { return nil }

func TestStorageErrorPropagates(t *testing.T) {
	c := New(failingStore{}, zerolog.Nop())
	ctx := context.Background()

	_, err := c.Read(ctx, domain.Daily)
	require.Error(t, err)

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "read", storageErr.Op)
	assert.Equal(t, domain.Daily, storageErr.Frequency)
	assert.ErrorIs(t, err, errBackend)

	err = c.Write(ctx, domain.Daily, testPayload("A", domain.Daily, 1), time.Now(), false)
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "write", storageErr.Op)
}

func TestAge(t *testing.T) {
	c := New(NewMemoryStore(), zerolog.Nop())
	ctx := context.Background()

	_, known, err := c.Age(ctx, domain.Daily, time.Now())
	require.NoError(t, err)
	assert.False(t, known)

	fetchedAt := time.Date(2026, time.March, 2, 6, 0, 0, 0, time.UTC)
	require.NoError(t, c.Write(ctx, domain.Daily, testPayload("A", domain.Daily, 1), fetchedAt, false))

	age, known, err := c.Age(ctx, domain.Daily, fetchedAt.Add(7*time.Hour))
	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, 7*time.Hour, age)
}

func TestMergedView(t *testing.T) {
	c := New(NewMemoryStore(), zerolog.Nop())
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, c.Write(ctx, domain.Daily, testPayload("10Y Treasury Yield", domain.Daily, 4.2), now, false))
	require.NoError(t, c.Write(ctx, domain.Monthly, testPayload("Consumer Price Index", domain.Monthly, 310.5), now, false))

	view, err := c.MergedView(ctx, domain.Frequencies...)
	require.NoError(t, err)
	assert.Equal(t, []string{"10Y Treasury Yield", "Consumer Price Index"}, view.Names())
}

func TestClear(t *testing.T) {
	c := New(NewMemoryStore(), zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, c.Write(ctx, domain.Daily, testPayload("A", domain.Daily, 1), time.Now(), false))
	require.NoError(t, c.Clear(ctx, domain.Daily))

	entry, err := c.Read(ctx, domain.Daily)
	require.NoError(t, err)
	assert.True(t, entry.Empty())
}

func TestSQLiteStoreRoundtrip(t *testing.T) {
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache_test",
	})
	require.NoError(t, err)
	defer db.Close()

	store, err := NewSQLiteStore(db)
	require.NoError(t, err)

	c := New(store, zerolog.Nop())
	ctx := context.Background()

	fetchedAt := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	require.NoError(t, c.Write(ctx, domain.Quarterly, testPayload("Real GDP", domain.Quarterly, 22500.1), fetchedAt, false))

	entry, err := c.Read(ctx, domain.Quarterly)
	require.NoError(t, err)
	assert.Equal(t, fetchedAt.Unix(), entry.FetchedAt.Unix())
	assert.Equal(t, []float64{22500.1}, entry.Payload["Real GDP"].Values())

	// Replace and confirm the upsert semantics.
	require.NoError(t, c.Write(ctx, domain.Quarterly, testPayload("Real GDP", domain.Quarterly, 22700.9), fetchedAt.Add(time.Hour), false))
	entry, err = c.Read(ctx, domain.Quarterly)
	require.NoError(t, err)
	assert.Equal(t, []float64{22700.9}, entry.Payload["Real GDP"].Values())

	// Other tiers are untouched.
	other, err := c.Read(ctx, domain.Daily)
	require.NoError(t, err)
	assert.True(t, other.Empty())
}
