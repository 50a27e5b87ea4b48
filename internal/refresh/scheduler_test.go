package refresh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstavrou/macrodash/internal/cache"
	"github.com/mstavrou/macrodash/internal/domain"
	"github.com/mstavrou/macrodash/internal/providers"
	"github.com/mstavrou/macrodash/internal/registry"
	"github.com/mstavrou/macrodash/internal/sla"
)

// fakeFetcher counts calls and serves canned observations or errors per
// provider id.
type fakeFetcher struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string]error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		calls:    make(map[string]int),
		failures: make(map[string]error),
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, desc registry.Descriptor) ([]domain.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[desc.ProviderID]++

	if err, ok := f.failures[desc.ProviderID]; ok {
		return nil, err
	}
	return []domain.Observation{
		{Date: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), Value: 1.0},
		{Date: time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC), Value: 2.0},
	}, nil
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func dailyRegistry(t *testing.T, names ...string) *registry.Registry {
	t.Helper()
	r := registry.New()
	for _, name := range names {
		require.NoError(t, r.Register(registry.Descriptor{
			LogicalName: name,
			ProviderID:  name,
			Source:      "fred",
			Frequency:   domain.Daily,
		}))
	}
	return r
}

func newTestScheduler(t *testing.T, reg *registry.Registry, fetcher SourceFetcher) (*Scheduler, *cache.Cache) {
	t.Helper()
	c := cache.New(cache.NewMemoryStore(), zerolog.Nop())
	return NewScheduler(reg, sla.Default(), c, fetcher, zerolog.Nop()), c
}

// A Tuesday afternoon UTC, outside any publication blackout.
var testNow = time.Date(2026, time.March, 3, 15, 0, 0, 0, time.UTC)

func TestExecuteNeverFetchedTier(t *testing.T) {
	fetcher := newFakeFetcher()
	s, c := newTestScheduler(t, dailyRegistry(t, "DGS10"), fetcher)

	result, err := s.Execute(context.Background(), domain.Daily, testNow, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRefreshed, result.Outcome)
	assert.Equal(t, 1, result.SeriesFetched)
	assert.Empty(t, result.SeriesErrors)

	entry, err := c.Read(context.Background(), domain.Daily)
	require.NoError(t, err)
	assert.Equal(t, testNow.Unix(), entry.FetchedAt.Unix())
	assert.False(t, entry.Fallback)
}

func TestExecuteFreshCacheSkipsFetch(t *testing.T) {
	fetcher := newFakeFetcher()
	s, c := newTestScheduler(t, dailyRegistry(t, "DGS10"), fetcher)
	ctx := context.Background()

	// First pass populates the tier.
	_, err := s.Execute(ctx, domain.Daily, testNow, false)
	require.NoError(t, err)
	require.Equal(t, 1, fetcher.totalCalls())

	// One hour later the 6h daily TTL has not elapsed.
	result, err := s.Execute(ctx, domain.Daily, testNow.Add(time.Hour), false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedFresh, result.Outcome)
	assert.Equal(t, 1, fetcher.totalCalls(), "fresh cache must not trigger a fetch")

	// The skipped pass still returns the cached payload.
	assert.Contains(t, result.Payload, "DGS10")

	entry, err := c.Read(ctx, domain.Daily)
	require.NoError(t, err)
	assert.Equal(t, testNow.Unix(), entry.FetchedAt.Unix(), "skip must not touch the timestamp")
}

func TestExecuteStaleCacheRefetches(t *testing.T) {
	fetcher := newFakeFetcher()
	s, c := newTestScheduler(t, dailyRegistry(t, "DGS10"), fetcher)
	ctx := context.Background()

	_, err := s.Execute(ctx, domain.Daily, testNow, false)
	require.NoError(t, err)

	later := testNow.Add(7 * time.Hour) // past the 6h daily TTL
	result, err := s.Execute(ctx, domain.Daily, later, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRefreshed, result.Outcome)
	assert.Equal(t, 2, fetcher.totalCalls())

	entry, err := c.Read(ctx, domain.Daily)
	require.NoError(t, err)
	assert.Equal(t, later.Unix(), entry.FetchedAt.Unix())
}

func TestExecuteForceBypassesFreshness(t *testing.T) {
	fetcher := newFakeFetcher()
	s, _ := newTestScheduler(t, dailyRegistry(t, "DGS10"), fetcher)
	ctx := context.Background()

	_, err := s.Execute(ctx, domain.Daily, testNow, false)
	require.NoError(t, err)

	result, err := s.Execute(ctx, domain.Daily, testNow.Add(time.Minute), true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRefreshed, result.Outcome)
	assert.Equal(t, 2, fetcher.totalCalls())
}

func TestExecuteWeeklyPublicationWindowClosed(t *testing.T) {
	fetcher := newFakeFetcher()
	r := registry.New()
	require.NoError(t, r.Register(registry.Descriptor{
		LogicalName: "Initial Jobless Claims",
		ProviderID:  "ICSA",
		Source:      "fred",
		Frequency:   domain.Weekly,
	}))
	s, c := newTestScheduler(t, r, fetcher)
	ctx := context.Background()

	eastern, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Stale entry from two days ago.
	wednesday := time.Date(2026, time.January, 6, 9, 0, 0, 0, eastern)
	_, err = s.Execute(ctx, domain.Weekly, wednesday, false)
	require.NoError(t, err)

	// Thursday 08:00 ET: past TTL, but the weekly release is not out yet.
	thursdayEarly := time.Date(2026, time.January, 8, 8, 0, 0, 0, eastern)
	result, err := s.Execute(ctx, domain.Weekly, thursdayEarly, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedFresh, result.Outcome)
	assert.Equal(t, 1, fetcher.totalCalls())

	// Thursday 09:00 ET: window open, fetch proceeds.
	thursdayLate := time.Date(2026, time.January, 8, 9, 0, 0, 0, eastern)
	result, err = s.Execute(ctx, domain.Weekly, thursdayLate, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRefreshed, result.Outcome)
	assert.Equal(t, 2, fetcher.totalCalls())

	entry, err := c.Read(ctx, domain.Weekly)
	require.NoError(t, err)
	assert.Equal(t, thursdayLate.Unix(), entry.FetchedAt.Unix())
}

func TestExecuteFullFailureServesFallback(t *testing.T) {
	fetcher := newFakeFetcher()
	s, c := newTestScheduler(t, dailyRegistry(t, "DGS10"), fetcher)
	ctx := context.Background()

	_, err := s.Execute(ctx, domain.Daily, testNow, false)
	require.NoError(t, err)

	// Upstream goes down.
	fetcher.failures["DGS10"] = &providers.FetchError{
		Kind:       providers.Unavailable,
		Source:     "fred",
		ProviderID: "DGS10",
	}

	later := testNow.Add(8 * time.Hour)
	result, err := s.Execute(ctx, domain.Daily, later, false)
	require.NoError(t, err, "provider failure is not a run error")
	assert.Equal(t, OutcomeSkippedFallback, result.Outcome)
	assert.Contains(t, result.Payload, "DGS10", "stale payload is still served")
	require.Len(t, result.SeriesErrors, 1)
	assert.Equal(t, "unavailable", result.SeriesErrors[0].Kind)

	entry, err := c.Read(ctx, domain.Daily)
	require.NoError(t, err)
	assert.True(t, entry.Fallback, "tier is marked as serving stale data")
	assert.Equal(t, testNow.Unix(), entry.FetchedAt.Unix(), "original fetch timestamp is preserved")
}

func TestExecuteFullFailureNoPriorData(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.failures["DGS10"] = &providers.FetchError{
		Kind:       providers.Unavailable,
		Source:     "fred",
		ProviderID: "DGS10",
	}
	s, c := newTestScheduler(t, dailyRegistry(t, "DGS10"), fetcher)
	ctx := context.Background()

	result, err := s.Execute(ctx, domain.Daily, testNow, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Nil(t, result.Payload)
	require.Len(t, result.SeriesErrors, 1)

	// Nothing was written.
	entry, err := c.Read(ctx, domain.Daily)
	require.NoError(t, err)
	assert.True(t, entry.Empty())
}

func TestExecutePartialFailureCarriesPriorValues(t *testing.T) {
	fetcher := newFakeFetcher()
	s, c := newTestScheduler(t, dailyRegistry(t, "DGS10", "DGS2"), fetcher)
	ctx := context.Background()

	_, err := s.Execute(ctx, domain.Daily, testNow, false)
	require.NoError(t, err)

	// Only one of the two providers breaks.
	fetcher.failures["DGS2"] = &providers.FetchError{
		Kind:       providers.RateLimited,
		Source:     "fred",
		ProviderID: "DGS2",
	}

	later := testNow.Add(8 * time.Hour)
	result, err := s.Execute(ctx, domain.Daily, later, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRefreshed, result.Outcome)
	assert.Equal(t, 1, result.SeriesFetched)
	require.Len(t, result.SeriesErrors, 1)
	assert.Equal(t, "DGS2", result.SeriesErrors[0].Series)
	assert.Equal(t, "rate_limited", result.SeriesErrors[0].Kind)

	entry, err := c.Read(ctx, domain.Daily)
	require.NoError(t, err)
	// The failed series keeps its previous values in the stored payload.
	assert.Contains(t, entry.Payload, "DGS2")
	assert.Contains(t, entry.Payload, "DGS10")
	assert.False(t, entry.Fallback, "a partially successful fetch is not a fallback")
	assert.Equal(t, later.Unix(), entry.FetchedAt.Unix())
}

func TestExecuteEmptyTier(t *testing.T) {
	fetcher := newFakeFetcher()
	s, _ := newTestScheduler(t, registry.New(), fetcher)

	result, err := s.Execute(context.Background(), domain.Daily, testNow, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedFresh, result.Outcome)
	assert.Zero(t, fetcher.totalCalls())
}

func TestShouldRefresh(t *testing.T) {
	fetcher := newFakeFetcher()
	s, c := newTestScheduler(t, dailyRegistry(t, "DGS10"), fetcher)
	ctx := context.Background()

	// Never fetched.
	needed, err := s.ShouldRefresh(ctx, domain.Daily, testNow)
	require.NoError(t, err)
	assert.True(t, needed)

	require.NoError(t, c.Write(ctx, domain.Daily, domain.Payload{"DGS10": {Name: "DGS10"}}, testNow, false))

	// Within TTL.
	needed, err = s.ShouldRefresh(ctx, domain.Daily, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, needed)

	// At exactly the TTL boundary the entry counts as stale.
	needed, err = s.ShouldRefresh(ctx, domain.Daily, testNow.Add(sla.TTLDaily))
	require.NoError(t, err)
	assert.True(t, needed)
}

func TestExecuteConcurrencyBound(t *testing.T) {
	// Track the maximum number of in-flight fetches.
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0

	fetcher := fetchFunc(func(ctx context.Context, desc registry.Descriptor) ([]domain.Observation, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return []domain.Observation{{Date: testNow, Value: 1}}, nil
	})

	s, _ := newTestScheduler(t, dailyRegistry(t, "A", "B", "C", "D", "E", "F"), fetcher)
	s.SetConcurrency(2)

	_, err := s.Execute(context.Background(), domain.Daily, testNow, false)
	require.NoError(t, err)
	assert.LessOrEqual(t, maxInFlight, 2)
}

// fetchFunc adapts a function to the SourceFetcher interface.
type fetchFunc func(ctx context.Context, desc registry.Descriptor) ([]domain.Observation, error)

func (f fetchFunc) Fetch(ctx context.Context, desc registry.Descriptor) ([]domain.Observation, error) {
	return f(ctx, desc)
}
