package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mstavrou/macrodash/internal/cache"
	"github.com/mstavrou/macrodash/internal/domain"
	"github.com/mstavrou/macrodash/internal/providers"
	"github.com/mstavrou/macrodash/internal/registry"
	"github.com/mstavrou/macrodash/internal/sla"
)

// defaultConcurrency bounds parallel per-series fetches within one tier.
// Purely a throughput knob; the decision logic is correct fully sequential.
const defaultConcurrency = 4

// SourceFetcher resolves a descriptor to its observations. Implemented by
// providers.Mux; tests substitute fakes.
type SourceFetcher interface {
	Fetch(ctx context.Context, desc registry.Descriptor) ([]domain.Observation, error)
}

// Result is the terminal state of one tier execution.
type Result struct {
	Outcome       Outcome
	Payload       domain.Payload
	SeriesFetched int
	SeriesErrors  []SeriesError
}

// Scheduler is the per-tier decision engine: fetch now versus serve cached,
// with stale-fallback on full failure. Stateless across invocations except
// through the cache.
type Scheduler struct {
	registry    *registry.Registry
	policy      *sla.Policy
	cache       *cache.Cache
	fetcher     SourceFetcher
	concurrency int
	log         zerolog.Logger
}

// NewScheduler creates a scheduler over the given collaborators.
func NewScheduler(reg *registry.Registry, policy *sla.Policy, c *cache.Cache, fetcher SourceFetcher, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		registry:    reg,
		policy:      policy,
		cache:       c,
		fetcher:     fetcher,
		concurrency: defaultConcurrency,
		log:         log.With().Str("component", "refresh").Logger(),
	}
}

// SetConcurrency overrides the per-tier fetch parallelism. Values below 1
// mean sequential.
func (s *Scheduler) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	s.concurrency = n
}

// Registry returns the scheduler's series registry.
func (s *Scheduler) Registry() *registry.Registry {
	return s.registry
}

// ShouldRefresh decides whether a tier needs a provider fetch at the given
// instant. The check never touches the network: a never-fetched tier always
// needs a refresh; otherwise the entry must be past its TTL and inside the
// tier's publication window.
func (s *Scheduler) ShouldRefresh(ctx context.Context, freq domain.Frequency, now time.Time) (bool, error) {
	entry, err := s.cache.Read(ctx, freq)
	if err != nil {
		return false, err
	}
	if entry.FetchedAt.IsZero() {
		return true, nil
	}

	ttl, err := s.policy.TTL(freq)
	if err != nil {
		return false, err
	}

	age := now.Sub(entry.FetchedAt)
	return age >= ttl && s.policy.PublicationWindowOpen(freq, now), nil
}

// Execute runs the tier state machine once:
//
//	EVALUATING -> CACHE_FRESH                 (skipped_fresh)
//	           -> FETCHING -> FETCH_SUCCEEDED (refreshed)
//	                       -> FETCH_FAILED -> FALLBACK_AVAILABLE   (skipped_fallback)
//	                                       -> FALLBACK_UNAVAILABLE (failed)
//
// force skips the freshness evaluation; this is the nightly full-refresh
// escape hatch. Per-series failures are absorbed into the result; only
// configuration and cache storage errors are returned.
func (s *Scheduler) Execute(ctx context.Context, freq domain.Frequency, now time.Time, force bool) (Result, error) {
	if !force {
		needed, err := s.ShouldRefresh(ctx, freq, now)
		if err != nil {
			return Result{}, err
		}
		if !needed {
			entry, err := s.cache.Read(ctx, freq)
			if err != nil {
				return Result{}, err
			}
			s.log.Debug().Str("frequency", freq.String()).Msg("Cache fresh, skipping fetch")
			return Result{Outcome: OutcomeSkippedFresh, Payload: entry.Payload}, nil
		}
	}

	descriptors := s.registry.SeriesIn(freq)
	if len(descriptors) == 0 {
		entry, err := s.cache.Read(ctx, freq)
		if err != nil {
			return Result{}, err
		}
		s.log.Warn().Str("frequency", freq.String()).Msg("No series registered for tier")
		return Result{Outcome: OutcomeSkippedFresh, Payload: entry.Payload}, nil
	}

	fetched, seriesErrors := s.fetchTier(ctx, freq, descriptors)

	if len(fetched) == 0 {
		// Full failure: every series in the tier failed. Re-stamp the
		// prior payload as fallback rather than silently treating it as
		// fresh; the original fetch timestamp is preserved so age
		// reporting stays honest.
		existing, err := s.cache.Read(ctx, freq)
		if err != nil {
			return Result{}, err
		}
		if existing.Payload != nil {
			if err := s.cache.Write(ctx, freq, existing.Payload, existing.FetchedAt, true); err != nil {
				return Result{}, err
			}
			s.log.Warn().
				Str("frequency", freq.String()).
				Time("fetched_at", existing.FetchedAt).
				Int("series_failed", len(seriesErrors)).
				Msg("Fetch failed, serving stale cache")
			return Result{Outcome: OutcomeSkippedFallback, Payload: existing.Payload, SeriesErrors: seriesErrors}, nil
		}

		s.log.Error().
			Str("frequency", freq.String()).
			Int("series_failed", len(seriesErrors)).
			Msg("Fetch failed and no cached payload exists")
		return Result{Outcome: OutcomeFailed, SeriesErrors: seriesErrors}, nil
	}

	// Partial failures: keep the prior values for series that failed this
	// round, so one broken provider does not evict everyone else's data
	// from the merged view.
	payload := fetched
	if len(seriesErrors) > 0 {
		existing, err := s.cache.Read(ctx, freq)
		if err != nil {
			return Result{}, err
		}
		if existing.Payload != nil {
			carried := make(domain.Payload, len(existing.Payload))
			carried.Merge(existing.Payload)
			carried.Merge(fetched)
			payload = carried
		}
	}

	if err := s.cache.Write(ctx, freq, payload, now, false); err != nil {
		return Result{}, err
	}

	s.log.Info().
		Str("frequency", freq.String()).
		Int("series_fetched", len(fetched)).
		Int("series_failed", len(seriesErrors)).
		Msg("Tier refreshed")

	return Result{
		Outcome:       OutcomeRefreshed,
		Payload:       payload,
		SeriesFetched: len(fetched),
		SeriesErrors:  seriesErrors,
	}, nil
}

// fetchTier fetches every series in the tier, bounded by the concurrency
// limit, and splits the results into successes and per-series errors.
func (s *Scheduler) fetchTier(ctx context.Context, freq domain.Frequency, descriptors []registry.Descriptor) (domain.Payload, []SeriesError) {
	var mu sync.Mutex
	fetched := make(domain.Payload)
	var seriesErrors []SeriesError

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, desc := range descriptors {
		desc := desc
		g.Go(func() error {
			observations, err := s.fetcher.Fetch(gctx, desc)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				seriesErrors = append(seriesErrors, toSeriesError(freq, desc, err))
				return nil
			}
			series := domain.Series{
				Name:         desc.LogicalName,
				ProviderID:   desc.ProviderID,
				Source:       desc.Source,
				Frequency:    desc.Frequency,
				Observations: observations,
			}
			series.SortByDate()
			fetched[desc.LogicalName] = series
			return nil
		})
	}
	// Goroutines never return errors; failures are collected per series.
	_ = g.Wait()

	return fetched, seriesErrors
}

func toSeriesError(freq domain.Frequency, desc registry.Descriptor, err error) SeriesError {
	kind := "unknown"
	var fetchErr *providers.FetchError
	if errors.As(err, &fetchErr) {
		kind = fetchErr.Kind.String()
	}
	return SeriesError{
		Frequency: freq,
		Series:    desc.LogicalName,
		Kind:      kind,
		Message:   err.Error(),
	}
}
