// Package refresh decides, per frequency tier, whether to re-fetch from the
// providers or serve from cache, applies the stale-fallback policy on
// failure, and drives full passes across all tiers.
package refresh

import (
	"time"

	"github.com/mstavrou/macrodash/internal/domain"
)

// Outcome is the terminal state of one tier's refresh decision.
type Outcome int

const (
	// OutcomeRefreshed means the tier was fetched and the cache updated.
	OutcomeRefreshed Outcome = iota
	// OutcomeSkippedFresh means the cached entry was within TTL; no
	// provider call was made.
	OutcomeSkippedFresh
	// OutcomeSkippedFallback means the fetch failed entirely but a prior
	// payload exists and was re-stamped as fallback.
	OutcomeSkippedFallback
	// OutcomeFailed means the fetch failed and no prior payload exists.
	OutcomeFailed
)

// String returns a human-readable name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeRefreshed:
		return "refreshed"
	case OutcomeSkippedFresh:
		return "skipped_fresh"
	case OutcomeSkippedFallback:
		return "skipped_fallback"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SeriesError records one failed series fetch. Kept in the report even when
// the tier as a whole succeeded, so operators can see which providers are
// degraded.
type SeriesError struct {
	Frequency domain.Frequency `json:"frequency"`
	Series    string           `json:"series"`
	Kind      string           `json:"kind"`
	Message   string           `json:"message"`
}

// Report summarizes one end-to-end refresh pass. Created fresh per run,
// immutable once returned, not persisted unless the caller logs it.
type Report struct {
	RunID              string                      `json:"run_id"`
	StartedAt          time.Time                   `json:"started_at"`
	FinishedAt         time.Time                   `json:"finished_at"`
	Forced             bool                        `json:"forced"`
	TierResults        map[domain.Frequency]Outcome `json:"tier_results"`
	TotalSeriesFetched int                         `json:"total_series_fetched"`
	Errors             []SeriesError               `json:"errors,omitempty"`
}

// FailedTiers returns the tiers that ended in OutcomeFailed.
func (r *Report) FailedTiers() []domain.Frequency {
	var out []domain.Frequency
	for _, f := range domain.Frequencies {
		if outcome, ran := r.TierResults[f]; ran && outcome == OutcomeFailed {
			out = append(out, f)
		}
	}
	return out
}

// HasFailures reports whether any tier failed outright.
func (r *Report) HasFailures() bool {
	for _, outcome := range r.TierResults {
		if outcome == OutcomeFailed {
			return true
		}
	}
	return false
}
