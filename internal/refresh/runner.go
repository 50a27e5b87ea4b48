package refresh

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mstavrou/macrodash/internal/domain"
)

// MetricsRecorder receives per-run observations. Implemented by the metrics
// package; a nil recorder disables recording.
type MetricsRecorder interface {
	TierOutcome(freq domain.Frequency, outcome Outcome)
	SeriesFetched(count int)
	RunCompleted(failedTiers int)
}

// Event is a progress notification emitted while a run executes. Fed to the
// WebSocket stream and any other observer.
type Event struct {
	RunID         string           `json:"run_id"`
	Stage         string           `json:"stage"` // tier_started, tier_finished, run_finished
	Frequency     domain.Frequency `json:"frequency,omitempty"`
	Outcome       string           `json:"outcome,omitempty"`
	SeriesFetched int              `json:"series_fetched,omitempty"`
	SeriesFailed  int              `json:"series_failed,omitempty"`
}

// Runner drives one complete pass over a set of tiers and produces a Report.
type Runner struct {
	scheduler *Scheduler
	metrics   MetricsRecorder
	observer  func(Event)
	log       zerolog.Logger
}

// NewRunner creates a runner. metrics and observer may be nil.
func NewRunner(scheduler *Scheduler, metrics MetricsRecorder, log zerolog.Logger) *Runner {
	return &Runner{
		scheduler: scheduler,
		metrics:   metrics,
		log:       log.With().Str("component", "refresh_runner").Logger(),
	}
}

// SetObserver registers a progress callback. Must be set before Run is
// called; the callback runs synchronously on the run goroutine.
func (r *Runner) SetObserver(fn func(Event)) {
	r.observer = fn
}

// Run executes one refresh pass. A nil or empty tier set means every
// populated tier. Tiers are independent: a failed tier is recorded in the
// report, never raised, so one dead provider does not abort the others.
// Only two things end a run early: cache storage failure (unrecoverable for
// the whole subsystem) and context cancellation, both checked at the
// between-tier checkpoint. The partially filled report is returned either way.
func (r *Runner) Run(ctx context.Context, freqs []domain.Frequency, force bool, now time.Time) (*Report, error) {
	if len(freqs) == 0 {
		freqs = r.scheduler.Registry().Frequencies()
	}

	report := &Report{
		RunID:       uuid.NewString(),
		StartedAt:   time.Now().UTC(),
		Forced:      force,
		TierResults: make(map[domain.Frequency]Outcome, len(freqs)),
	}

	r.log.Info().
		Str("run_id", report.RunID).
		Int("tiers", len(freqs)).
		Bool("force", force).
		Msg("Refresh run started")

	for _, freq := range freqs {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = time.Now().UTC()
			return report, err
		}

		r.emit(Event{RunID: report.RunID, Stage: "tier_started", Frequency: freq})

		result, err := r.scheduler.Execute(ctx, freq, now, force)
		if err != nil {
			// Configuration or cache storage failure: fatal for the run.
			report.FinishedAt = time.Now().UTC()
			return report, err
		}

		report.TierResults[freq] = result.Outcome
		report.Errors = append(report.Errors, result.SeriesErrors...)
		if result.Outcome == OutcomeRefreshed {
			report.TotalSeriesFetched += result.SeriesFetched
		}

		if r.metrics != nil {
			r.metrics.TierOutcome(freq, result.Outcome)
			if result.Outcome == OutcomeRefreshed {
				r.metrics.SeriesFetched(result.SeriesFetched)
			}
		}

		r.emit(Event{
			RunID:         report.RunID,
			Stage:         "tier_finished",
			Frequency:     freq,
			Outcome:       result.Outcome.String(),
			SeriesFetched: result.SeriesFetched,
			SeriesFailed:  len(result.SeriesErrors),
		})
	}

	report.FinishedAt = time.Now().UTC()

	failed := report.FailedTiers()
	if r.metrics != nil {
		r.metrics.RunCompleted(len(failed))
	}
	r.emit(Event{RunID: report.RunID, Stage: "run_finished"})

	logEvent := r.log.Info()
	if len(failed) > 0 {
		logEvent = r.log.Warn()
	}
	logEvent.
		Str("run_id", report.RunID).
		Int("series_fetched", report.TotalSeriesFetched).
		Int("tiers_failed", len(failed)).
		Int("series_errors", len(report.Errors)).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Refresh run finished")

	return report, nil
}

func (r *Runner) emit(event Event) {
	if r.observer != nil {
		r.observer(event)
	}
}
