// Package main is the command line refresh tool. It runs a single
// refresh pass and exits, for use from cron or by hand. Per-tier
// failures are reported as warnings with a zero exit code; only
// configuration and storage errors are fatal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mstavrou/macrodash/internal/config"
	"github.com/mstavrou/macrodash/internal/di"
	"github.com/mstavrou/macrodash/internal/domain"
	"github.com/mstavrou/macrodash/pkg/logger"
)

func main() {
	var (
		frequencyFlag = flag.String("frequency", "", "comma-separated tiers to refresh (daily,weekly,monthly,quarterly); empty refreshes all")
		forceFlag     = flag.Bool("force", false, "refresh regardless of cache age")
		testFlag      = flag.Bool("test", false, "use the small test catalog (one series per tier)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	freqs, err := parseFrequencies(*frequencyFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid --frequency value")
	}

	container, err := di.Wire(context.Background(), cfg, log, di.Options{TestCatalog: *testFlag})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	report, err := container.Runner.Run(ctx, freqs, *forceFlag, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("Refresh run failed")
	}

	for freq, outcome := range report.TierResults {
		log.Info().
			Str("frequency", string(freq)).
			Str("outcome", outcome.String()).
			Msg("Tier result")
	}
	for _, seriesErr := range report.Errors {
		log.Warn().
			Str("frequency", string(seriesErr.Frequency)).
			Str("series", seriesErr.Series).
			Str("kind", seriesErr.Kind).
			Msg(seriesErr.Message)
	}

	if report.HasFailures() {
		log.Warn().
			Int("failed_tiers", len(report.FailedTiers())).
			Msg("Refresh finished with failures, previous data remains in place")
	} else {
		log.Info().
			Int("series_fetched", report.TotalSeriesFetched).
			Msg("Refresh finished")
	}
}

func parseFrequencies(raw string) ([]domain.Frequency, error) {
	if raw == "" {
		return nil, nil
	}

	var freqs []domain.Frequency
	for _, part := range strings.Split(raw, ",") {
		freq, err := domain.ParseFrequency(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		freqs = append(freqs, freq)
	}
	return freqs, nil
}
