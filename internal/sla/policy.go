// Package sla maps update-frequency tiers to freshness rules: a cache
// time-to-live per tier, plus a publication calendar that prevents re-polling
// data that cannot have changed yet (weekly claims publish Thursday 08:30 ET).
package sla

import (
	"fmt"
	"time"

	"github.com/mstavrou/macrodash/internal/domain"
)

// Default TTLs per tier. Policy values, overridable via NewPolicy, but the
// ordering invariant Daily < Weekly < Monthly < Quarterly always holds.
const (
	TTLDaily     = 6 * time.Hour
	TTLWeekly    = 24 * time.Hour
	TTLMonthly   = 7 * 24 * time.Hour
	TTLQuarterly = 30 * 24 * time.Hour
)

// Weekly economic releases (initial claims) publish Thursdays 08:30 ET.
const (
	weeklyReleaseHour   = 8
	weeklyReleaseMinute = 30
)

// Policy is a pure mapping from tier to freshness rules. Deterministic given
// (tier, now); no internal mutable state.
type Policy struct {
	ttls    map[domain.Frequency]time.Duration
	eastern *time.Location
}

// Default returns the policy with standard TTLs.
func Default() *Policy {
	p, err := NewPolicy(map[domain.Frequency]time.Duration{
		domain.Daily:     TTLDaily,
		domain.Weekly:    TTLWeekly,
		domain.Monthly:   TTLMonthly,
		domain.Quarterly: TTLQuarterly,
	})
	if err != nil {
		panic(err)
	}
	return p
}

// NewPolicy builds a policy with custom TTLs. All four tiers must be present
// and the TTLs must be strictly increasing with tier coarseness; a policy
// where monthly data goes stale faster than daily data is a misconfiguration,
// not a tuning choice.
func NewPolicy(ttls map[domain.Frequency]time.Duration) (*Policy, error) {
	for _, f := range domain.Frequencies {
		if _, ok := ttls[f]; !ok {
			return nil, &domain.ConfigurationError{Field: "ttl", Value: f.String(), Reason: "missing TTL for tier"}
		}
	}
	for i := 1; i < len(domain.Frequencies); i++ {
		prev, cur := domain.Frequencies[i-1], domain.Frequencies[i]
		if ttls[prev] >= ttls[cur] {
			return nil, &domain.ConfigurationError{
				Field:  "ttl",
				Reason: fmt.Sprintf("%s TTL (%s) must be shorter than %s TTL (%s)", prev, ttls[prev], cur, ttls[cur]),
			}
		}
	}

	eastern, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("failed to load America/New_York timezone: %w", err)
	}

	copied := make(map[domain.Frequency]time.Duration, len(ttls))
	for f, ttl := range ttls {
		copied[f] = ttl
	}
	return &Policy{ttls: copied, eastern: eastern}, nil
}

// TTL returns the cache time-to-live for a tier.
func (p *Policy) TTL(freq domain.Frequency) (time.Duration, error) {
	ttl, ok := p.ttls[freq]
	if !ok {
		return 0, &domain.ConfigurationError{Field: "frequency", Value: freq.String(), Reason: "unknown frequency tier"}
	}
	return ttl, nil
}

// PublicationWindowOpen reports whether new data for a tier can exist at the
// given instant. For WEEKLY it is false only between Thursday midnight and the
// 08:30 ET release, so a stale entry is not re-fetched minutes before the new
// print lands. All other tiers are always eligible; being permissive here is
// safe (over-fetching wastes a call, under-fetching would serve stale data).
func (p *Policy) PublicationWindowOpen(freq domain.Frequency, now time.Time) bool {
	if freq != domain.Weekly {
		return true
	}

	et := now.In(p.eastern)
	if et.Weekday() != time.Thursday {
		return true
	}

	release := time.Date(et.Year(), et.Month(), et.Day(), weeklyReleaseHour, weeklyReleaseMinute, 0, 0, p.eastern)
	return !et.Before(release)
}
