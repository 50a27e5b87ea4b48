// Package providers defines the fetch contract the refresh scheduler
// consumes, the per-series failure taxonomy, and the mux that routes a
// descriptor's source name to the right client.
package providers

import (
	"context"
	"fmt"

	"github.com/mstavrou/macrodash/internal/domain"
	"github.com/mstavrou/macrodash/internal/registry"
)

// Fetcher is the contract a provider client implements: given a provider
// identifier, return the series observations or a *FetchError describing
// why not. Fetches are bounded by the client's HTTP timeout so a hung
// provider cannot stall a refresh run.
type Fetcher interface {
	Fetch(ctx context.Context, providerID string) ([]domain.Observation, error)
}

// ErrorKind classifies per-series fetch failures. The scheduler's fallback
// logic treats all kinds identically; the run report keeps the distinction
// for operators.
type ErrorKind int

const (
	// RateLimited means the provider rejected the call for quota reasons.
	RateLimited ErrorKind = iota
	// Unavailable means the provider could not be reached or returned a
	// server error.
	Unavailable
	// Malformed means the provider responded but the payload could not be
	// parsed.
	Malformed
)

// String returns a human-readable name for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case RateLimited:
		return "rate_limited"
	case Unavailable:
		return "unavailable"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// FetchError is a per-series fetch failure. Recovered locally by the
// scheduler's fallback path; never propagated past it.
type FetchError struct {
	Kind       ErrorKind
	Source     string
	ProviderID string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s/%s: %s: %v", e.Source, e.ProviderID, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Mux routes series descriptors to provider clients by source name.
type Mux struct {
	fetchers map[string]Fetcher
}

// NewMux creates an empty mux.
func NewMux() *Mux {
	return &Mux{fetchers: make(map[string]Fetcher)}
}

// Register binds a source name ("fred", "yahoo", "cboe") to a client.
func (m *Mux) Register(source string, f Fetcher) {
	m.fetchers[source] = f
}

// Fetch resolves the descriptor's source and delegates to its client.
// An unregistered source is reported as Unavailable; to the scheduler it is
// indistinguishable from a provider outage.
func (m *Mux) Fetch(ctx context.Context, desc registry.Descriptor) ([]domain.Observation, error) {
	f, ok := m.fetchers[desc.Source]
	if !ok {
		return nil, &FetchError{
			Kind:       Unavailable,
			Source:     desc.Source,
			ProviderID: desc.ProviderID,
			Err:        fmt.Errorf("no client registered for source %q", desc.Source),
		}
	}
	return f.Fetch(ctx, desc.ProviderID)
}
