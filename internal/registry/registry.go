// Package registry is the declarative source of truth mapping logical series
// to provider identifiers and update-frequency tiers. It is populated once at
// startup (built-in catalog or YAML file) and read-only during refresh runs.
package registry

import (
	"github.com/mstavrou/macrodash/internal/domain"
)

// Descriptor maps one logical series to its provider and tier.
type Descriptor struct {
	LogicalName string           `yaml:"name"`
	ProviderID  string           `yaml:"provider_id"`
	Source      string           `yaml:"source"`
	Frequency   domain.Frequency `yaml:"frequency"`
}

// Registry holds the registered descriptors keyed by logical name.
type Registry struct {
	series map[string]Descriptor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{series: make(map[string]Descriptor)}
}

// Register adds or overwrites a descriptor by logical name.
// Returns a ConfigurationError if the descriptor is malformed or its
// frequency tier is not recognized.
func (r *Registry) Register(d Descriptor) error {
	if d.LogicalName == "" {
		return &domain.ConfigurationError{Field: "name", Reason: "logical name is required"}
	}
	if d.ProviderID == "" {
		return &domain.ConfigurationError{Field: "provider_id", Value: d.LogicalName, Reason: "provider id is required"}
	}
	if !d.Frequency.Valid() {
		return &domain.ConfigurationError{Field: "frequency", Value: string(d.Frequency), Reason: "unknown frequency tier"}
	}
	if d.Source == "" {
		d.Source = "fred"
	}
	r.series[d.LogicalName] = d
	return nil
}

// SeriesIn returns the descriptors registered for a tier. The slice is a
// copy, so callers can range over it repeatedly or mutate it freely.
// Empty if no series are registered for the tier.
func (r *Registry) SeriesIn(freq domain.Frequency) []Descriptor {
	var out []Descriptor
	for _, d := range r.series {
		if d.Frequency == freq {
			out = append(out, d)
		}
	}
	return out
}

// Frequencies returns the distinct tiers that currently have at least one
// registered series, in canonical tier order.
func (r *Registry) Frequencies() []domain.Frequency {
	populated := make(map[domain.Frequency]bool)
	for _, d := range r.series {
		populated[d.Frequency] = true
	}

	var out []domain.Frequency
	for _, f := range domain.Frequencies {
		if populated[f] {
			out = append(out, f)
		}
	}
	return out
}

// Len returns the number of registered series.
func (r *Registry) Len() int {
	return len(r.series)
}

// Lookup returns the descriptor for a logical name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.series[name]
	return d, ok
}
