package domain

import (
	"sort"
	"time"
)

// Observation is a single dated value in a series.
type Observation struct {
	Date  time.Time `json:"date" msgpack:"date"`
	Value float64   `json:"value" msgpack:"value"`
}

// Series is the tabular dataset for one logical series: identity plus
// date-ordered observations.
type Series struct {
	Name         string        `json:"name" msgpack:"name"`
	ProviderID   string        `json:"provider_id" msgpack:"provider_id"`
	Source       string        `json:"source" msgpack:"source"`
	Frequency    Frequency     `json:"frequency" msgpack:"frequency"`
	Observations []Observation `json:"observations" msgpack:"observations"`
}

// Latest returns the most recent observation, or false if the series is empty.
func (s Series) Latest() (Observation, bool) {
	if len(s.Observations) == 0 {
		return Observation{}, false
	}
	return s.Observations[len(s.Observations)-1], true
}

// Values returns the observation values in date order.
// Used by the indicator calculations, which operate on plain float slices.
func (s Series) Values() []float64 {
	vals := make([]float64, len(s.Observations))
	for i, obs := range s.Observations {
		vals[i] = obs.Value
	}
	return vals
}

// SortByDate orders observations ascending by date in place.
func (s Series) SortByDate() {
	sort.Slice(s.Observations, func(i, j int) bool {
		return s.Observations[i].Date.Before(s.Observations[j].Date)
	})
}

// Payload is the dataset a cache entry holds for one tier: every series in
// that tier, keyed by logical name. Keying by name makes the merged view a
// plain union with no duplicate series.
type Payload map[string]Series

// Merge copies all series from other into p. Later sources win on name
// collision, which cannot happen between tiers (a logical name maps to
// exactly one tier).
func (p Payload) Merge(other Payload) {
	for name, series := range other {
		p[name] = series
	}
}

// Names returns the logical series names in the payload, sorted.
func (p Payload) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
