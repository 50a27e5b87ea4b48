// Package domain holds the shared types for the refresh subsystem:
// update-frequency tiers, observation payloads, and the configuration
// error class used at registration time.
package domain

import (
	"fmt"
	"strings"
)

// Frequency classifies how often a series is expected to update upstream.
type Frequency string

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
)

// Frequencies lists all recognized tiers in ascending TTL order.
var Frequencies = []Frequency{Daily, Weekly, Monthly, Quarterly}

// Valid reports whether the frequency is one of the recognized tiers.
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Quarterly:
		return true
	}
	return false
}

// String returns the lowercase tier name.
func (f Frequency) String() string {
	return string(f)
}

// ParseFrequency converts a user-supplied tier name (CLI flag, YAML field,
// URL parameter) into a Frequency.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", &ConfigurationError{Field: "frequency", Value: s, Reason: "unknown frequency tier"}
	}
	return f, nil
}

// ConfigurationError reports a malformed series descriptor or an unknown
// frequency tier. It is fatal at startup and must not be swallowed.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("configuration error: %s %q: %s", e.Field, e.Value, e.Reason)
}
