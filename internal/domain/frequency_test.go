package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrequency(t *testing.T) {
	cases := []struct {
		input string
		want  Frequency
	}{
		{"daily", Daily},
		{"Weekly", Weekly},
		{" MONTHLY ", Monthly},
		{"quarterly", Quarterly},
	}
	for _, tc := range cases {
		got, err := ParseFrequency(tc.input)
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.want, got)
	}
}

func TestParseFrequencyUnknown(t *testing.T) {
	_, err := ParseFrequency("biweekly")
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "frequency", cfgErr.Field)
	assert.Equal(t, "biweekly", cfgErr.Value)
}

func TestFrequenciesOrder(t *testing.T) {
	assert.Equal(t, []Frequency{Daily, Weekly, Monthly, Quarterly}, Frequencies)
	for _, f := range Frequencies {
		assert.True(t, f.Valid())
	}
}

func TestSeriesLatest(t *testing.T) {
	s := Series{Name: "DGS10"}
	_, ok := s.Latest()
	assert.False(t, ok)

	s.Observations = []Observation{
		{Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Value: 4.1},
		{Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Value: 4.2},
	}
	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, 4.2, latest.Value)
}

func TestSeriesSortByDate(t *testing.T) {
	s := Series{Observations: []Observation{
		{Date: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), Value: 3},
		{Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Value: 1},
		{Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Value: 2},
	}}
	s.SortByDate()
	assert.Equal(t, []float64{1, 2, 3}, s.Values())
}

func TestPayloadMergeAndNames(t *testing.T) {
	p := Payload{"DGS10": {Name: "DGS10"}}
	p.Merge(Payload{"VIX": {Name: "VIX"}, "DGS10": {Name: "DGS10", Source: "fred"}})

	assert.Equal(t, []string{"DGS10", "VIX"}, p.Names())
	assert.Equal(t, "fred", p["DGS10"].Source)
}
