package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstavrou/macrodash/internal/domain"
)

func TestRegisterAndLookup(t *testing.T) {
	r := New()

	err := r.Register(Descriptor{
		LogicalName: "10Y Treasury Yield",
		ProviderID:  "DGS10",
		Source:      "fred",
		Frequency:   domain.Daily,
	})
	require.NoError(t, err)

	d, ok := r.Lookup("10Y Treasury Yield")
	require.True(t, ok)
	assert.Equal(t, "DGS10", d.ProviderID)
	assert.Equal(t, domain.Daily, d.Frequency)
}

func TestRegisterDefaultsSourceToFred(t *testing.T) {
	r := New()

	err := r.Register(Descriptor{
		LogicalName: "Unemployment Rate",
		ProviderID:  "UNRATE",
		Frequency:   domain.Monthly,
	})
	require.NoError(t, err)

	d, _ := r.Lookup("Unemployment Rate")
	assert.Equal(t, "fred", d.Source)
}

func TestRegisterValidation(t *testing.T) {
	r := New()

	cases := []struct {
		name string
		desc Descriptor
	}{
		{"missing name", Descriptor{ProviderID: "DGS10", Frequency: domain.Daily}},
		{"missing provider id", Descriptor{LogicalName: "X", Frequency: domain.Daily}},
		{"unknown frequency", Descriptor{LogicalName: "X", ProviderID: "Y", Frequency: "hourly"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := r.Register(tc.desc)
			require.Error(t, err)

			var cfgErr *domain.ConfigurationError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestSeriesInReturnsCopy(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Descriptor{LogicalName: "A", ProviderID: "A", Frequency: domain.Daily}))
	require.NoError(t, r.Register(Descriptor{LogicalName: "B", ProviderID: "B", Frequency: domain.Daily}))

	first := r.SeriesIn(domain.Daily)
	require.Len(t, first, 2)

	// Mutating the returned slice must not affect the registry.
	first[0].ProviderID = "mutated"
	second := r.SeriesIn(domain.Daily)
	for _, d := range second {
		assert.NotEqual(t, "mutated", d.ProviderID)
	}
}

func TestSeriesInEmptyTier(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Descriptor{LogicalName: "A", ProviderID: "A", Frequency: domain.Daily}))

	assert.Empty(t, r.SeriesIn(domain.Quarterly))
}

func TestFrequenciesCanonicalOrder(t *testing.T) {
	r := New()
	// Registered out of order on purpose.
	require.NoError(t, r.Register(Descriptor{LogicalName: "Q", ProviderID: "Q", Frequency: domain.Quarterly}))
	require.NoError(t, r.Register(Descriptor{LogicalName: "D", ProviderID: "D", Frequency: domain.Daily}))
	require.NoError(t, r.Register(Descriptor{LogicalName: "M", ProviderID: "M", Frequency: domain.Monthly}))

	assert.Equal(t, []domain.Frequency{domain.Daily, domain.Monthly, domain.Quarterly}, r.Frequencies())
}

func TestDefaultCatalog(t *testing.T) {
	r := Default()

	assert.Greater(t, r.Len(), 20)
	// Every tier is populated in the built-in catalog.
	assert.Equal(t, domain.Frequencies, r.Frequencies())

	// Spot-check the multi-provider entries.
	d, ok := r.Lookup("S&P 500")
	require.True(t, ok)
	assert.Equal(t, "yahoo", d.Source)

	d, ok = r.Lookup("VIX")
	require.True(t, ok)
	assert.Equal(t, "cboe", d.Source)
}

func TestTestCatalogOneSeriesPerTier(t *testing.T) {
	r := TestCatalog()

	assert.Equal(t, 4, r.Len())
	assert.Equal(t, domain.Frequencies, r.Frequencies())
	for _, freq := range domain.Frequencies {
		assert.Len(t, r.SeriesIn(freq), 1)
	}
}

func TestLoadFile(t *testing.T) {
	catalog := `
series:
  - name: "10Y Treasury Yield"
    provider_id: DGS10
    source: fred
    frequency: daily
  - name: "Real GDP"
    provider_id: GDPC1
    frequency: quarterly
`
	path := filepath.Join(t.TempDir(), "catalog.yml")
	require.NoError(t, os.WriteFile(path, []byte(catalog), 0644))

	r, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	d, ok := r.Lookup("Real GDP")
	require.True(t, ok)
	assert.Equal(t, "fred", d.Source) // defaulted
	assert.Equal(t, domain.Quarterly, d.Frequency)
}

func TestLoadFileInvalidEntry(t *testing.T) {
	catalog := `
series:
  - name: "Broken"
    provider_id: X
    frequency: hourly
`
	path := filepath.Join(t.TempDir(), "catalog.yml")
	require.NoError(t, os.WriteFile(path, []byte(catalog), 0644))

	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}
