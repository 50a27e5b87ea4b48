package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mstavrou/macrodash/internal/domain"
)

// catalogFile is the YAML shape of a series catalog file.
type catalogFile struct {
	Series []Descriptor `yaml:"series"`
}

// LoadFile builds a registry from a YAML catalog file.
//
//	series:
//	  - name: "10Y Treasury Yield"
//	    provider_id: DGS10
//	    source: fred
//	    frequency: daily
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read series catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse series catalog %s: %w", path, err)
	}

	r := New()
	for _, d := range file.Series {
		if err := r.Register(d); err != nil {
			return nil, fmt.Errorf("invalid catalog entry in %s: %w", path, err)
		}
	}
	return r, nil
}

// Default returns the built-in series catalog. Used when no catalog file is
// configured.
func Default() *Registry {
	r := New()
	for _, d := range defaultCatalog {
		// Built-in descriptors are well-formed; a failure here is a
		// programming error.
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

// TestCatalog returns a reduced catalog for smoke-test runs: one series per
// tier, all from FRED.
func TestCatalog() *Registry {
	r := New()
	for _, name := range []string{
		"10Y Treasury Yield",
		"Initial Jobless Claims",
		"Consumer Price Index",
		"Real GDP",
	} {
		for _, d := range defaultCatalog {
			if d.LogicalName == name {
				if err := r.Register(d); err != nil {
					panic(err)
				}
			}
		}
	}
	return r
}

var defaultCatalog = []Descriptor{
	// Daily market and rates series.
	{LogicalName: "10Y Treasury Yield", ProviderID: "DGS10", Source: "fred", Frequency: domain.Daily},
	{LogicalName: "2Y Treasury Yield", ProviderID: "DGS2", Source: "fred", Frequency: domain.Daily},
	{LogicalName: "10Y-2Y Spread", ProviderID: "T10Y2Y", Source: "fred", Frequency: domain.Daily},
	{LogicalName: "High Yield Spread", ProviderID: "BAMLH0A0HYM2", Source: "fred", Frequency: domain.Daily},
	{LogicalName: "SOFR", ProviderID: "SOFR", Source: "fred", Frequency: domain.Daily},
	{LogicalName: "S&P 500", ProviderID: "^GSPC", Source: "yahoo", Frequency: domain.Daily},
	{LogicalName: "Nasdaq Composite", ProviderID: "^IXIC", Source: "yahoo", Frequency: domain.Daily},
	{LogicalName: "US Dollar Index", ProviderID: "DX-Y.NYB", Source: "yahoo", Frequency: domain.Daily},
	{LogicalName: "WTI Crude", ProviderID: "CL=F", Source: "yahoo", Frequency: domain.Daily},
	{LogicalName: "Gold", ProviderID: "GC=F", Source: "yahoo", Frequency: domain.Daily},
	{LogicalName: "VIX", ProviderID: "VIX", Source: "cboe", Frequency: domain.Daily},
	{LogicalName: "VIX Term Structure", ProviderID: "VX", Source: "cboe", Frequency: domain.Daily},

	// Weekly releases (jobless claims publish Thursdays 8:30 ET).
	{LogicalName: "Initial Jobless Claims", ProviderID: "ICSA", Source: "fred", Frequency: domain.Weekly},
	{LogicalName: "Continued Claims", ProviderID: "CCSA", Source: "fred", Frequency: domain.Weekly},
	{LogicalName: "30Y Mortgage Rate", ProviderID: "MORTGAGE30US", Source: "fred", Frequency: domain.Weekly},

	// Monthly releases.
	{LogicalName: "Consumer Price Index", ProviderID: "CPIAUCSL", Source: "fred", Frequency: domain.Monthly},
	{LogicalName: "Core CPI", ProviderID: "CPILFESL", Source: "fred", Frequency: domain.Monthly},
	{LogicalName: "Unemployment Rate", ProviderID: "UNRATE", Source: "fred", Frequency: domain.Monthly},
	{LogicalName: "Nonfarm Payrolls", ProviderID: "PAYEMS", Source: "fred", Frequency: domain.Monthly},
	{LogicalName: "Industrial Production", ProviderID: "INDPRO", Source: "fred", Frequency: domain.Monthly},
	{LogicalName: "Retail Sales", ProviderID: "RSAFS", Source: "fred", Frequency: domain.Monthly},
	{LogicalName: "Housing Starts", ProviderID: "HOUST", Source: "fred", Frequency: domain.Monthly},
	{LogicalName: "Consumer Sentiment", ProviderID: "UMCSENT", Source: "fred", Frequency: domain.Monthly},

	// Quarterly releases.
	{LogicalName: "Real GDP", ProviderID: "GDPC1", Source: "fred", Frequency: domain.Quarterly},
	{LogicalName: "GDP Growth", ProviderID: "A191RL1Q225SBEA", Source: "fred", Frequency: domain.Quarterly},
	{LogicalName: "Corporate Profits", ProviderID: "CP", Source: "fred", Frequency: domain.Quarterly},
	{LogicalName: "Household Debt to GDP", ProviderID: "HDTGPDUSQ163N", Source: "fred", Frequency: domain.Quarterly},
}
