// Package cboe fetches volatility index history from the CBOE CSV endpoints.
package cboe

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mstavrou/macrodash/internal/domain"
	"github.com/mstavrou/macrodash/internal/providers"
)

// DefaultBaseURL serves per-index history CSVs, e.g. VIX_History.csv.
const DefaultBaseURL = "https://cdn.cboe.com/api/global/us_indices/daily_prices"

// Client downloads and parses CBOE daily index CSVs.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a CBOE client with a 30 second request timeout.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("client", "cboe").Logger(),
	}
}

// NewClientWithBaseURL creates a client against a custom endpoint. Used by tests.
func NewClientWithBaseURL(baseURL string, log zerolog.Logger) *Client {
	c := NewClient(log)
	c.baseURL = baseURL
	return c
}

// Fetch downloads <ID>_History.csv and returns the CLOSE column by date.
// The CSV shape is: DATE,OPEN,HIGH,LOW,CLOSE with a header row.
func (c *Client) Fetch(ctx context.Context, providerID string) ([]domain.Observation, error) {
	reqURL := fmt.Sprintf("%s/%s_History.csv", c.baseURL, providerID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &providers.FetchError{Kind: providers.Unavailable, Source: "cboe", ProviderID: providerID, Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &providers.FetchError{Kind: providers.Unavailable, Source: "cboe", ProviderID: providerID, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &providers.FetchError{
			Kind: providers.RateLimited, Source: "cboe", ProviderID: providerID,
			Err: fmt.Errorf("endpoint returned status %d", resp.StatusCode),
		}
	case resp.StatusCode != http.StatusOK:
		return nil, &providers.FetchError{
			Kind: providers.Unavailable, Source: "cboe", ProviderID: providerID,
			Err: fmt.Errorf("endpoint returned status %d", resp.StatusCode),
		}
	}

	observations, err := parseHistory(resp.Body)
	if err != nil {
		return nil, &providers.FetchError{Kind: providers.Malformed, Source: "cboe", ProviderID: providerID, Err: err}
	}

	c.log.Debug().
		Str("index", providerID).
		Int("observations", len(observations)).
		Msg("Fetched history CSV")

	return observations, nil
}

func parseHistory(r io.Reader) ([]domain.Observation, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var observations []domain.Observation
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bad CSV row: %w", err)
		}
		if first {
			first = false
			if len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "DATE") {
				continue
			}
		}
		if len(record) < 5 {
			return nil, fmt.Errorf("CSV row has %d columns, want 5", len(record))
		}

		date, err := time.Parse("01/02/2006", strings.TrimSpace(record[0]))
		if err != nil {
			// Newer CBOE exports use ISO dates.
			date, err = time.Parse("2006-01-02", strings.TrimSpace(record[0]))
			if err != nil {
				return nil, fmt.Errorf("bad CSV date %q", record[0])
			}
		}
		closeValue, err := strconv.ParseFloat(strings.TrimSpace(record[4]), 64)
		if err != nil {
			return nil, fmt.Errorf("bad CSV close %q: %w", record[4], err)
		}

		observations = append(observations, domain.Observation{Date: date, Value: closeValue})
	}

	if len(observations) == 0 {
		return nil, fmt.Errorf("CSV contained no data rows")
	}
	return observations, nil
}
