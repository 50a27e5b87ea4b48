// Package yahoo fetches daily closes from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/mstavrou/macrodash/internal/domain"
	"github.com/mstavrou/macrodash/internal/providers"
)

// DefaultBaseURL is the public chart endpoint.
const DefaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// Client fetches daily close prices for a symbol.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewClient creates a Yahoo chart client with a 30 second request timeout.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

// NewClientWithBaseURL creates a client against a custom endpoint. Used by tests.
func NewClientWithBaseURL(baseURL string, log zerolog.Logger) *Client {
	c := NewClient(log)
	c.baseURL = baseURL
	return c
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch returns up to two years of daily closes for a symbol.
func (c *Client) Fetch(ctx context.Context, providerID string) ([]domain.Observation, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &providers.FetchError{Kind: providers.Unavailable, Source: "yahoo", ProviderID: providerID, Err: err}
	}

	reqURL := fmt.Sprintf("%s/%s?range=2y&interval=1d", c.baseURL, providerID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &providers.FetchError{Kind: providers.Unavailable, Source: "yahoo", ProviderID: providerID, Err: err}
	}
	// Yahoo rejects requests without a browser-like user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; macrodash/1.0)")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &providers.FetchError{Kind: providers.Unavailable, Source: "yahoo", ProviderID: providerID, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &providers.FetchError{
			Kind: providers.RateLimited, Source: "yahoo", ProviderID: providerID,
			Err: fmt.Errorf("API returned status %d", resp.StatusCode),
		}
	case resp.StatusCode != http.StatusOK:
		return nil, &providers.FetchError{
			Kind: providers.Unavailable, Source: "yahoo", ProviderID: providerID,
			Err: fmt.Errorf("API returned status %d", resp.StatusCode),
		}
	}

	var body chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &providers.FetchError{Kind: providers.Malformed, Source: "yahoo", ProviderID: providerID, Err: err}
	}
	if body.Chart.Error != nil {
		return nil, &providers.FetchError{
			Kind: providers.Malformed, Source: "yahoo", ProviderID: providerID,
			Err: fmt.Errorf("chart error %s: %s", body.Chart.Error.Code, body.Chart.Error.Description),
		}
	}
	if len(body.Chart.Result) == 0 || len(body.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, &providers.FetchError{
			Kind: providers.Malformed, Source: "yahoo", ProviderID: providerID,
			Err: fmt.Errorf("empty chart result"),
		}
	}

	result := body.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	if len(result.Timestamp) != len(closes) {
		return nil, &providers.FetchError{
			Kind: providers.Malformed, Source: "yahoo", ProviderID: providerID,
			Err: fmt.Errorf("timestamp/close length mismatch: %d vs %d", len(result.Timestamp), len(closes)),
		}
	}

	observations := make([]domain.Observation, 0, len(closes))
	for i, ts := range result.Timestamp {
		if closes[i] == nil {
			continue
		}
		observations = append(observations, domain.Observation{
			Date:  time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Value: *closes[i],
		})
	}

	c.log.Debug().
		Str("symbol", providerID).
		Int("observations", len(observations)).
		Msg("Fetched chart")

	return observations, nil
}
