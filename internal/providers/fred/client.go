// Package fred fetches series observations from the St. Louis Fed FRED API.
package fred

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/mstavrou/macrodash/internal/domain"
	"github.com/mstavrou/macrodash/internal/providers"
)

// FRED allows 120 requests/minute per key; stay well under it.
const requestsPerSecond = 1

// DefaultBaseURL is the production observations endpoint.
const DefaultBaseURL = "https://api.stlouisfed.org/fred"

// Client fetches observations from the FRED API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewClient creates a FRED client with a 30 second request timeout.
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 2),
		log:     log.With().Str("client", "fred").Logger(),
	}
}

// NewClientWithBaseURL creates a client against a custom endpoint. Used by tests.
func NewClientWithBaseURL(baseURL, apiKey string, log zerolog.Logger) *Client {
	c := NewClient(apiKey, log)
	c.baseURL = baseURL
	return c
}

type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// Fetch returns the observations for a FRED series id, most recent last.
func (c *Client) Fetch(ctx context.Context, providerID string) ([]domain.Observation, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &providers.FetchError{Kind: providers.Unavailable, Source: "fred", ProviderID: providerID, Err: err}
	}

	params := url.Values{}
	params.Set("series_id", providerID)
	params.Set("api_key", c.apiKey)
	params.Set("file_type", "json")
	params.Set("sort_order", "asc")
	params.Set("observation_start", time.Now().AddDate(-5, 0, 0).Format("2006-01-02"))

	reqURL := fmt.Sprintf("%s/series/observations?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &providers.FetchError{Kind: providers.Unavailable, Source: "fred", ProviderID: providerID, Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &providers.FetchError{Kind: providers.Unavailable, Source: "fred", ProviderID: providerID, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &providers.FetchError{
			Kind: providers.RateLimited, Source: "fred", ProviderID: providerID,
			Err: fmt.Errorf("API returned status %d", resp.StatusCode),
		}
	case resp.StatusCode != http.StatusOK:
		return nil, &providers.FetchError{
			Kind: providers.Unavailable, Source: "fred", ProviderID: providerID,
			Err: fmt.Errorf("API returned status %d", resp.StatusCode),
		}
	}

	var body observationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &providers.FetchError{Kind: providers.Malformed, Source: "fred", ProviderID: providerID, Err: err}
	}

	observations := make([]domain.Observation, 0, len(body.Observations))
	for _, raw := range body.Observations {
		// FRED marks missing values with "." - skip them.
		if raw.Value == "." || raw.Value == "" {
			continue
		}
		date, err := time.Parse("2006-01-02", raw.Date)
		if err != nil {
			return nil, &providers.FetchError{
				Kind: providers.Malformed, Source: "fred", ProviderID: providerID,
				Err: fmt.Errorf("bad observation date %q: %w", raw.Date, err),
			}
		}
		value, err := strconv.ParseFloat(raw.Value, 64)
		if err != nil {
			return nil, &providers.FetchError{
				Kind: providers.Malformed, Source: "fred", ProviderID: providerID,
				Err: fmt.Errorf("bad observation value %q: %w", raw.Value, err),
			}
		}
		observations = append(observations, domain.Observation{Date: date, Value: value})
	}

	c.log.Debug().
		Str("series", providerID).
		Int("observations", len(observations)).
		Msg("Fetched series")

	return observations, nil
}
