package cboe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstavrou/macrodash/internal/providers"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/VIX_History.csv", r.URL.Path)
		w.Write([]byte("DATE,OPEN,HIGH,LOW,CLOSE\n01/02/2026,14.50,15.20,14.10,14.85\n01/05/2026,14.90,16.00,14.80,15.75\n"))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, zerolog.Nop())

	obs, err := c.Fetch(context.Background(), "VIX")
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, 14.85, obs[0].Value)
	assert.Equal(t, "2026-01-02", obs[0].Date.Format("2006-01-02"))
	assert.Equal(t, 15.75, obs[1].Value)
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, zerolog.Nop())

	_, err := c.Fetch(context.Background(), "VIX")
	var fetchErr *providers.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, providers.Unavailable, fetchErr.Kind)
}

func TestParseHistoryISODates(t *testing.T) {
	csv := "DATE,OPEN,HIGH,LOW,CLOSE\n2026-01-02,14.50,15.20,14.10,14.85\n"

	obs, err := parseHistory(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, "2026-01-02", obs[0].Date.Format("2006-01-02"))
}

func TestParseHistoryEmpty(t *testing.T) {
	_, err := parseHistory(strings.NewReader("DATE,OPEN,HIGH,LOW,CLOSE\n"))
	require.Error(t, err)
}

func TestParseHistoryBadClose(t *testing.T) {
	_, err := parseHistory(strings.NewReader("DATE,OPEN,HIGH,LOW,CLOSE\n01/02/2026,1,2,3,oops\n"))
	require.Error(t, err)
}

func TestFetchMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("DATE,OPEN\n01/02/2026,14.50\n"))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, zerolog.Nop())

	_, err := c.Fetch(context.Background(), "VIX")
	var fetchErr *providers.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, providers.Malformed, fetchErr.Kind)
}
