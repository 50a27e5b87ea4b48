package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/mstavrou/macrodash/internal/di"
	"github.com/mstavrou/macrodash/internal/domain"
	"github.com/mstavrou/macrodash/internal/indicators"
)

const defaultIndicatorWindow = 20

// Handlers serves the series, cache and refresh endpoints.
type Handlers struct {
	container *di.Container
	log       zerolog.Logger
}

// NewHandlers creates the API handlers.
func NewHandlers(container *di.Container, log zerolog.Logger) *Handlers {
	return &Handlers{
		container: container,
		log:       log.With().Str("component", "handlers").Logger(),
	}
}

// HandleHealth handles health check requests
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "macrodash",
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleListSeries returns the catalog with per-series cache presence.
func (h *Handlers) HandleListSeries(w http.ResponseWriter, r *http.Request) {
	view, err := h.container.Cache.MergedView(r.Context(), domain.Frequencies...)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to read cache")
		return
	}

	type seriesInfo struct {
		Name       string           `json:"name"`
		ProviderID string           `json:"provider_id"`
		Source     string           `json:"source"`
		Frequency  domain.Frequency `json:"frequency"`
		Cached     bool             `json:"cached"`
		LastDate   string           `json:"last_date,omitempty"`
	}

	var out []seriesInfo
	for _, freq := range h.container.Registry.Frequencies() {
		for _, desc := range h.container.Registry.SeriesIn(freq) {
			info := seriesInfo{
				Name:       desc.LogicalName,
				ProviderID: desc.ProviderID,
				Source:     desc.Source,
				Frequency:  desc.Frequency,
			}
			if series, ok := view[desc.LogicalName]; ok && len(series.Observations) > 0 {
				info.Cached = true
				info.LastDate = series.Observations[len(series.Observations)-1].Date.Format("2006-01-02")
			}
			out = append(out, info)
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"series": out,
		"count":  len(out),
	})
}

// HandleGetSeries returns the cached observations for one series.
func (h *Handlers) HandleGetSeries(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	desc, ok := h.container.Registry.Lookup(name)
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown series")
		return
	}

	entry, err := h.container.Cache.Read(r.Context(), desc.Frequency)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to read cache")
		return
	}

	series, ok := entry.Payload[name]
	if !ok {
		h.writeError(w, http.StatusNotFound, "series not yet cached")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":         series.Name,
		"provider_id":  series.ProviderID,
		"source":       series.Source,
		"frequency":    series.Frequency,
		"fetched_at":   entry.FetchedAt,
		"fallback":     entry.Fallback,
		"observations": series.Observations,
	})
}

// HandleSeriesIndicators computes technical indicators over the cached
// values of one series. The window defaults to 20 observations.
func (h *Handlers) HandleSeriesIndicators(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	window := defaultIndicatorWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 2 {
			h.writeError(w, http.StatusBadRequest, "invalid window")
			return
		}
		window = parsed
	}

	desc, ok := h.container.Registry.Lookup(name)
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown series")
		return
	}

	entry, err := h.container.Cache.Read(r.Context(), desc.Frequency)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to read cache")
		return
	}

	series, ok := entry.Payload[name]
	if !ok {
		h.writeError(w, http.StatusNotFound, "series not yet cached")
		return
	}

	summary := indicators.Compute(series.Values(), window)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":         name,
		"window":       window,
		"observations": len(series.Observations),
		"indicators":   summary,
	})
}

// HandleCacheStatus reports per-tier cache state: age, freshness
// against the TTL, and whether the tier holds fallback data.
func (h *Handlers) HandleCacheStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	type tierStatus struct {
		Frequency  domain.Frequency `json:"frequency"`
		Populated  bool             `json:"populated"`
		Series     int              `json:"series"`
		FetchedAt  *time.Time       `json:"fetched_at,omitempty"`
		AgeSeconds float64          `json:"age_seconds"`
		TTLSeconds float64          `json:"ttl_seconds"`
		Fresh      bool             `json:"fresh"`
		Fallback   bool             `json:"fallback"`
	}

	var tiers []tierStatus
	for _, freq := range domain.Frequencies {
		entry, err := h.container.Cache.Read(r.Context(), freq)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, "failed to read cache")
			return
		}

		ttl, err := h.container.Policy.TTL(freq)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, "unknown frequency tier")
			return
		}

		status := tierStatus{
			Frequency:  freq,
			TTLSeconds: ttl.Seconds(),
		}
		if !entry.Empty() {
			age := now.Sub(entry.FetchedAt)
			fetchedAt := entry.FetchedAt
			status.Populated = true
			status.Series = len(entry.Payload)
			status.FetchedAt = &fetchedAt
			status.AgeSeconds = age.Seconds()
			status.Fresh = age < ttl
			status.Fallback = entry.Fallback
			h.container.Metrics.ObserveCacheAge(freq, age.Seconds())
		}
		tiers = append(tiers, status)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"tiers": tiers})
}

// HandleTriggerRefresh runs a refresh pass on demand.
// Body: {"frequencies": ["daily"], "force": true} - both fields optional.
func (h *Handlers) HandleTriggerRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Frequencies []string `json:"frequencies"`
		Force       bool     `json:"force"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	var freqs []domain.Frequency
	for _, raw := range req.Frequencies {
		freq, err := domain.ParseFrequency(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "unknown frequency "+raw)
			return
		}
		freqs = append(freqs, freq)
	}

	report, err := h.container.Runner.Run(r.Context(), freqs, req.Force, time.Now())
	if err != nil {
		h.log.Error().Err(err).Msg("Manual refresh failed")
		h.writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}

	status := http.StatusOK
	if report.HasFailures() {
		status = http.StatusMultiStatus
	}
	h.writeJSON(w, status, report)
}

// HandleClearTier drops one frequency tier from the cache.
func (h *Handlers) HandleClearTier(w http.ResponseWriter, r *http.Request) {
	freq, err := domain.ParseFrequency(chi.URLParam(r, "frequency"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "unknown frequency")
		return
	}

	if err := h.container.Cache.Clear(r.Context(), freq); err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to clear tier")
		return
	}

	h.log.Info().Str("frequency", string(freq)).Msg("Cache tier cleared")
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "frequency": string(freq)})
}

// HandleListBackups lists cache backups stored in the bucket.
func (h *Handlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.container.Backup == nil {
		h.writeError(w, http.StatusNotImplemented, "backups not configured")
		return
	}

	backups, err := h.container.Backup.ListBackups(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		h.writeError(w, http.StatusBadGateway, "failed to list backups")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"backups": backups,
		"count":   len(backups),
	})
}

// writeJSON writes a JSON response
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, h.log, status, data)
}

func writeJSON(w http.ResponseWriter, log zerolog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
