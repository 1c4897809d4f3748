// Package api is the inbound HTTP boundary: request decoding and validation,
// the cache-then-orchestrate composition of a search, and the mapping of
// internal failures to stable, user-safe responses.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/familyscout/familyscout/internal/api/anthropic"
	"github.com/familyscout/familyscout/internal/cache"
	"github.com/familyscout/familyscout/internal/domain"
	"github.com/familyscout/familyscout/internal/format"
	"github.com/familyscout/familyscout/internal/server"
)

// Searcher is the orchestrated model capability consumed by the handler.
type Searcher interface {
	SearchActivities(ctx context.Context, criteria domain.SearchCriteria) ([]domain.RawActivity, error)
}

// Handler serves the search API.
type Handler struct {
	searcher Searcher
	cache    *cache.Store[[]domain.FormattedActivity]
	logger   *slog.Logger
	started  time.Time

	// Concurrent requests with the same fingerprint share one in-flight
	// search instead of each paying for a model call.
	group singleflight.Group
}

// NewHandler creates a Handler. The cache store is injected; the handler
// never constructs process-wide state of its own.
func NewHandler(searcher Searcher, store *cache.Store[[]domain.FormattedActivity], logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		searcher: searcher,
		cache:    store,
		logger:   logger,
		started:  time.Now(),
	}
}

// SearchResponse is the success payload of POST /api/search.
type SearchResponse struct {
	Success    bool                       `json:"success"`
	Cached     bool                       `json:"cached"`
	Count      int                        `json:"count"`
	Activities []domain.FormattedActivity `json:"activities"`
}

// HandleSearch serves POST /api/search.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}

	if fieldErrors := ValidateSearchRequest(&req); len(fieldErrors) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "Validation failed",
			"errors": fieldErrors,
		})
		return
	}

	criteria := req.toCriteria()
	key := cache.Key(criteria)
	server.AddLogField(r.Context(), "city", criteria.City)

	if activities, ok := h.cache.Get(key); ok {
		h.logger.Info("cache hit", slog.String("city", criteria.City))
		writeSearchResponse(w, true, activities)
		return
	}

	result, err, shared := h.group.Do(key, func() (any, error) {
		raw, err := h.searcher.SearchActivities(r.Context(), criteria)
		if err != nil {
			return nil, err
		}
		activities := format.Activities(raw, criteria.City)
		h.cache.Set(key, activities)
		return activities, nil
	})
	if err != nil {
		server.AddError(r.Context(), err)
		h.writeSearchError(w, err)
		return
	}
	if shared {
		h.logger.Info("coalesced concurrent search", slog.String("city", criteria.City))
	}

	writeSearchResponse(w, false, result.([]domain.FormattedActivity))
}

// writeSearchError maps internal failures to response codes. Provider output
// is never echoed to the caller; it is already in the logs.
func (h *Handler) writeSearchError(w http.ResponseWriter, err error) {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		h.logger.Error("upstream failure",
			slog.Int("status", apiErr.StatusCode),
			slog.String("type", apiErr.Type),
		)
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":   "Failed to connect to AI service",
			"message": "Please try again in a moment",
		})
		return
	}

	var malformed *domain.MalformedJSONError
	var invalid *domain.InvalidActivityError
	switch {
	case errors.Is(err, domain.ErrNoTextContent),
		errors.Is(err, domain.ErrNoJSONFound),
		errors.Is(err, domain.ErrEmptyActivities),
		errors.As(err, &malformed),
		errors.As(err, &invalid):
		h.logger.Error("failed to process model response", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to process activity data",
			"message": "Please try again",
		})
	default:
		h.logger.Error("search failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to search activities",
			"message": "Please try again",
		})
	}
}

// HandleCacheStats serves GET /api/cache/stats. Observability only.
func (h *Handler) HandleCacheStats(w http.ResponseWriter, _ *http.Request) {
	stats := h.cache.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"size":       stats.Size,
		"ttlMinutes": stats.TTL.Minutes(),
	})
}

// HandleHealth serves GET /health.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Seconds(),
	})
}

func writeSearchResponse(w http.ResponseWriter, cached bool, activities []domain.FormattedActivity) {
	writeJSON(w, http.StatusOK, SearchResponse{
		Success:    true,
		Cached:     cached,
		Count:      len(activities),
		Activities: activities,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
