package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const maxTopTerms = 10

type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

type statsResponse struct {
	CollectingSince time.Time `json:"collecting_since"`
	AggregatedStats
}

// Stats serves the aggregated related-query statistics. The optional top
// parameter (1-10) trims the keyword and empty-result lists. Until the
// first event arrives it answers 503.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	top := maxTopTerms
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxTopTerms {
			h.writeError(w, http.StatusBadRequest, "top must be an integer between 1 and 10")
			return
		}
		top = n
	}

	stats := h.aggregator.Stats()
	if stats.TotalQueries == 0 {
		h.writeError(w, http.StatusServiceUnavailable, "no analytics events received yet")
		return
	}
	if len(stats.TopKeywords) > top {
		stats.TopKeywords = stats.TopKeywords[:top]
	}
	if len(stats.EmptyResultItems) > top {
		stats.EmptyResultItems = stats.EmptyResultItems[:top]
	}
	h.writeJSON(w, http.StatusOK, statsResponse{
		CollectingSince: h.aggregator.StartedAt().UTC(),
		AggregatedStats: stats,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
