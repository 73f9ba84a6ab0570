// Package handler serves the related-items HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/related-content/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/related-content/internal/related/content"
	"github.com/Adithya-Monish-Kumar-K/related-content/internal/related/invalidation"
	"github.com/Adithya-Monish-Kumar-K/related-content/internal/related/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/related-content/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/tracing"
)

const defaultExplainTop = 10

// Planner answers related-items queries.
type Planner interface {
	Run(ctx context.Context, args query.QueryArgs, contextItemID int64) (*query.ResultSet, error)
	Explain(ctx context.Context, itemID int64, top int) (*query.Explanation, error)
	Stats() (hits, misses int64)
}

type Handler struct {
	planner   Planner
	cache     invalidation.Invalidator
	namespace string
	collector *analytics.Collector
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Handler. collector and m may be nil.
func New(planner Planner, cache invalidation.Invalidator, namespace string, collector *analytics.Collector, m *metrics.Metrics) *Handler {
	return &Handler{
		planner:   planner,
		cache:     cache,
		namespace: namespace,
		collector: collector,
		metrics:   m,
		logger:    slog.Default().With("component", "related-handler"),
	}
}

// Routes registers the API on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/items/{id}/related", h.Related)
	mux.HandleFunc("GET /api/v1/items/{id}/keywords", h.Keywords)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

type relatedResponse struct {
	ItemID     int64          `json:"item_id"`
	IDs        []int64        `json:"ids"`
	Items      []content.Item `json:"items,omitempty"`
	CacheHit   bool           `json:"cache_hit"`
	Keyword    string         `json:"keyword,omitempty"`
	CategoryID int64          `json:"category_id,omitempty"`
	TagID      int64          `json:"tag_id,omitempty"`
}

// Related answers GET /api/v1/items/{id}/related. The path item is the
// context item; a "p" query option overrides it.
func (h *Handler) Related(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.StartSpan(r.Context(), "related", middleware.GetRequestID(r.Context()))
	r = r.WithContext(ctx)
	log := logger.FromContext(ctx)
	defer func() {
		span.End()
		span.Log(ctx, log)
	}()

	itemID, err := pathID(r)
	if err != nil {
		h.fail(w, r, 0, "", start, err)
		return
	}
	args, err := query.ArgsFromValues(r.URL.Query())
	if err != nil {
		h.fail(w, r, itemID, "", start, err)
		return
	}

	rs, err := h.planner.Run(ctx, args, itemID)
	if err != nil {
		h.fail(w, r, itemID, string(args.Fields), start, err)
		return
	}

	resp := relatedResponse{
		ItemID:     itemID,
		IDs:        rs.IDs,
		CacheHit:   rs.CacheHit,
		Keyword:    rs.Keyword,
		CategoryID: rs.CategoryID,
		TagID:      rs.TagID,
	}
	if args.P != 0 {
		resp.ItemID = args.P
	}
	if rs.Records != nil {
		items, err := rs.Records.Load(ctx)
		if err != nil {
			h.fail(w, r, resp.ItemID, string(args.Fields), start, err)
			return
		}
		resp.Items = items
	}

	latency := time.Since(start)
	cacheStatus := "miss"
	if rs.CacheHit {
		cacheStatus = "hit"
	}
	outcome := cacheStatus
	if len(rs.IDs) == 0 {
		outcome = "empty"
	}
	if h.metrics != nil {
		h.metrics.RelatedQueriesTotal.WithLabelValues(outcome).Inc()
		h.metrics.RelatedLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
		h.metrics.RelatedResultsCount.Observe(float64(len(rs.IDs)))
		if rs.CacheHit {
			h.metrics.CacheHitsTotal.Inc()
		} else {
			h.metrics.CacheMissesTotal.Inc()
		}
	}
	if h.collector != nil {
		h.collector.Track(analytics.RelatedQueryEvent{
			Type:       analytics.EventRelatedQuery,
			ItemID:     resp.ItemID,
			Keyword:    rs.Keyword,
			CategoryID: rs.CategoryID,
			TagID:      rs.TagID,
			Fields:     string(args.Fields),
			Returned:   len(rs.IDs),
			CacheHit:   rs.CacheHit,
			LatencyMs:  latency.Milliseconds(),
			Timestamp:  time.Now().UTC(),
			RequestID:  middleware.GetRequestID(ctx),
		})
	}

	log.Info("related query served",
		"item_id", resp.ItemID,
		"returned", len(rs.IDs),
		"cache_hit", rs.CacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, resp)
}

// Keywords answers GET /api/v1/items/{id}/keywords with the density table
// the keyword was picked from.
func (h *Handler) Keywords(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	top := defaultExplainTop
	if s := r.URL.Query().Get("top"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "top must be an integer")
			return
		}
		top = n
	}
	exp, err := h.planner.Explain(r.Context(), itemID, top)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status == http.StatusInternalServerError {
			logger.FromContext(r.Context()).Error("keyword explain failed", "item_id", itemID, "error", err)
			h.writeError(w, status, "keyword extraction failed")
			return
		}
		h.writeError(w, status, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, exp)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	hits, misses := h.planner.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"namespace": h.namespace,
		"hits":      hits,
		"misses":    misses,
		"total":     total,
		"hit_rate":  fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	n, err := h.cache.Invalidate(r.Context(), h.namespace)
	if err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "namespace", h.namespace, "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	if h.metrics != nil {
		h.metrics.CacheInvalidations.WithLabelValues(invalidation.TriggerAPI).Inc()
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "invalidated",
		"deleted": n,
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, itemID int64, fields string, start time.Time, err error) {
	ctx := r.Context()
	status := apperrors.HTTPStatusCode(err)
	outcome := outcomeOf(err)
	if h.metrics != nil {
		h.metrics.RelatedQueriesTotal.WithLabelValues(outcome).Inc()
	}
	if h.collector != nil {
		h.collector.Track(analytics.RelatedQueryEvent{
			Type:      analytics.EventQueryFailed,
			ItemID:    itemID,
			Fields:    fields,
			Error:     outcome,
			LatencyMs: time.Since(start).Milliseconds(),
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}

	if status == http.StatusInternalServerError {
		logger.FromContext(ctx).Error("related query failed", "item_id", itemID, "error", err)
		h.writeError(w, status, "related query failed")
		return
	}
	logger.FromContext(ctx).Debug("related query rejected", "item_id", itemID, "status", status, "error", err)
	h.writeError(w, status, err.Error())
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrMissingReferenceItem), errors.Is(err, apperrors.ErrItemNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrNoPrimaryCategory):
		return "no_category"
	case errors.Is(err, apperrors.ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "item id %q must be a positive integer", raw)
	}
	return id, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
