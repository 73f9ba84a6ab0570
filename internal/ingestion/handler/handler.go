package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/related-content/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/related-content/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/related-content/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/logger"
)

const maxRequestBytes = 2 << 20

// Saver stores items; *publisher.Publisher implements it.
type Saver interface {
	Save(ctx context.Context, id int64, req *ingestion.SaveItemRequest) (*ingestion.SaveItemResponse, error)
}

type Handler struct {
	saver  Saver
	logger *slog.Logger
}

func New(saver Saver) *Handler {
	return &Handler{
		saver:  saver,
		logger: slog.Default().With("component", "ingestion-handler"),
	}
}

// Routes registers the write API on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/items", h.Create)
	mux.HandleFunc("PUT /api/v1/items/{id}", h.Update)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, 0, http.StatusCreated)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		h.writeError(w, http.StatusBadRequest, "item id must be a positive integer")
		return
	}
	h.save(w, r, id, http.StatusOK)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request, id int64, status int) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ingestion.SaveItemRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateSaveRequest(&req); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.saver.Save(ctx, id, &req)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("item save failed", "item_id", id, "error", err, "status_code", statusCode)
		h.writeError(w, statusCode, "item save failed")
		return
	}
	log.Info("item saved",
		"item_id", resp.ItemID,
		"action", resp.Action,
		"notified", resp.Notified,
	)
	h.writeJSON(w, status, resp)
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
