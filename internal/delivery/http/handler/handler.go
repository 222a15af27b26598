package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/user/pricewatch/internal/delivery/http/request"
	"github.com/user/pricewatch/internal/delivery/http/response"
	"github.com/user/pricewatch/internal/entity"
	"github.com/user/pricewatch/internal/repository"
)

// Tracker is the part of the check cycle the API drives.
type Tracker interface {
	Trigger(ctx context.Context) bool
	Running() bool
	LastSummary() (entity.RunSummary, bool)
	LastProducts() []entity.TrackedProduct
}

type Handler struct {
	tracker Tracker
	history repository.CheckHistoryRepository
	// runCtx outlives the request that triggers a cycle.
	runCtx context.Context
	logger *zap.Logger
}

// NewHandler wires the API. history may be nil when no check history is kept.
func NewHandler(runCtx context.Context, tracker Tracker, history repository.CheckHistoryRepository, logger *zap.Logger) *Handler {
	return &Handler{
		tracker: tracker,
		history: history,
		runCtx:  runCtx,
		logger:  logger,
	}
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, response.HealthResponse{Status: "ok", Running: h.tracker.Running()})
}

func (h *Handler) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	products := h.tracker.LastProducts()
	resp := make([]response.ProductResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, response.NewProductResponse(p))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleLastRun(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.tracker.LastSummary()
	if !ok {
		h.writeJSONError(w, "No completed run yet", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, response.NewRunSummaryResponse(summary))
}

func (h *Handler) HandleTriggerRun(w http.ResponseWriter, r *http.Request) {
	if !h.tracker.Trigger(h.runCtx) {
		h.writeJSONError(w, "A check cycle is already running", http.StatusConflict)
		return
	}
	h.writeJSON(w, http.StatusAccepted, response.TriggerResponse{
		Status:  "accepted",
		Message: "Check cycle started",
	})
}

func (h *Handler) HandleProductHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeJSONError(w, "Check history is not enabled", http.StatusNotImplemented)
		return
	}

	q, err := request.ParseHistoryQuery(r)
	if err != nil {
		h.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	checks, err := h.history.FindByURL(r.Context(), q.URL, q.Limit)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		h.logger.Error("failed to load check history", zap.String("url", q.URL), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := make([]response.PriceCheckResponse, 0, len(checks))
	for _, c := range checks {
		resp = append(resp, response.NewPriceCheckResponse(c))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, response.ErrorResponse{Error: message})
}
