package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
)

// DefaultRecentLimit is how many orders the recent orders table shows.
const DefaultRecentLimit = 10

type Handler struct {
	history History
	limit   int
	logger  *slog.Logger
}

func NewHandler(history History, limit int, logger *slog.Logger) *Handler {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return &Handler{
		history: history,
		limit:   limit,
		logger:  logger,
	}
}

// HandleRecent lists the most recent orders first. The limit query
// parameter overrides the configured default.
func (h *Handler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit := h.limit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	recent, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	views := make([]View, 0, len(recent))
	for _, o := range recent {
		views = append(views, NewView(o))
	}

	h.logger.Info("orders listed", "count", len(views))
	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.history.FindByID(r.Context(), id)
	if errors.Is(err, ErrOrderNotFound) {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "order_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("order retrieved", "order_id", order.OrderID)
	h.writeJSON(w, http.StatusOK, NewView(order))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
