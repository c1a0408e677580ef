package customers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/luvoir-pos/internal/domain"
)

type Handler struct {
	directory Directory
	logger    *slog.Logger
}

func NewHandler(directory Directory, logger *slog.Logger) *Handler {
	return &Handler{
		directory: directory,
		logger:    logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	customers, err := h.directory.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list customers", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("customers listed", "count", len(customers))
	h.writeJSON(w, http.StatusOK, customers)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	customer, err := h.directory.FindByID(r.Context(), id)
	if errors.Is(err, ErrCustomerNotFound) {
		h.writeError(w, http.StatusNotFound, "customer not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get customer", "error", err, "customer_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, customer)
}

func (h *Handler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	var customer domain.Customer
	if err := json.NewDecoder(r.Body).Decode(&customer); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	customer.ID = r.PathValue("id")

	created, err := h.directory.Upsert(r.Context(), customer)
	if err != nil {
		if errors.Is(err, ErrInvalidCustomer) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to save customer", "error", err, "customer_id", customer.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}

	h.logger.Info("customer saved", "customer_id", customer.ID, "created", created)
	h.writeJSON(w, status, customer)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.directory.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			h.writeError(w, http.StatusNotFound, "customer not found")
			return
		}
		h.logger.Error("failed to delete customer", "error", err, "customer_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("customer deleted", "customer_id", id)
	w.WriteHeader(http.StatusNoContent)
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
