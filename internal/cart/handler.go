package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/luvoir-pos/internal/customers"
	"github.com/joao-fontenele/luvoir-pos/internal/domain"
	"github.com/joao-fontenele/luvoir-pos/internal/orders"
)

// EventPublisher sends completed orders downstream. A nil publisher turns
// publishing off.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	engine    *Engine
	directory customers.Directory
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewHandler(engine *Engine, directory customers.Directory, publisher EventPublisher, logger *slog.Logger) *Handler {
	return &Handler{
		engine:    engine,
		directory: directory,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

type lineView struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	LineTotal   string `json:"line_total"`
}

type totalsView struct {
	Subtotal string `json:"subtotal"`
	Discount string `json:"discount"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
}

type cartView struct {
	OrderID   string     `json:"order_id"`
	SessionID string     `json:"session_id"`
	Lines     []lineView `json:"lines"`
	Totals    totalsView `json:"totals"`
}

func newCartView(s Snapshot) cartView {
	lines := make([]lineView, 0, len(s.Lines))
	for _, l := range s.Lines {
		lines = append(lines, lineView{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			UnitPrice:   l.UnitPrice.StringFixed(domain.MoneyPlaces),
			Quantity:    l.Quantity,
			LineTotal:   l.LineTotal().StringFixed(domain.MoneyPlaces),
		})
	}

	return cartView{
		OrderID:   s.OrderID,
		SessionID: s.SessionID,
		Lines:     lines,
		Totals: totalsView{
			Subtotal: s.Totals.Subtotal.StringFixed(domain.MoneyPlaces),
			Discount: s.Totals.Discount.StringFixed(domain.MoneyPlaces),
			Tax:      s.Totals.Tax.StringFixed(domain.MoneyPlaces),
			Total:    s.Totals.Total.StringFixed(domain.MoneyPlaces),
		},
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, newCartView(h.engine.Snapshot()))
}

type addLineRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  json.RawMessage `json:"quantity"`
}

// parseQuantity accepts a whole number, bare or quoted. Anything else is
// an invalid quantity rather than a malformed body.
func parseQuantity(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("%w: missing", ErrInvalidQuantity)
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidQuantity, raw)
	}
	q, err := strconv.Atoi(n.String())
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidQuantity, n)
	}
	return q, nil
}

func (h *Handler) HandleAddLine(w http.ResponseWriter, r *http.Request) {
	var req addLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	quantity, err := parseQuantity(req.Quantity)
	if err != nil {
		h.writeEngineError(w, err, "failed to add line", "product_id", req.ProductID)
		return
	}

	snapshot, err := h.engine.AddLine(r.Context(), req.ProductID, quantity)
	if err != nil {
		h.writeEngineError(w, err, "failed to add line", "product_id", req.ProductID, "quantity", quantity)
		return
	}

	h.logger.Info("line added",
		"order_id", snapshot.OrderID,
		"product_id", req.ProductID,
		"quantity", quantity,
	)
	h.writeJSON(w, http.StatusOK, newCartView(snapshot))
}

func (h *Handler) HandleRemoveLine(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")

	snapshot, err := h.engine.RemoveLine(r.Context(), productID)
	if err != nil {
		h.writeEngineError(w, err, "failed to remove line", "product_id", productID)
		return
	}

	h.logger.Info("line removed", "order_id", snapshot.OrderID, "product_id", productID)
	h.writeJSON(w, http.StatusOK, newCartView(snapshot))
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.engine.Clear(r.Context())
	if err != nil {
		h.writeEngineError(w, err, "failed to clear cart")
		return
	}

	h.logger.Info("cart cleared", "order_id", snapshot.OrderID)
	h.writeJSON(w, http.StatusOK, newCartView(snapshot))
}

// HandleReset abandons the cart like HandleClear and starts a new session.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.engine.Reset(r.Context())
	if err != nil {
		h.writeEngineError(w, err, "failed to reset cart")
		return
	}

	h.logger.Info("cart reset", "order_id", snapshot.OrderID, "session_id", snapshot.SessionID)
	h.writeJSON(w, http.StatusOK, newCartView(snapshot))
}

type checkoutRequest struct {
	CustomerID    string `json:"customer_id"`
	PaymentMethod string `json:"payment_method"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var customer domain.Customer
	if req.CustomerID != "" {
		found, err := h.directory.FindByID(r.Context(), req.CustomerID)
		switch {
		case errors.Is(err, customers.ErrCustomerNotFound):
			// An unknown id is the same as no selection.
		case err != nil:
			h.logger.Error("failed to resolve customer", "error", err, "customer_id", req.CustomerID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		default:
			customer = found
		}
	}

	order, err := h.engine.Finalize(r.Context(), customer.Ref(), req.PaymentMethod, h.now())
	if err != nil {
		h.writeEngineError(w, err, "failed to finalize order", "customer_id", req.CustomerID)
		return
	}

	h.publishCompleted(r.Context(), order, customer)

	h.logger.Info("order completed",
		"order_id", order.OrderID,
		"customer_id", order.CustomerID,
		"payment_method", order.PaymentMethod,
		"total", order.Total.StringFixed(domain.MoneyPlaces),
	)
	h.writeJSON(w, http.StatusCreated, orders.NewView(order))
}

// publishCompleted never fails the request: the sale is already recorded.
func (h *Handler) publishCompleted(ctx context.Context, order domain.Order, customer domain.Customer) {
	if h.publisher == nil {
		return
	}

	event := domain.OrderCompletedEvent{
		EventID:       uuid.New().String(),
		OrderID:       order.OrderID,
		CustomerID:    order.CustomerID,
		CustomerName:  order.CustomerName,
		CustomerEmail: customer.Email,
		PaymentMethod: order.PaymentMethod,
		Total:         order.Total.StringFixed(domain.MoneyPlaces),
		OrderDate:     order.OrderDate,
		Timestamp:     h.now().UTC(),
	}

	if err := h.publisher.Publish(ctx, order.OrderID, event); err != nil {
		h.logger.Error("failed to publish order completed event", "error", err, "order_id", order.OrderID)
		return
	}
	h.logger.Info("published order completed event", "order_id", order.OrderID, "event_id", event.EventID)
}

func (h *Handler) writeEngineError(w http.ResponseWriter, err error, msg string, args ...any) {
	switch {
	case errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrNoCustomerSelected),
		errors.Is(err, ErrNoPaymentMethodSelected),
		errors.Is(err, ErrEmptyCart):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrLineNotFound), errors.Is(err, ErrProductNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInsufficientStock):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error(msg, append([]any{"error", err}, args...)...)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
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
