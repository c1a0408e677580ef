// Package cart holds the order being built at the till and keeps it
// consistent with catalog stock.
//
// Every engine operation is one unit: it validates first, then changes the
// catalog, then the cart, all under the engine lock. The catalog call is the
// only step that can fail and it runs before the cart is touched.
package cart

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/luvoir-pos/internal/catalog"
	"github.com/joao-fontenele/luvoir-pos/internal/domain"
	"github.com/joao-fontenele/luvoir-pos/internal/orders"
	"github.com/joao-fontenele/luvoir-pos/internal/telemetry"
)

var tracer = otel.Tracer("cart/engine")

// DefaultTaxRate is the sales tax applied to the subtotal.
var DefaultTaxRate = decimal.RequireFromString("0.08")

// Snapshot is the state of the cart after an operation.
type Snapshot struct {
	OrderID   string
	SessionID string
	Lines     []domain.OrderLine
	Totals    domain.Totals
}

type Option func(*Engine)

func WithTaxRate(rate decimal.Decimal) Option {
	return func(e *Engine) {
		e.taxRate = rate
	}
}

func WithMetrics(m *telemetry.CartMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

type Engine struct {
	mu      sync.Mutex
	catalog catalog.Store
	history orders.History
	taxRate decimal.Decimal
	metrics *telemetry.CartMetrics

	orderID string
	session uuid.UUID
	lines   []domain.OrderLine
}

// NewEngine starts an empty session whose pending order id follows the last
// order in history.
func NewEngine(ctx context.Context, store catalog.Store, history orders.History, opts ...Option) (*Engine, error) {
	e := &Engine{
		catalog: store,
		history: history,
		taxRate: DefaultTaxRate,
	}
	for _, opt := range opts {
		opt(e)
	}

	lastID, err := history.LastID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read last order id: %w", err)
	}
	if err := e.beginSession(lastID); err != nil {
		return nil, err
	}

	return e, nil
}

// AddLine reserves quantity units of a product and adds them to the cart,
// merging into the existing line for that product if there is one.
func (e *Engine) AddLine(ctx context.Context, productID string, quantity int) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "cart.AddLine", trace.WithAttributes(
		attribute.String("pos.product.id", productID),
		attribute.Int("pos.quantity", quantity),
	))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	if quantity <= 0 {
		return Snapshot{}, fail(span, ErrInvalidQuantity)
	}

	product, err := e.catalog.FindByID(ctx, productID)
	if err != nil {
		return Snapshot{}, fail(span, err)
	}

	// Stock already excludes what this cart holds, so the request is checked
	// against it alone.
	if quantity > product.StockQuantity {
		return Snapshot{}, fail(span, ErrInsufficientStock)
	}

	if _, err := e.catalog.Reserve(ctx, productID, quantity); err != nil {
		return Snapshot{}, fail(span, fmt.Errorf("reserve stock: %w", err))
	}

	if i := e.indexOf(productID); i >= 0 {
		e.lines[i].Quantity += quantity
	} else {
		e.lines = append(e.lines, domain.OrderLine{
			OrderID:     e.orderID,
			ProductID:   product.ID,
			ProductName: product.Description,
			UnitPrice:   product.UnitPrice,
			Quantity:    quantity,
		})
	}

	e.metrics.UnitsReserved(ctx, quantity)
	return e.snapshot(), nil
}

// RemoveLine deletes a line and returns its whole quantity to stock.
func (e *Engine) RemoveLine(ctx context.Context, productID string) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "cart.RemoveLine", trace.WithAttributes(
		attribute.String("pos.product.id", productID),
	))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOf(productID)
	if i < 0 {
		return Snapshot{}, fail(span, ErrLineNotFound)
	}
	line := e.lines[i]

	if err := e.catalog.Release(ctx, domain.StockAdjustment{ProductID: line.ProductID, Quantity: line.Quantity}); err != nil {
		return Snapshot{}, fail(span, fmt.Errorf("release stock: %w", err))
	}

	e.lines = slices.Delete(e.lines, i, i+1)

	e.metrics.UnitsReleased(ctx, line.Quantity, telemetry.ReleaseReasonRemove)
	return e.snapshot(), nil
}

// Clear abandons the cart: every reservation goes back to stock. Clearing
// an empty cart is a no-op.
func (e *Engine) Clear(ctx context.Context) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "cart.Clear")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.releaseAll(ctx); err != nil {
		return Snapshot{}, fail(span, err)
	}
	return e.snapshot(), nil
}

// Reset clears the cart and starts a new session with a fresh pending order
// id.
func (e *Engine) Reset(ctx context.Context) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "cart.Reset")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	lastID, err := e.history.LastID(ctx)
	if err != nil {
		return Snapshot{}, fail(span, fmt.Errorf("read last order id: %w", err))
	}
	nextID, err := orders.NextOrderID(lastID)
	if err != nil {
		return Snapshot{}, fail(span, err)
	}

	if err := e.releaseAll(ctx); err != nil {
		return Snapshot{}, fail(span, err)
	}
	e.startSession(nextID)

	return e.snapshot(), nil
}

// Finalize records the cart as a completed order. The reserved stock is the
// sale: unlike Clear, nothing is returned to the catalog.
func (e *Engine) Finalize(ctx context.Context, customer domain.CustomerRef, paymentMethod string, orderDate time.Time) (domain.Order, error) {
	ctx, span := tracer.Start(ctx, "cart.Finalize", trace.WithAttributes(
		attribute.String("pos.customer.id", customer.ID),
		attribute.String("pos.payment_method", paymentMethod),
	))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	if strings.TrimSpace(customer.ID) == "" {
		return domain.Order{}, fail(span, ErrNoCustomerSelected)
	}
	if strings.TrimSpace(paymentMethod) == "" {
		return domain.Order{}, fail(span, ErrNoPaymentMethodSelected)
	}

	totals := e.totals()
	if len(e.lines) == 0 || !totals.Subtotal.IsPositive() {
		return domain.Order{}, fail(span, ErrEmptyCart)
	}

	lastID, err := e.history.LastID(ctx)
	if err != nil {
		return domain.Order{}, fail(span, fmt.Errorf("read last order id: %w", err))
	}
	orderID, err := orders.NextOrderID(lastID)
	if err != nil {
		return domain.Order{}, fail(span, err)
	}
	nextID, err := orders.NextOrderID(orderID)
	if err != nil {
		return domain.Order{}, fail(span, err)
	}

	rounded := totals.Rounded()
	order := domain.Order{
		OrderID:       orderID,
		CustomerID:    customer.ID,
		CustomerName:  customer.Name,
		OrderDate:     orderDate,
		PaymentMethod: paymentMethod,
		Subtotal:      rounded.Subtotal,
		Discount:      rounded.Discount,
		Tax:           rounded.Tax,
		Total:         rounded.Total,
		Status:        domain.OrderStatusCompleted,
	}

	if err := e.history.Append(ctx, order); err != nil {
		return domain.Order{}, fail(span, fmt.Errorf("append order: %w", err))
	}

	// The lines are dropped without a release: their stock has been sold.
	e.startSession(nextID)

	span.SetAttributes(attribute.String("pos.order.id", order.OrderID))
	e.metrics.OrderCompleted(ctx, paymentMethod, order.Total.InexactFloat64())
	return order, nil
}

// Totals recomputes checkout totals from the current lines.
func (e *Engine) Totals() domain.Totals {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totals()
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

func (e *Engine) releaseAll(ctx context.Context) error {
	if len(e.lines) == 0 {
		return nil
	}

	adjustments := make([]domain.StockAdjustment, 0, len(e.lines))
	released := 0
	for _, line := range e.lines {
		adjustments = append(adjustments, domain.StockAdjustment{ProductID: line.ProductID, Quantity: line.Quantity})
		released += line.Quantity
	}

	if err := e.catalog.Release(ctx, adjustments...); err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	e.lines = nil

	e.metrics.UnitsReleased(ctx, released, telemetry.ReleaseReasonClear)
	return nil
}

func (e *Engine) beginSession(lastID string) error {
	nextID, err := orders.NextOrderID(lastID)
	if err != nil {
		return err
	}
	e.startSession(nextID)
	return nil
}

func (e *Engine) startSession(orderID string) {
	e.orderID = orderID
	e.session = uuid.New()
	e.lines = nil
}

func (e *Engine) indexOf(productID string) int {
	return slices.IndexFunc(e.lines, func(l domain.OrderLine) bool {
		return l.ProductID == productID
	})
}

func (e *Engine) totals() domain.Totals {
	return domain.ComputeTotals(e.lines, e.taxRate)
}

func (e *Engine) snapshot() Snapshot {
	return Snapshot{
		OrderID:   e.orderID,
		SessionID: e.session.String(),
		Lines:     slices.Clone(e.lines),
		Totals:    e.totals(),
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
