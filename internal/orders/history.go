package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/joao-fontenele/luvoir-pos/internal/domain"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrDuplicateOrder = errors.New("order already recorded")
	ErrInvalidOrderID = errors.New("invalid order id")
)

// orderIDWidth is the minimum number of digits of a generated order id.
const orderIDWidth = 3

// History is the append-only record of completed orders.
type History interface {
	Append(ctx context.Context, order domain.Order) error

	// LastID returns the id of the most recently appended order, or "" when
	// there is none.
	LastID(ctx context.Context) (string, error)

	FindByID(ctx context.Context, id string) (domain.Order, error)

	// List returns all orders oldest first.
	List(ctx context.Context) ([]domain.Order, error)

	// Recent returns up to n orders, most recent first.
	Recent(ctx context.Context, n int) ([]domain.Order, error)
}

// NextOrderID derives the id that follows lastID: "001" for an empty
// history, then "002", "003" and so on. Ids widen past 999.
func NextOrderID(lastID string) (string, error) {
	if lastID == "" {
		return fmt.Sprintf("%0*d", orderIDWidth, 1), nil
	}

	n, err := strconv.Atoi(lastID)
	if err != nil || n < 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidOrderID, lastID)
	}

	return fmt.Sprintf("%0*d", orderIDWidth, n+1), nil
}

// MemoryHistory implements History in process memory. It assumes a single
// writer.
type MemoryHistory struct {
	mu     sync.RWMutex
	orders []domain.Order
	index  map[string]int
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{
		index: make(map[string]int),
	}
}

func (h *MemoryHistory) Append(_ context.Context, order domain.Order) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.index[order.OrderID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, order.OrderID)
	}

	h.index[order.OrderID] = len(h.orders)
	h.orders = append(h.orders, order)
	return nil
}

func (h *MemoryHistory) LastID(_ context.Context) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.orders) == 0 {
		return "", nil
	}
	return h.orders[len(h.orders)-1].OrderID, nil
}

func (h *MemoryHistory) FindByID(_ context.Context, id string) (domain.Order, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	i, exists := h.index[id]
	if !exists {
		return domain.Order{}, ErrOrderNotFound
	}
	return h.orders[i], nil
}

func (h *MemoryHistory) List(_ context.Context) ([]domain.Order, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]domain.Order, len(h.orders))
	copy(result, h.orders)
	return result, nil
}

func (h *MemoryHistory) Recent(_ context.Context, n int) ([]domain.Order, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 {
		return []domain.Order{}, nil
	}
	n = min(n, len(h.orders))

	result := make([]domain.Order, 0, n)
	for i := len(h.orders) - 1; i >= len(h.orders)-n; i-- {
		result = append(result, h.orders[i])
	}
	return result, nil
}
