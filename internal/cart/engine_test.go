package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/joao-fontenele/luvoir-pos/internal/catalog"
	"github.com/joao-fontenele/luvoir-pos/internal/domain"
	"github.com/joao-fontenele/luvoir-pos/internal/orders"
	"github.com/joao-fontenele/luvoir-pos/internal/telemetry"
)

var (
	alice     = domain.CustomerRef{ID: "C001", Name: "Alice"}
	orderDate = time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
)

func product(id, price string, stock int) domain.Product {
	return domain.Product{
		ID:            id,
		Description:   "Product " + id,
		UnitPrice:     decimal.RequireFromString(price),
		StockQuantity: stock,
	}
}

func setupEngine(t *testing.T, products ...domain.Product) (*Engine, *catalog.MemoryStore, *orders.MemoryHistory) {
	t.Helper()

	store := catalog.NewMemoryStore()
	for _, p := range products {
		require.NoError(t, store.Upsert(context.Background(), p))
	}
	history := orders.NewMemoryHistory()

	engine, err := NewEngine(context.Background(), store, history)
	require.NoError(t, err)
	return engine, store, history
}

func stockOf(t *testing.T, store catalog.Store, id string) int {
	t.Helper()
	p, err := store.FindByID(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

func TestNewEngine_PendingOrderID(t *testing.T) {
	t.Run("first order of an empty history", func(t *testing.T) {
		engine, _, _ := setupEngine(t)
		assert.Equal(t, "001", engine.Snapshot().OrderID)
	})

	t.Run("follows the last recorded order", func(t *testing.T) {
		history := orders.NewMemoryHistory()
		require.NoError(t, history.Append(context.Background(), domain.Order{OrderID: "041"}))

		engine, err := NewEngine(context.Background(), catalog.NewMemoryStore(), history)
		require.NoError(t, err)
		assert.Equal(t, "042", engine.Snapshot().OrderID)
	})

	t.Run("rejects a non numeric last id", func(t *testing.T) {
		history := orders.NewMemoryHistory()
		require.NoError(t, history.Append(context.Background(), domain.Order{OrderID: "ORD-1"}))

		_, err := NewEngine(context.Background(), catalog.NewMemoryStore(), history)
		assert.ErrorIs(t, err, orders.ErrInvalidOrderID)
	})
}

func TestEngine_AddLine(t *testing.T) {
	ctx := context.Background()

	t.Run("reserves stock and snapshots product details", func(t *testing.T) {
		engine, store, _ := setupEngine(t, product("P001", "2.50", 10))

		snapshot, err := engine.AddLine(ctx, "P001", 4)
		require.NoError(t, err)

		require.Len(t, snapshot.Lines, 1)
		line := snapshot.Lines[0]
		assert.Equal(t, "001", line.OrderID)
		assert.Equal(t, "Product P001", line.ProductName)
		assert.Equal(t, 4, line.Quantity)
		assert.Equal(t, "10.00", line.LineTotal().StringFixed(2))
		assert.Equal(t, 6, stockOf(t, store, "P001"))
	})

	t.Run("merges repeated additions into one line", func(t *testing.T) {
		engine, store, _ := setupEngine(t, product("P001", "1.00", 10))

		_, err := engine.AddLine(ctx, "P001", 2)
		require.NoError(t, err)
		snapshot, err := engine.AddLine(ctx, "P001", 3)
		require.NoError(t, err)

		require.Len(t, snapshot.Lines, 1)
		assert.Equal(t, 5, snapshot.Lines[0].Quantity)
		assert.Equal(t, 5, stockOf(t, store, "P001"))
	})

	t.Run("keeps the price captured on the first addition", func(t *testing.T) {
		engine, store, _ := setupEngine(t, product("P001", "1.00", 10))

		_, err := engine.AddLine(ctx, "P001", 1)
		require.NoError(t, err)

		repriced := product("P001", "9.00", 9)
		require.NoError(t, store.Upsert(ctx, repriced))

		snapshot, err := engine.AddLine(ctx, "P001", 1)
		require.NoError(t, err)
		assert.Equal(t, "1.00", snapshot.Lines[0].UnitPrice.StringFixed(2))
	})

	t.Run("rejects more than the stock on hand", func(t *testing.T) {
		engine, store, _ := setupEngine(t, product("P001", "1.00", 3))

		_, err := engine.AddLine(ctx, "P001", 5)
		assert.ErrorIs(t, err, ErrInsufficientStock)
		assert.Equal(t, 3, stockOf(t, store, "P001"))
		assert.Empty(t, engine.Snapshot().Lines)
	})

	t.Run("checks a merge against remaining stock only", func(t *testing.T) {
		engine, store, _ := setupEngine(t, product("P001", "1.00", 5))

		_, err := engine.AddLine(ctx, "P001", 3)
		require.NoError(t, err)

		_, err = engine.AddLine(ctx, "P001", 3)
		assert.ErrorIs(t, err, ErrInsufficientStock)

		snapshot, err := engine.AddLine(ctx, "P001", 2)
		require.NoError(t, err)
		assert.Equal(t, 5, snapshot.Lines[0].Quantity)
		assert.Equal(t, 0, stockOf(t, store, "P001"))
	})

	t.Run("rejects non positive quantities", func(t *testing.T) {
		engine, store, _ := setupEngine(t, product("P001", "1.00", 3))

		for _, qty := range []int{0, -2} {
			_, err := engine.AddLine(ctx, "P001", qty)
			assert.ErrorIs(t, err, ErrInvalidQuantity)
		}
		assert.Equal(t, 3, stockOf(t, store, "P001"))
		assert.Empty(t, engine.Snapshot().Lines)
	})

	t.Run("rejects unknown products", func(t *testing.T) {
		engine, _, _ := setupEngine(t)

		_, err := engine.AddLine(ctx, "NOPE", 1)
		assert.ErrorIs(t, err, ErrProductNotFound)
	})
}

func TestEngine_RemoveLine(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the whole line quantity to stock", func(t *testing.T) {
		engine, store, _ := setupEngine(t, product("P001", "1.00", 10), product("P002", "2.00", 10))

		_, err := engine.AddLine(ctx, "P001", 2)
		require.NoError(t, err)
		_, err = engine.AddLine(ctx, "P001", 3)
		require.NoError(t, err)
		_, err = engine.AddLine(ctx, "P002", 1)
		require.NoError(t, err)

		snapshot, err := engine.RemoveLine(ctx, "P001")
		require.NoError(t, err)

		require.Len(t, snapshot.Lines, 1)
		assert.Equal(t, "P002", snapshot.Lines[0].ProductID)
		assert.Equal(t, 10, stockOf(t, store, "P001"))
		assert.Equal(t, 9, stockOf(t, store, "P002"))
	})

	t.Run("fails for a product not in the cart", func(t *testing.T) {
		engine, store, _ := setupEngine(t, product("P001", "1.00", 10))

		_, err := engine.RemoveLine(ctx, "P001")
		assert.ErrorIs(t, err, ErrLineNotFound)
		assert.Equal(t, 10, stockOf(t, store, "P001"))
	})
}

func TestEngine_StockConservation(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := setupEngine(t, product("P001", "1.00", 20), product("P002", "3.00", 7))
	original := map[string]int{"P001": 20, "P002": 7}

	steps := []func() error{
		func() error { _, err := engine.AddLine(ctx, "P001", 4); return err },
		func() error { _, err := engine.AddLine(ctx, "P002", 7); return err },
		func() error { _, err := engine.AddLine(ctx, "P002", 1); return err },
		func() error { _, err := engine.AddLine(ctx, "P001", 6); return err },
		func() error { _, err := engine.RemoveLine(ctx, "P002"); return err },
		func() error { _, err := engine.AddLine(ctx, "P002", 2); return err },
		func() error { _, err := engine.RemoveLine(ctx, "P002"); return err },
		func() error { _, err := engine.RemoveLine(ctx, "P002"); return err },
	}

	for i, step := range steps {
		_ = step()

		reserved := map[string]int{}
		for _, line := range engine.Snapshot().Lines {
			reserved[line.ProductID] += line.Quantity
		}
		for id, want := range original {
			assert.Equal(t, want, stockOf(t, store, id)+reserved[id], "step %d product %s", i, id)
		}
	}
}

func TestEngine_Totals(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := setupEngine(t, product("P001", "10.00", 5), product("P002", "8.50", 5))

	_, err := engine.AddLine(ctx, "P001", 1)
	require.NoError(t, err)
	_, err = engine.AddLine(ctx, "P002", 3)
	require.NoError(t, err)

	totals := engine.Totals().Rounded()
	assert.Equal(t, "35.50", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "0.00", totals.Discount.StringFixed(2))
	assert.Equal(t, "2.84", totals.Tax.StringFixed(2))
	assert.Equal(t, "38.34", totals.Total.StringFixed(2))
}

func TestEngine_WithTaxRate(t *testing.T) {
	store := catalog.NewMemoryStore()
	require.NoError(t, store.Upsert(context.Background(), product("P001", "10.00", 5)))

	engine, err := NewEngine(context.Background(), store, orders.NewMemoryHistory(),
		WithTaxRate(decimal.RequireFromString("0.15")))
	require.NoError(t, err)

	_, err = engine.AddLine(context.Background(), "P001", 2)
	require.NoError(t, err)
	assert.Equal(t, "3.00", engine.Totals().Tax.StringFixed(2))
}

func TestEngine_Clear(t *testing.T) {
	ctx := context.Background()

	t.Run("returns every reservation to stock", func(t *testing.T) {
		engine, store, _ := setupEngine(t, product("P001", "1.00", 10), product("P002", "2.00", 4))

		_, err := engine.AddLine(ctx, "P001", 6)
		require.NoError(t, err)
		_, err = engine.AddLine(ctx, "P002", 4)
		require.NoError(t, err)

		snapshot, err := engine.Clear(ctx)
		require.NoError(t, err)

		assert.Empty(t, snapshot.Lines)
		assert.Equal(t, "001", snapshot.OrderID)
		assert.Equal(t, 10, stockOf(t, store, "P001"))
		assert.Equal(t, 4, stockOf(t, store, "P002"))
	})

	t.Run("is a no-op on an empty cart", func(t *testing.T) {
		engine, store, _ := setupEngine(t, product("P001", "1.00", 10))

		snapshot, err := engine.Clear(ctx)
		require.NoError(t, err)
		assert.Empty(t, snapshot.Lines)
		assert.Equal(t, 10, stockOf(t, store, "P001"))
	})

	t.Run("skips products deleted from the catalog", func(t *testing.T) {
		engine, store, _ := setupEngine(t, product("P001", "1.00", 10), product("P002", "2.00", 10))

		_, err := engine.AddLine(ctx, "P001", 1)
		require.NoError(t, err)
		_, err = engine.AddLine(ctx, "P002", 2)
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, "P001"))

		_, err = engine.Clear(ctx)
		require.NoError(t, err)
		assert.Equal(t, 10, stockOf(t, store, "P002"))
	})
}

func TestEngine_Reset(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := setupEngine(t, product("P001", "1.00", 10))

	before := engine.Snapshot()
	_, err := engine.AddLine(ctx, "P001", 3)
	require.NoError(t, err)

	snapshot, err := engine.Reset(ctx)
	require.NoError(t, err)

	assert.Empty(t, snapshot.Lines)
	assert.Equal(t, "001", snapshot.OrderID)
	assert.NotEqual(t, before.SessionID, snapshot.SessionID)
	assert.Equal(t, 10, stockOf(t, store, "P001"))
}

func TestEngine_Finalize(t *testing.T) {
	ctx := context.Background()

	t.Run("records the order and keeps stock decremented", func(t *testing.T) {
		engine, store, history := setupEngine(t, product("P001", "10.00", 5), product("P002", "8.50", 5))

		_, err := engine.AddLine(ctx, "P001", 1)
		require.NoError(t, err)
		_, err = engine.AddLine(ctx, "P002", 3)
		require.NoError(t, err)

		order, err := engine.Finalize(ctx, alice, "Cash", orderDate)
		require.NoError(t, err)

		assert.Equal(t, "001", order.OrderID)
		assert.Equal(t, "C001", order.CustomerID)
		assert.Equal(t, "Alice", order.CustomerName)
		assert.Equal(t, "Cash", order.PaymentMethod)
		assert.Equal(t, domain.OrderStatusCompleted, order.Status)
		assert.True(t, orderDate.Equal(order.OrderDate))
		assert.Equal(t, "35.50", order.Subtotal.StringFixed(2))
		assert.Equal(t, "2.84", order.Tax.StringFixed(2))
		assert.Equal(t, "38.34", order.Total.StringFixed(2))

		assert.Equal(t, 4, stockOf(t, store, "P001"))
		assert.Equal(t, 2, stockOf(t, store, "P002"))

		snapshot := engine.Snapshot()
		assert.Empty(t, snapshot.Lines)
		assert.Equal(t, "002", snapshot.OrderID)

		recorded, err := history.FindByID(ctx, "001")
		require.NoError(t, err)
		assert.Equal(t, order, recorded)
	})

	t.Run("assigns sequential order ids", func(t *testing.T) {
		engine, _, history := setupEngine(t, product("P001", "1.00", 5))

		for _, want := range []string{"001", "002"} {
			_, err := engine.AddLine(ctx, "P001", 1)
			require.NoError(t, err)
			order, err := engine.Finalize(ctx, alice, "Card", orderDate)
			require.NoError(t, err)
			assert.Equal(t, want, order.OrderID)
		}

		lastID, err := history.LastID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "002", lastID)
	})

	t.Run("records rounded money", func(t *testing.T) {
		engine, _, _ := setupEngine(t, product("P001", "0.333", 5))

		_, err := engine.AddLine(ctx, "P001", 3)
		require.NoError(t, err)

		order, err := engine.Finalize(ctx, alice, "Cash", orderDate)
		require.NoError(t, err)
		assert.True(t, order.Total.Equal(decimal.RequireFromString("1.08")), "got %s", order.Total)
	})

	preconditions := []struct {
		name     string
		customer domain.CustomerRef
		payment  string
		addLine  bool
		wantErr  error
	}{
		{name: "no customer", customer: domain.CustomerRef{}, payment: "Cash", addLine: true, wantErr: ErrNoCustomerSelected},
		{name: "blank customer", customer: domain.CustomerRef{ID: "  "}, payment: "Cash", addLine: true, wantErr: ErrNoCustomerSelected},
		{name: "no payment method", customer: alice, payment: "", addLine: true, wantErr: ErrNoPaymentMethodSelected},
		{name: "empty cart", customer: alice, payment: "Cash", addLine: false, wantErr: ErrEmptyCart},
		{name: "customer checked first", customer: domain.CustomerRef{}, payment: "", addLine: false, wantErr: ErrNoCustomerSelected},
	}

	for _, tc := range preconditions {
		t.Run("fails with "+tc.name, func(t *testing.T) {
			engine, store, history := setupEngine(t, product("P001", "1.00", 5))
			if tc.addLine {
				_, err := engine.AddLine(ctx, "P001", 2)
				require.NoError(t, err)
			}
			before := engine.Snapshot()

			_, err := engine.Finalize(ctx, tc.customer, tc.payment, orderDate)
			assert.ErrorIs(t, err, tc.wantErr)

			assert.Equal(t, before, engine.Snapshot())
			all, err := history.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)
			if tc.addLine {
				assert.Equal(t, 3, stockOf(t, store, "P001"))
			}
		})
	}

	t.Run("a zero subtotal counts as empty", func(t *testing.T) {
		engine, _, _ := setupEngine(t, product("FREE", "0.00", 5))

		_, err := engine.AddLine(ctx, "FREE", 1)
		require.NoError(t, err)

		_, err = engine.Finalize(ctx, alice, "Cash", orderDate)
		assert.ErrorIs(t, err, ErrEmptyCart)
	})

	t.Run("keeps the cart when history rejects the order", func(t *testing.T) {
		store := catalog.NewMemoryStore()
		require.NoError(t, store.Upsert(ctx, product("P001", "1.00", 5)))
		history := &failingHistory{History: orders.NewMemoryHistory(), err: errors.New("disk full")}

		engine, err := NewEngine(ctx, store, history)
		require.NoError(t, err)
		_, err = engine.AddLine(ctx, "P001", 2)
		require.NoError(t, err)

		_, err = engine.Finalize(ctx, alice, "Cash", orderDate)
		require.Error(t, err)

		snapshot := engine.Snapshot()
		require.Len(t, snapshot.Lines, 1)
		assert.Equal(t, "001", snapshot.OrderID)
		assert.Equal(t, 3, stockOf(t, store, "P001"))
	})
}

func TestEngine_ConcurrentAddLine(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := setupEngine(t, product("P001", "1.00", 50))

	var wg sync.WaitGroup
	for range 80 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = engine.AddLine(ctx, "P001", 1)
		}()
	}
	wg.Wait()

	snapshot := engine.Snapshot()
	require.Len(t, snapshot.Lines, 1)
	assert.Equal(t, 50, snapshot.Lines[0].Quantity)
	assert.Equal(t, 0, stockOf(t, store, "P001"))
}

func TestEngine_Metrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := telemetry.NewCartMetrics(mp.Meter("test"))
	require.NoError(t, err)

	store := catalog.NewMemoryStore()
	require.NoError(t, store.Upsert(ctx, product("P001", "1.00", 10)))
	engine, err := NewEngine(ctx, store, orders.NewMemoryHistory(), WithMetrics(metrics))
	require.NoError(t, err)

	_, err = engine.AddLine(ctx, "P001", 4)
	require.NoError(t, err)
	_, err = engine.Finalize(ctx, alice, "Cash", orderDate)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
		}
	}
	assert.True(t, found["pos.cart.units_reserved"])
	assert.True(t, found["pos.orders.completed"])
}

type failingHistory struct {
	orders.History
	err error
}

func (h *failingHistory) Append(context.Context, domain.Order) error {
	return h.err
}
