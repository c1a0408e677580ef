package catalog

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/luvoir-pos/internal/domain"
)

func product(id string, stock int) domain.Product {
	return domain.Product{
		ID:            id,
		Description:   "Product " + id,
		UnitPrice:     decimal.RequireFromString("10.00"),
		StockQuantity: stock,
	}
}

func setupStore(t *testing.T, products ...domain.Product) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	for _, p := range products {
		require.NoError(t, store.Upsert(context.Background(), p))
	}
	return store
}

func TestMemoryStore_Upsert_And_FindByID(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t, product("P001", 5))

	found, err := store.FindByID(ctx, "P001")
	require.NoError(t, err)
	assert.Equal(t, 5, found.StockQuantity)

	updated := product("P001", 8)
	updated.Description = "Renamed"
	require.NoError(t, store.Upsert(ctx, updated))

	found, err = store.FindByID(ctx, "P001")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", found.Description)
	assert.Equal(t, 8, found.StockQuantity)

	_, err = store.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestMemoryStore_Upsert_Invalid(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	tests := []struct {
		name    string
		product domain.Product
	}{
		{"missing id", domain.Product{Description: "x"}},
		{"missing description", domain.Product{ID: "P1"}},
		{"negative price", domain.Product{ID: "P1", Description: "x", UnitPrice: decimal.NewFromInt(-1)}},
		{"negative stock", domain.Product{ID: "P1", Description: "x", StockQuantity: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, store.Upsert(ctx, tt.product), ErrInvalidProduct)
		})
	}

	products, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestMemoryStore_List_KeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t, product("P003", 1), product("P001", 0), product("P002", 4))

	products, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, "P003", products[0].ID)
	assert.Equal(t, "P001", products[1].ID)
	assert.Equal(t, "P002", products[2].ID)

	inStock, err := store.InStock(ctx)
	require.NoError(t, err)
	require.Len(t, inStock, 2)
	assert.Equal(t, "P003", inStock[0].ID)
	assert.Equal(t, "P002", inStock[1].ID)
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t, product("P001", 1), product("P002", 1))

	require.NoError(t, store.Delete(ctx, "P001"))
	assert.ErrorIs(t, store.Delete(ctx, "P001"), ErrProductNotFound)

	products, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "P002", products[0].ID)
}

func TestMemoryStore_Reserve(t *testing.T) {
	ctx := context.Background()

	t.Run("decrements stock", func(t *testing.T) {
		store := setupStore(t, product("P001", 10))

		updated, err := store.Reserve(ctx, "P001", 4)
		require.NoError(t, err)
		assert.Equal(t, 6, updated.StockQuantity)

		found, _ := store.FindByID(ctx, "P001")
		assert.Equal(t, 6, found.StockQuantity)
	})

	t.Run("insufficient stock leaves product unchanged", func(t *testing.T) {
		store := setupStore(t, product("P001", 3))

		_, err := store.Reserve(ctx, "P001", 5)
		assert.ErrorIs(t, err, ErrInsufficientStock)

		found, _ := store.FindByID(ctx, "P001")
		assert.Equal(t, 3, found.StockQuantity)
	})

	t.Run("unknown product", func(t *testing.T) {
		store := setupStore(t)

		_, err := store.Reserve(ctx, "missing", 1)
		assert.ErrorIs(t, err, ErrProductNotFound)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		store := setupStore(t, product("P001", 3))

		_, err := store.Reserve(ctx, "P001", 0)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})
}

func TestMemoryStore_Release(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stock and skips deleted products", func(t *testing.T) {
		store := setupStore(t, product("P001", 2), product("P002", 0))

		err := store.Release(ctx,
			domain.StockAdjustment{ProductID: "P001", Quantity: 3},
			domain.StockAdjustment{ProductID: "P002", Quantity: 1},
			domain.StockAdjustment{ProductID: "gone", Quantity: 7},
		)
		require.NoError(t, err)

		p1, _ := store.FindByID(ctx, "P001")
		p2, _ := store.FindByID(ctx, "P002")
		assert.Equal(t, 5, p1.StockQuantity)
		assert.Equal(t, 1, p2.StockQuantity)
	})

	t.Run("bad quantity rejects the whole batch", func(t *testing.T) {
		store := setupStore(t, product("P001", 2))

		err := store.Release(ctx,
			domain.StockAdjustment{ProductID: "P001", Quantity: 3},
			domain.StockAdjustment{ProductID: "P001", Quantity: -1},
		)
		assert.ErrorIs(t, err, ErrInvalidQuantity)

		p1, _ := store.FindByID(ctx, "P001")
		assert.Equal(t, 2, p1.StockQuantity)
	})
}

func TestMemoryStore_ConcurrentReservations(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t, product("P001", 100))

	var wg sync.WaitGroup
	var mu sync.Mutex
	successCount := 0

	// 10 x 20 units against 100 in stock: exactly 5 succeed
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Reserve(ctx, "P001", 20); err == nil {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 5, successCount)

	found, _ := store.FindByID(ctx, "P001")
	assert.Equal(t, 0, found.StockQuantity)
}
