package catalog

import (
	"context"
	"errors"

	"github.com/joao-fontenele/luvoir-pos/internal/domain"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidProduct    = errors.New("invalid product")
	ErrInvalidQuantity   = errors.New("invalid quantity")
)

// Store is the product catalog shared between the cart engine and the
// catalog maintenance endpoints.
type Store interface {
	FindByID(ctx context.Context, id string) (domain.Product, error)

	// List returns every product in insertion order.
	List(ctx context.Context) ([]domain.Product, error)

	// InStock returns the products with at least one unit left.
	InStock(ctx context.Context) ([]domain.Product, error)

	// Upsert inserts a product or replaces the one with the same id.
	Upsert(ctx context.Context, product domain.Product) error

	Delete(ctx context.Context, id string) error

	// Reserve takes quantity units out of a product's stock and returns the
	// updated product. It fails without changes when stock is short.
	Reserve(ctx context.Context, id string, quantity int) (domain.Product, error)

	// Release hands quantities back to stock. Products that no longer exist
	// are skipped.
	Release(ctx context.Context, adjustments ...domain.StockAdjustment) error
}
