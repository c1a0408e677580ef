package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/joao-fontenele/luvoir-pos/internal/domain"
)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
	order    []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*domain.Product),
	}
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return domain.Product{}, ErrProductNotFound
	}
	return *product, nil
}

func (s *MemoryStore) List(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, *s.products[id])
	}
	return result, nil
}

func (s *MemoryStore) InStock(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, len(s.order))
	for _, id := range s.order {
		if product := s.products[id]; product.InStock() {
			result = append(result, *product)
		}
	}
	return result, nil
}

func (s *MemoryStore) Upsert(_ context.Context, product domain.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; !exists {
		s.order = append(s.order, product.ID)
	}
	s.products[product.ID] = &product
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return ErrProductNotFound
	}

	delete(s.products, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) Reserve(_ context.Context, id string, quantity int) (domain.Product, error) {
	if quantity <= 0 {
		return domain.Product{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return domain.Product{}, ErrProductNotFound
	}
	if product.StockQuantity < quantity {
		return domain.Product{}, ErrInsufficientStock
	}

	product.StockQuantity -= quantity
	return *product, nil
}

func (s *MemoryStore) Release(_ context.Context, adjustments ...domain.StockAdjustment) error {
	// First pass: reject the whole batch on a bad quantity
	for _, adj := range adjustments {
		if adj.Quantity <= 0 {
			return fmt.Errorf("%w: %d for product %s", ErrInvalidQuantity, adj.Quantity, adj.ProductID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Second pass: return stock
	for _, adj := range adjustments {
		if product, exists := s.products[adj.ProductID]; exists {
			product.StockQuantity += adj.Quantity
		}
	}
	return nil
}

func validateProduct(p domain.Product) error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return fmt.Errorf("%w: id is required", ErrInvalidProduct)
	case strings.TrimSpace(p.Description) == "":
		return fmt.Errorf("%w: description is required", ErrInvalidProduct)
	case p.UnitPrice.IsNegative():
		return fmt.Errorf("%w: unit price must not be negative", ErrInvalidProduct)
	case p.StockQuantity < 0:
		return fmt.Errorf("%w: stock quantity must not be negative", ErrInvalidProduct)
	}
	return nil
}
