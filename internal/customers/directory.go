package customers

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"github.com/joao-fontenele/luvoir-pos/internal/domain"
)

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrInvalidCustomer  = errors.New("invalid customer")
)

// Directory holds the customers that can be selected at checkout.
type Directory interface {
	FindByID(ctx context.Context, id string) (domain.Customer, error)
	List(ctx context.Context) ([]domain.Customer, error)
	// Upsert reports whether the customer was newly created.
	Upsert(ctx context.Context, customer domain.Customer) (bool, error)
	Delete(ctx context.Context, id string) error
}

type MemoryDirectory struct {
	mu        sync.RWMutex
	customers []domain.Customer
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{}
}

func (d *MemoryDirectory) FindByID(_ context.Context, id string) (domain.Customer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if i := d.indexOf(id); i >= 0 {
		return d.customers[i], nil
	}
	return domain.Customer{}, ErrCustomerNotFound
}

func (d *MemoryDirectory) List(_ context.Context) ([]domain.Customer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]domain.Customer, len(d.customers))
	copy(result, d.customers)
	return result, nil
}

func (d *MemoryDirectory) Upsert(_ context.Context, customer domain.Customer) (bool, error) {
	if err := validateCustomer(customer); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if i := d.indexOf(customer.ID); i >= 0 {
		d.customers[i] = customer
		return false, nil
	}
	d.customers = append(d.customers, customer)
	return true, nil
}

func (d *MemoryDirectory) Delete(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := d.indexOf(id)
	if i < 0 {
		return ErrCustomerNotFound
	}
	d.customers = append(d.customers[:i], d.customers[i+1:]...)
	return nil
}

func (d *MemoryDirectory) indexOf(id string) int {
	for i, c := range d.customers {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func validateCustomer(c domain.Customer) error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidCustomer)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCustomer)
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			return fmt.Errorf("%w: email %q", ErrInvalidCustomer, c.Email)
		}
	}
	return nil
}
