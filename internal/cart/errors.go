package cart

import (
	"errors"

	"github.com/joao-fontenele/luvoir-pos/internal/catalog"
)

// Validation failures. All of them are detected before the engine changes
// any state.
var (
	ErrInvalidQuantity         = errors.New("quantity must be a positive integer")
	ErrInsufficientStock       = catalog.ErrInsufficientStock
	ErrProductNotFound         = catalog.ErrProductNotFound
	ErrLineNotFound            = errors.New("order line not found")
	ErrNoCustomerSelected      = errors.New("no customer selected")
	ErrNoPaymentMethodSelected = errors.New("no payment method selected")
	ErrEmptyCart               = errors.New("cart is empty")
)
