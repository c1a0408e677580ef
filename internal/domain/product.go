package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID            string          `json:"id"`
	Description   string          `json:"description"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	StockQuantity int             `json:"stock_quantity"`
	ImageURL      string          `json:"image_url,omitempty"`
}

// InStock reports whether at least one unit can still be sold.
func (p Product) InStock() bool {
	return p.StockQuantity > 0
}

// StockAdjustment is a quantity of one product handed back to the catalog.
type StockAdjustment struct {
	ProductID string
	Quantity  int
}
