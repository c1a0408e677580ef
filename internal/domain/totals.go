package domain

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of decimal places money is presented with.
const MoneyPlaces = 2

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// ComputeTotals sums the lines at full precision. Discount is always zero.
func ComputeTotals(lines []OrderLine, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.LineTotal())
	}

	discount := decimal.Zero
	tax := subtotal.Mul(taxRate)

	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    subtotal.Sub(discount).Add(tax),
	}
}

// Rounded returns the totals rounded for presentation.
func (t Totals) Rounded() Totals {
	return Totals{
		Subtotal: t.Subtotal.Round(MoneyPlaces),
		Discount: t.Discount.Round(MoneyPlaces),
		Tax:      t.Tax.Round(MoneyPlaces),
		Total:    t.Total.Round(MoneyPlaces),
	}
}
