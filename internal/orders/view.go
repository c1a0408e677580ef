package orders

import (
	"fmt"

	"github.com/joao-fontenele/luvoir-pos/internal/domain"
)

// View is the JSON shape of an order shown to the operator.
type View struct {
	OrderID       string             `json:"order_id"`
	CustomerID    string             `json:"customer_id"`
	CustomerName  string             `json:"customer_name"`
	OrderDate     string             `json:"order_date"`
	PaymentMethod string             `json:"payment_method"`
	Subtotal      string             `json:"subtotal"`
	Discount      string             `json:"discount"`
	Tax           string             `json:"tax"`
	Total         string             `json:"total"`
	Status        domain.OrderStatus `json:"status"`
}

func NewView(o domain.Order) View {
	return View{
		OrderID:       o.OrderID,
		CustomerID:    o.CustomerID,
		CustomerName:  o.CustomerName,
		OrderDate:     FormatOrderDate(o),
		PaymentMethod: o.PaymentMethod,
		Subtotal:      o.Subtotal.StringFixed(domain.MoneyPlaces),
		Discount:      o.Discount.StringFixed(domain.MoneyPlaces),
		Tax:           o.Tax.StringFixed(domain.MoneyPlaces),
		Total:         o.Total.StringFixed(domain.MoneyPlaces),
		Status:        o.Status,
	}
}

// FormatOrderDate renders the order date as M/D/YYYY.
func FormatOrderDate(o domain.Order) string {
	d := o.OrderDate
	return fmt.Sprintf("%d/%d/%d", int(d.Month()), d.Day(), d.Year())
}
