package domain

import "time"

type OrderCompletedEvent struct {
	EventID       string    `json:"event_id"`
	OrderID       string    `json:"order_id"`
	CustomerID    string    `json:"customer_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	PaymentMethod string    `json:"payment_method"`
	Total         string    `json:"total"`
	OrderDate     time.Time `json:"order_date"`
	Timestamp     time.Time `json:"timestamp"`
}
