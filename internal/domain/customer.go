package domain

type Customer struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	NIC           string `json:"nic"`
	Address       string `json:"address"`
	Email         string `json:"email"`
	ContactNumber string `json:"contact_number"`
}

// Ref returns the id/name pair recorded on an order.
func (c Customer) Ref() CustomerRef {
	return CustomerRef{ID: c.ID, Name: c.Name}
}

// CustomerRef identifies the customer selected at checkout.
type CustomerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
