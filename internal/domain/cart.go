package domain

import (
	"bytes"
	"encoding/json"
)

// CartItem is one server-assigned cart line. Its identity is ID, not the
// product id: the same product may appear on several lines.
type CartItem struct {
	ID       string  `json:"_id"`
	UserID   string  `json:"userId,omitempty"`
	Product  Product `json:"productId"`
	Quantity int     `json:"quantity"`
}

// UnmarshalJSON accepts productId either populated (an object) or as a bare
// id string; endpoints differ in whether they populate it.
func (c *CartItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       string          `json:"_id"`
		UserID   string          `json:"userId"`
		Product  json.RawMessage `json:"productId"`
		Quantity int             `json:"quantity"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.ID, c.UserID, c.Quantity = raw.ID, raw.UserID, raw.Quantity
	c.Product = Product{}

	p := bytes.TrimSpace(raw.Product)
	switch {
	case len(p) == 0 || bytes.Equal(p, []byte("null")):
	case p[0] == '"':
		return json.Unmarshal(p, &c.Product.ID)
	default:
		return json.Unmarshal(p, &c.Product)
	}
	return nil
}

// LineTotal returns quantity × unit price for this line.
func (c CartItem) LineTotal() float64 {
	return float64(c.Quantity) * c.Product.UnitPrice
}

// CountItems sums quantities across lines.
func CountItems(items []CartItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

// TotalPrice sums line totals across lines.
func TotalPrice(items []CartItem) float64 {
	var total float64
	for _, it := range items {
		total += it.LineTotal()
	}
	return total
}
