package domain

// OrderLine is a product snapshot inside a placed order.
type OrderLine struct {
	ID       string  `json:"_id"`
	Product  Product `json:"productId"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Order is a placed order as reported by the orders endpoint.
type Order struct {
	ID              string      `json:"_id"`
	UserID          string      `json:"userId,omitempty"`
	Products        []OrderLine `json:"products"`
	TotalPrice      float64     `json:"totalPrice"`
	ShippingAddress string      `json:"shippingAddress"`
	PaymentStatus   string      `json:"paymentStatus,omitempty"`
	OrderStatus     string      `json:"orderStatus,omitempty"`
}

// ItemCount sums quantities across the order's lines.
func (o Order) ItemCount() int {
	n := 0
	for _, l := range o.Products {
		n += l.Quantity
	}
	return n
}
