// Package domain defines the storefront entities shared by the stores,
// the gateway and the presentation layer.
package domain

// Product is a catalog entry as returned by the product listing.
// Stock is advisory: it is only as fresh as the last listing fetch.
type Product struct {
	ID        string  `json:"_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
	Stock     int     `json:"stock"`
}

// InStock reports whether the last listing advertised any stock.
func (p Product) InStock() bool {
	return p.Stock > 0
}
