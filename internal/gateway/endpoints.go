package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/joss/storefront/internal/domain"
	"github.com/joss/storefront/internal/lifecycle"
)

// Operation names, used for metrics labels, logs and error defaults.
const (
	OpListProducts   = "list_products"
	OpLogin          = "login"
	OpRegister       = "register"
	OpFetchCart      = "fetch_cart"
	OpAddToCart      = "add_to_cart"
	OpRemoveFromCart = "remove_from_cart"
	OpRefetchCart    = "refetch_cart"
	OpCreateOrder    = "create_order"
	OpListOrders     = "list_orders"
)

var defaultMessages = map[string]string{
	OpListProducts:   "Failed to fetch products",
	OpLogin:          "Invalid credentials",
	OpRegister:       "Registration failed",
	OpFetchCart:      "Failed to fetch cart items",
	OpAddToCart:      "Failed to add item to cart",
	OpRemoveFromCart: "Failed to remove item from cart",
	OpRefetchCart:    "Failed to fetch updated cart items",
	OpCreateOrder:    "Failed to create order",
	OpListOrders:     "Failed to fetch orders",
}

// DefaultMessage is the user-facing text for a failed op when the server
// does not provide one.
func DefaultMessage(op string) string {
	if m, ok := defaultMessages[op]; ok {
		return m
	}
	return "Request failed"
}

// ListProducts fetches the catalog. No authentication.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	body, err := c.do(ctx, call{op: OpListProducts, method: http.MethodGet, path: "/api/get-products"})
	if err != nil {
		return nil, err
	}
	return decode[[]domain.Product](OpListProducts, pick(body, "products"))
}

// Login exchanges email and password for a credential.
func (c *Client) Login(ctx context.Context, email, password string) (domain.Credential, error) {
	body, err := c.do(ctx, call{
		op:     OpLogin,
		method: http.MethodPost,
		path:   "/api/auth/login",
		body:   domain.Login{Email: email, Password: password},
	})
	if err != nil {
		return domain.Credential{}, err
	}
	cred := domain.Credential{
		Token:    gjson.GetBytes(body, "token").String(),
		FullName: gjson.GetBytes(body, "fullName").String(),
	}
	if !cred.Present() {
		return domain.Credential{}, lifecycle.Rejected(OpLogin, http.StatusOK, "login response carried no token")
	}
	return cred, nil
}

// Register creates an account. The response shape is server-defined and
// returned as-is.
func (c *Client) Register(ctx context.Context, reg domain.Registration) (json.RawMessage, error) {
	body, err := c.do(ctx, call{
		op:     OpRegister,
		method: http.MethodPost,
		path:   "/api/auth/register",
		body:   reg,
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// FetchCart returns the full cart. The server wraps it as
// {"cartItems": [...]}; a bare array is accepted too.
func (c *Client) FetchCart(ctx context.Context, token string) ([]domain.CartItem, error) {
	return c.fetchCart(ctx, OpFetchCart, token)
}

func (c *Client) fetchCart(ctx context.Context, op, token string) ([]domain.CartItem, error) {
	body, err := c.do(ctx, call{op: op, method: http.MethodGet, path: "/api/get-cart-items", token: token})
	if err != nil {
		return nil, err
	}
	raw := pick(body, "cartItems")
	if r := gjson.ParseBytes(raw); r.Type == gjson.Null {
		return []domain.CartItem{}, nil
	}
	items, err := decode[[]domain.CartItem](op, raw)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.CartItem{}
	}
	return items, nil
}

// AddToCart posts one add and returns the single line the server created
// or updated.
func (c *Client) AddToCart(ctx context.Context, token, productID string, quantity int) (domain.CartItem, error) {
	body, err := c.do(ctx, call{
		op:     OpAddToCart,
		method: http.MethodPost,
		path:   "/api/cart",
		token:  token,
		body: struct {
			ProductID string `json:"productId"`
			Quantity  int    `json:"quantity"`
		}{productID, quantity},
	})
	if err != nil {
		return domain.CartItem{}, err
	}
	return decode[domain.CartItem](OpAddToCart, pick(body, "cartItem"))
}

// RemoveFromCart deletes the lines for productID. The response body is
// ignored.
func (c *Client) RemoveFromCart(ctx context.Context, token, productID string) error {
	_, err := c.do(ctx, call{
		op:     OpRemoveFromCart,
		method: http.MethodDelete,
		path:   "/api/cart/" + url.PathEscape(productID),
		token:  token,
	})
	return err
}

// RefetchCart is FetchCart reported under its own op, so a refetch failure
// after a delete reads differently from a plain fetch failure.
func (c *Client) RefetchCart(ctx context.Context, token string) ([]domain.CartItem, error) {
	return c.fetchCart(ctx, OpRefetchCart, token)
}

// CreateOrder places an order for the current cart.
func (c *Client) CreateOrder(ctx context.Context, token, shippingAddress string) (domain.Order, error) {
	body, err := c.do(ctx, call{
		op:     OpCreateOrder,
		method: http.MethodPost,
		path:   "/api/orders",
		token:  token,
		body: struct {
			ShippingAddress string `json:"shippingAddress"`
		}{shippingAddress},
	})
	if err != nil {
		return domain.Order{}, err
	}
	return decode[domain.Order](OpCreateOrder, pick(body, "order"))
}

// ListOrders returns the caller's orders.
func (c *Client) ListOrders(ctx context.Context, token string) ([]domain.Order, error) {
	body, err := c.do(ctx, call{op: OpListOrders, method: http.MethodGet, path: "/api/orders", token: token})
	if err != nil {
		return nil, err
	}
	return decode[[]domain.Order](OpListOrders, pick(body, "orders"))
}
