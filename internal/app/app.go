// Package app composes the session, cart and catalog into the single
// state container handed to the presentation layer. Construction restores
// the session from the persisted credential; nothing else crosses store
// boundaries except the flows defined here.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joss/storefront/internal/cart"
	"github.com/joss/storefront/internal/catalog"
	"github.com/joss/storefront/internal/credential"
	"github.com/joss/storefront/internal/domain"
	"github.com/joss/storefront/internal/lifecycle"
	"github.com/joss/storefront/internal/logging"
	"github.com/joss/storefront/internal/metrics"
	"github.com/joss/storefront/internal/session"
)

// Flow names used for validation errors and logs.
const (
	FlowLogin     = "login"
	FlowRegister  = "register"
	FlowAddToCart = "add_to_cart"
	FlowCheckout  = "checkout"
	FlowOrders    = "orders"
)

// MinPasswordLen is the shortest password accepted at registration.
const MinPasswordLen = 8

// Gateway is the remote API surface the app drives.
type Gateway interface {
	cart.Gateway
	catalog.Lister
	Login(ctx context.Context, email, password string) (domain.Credential, error)
	Register(ctx context.Context, reg domain.Registration) (json.RawMessage, error)
	CreateOrder(ctx context.Context, token, shippingAddress string) (domain.Order, error)
	ListOrders(ctx context.Context, token string) ([]domain.Order, error)
}

// Deps are the collaborators an App is built from.
type Deps struct {
	Gateway Gateway
	Vault   *credential.Vault
	Metrics *metrics.Metrics
}

// App is the state container.
type App struct {
	gw      Gateway
	vault   *credential.Vault
	session *session.Store
	cart    *cart.Store
	catalog *catalog.Catalog
	log     *logging.Logger
}

// Snapshot is the combined read surface.
type Snapshot struct {
	Session session.Snapshot `json:"session"`
	Cart    cart.Snapshot    `json:"cart"`
}

// New builds the stores and restores the session once.
func New(deps Deps) *App {
	m := deps.Metrics
	if m == nil {
		m = metrics.Global()
	}

	a := &App{
		gw:      deps.Gateway,
		vault:   deps.Vault,
		session: session.New(deps.Vault),
		cart:    cart.New(cart.Options{Gateway: deps.Gateway, Tokens: deps.Vault, Metrics: m}),
		catalog: catalog.New(deps.Gateway, m),
		log:     logging.New("app"),
	}
	a.session.Restore()
	return a
}

// Session returns the session store.
func (a *App) Session() *session.Store { return a.session }

// Cart returns the cart store.
func (a *App) Cart() *cart.Store { return a.cart }

// Catalog returns the product catalog.
func (a *App) Catalog() *catalog.Catalog { return a.catalog }

// IsAuthenticated reports whether a user is signed in.
func (a *App) IsAuthenticated() bool { return a.session.IsAuthenticated() }

// DisplayName returns the signed-in user's name.
func (a *App) DisplayName() string { return a.session.DisplayName() }

// CartCount returns the total quantity in the cart.
func (a *App) CartCount() int { return a.cart.Count() }

// CartTotal returns the cart's total price.
func (a *App) CartTotal() float64 { return a.cart.Total() }

// Snapshot returns session and cart state.
func (a *App) Snapshot() Snapshot {
	return Snapshot{Session: a.session.Snapshot(), Cart: a.cart.Snapshot()}
}

// Login authenticates against the server, persists the credential and
// marks the session signed in.
func (a *App) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return lifecycle.Validation(FlowLogin, "Email and password are required")
	}

	cred, err := a.gw.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := a.vault.Save(cred); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	a.session.Login(cred.FullName)
	a.log.WithUser(a.session.DisplayName()).Info("login", nil)
	return nil
}

// Register creates an account. It does not sign in.
func (a *App) Register(ctx context.Context, reg domain.Registration) error {
	reg.FullName = strings.TrimSpace(reg.FullName)
	reg.Email = strings.TrimSpace(reg.Email)
	switch {
	case reg.FullName == "" || reg.Email == "" || reg.Password == "":
		return lifecycle.Validation(FlowRegister, "All fields are required")
	case len(reg.Password) < MinPasswordLen:
		return lifecycle.Validation(FlowRegister, fmt.Sprintf("Password must be at least %d characters", MinPasswordLen))
	}

	if _, err := a.gw.Register(ctx, reg); err != nil {
		return err
	}
	a.log.Info("registered", map[string]interface{}{"email": reg.Email})
	return nil
}

// Logout ends the session and empties the local cart.
func (a *App) Logout() error {
	err := a.session.Logout()
	a.cart.Clear()
	return err
}

// AddToCart adds one unit of productID after checking the catalog shows it
// in stock, then reconciles the catalog and cart with the server.
func (a *App) AddToCart(ctx context.Context, productID string) error {
	if !a.session.IsAuthenticated() {
		return lifecycle.Validation(FlowAddToCart, "Please log in to add items to your cart")
	}
	if !a.catalog.Loaded() {
		if err := a.catalog.Refresh(ctx); err != nil {
			return err
		}
	}
	if _, err := a.catalog.Admit(productID); err != nil {
		return err
	}

	if err := a.cart.Add(ctx, productID, 1); err != nil {
		return err
	}
	if err := a.catalog.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh products: %w", err)
	}
	if err := a.cart.Fetch(ctx); err != nil {
		return fmt.Errorf("refresh cart: %w", err)
	}
	return nil
}

// Checkout places an order for the cart and refreshes the cart afterwards.
func (a *App) Checkout(ctx context.Context, shippingAddress string) (domain.Order, error) {
	if !a.session.IsAuthenticated() {
		return domain.Order{}, lifecycle.Validation(FlowCheckout, "Please log in to check out")
	}
	shippingAddress = strings.TrimSpace(shippingAddress)
	if shippingAddress == "" {
		return domain.Order{}, lifecycle.Validation(FlowCheckout, "Shipping address is required")
	}

	order, err := a.gw.CreateOrder(ctx, a.vault.Token(), shippingAddress)
	if err != nil {
		return domain.Order{}, err
	}
	a.log.Info("order_placed", map[string]interface{}{"order": order.ID, "total": order.TotalPrice})

	if err := a.cart.Fetch(ctx); err != nil {
		return order, fmt.Errorf("refresh cart: %w", err)
	}
	return order, nil
}

// Orders lists the signed-in user's orders.
func (a *App) Orders(ctx context.Context) ([]domain.Order, error) {
	if !a.session.IsAuthenticated() {
		return nil, lifecycle.Validation(FlowOrders, "Please log in to view your orders")
	}
	return a.gw.ListOrders(ctx, a.vault.Token())
}
