package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/joss/storefront/internal/audit"
	"github.com/joss/storefront/internal/domain"
	"github.com/joss/storefront/internal/logging"
	"github.com/joss/storefront/internal/render"
)

var recovery = logging.NewRecoveryHandler("tui")

// run executes fn with a per-action timeout, panic recovery and an audit
// record.
func (m Model) run(category audit.Category, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
	defer cancel()
	return m.audit.Track(category, op, func() error {
		return recovery.WrapError(func() error { return fn(ctx) })
	})
}

func (m Model) refreshProducts() tea.Cmd {
	return func() tea.Msg {
		err := m.run(audit.CategoryCatalog, "products", m.app.Catalog().Refresh)
		return productsMsg{err: err}
	}
}

func (m Model) fetchCart() tea.Cmd {
	return func() tea.Msg {
		err := m.run(audit.CategoryCart, "fetch", m.app.Cart().Fetch)
		return cartMsg{err: err}
	}
}

func (m Model) listOrders() tea.Cmd {
	return func() tea.Msg {
		var orders []domain.Order
		err := m.run(audit.CategoryOrders, "list", func(ctx context.Context) error {
			var err error
			orders, err = m.app.Orders(ctx)
			return err
		})
		return ordersMsg{orders: orders, err: err}
	}
}

func (m Model) addToCart(p domain.Product) tea.Cmd {
	return func() tea.Msg {
		err := m.run(audit.CategoryCart, "add", func(ctx context.Context) error {
			return m.app.AddToCart(ctx, p.ID)
		})
		return doneMsg{note: fmt.Sprintf("Added %s to cart", p.Name), err: err}
	}
}

func (m Model) removeFromCart(p domain.Product) tea.Cmd {
	return func() tea.Msg {
		err := m.run(audit.CategoryCart, "remove", func(ctx context.Context) error {
			return m.app.Cart().Remove(ctx, p.ID)
		})
		return doneMsg{note: fmt.Sprintf("Removed %s from cart", p.Name), err: err}
	}
}

func (m Model) checkout(address string) tea.Cmd {
	return func() tea.Msg {
		var order domain.Order
		err := m.run(audit.CategoryOrders, "checkout", func(ctx context.Context) error {
			var err error
			order, err = m.app.Checkout(ctx, address)
			return err
		})
		return doneMsg{
			note: fmt.Sprintf("Order %s placed: %s", order.ID, render.Price(order.TotalPrice)),
			err:  err,
			then: m.refreshProducts(),
		}
	}
}

func (m Model) login(email, password string) tea.Cmd {
	return func() tea.Msg {
		err := m.run(audit.CategorySession, "login", func(ctx context.Context) error {
			return m.app.Login(ctx, email, password)
		})
		if err != nil {
			return doneMsg{err: err}
		}
		return doneMsg{note: "Welcome, " + m.app.DisplayName(), then: m.fetchCart()}
	}
}

func (m Model) logout() tea.Cmd {
	return func() tea.Msg {
		err := m.run(audit.CategorySession, "logout", func(context.Context) error {
			return m.app.Logout()
		})
		return doneMsg{note: "Logged out", err: err}
	}
}
