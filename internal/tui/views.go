package tui

import (
	"fmt"
	"strings"

	"github.com/joss/storefront/internal/lifecycle"
	"github.com/joss/storefront/internal/render"
)

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if !m.ready {
		return fmt.Sprintf("\n  %s Loading...", m.spinner.View())
	}

	var body, help string
	switch m.view {
	case ViewCart:
		body, help = m.viewCart(), "j/k: move │ d: remove │ p: checkout │ r: refresh │ esc: back"
	case ViewOrders:
		body, help = boxStyle.Width(max(m.width-4, 10)).Render(m.viewport.View()), "scroll: view │ esc: back"
	case ViewLogin:
		body, help = m.viewLogin(), "tab: switch field │ enter: submit │ esc: cancel"
	case ViewCheckout:
		body, help = m.viewCheckout(), "enter: place order │ esc: cancel"
	case ViewHelp:
		return m.viewHelp()
	default:
		body, help = m.viewProducts(), "a: add │ /: filter │ c: cart │ o: orders │ l: login/out │ ?: help │ q: quit"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("🛒 Storefront") + "\n\n")
	b.WriteString(m.statusBar() + "\n\n")
	b.WriteString(body)
	b.WriteString("\n" + m.footer())
	b.WriteString(helpStyle.Render("  " + help))
	return b.String()
}

func (m Model) statusBar() string {
	user := infoStyle.Render("guest")
	if m.app.IsAuthenticated() {
		user = activeStyle.Render(m.app.DisplayName())
	}

	cart := m.app.Cart()
	snap := m.metrics.Snapshot()
	bar := fmt.Sprintf("%s │ cart %s %d item(s) %s │ requests %d (%d failed)",
		user,
		render.StatusIcon(cart.Status().String()),
		cart.Count(),
		render.Price(cart.Total()),
		snap.Requests,
		snap.RequestErrors,
	)
	return statusBarStyle.Render(bar)
}

func (m Model) footer() string {
	switch {
	case m.busy > 0:
		return fmt.Sprintf("  %s working...\n", m.spinner.View())
	case m.err != nil:
		return errorStyle.Render("  ✗ "+lifecycle.Message(m.err)) + "\n"
	case m.note != "":
		return activeStyle.Render("  ✓ "+m.note) + "\n"
	}
	return ""
}

func (m Model) viewProducts() string {
	var b strings.Builder

	if m.filterIn.Focused() || m.filter != "" {
		b.WriteString("  " + m.filterIn.View() + "\n\n")
	}

	if len(m.products) == 0 {
		if msg := m.app.Catalog().LastError(); msg != "" {
			b.WriteString(errorStyle.Render("  "+msg) + "\n")
		} else {
			b.WriteString(infoStyle.Render("  No products found") + "\n")
		}
		return b.String()
	}

	for i, p := range m.products {
		cursor := "  "
		style := infoStyle
		if i == m.cursor {
			cursor = "▶ "
			style = activeStyle
		}
		stock := fmt.Sprintf("%d in stock", p.Stock)
		if !p.InStock() {
			stock = "out of stock"
		}
		line := fmt.Sprintf("%s%-28s %10s  %s", cursor, render.Truncate(p.Name, 28), render.Price(p.UnitPrice), stock)
		b.WriteString(style.Render(line) + "\n")
	}
	return b.String()
}

func (m Model) viewCart() string {
	if !m.app.IsAuthenticated() {
		return infoStyle.Render("  Log in (l) to see your cart") + "\n"
	}

	var b strings.Builder
	items := m.app.Cart().Items()
	if len(items) == 0 {
		b.WriteString(infoStyle.Render("  Your cart is empty") + "\n")
	}
	for i, it := range items {
		cursor := "  "
		style := infoStyle
		if i == m.cursor {
			cursor = "▶ "
			style = activeStyle
		}
		line := fmt.Sprintf("%s%-28s %3d × %-9s %10s", cursor,
			render.Truncate(it.Product.Name, 28), it.Quantity,
			render.Price(it.Product.UnitPrice), render.Price(it.LineTotal()))
		b.WriteString(style.Render(line) + "\n")
	}

	b.WriteString("\n  " + strings.Repeat("─", 56) + "\n")
	fmt.Fprintf(&b, "  %d item(s)  total %s\n", m.app.CartCount(), render.Price(m.app.CartTotal()))
	if msg := m.app.Cart().LastError(); msg != "" {
		b.WriteString(errorStyle.Render("  "+msg) + "\n")
	}
	return b.String()
}

func (m Model) viewLogin() string {
	return "  " + m.email.View() + "\n  " + m.password.View() + "\n"
}

func (m Model) viewCheckout() string {
	return fmt.Sprintf("  Total %s\n\n  %s\n", render.Price(m.app.CartTotal()), m.address.View())
}

func (m Model) ordersContent() string {
	if len(m.orders) == 0 {
		return "No orders yet"
	}
	return render.New(false).Orders(m.orders)
}

func (m Model) viewHelp() string {
	help := `
  🛒 Storefront - Help

  PRODUCTS
    j/k       Move
    a/enter   Add one to cart
    /         Filter by name (glob)
    r         Refresh products

  CART
    c         Open cart
    d         Remove product
    p         Checkout

  ACCOUNT
    l         Log in / log out
    o         Orders
    q         Quit
`
	return titleStyle.Render("Help") + "\n" + infoStyle.Render(help) + helpStyle.Render("\n  press any key to return")
}
