// Package render provides output formatting for the storefront CLI.
package render

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/joss/storefront/internal/cart"
	"github.com/joss/storefront/internal/domain"
	"github.com/joss/storefront/internal/metrics"
	"github.com/joss/storefront/internal/session"
)

// Renderer handles output formatting.
type Renderer struct {
	pretty bool
}

// New creates a new renderer. Non-pretty output is plain key=value lines
// suited to scripts.
func New(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

// JSON renders v as indented JSON.
func JSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return string(data) + "\n", nil
}

// Price formats an amount with two decimals.
func Price(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}

// Products formats the catalog.
func (r *Renderer) Products(products []domain.Product) string {
	if len(products) == 0 {
		return "No products found\n"
	}

	var sb strings.Builder
	if r.pretty {
		sb.WriteString(color.CyanString("Products\n"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}

	for _, p := range products {
		if r.pretty {
			stock := color.GreenString("%d in stock", p.Stock)
			if !p.InStock() {
				stock = color.RedString("out of stock")
			}
			fmt.Fprintf(&sb, "%-28s %10s  %s  %s\n",
				Truncate(p.Name, 28), Price(p.UnitPrice), stock, color.HiBlackString(p.ID))
		} else {
			fmt.Fprintf(&sb, "id=%s price=%.2f stock=%d name=%q\n", p.ID, p.UnitPrice, p.Stock, p.Name)
		}
	}
	return sb.String()
}

// Cart formats the cart state, including its lifecycle status.
func (r *Renderer) Cart(snap cart.Snapshot) string {
	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("Cart\n"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}

	if len(snap.Items) == 0 {
		sb.WriteString("Your cart is empty\n")
	}

	for _, it := range snap.Items {
		if r.pretty {
			fmt.Fprintf(&sb, "%-28s %3d × %-9s %10s  %s\n",
				Truncate(it.Product.Name, 28), it.Quantity, Price(it.Product.UnitPrice),
				Price(it.LineTotal()), color.HiBlackString(it.Product.ID))
		} else {
			fmt.Fprintf(&sb, "line=%s product=%s quantity=%d price=%.2f\n",
				it.ID, it.Product.ID, it.Quantity, it.Product.UnitPrice)
		}
	}

	if r.pretty {
		sb.WriteString(strings.Repeat("─", 60) + "\n")
		fmt.Fprintf(&sb, "%d item(s)  total %s\n", snap.Count, color.YellowString(Price(snap.Total)))
		if snap.LastError != "" {
			fmt.Fprintf(&sb, "%s %s\n", color.RedString("✗"), snap.LastError)
		}
	} else {
		fmt.Fprintf(&sb, "count=%d total=%.2f status=%s\n", snap.Count, snap.Total, snap.Status)
		if snap.LastError != "" {
			fmt.Fprintf(&sb, "error=%q\n", snap.LastError)
		}
	}
	return sb.String()
}

// Orders formats placed orders, newest last.
func (r *Renderer) Orders(orders []domain.Order) string {
	if len(orders) == 0 {
		return "No orders found\n"
	}

	var sb strings.Builder
	if r.pretty {
		sb.WriteString(color.CyanString("Orders\n"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}

	for _, o := range orders {
		if !r.pretty {
			fmt.Fprintf(&sb, "order=%s items=%d total=%.2f status=%s payment=%s address=%q\n",
				o.ID, o.ItemCount(), o.TotalPrice, o.OrderStatus, o.PaymentStatus, o.ShippingAddress)
			continue
		}

		fmt.Fprintf(&sb, "%s  %s  %s\n", color.YellowString(o.ID), Price(o.TotalPrice), statusText(o.OrderStatus))
		for _, l := range o.Products {
			fmt.Fprintf(&sb, "    └─ %d × %s\n", l.Quantity, Truncate(l.Product.Name, 40))
		}
		fmt.Fprintf(&sb, "    ship to %s\n\n", o.ShippingAddress)
	}
	return sb.String()
}

func statusText(s string) string {
	if s == "" {
		return color.HiBlackString("unknown")
	}
	return color.GreenString(s)
}

// Session formats who is signed in.
func (r *Renderer) Session(snap session.Snapshot) string {
	if r.pretty {
		if !snap.Authenticated {
			return color.HiBlackString("Not logged in") + "\n"
		}
		return fmt.Sprintf("Logged in as %s\n", color.GreenString(snap.DisplayName))
	}
	return fmt.Sprintf("authenticated=%v name=%q\n", snap.Authenticated, snap.DisplayName)
}

// StatusView is everything `storefront status` reports.
type StatusView struct {
	API        string
	Credential string
	Session    session.Snapshot
	Cart       cart.Snapshot
	Metrics    metrics.Snapshot
}

// Status formats the client status.
func (r *Renderer) Status(v StatusView) string {
	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("Storefront Status\n"))
		sb.WriteString(strings.Repeat("─", 40) + "\n")
		fmt.Fprintf(&sb, "  API:      %s\n", v.API)
		fmt.Fprintf(&sb, "  Store:    %s\n", v.Credential)
		if v.Session.Authenticated {
			fmt.Fprintf(&sb, "  Session:  %s\n", color.GreenString(v.Session.DisplayName))
		} else {
			fmt.Fprintf(&sb, "  Session:  %s\n", color.HiBlackString("logged out"))
		}
		fmt.Fprintf(&sb, "  Cart:     %s %d item(s) %s\n", StatusIcon(v.Cart.Status), v.Cart.Count, Price(v.Cart.Total))
		fmt.Fprintf(&sb, "  Requests: %d (%d failed, last %s)\n",
			v.Metrics.Requests, v.Metrics.RequestErrors,
			FormatDuration(time.Duration(v.Metrics.LastRequestMs)*time.Millisecond))
		fmt.Fprintf(&sb, "  Uptime:   %s\n", FormatDuration(v.Metrics.Uptime))
	} else {
		fmt.Fprintf(&sb, "api=%s authenticated=%v cart_status=%s cart_count=%d requests=%d failed=%d\n",
			v.API, v.Session.Authenticated, v.Cart.Status, v.Cart.Count, v.Metrics.Requests, v.Metrics.RequestErrors)
	}
	return sb.String()
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
