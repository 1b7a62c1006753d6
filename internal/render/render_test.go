package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/storefront/internal/audit"
	"github.com/joss/storefront/internal/cart"
	"github.com/joss/storefront/internal/domain"
	"github.com/joss/storefront/internal/session"
)

func init() {
	color.NoColor = true
}

var products = []domain.Product{
	{ID: "p1", Name: "Blue Mug", UnitPrice: 10, Stock: 3},
	{ID: "p2", Name: "Red Mug", UnitPrice: 12.5, Stock: 0},
}

func TestProducts(t *testing.T) {
	plain := New(false).Products(products)
	assert.Contains(t, plain, `id=p1 price=10.00 stock=3 name="Blue Mug"`)

	pretty := New(true).Products(products)
	assert.Contains(t, pretty, "Products")
	assert.Contains(t, pretty, "$12.50")
	assert.Contains(t, pretty, "out of stock")

	assert.Equal(t, "No products found\n", New(true).Products(nil))
}

func TestCart(t *testing.T) {
	snap := cart.Snapshot{
		Items: []domain.CartItem{
			{ID: "a", Product: products[0], Quantity: 2},
		},
		Status:    "error",
		LastError: "Failed to fetch cart items",
		Count:     2,
		Total:     20,
	}

	plain := New(false).Cart(snap)
	assert.Contains(t, plain, "line=a product=p1 quantity=2 price=10.00")
	assert.Contains(t, plain, "count=2 total=20.00 status=error")
	assert.Contains(t, plain, `error="Failed to fetch cart items"`)

	pretty := New(true).Cart(snap)
	assert.Contains(t, pretty, "$20.00")
	assert.Contains(t, pretty, "✗ Failed to fetch cart items")

	empty := New(true).Cart(cart.Snapshot{Status: "idle"})
	assert.Contains(t, empty, "Your cart is empty")
}

func TestOrders(t *testing.T) {
	orders := []domain.Order{{
		ID:              "o1",
		Products:        []domain.OrderLine{{Product: products[0], Quantity: 2, Price: 10}},
		TotalPrice:      20,
		ShippingAddress: "1 Main St",
		OrderStatus:     "Processing",
	}}

	pretty := New(true).Orders(orders)
	assert.Contains(t, pretty, "o1")
	assert.Contains(t, pretty, "2 × Blue Mug")
	assert.Contains(t, pretty, "ship to 1 Main St")

	plain := New(false).Orders(orders)
	assert.Contains(t, plain, "order=o1 items=2 total=20.00")
}

func TestSession(t *testing.T) {
	assert.Contains(t, New(true).Session(session.Snapshot{Authenticated: true, DisplayName: "Ann"}), "Logged in as Ann")
	assert.Contains(t, New(true).Session(session.Snapshot{}), "Not logged in")
	assert.Equal(t, "authenticated=false name=\"\"\n", New(false).Session(session.Snapshot{}))
}

func TestJSON(t *testing.T) {
	out, err := JSON(map[string]int{"count": 2})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"count\": 2\n}\n", out)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{125 * time.Second, "2m5s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.d))
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "día", Truncate("día", 3))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
}

func TestAuditEvents(t *testing.T) {
	var buf bytes.Buffer
	a := NewAudit(&buf)

	a.Events(nil)
	assert.Equal(t, "No activity recorded\n", buf.String())

	buf.Reset()
	a.Events([]audit.Event{{
		Category:     audit.CategoryCart,
		Operation:    "add",
		Status:       audit.StatusError,
		ErrorMessage: "Insufficient stock",
		StartedAt:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		DurationMs:   120,
		User:         "Ann",
	}})
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "ACTIVITY (1 EVENTS)"))
	assert.Contains(t, out, "✗ [2024-01-02 03:04:05] cart/add (120ms) by Ann")
	assert.Contains(t, out, "└─ Insufficient stock")
}

func TestAuditStats(t *testing.T) {
	var buf bytes.Buffer
	NewAudit(&buf).Stats(&audit.Stats{
		Total:      3,
		Success:    2,
		Errors:     1,
		ByCategory: map[audit.Category]audit.CategoryStats{audit.CategoryCart: {Total: 3, Errors: 1}},
	})
	out := buf.String()
	assert.Contains(t, out, "Total events:   3")
	assert.Contains(t, out, "cart:      3 total, 1 errors")
}
