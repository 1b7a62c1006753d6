// Package catalog caches the product list returned by the last successful
// listing. It backs the stock admission check done before adding to the
// cart.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/joss/storefront/internal/domain"
	"github.com/joss/storefront/internal/lifecycle"
	"github.com/joss/storefront/internal/logging"
	"github.com/joss/storefront/internal/metrics"
)

// OpAdmit names admission failures.
const OpAdmit = "admit"

// Lister fetches the product list.
type Lister interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// Catalog is the cached product list. It is safe for concurrent use.
type Catalog struct {
	lister  Lister
	metrics *metrics.Metrics
	log     *logging.Logger
	flights lifecycle.Group

	mu       sync.RWMutex
	products []domain.Product
	loaded   bool
	tracker  lifecycle.Tracker
}

// New creates an empty catalog.
func New(lister Lister, m *metrics.Metrics) *Catalog {
	if m == nil {
		m = metrics.Global()
	}
	return &Catalog{lister: lister, metrics: m, log: logging.New("catalog")}
}

// Refresh reloads the product list. On failure the previous list is kept.
func (c *Catalog) Refresh(ctx context.Context) error {
	start := time.Now()
	c.mu.Lock()
	c.tracker.Begin()
	c.mu.Unlock()

	products, shared, err := lifecycle.Do(ctx, &c.flights, "refresh", func(ctx context.Context) ([]domain.Product, error) {
		return c.lister.ListProducts(ctx)
	})

	c.mu.Lock()
	c.tracker.Settle(err)
	if err == nil {
		c.products = products
		c.loaded = true
	}
	c.mu.Unlock()

	c.metrics.RecordIntent("catalog", "refresh", err, shared)
	c.log.TimedEvent("refresh", start, map[string]interface{}{"count": len(products)}, err)
	return err
}

// Loaded reports whether a listing has ever succeeded.
func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Products returns a copy of the cached list.
func (c *Catalog) Products() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Product{}, c.products...)
}

// Status returns the refresh status.
func (c *Catalog) Status() lifecycle.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tracker.Status()
}

// LastError returns the last refresh failure while Status is StatusError.
func (c *Catalog) LastError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tracker.LastError()
}

// Find looks a product up by id.
func (c *Catalog) Find(id string) (domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

// Filter returns the products whose name matches pattern, case-insensitive.
// Patterns use glob syntax; a pattern without metacharacters matches as a
// substring. An empty pattern matches everything.
func (c *Catalog) Filter(pattern string) ([]domain.Product, error) {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return c.Products(), nil
	}
	if !strings.ContainsAny(pattern, "*?[{") {
		pattern = "*" + pattern + "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []domain.Product
	for _, p := range c.products {
		ok, err := doublestar.Match(pattern, strings.ToLower(p.Name))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Admit checks that productID is known from the last listing and in stock.
// The check uses cached data; the server remains the final authority.
func (c *Catalog) Admit(productID string) (domain.Product, error) {
	p, ok := c.Find(productID)
	if !ok {
		return domain.Product{}, lifecycle.Validation(OpAdmit, fmt.Sprintf("unknown product %q", productID))
	}
	if !p.InStock() {
		return p, lifecycle.Validation(OpAdmit, fmt.Sprintf("%s is out of stock", p.Name))
	}
	return p, nil
}
