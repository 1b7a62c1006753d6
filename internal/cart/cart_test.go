package cart_test

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/storefront/internal/cart"
	"github.com/joss/storefront/internal/domain"
	"github.com/joss/storefront/internal/gateway"
	"github.com/joss/storefront/internal/gateway/gatewaytest"
	"github.com/joss/storefront/internal/lifecycle"
	"github.com/joss/storefront/internal/metrics"
)

type staticToken string

func (t staticToken) Token() string { return string(t) }

// stubGateway answers from per-method funcs and counts calls.
type stubGateway struct {
	fetch   func(ctx context.Context) ([]domain.CartItem, error)
	add     func(ctx context.Context, productID string, qty int) (domain.CartItem, error)
	remove  func(ctx context.Context, productID string) error
	refetch func(ctx context.Context) ([]domain.CartItem, error)

	calls atomic.Int32
}

func (g *stubGateway) FetchCart(ctx context.Context, token string) ([]domain.CartItem, error) {
	g.calls.Add(1)
	return g.fetch(ctx)
}

func (g *stubGateway) AddToCart(ctx context.Context, token, productID string, qty int) (domain.CartItem, error) {
	g.calls.Add(1)
	return g.add(ctx, productID, qty)
}

func (g *stubGateway) RemoveFromCart(ctx context.Context, token, productID string) error {
	g.calls.Add(1)
	return g.remove(ctx, productID)
}

func (g *stubGateway) RefetchCart(ctx context.Context, token string) ([]domain.CartItem, error) {
	g.calls.Add(1)
	return g.refetch(ctx)
}

func line(id, productID string, price float64, qty int) domain.CartItem {
	return domain.CartItem{
		ID:       id,
		Product:  domain.Product{ID: productID, Name: productID, UnitPrice: price, Stock: 10},
		Quantity: qty,
	}
}

func newStore(gw cart.Gateway) *cart.Store {
	return cart.New(cart.Options{Gateway: gw, Tokens: staticToken("t"), Metrics: metrics.New()})
}

func TestFetchReplacesAddAppendsRemoveRefetches(t *testing.T) {
	a := line("a", "p1", 10, 2)
	b := line("b", "p2", 5, 1)
	gw := &stubGateway{
		fetch: func(context.Context) ([]domain.CartItem, error) { return []domain.CartItem{a}, nil },
		add: func(_ context.Context, productID string, qty int) (domain.CartItem, error) {
			assert.Equal(t, "p2", productID)
			assert.Equal(t, 1, qty)
			return b, nil
		},
		remove:  func(context.Context, string) error { return nil },
		refetch: func(context.Context) ([]domain.CartItem, error) { return []domain.CartItem{a}, nil },
	}
	s := newStore(gw)
	ctx := context.Background()

	require.NoError(t, s.Fetch(ctx))
	assert.Equal(t, []domain.CartItem{a}, s.Items())

	require.NoError(t, s.Add(ctx, "p2", 1))
	assert.Equal(t, []domain.CartItem{a, b}, s.Items())

	require.NoError(t, s.Remove(ctx, "p2"))
	assert.Equal(t, []domain.CartItem{a}, s.Items())
	assert.Equal(t, lifecycle.StatusIdle, s.Status())
	assert.Empty(t, s.LastError())
}

func TestFetchErrorPreservesItems(t *testing.T) {
	a := line("a", "p1", 10, 2)
	fail := false
	gw := &stubGateway{
		fetch: func(context.Context) ([]domain.CartItem, error) {
			if fail {
				return nil, lifecycle.Rejected(gateway.OpFetchCart, 500, "Failed to fetch cart items")
			}
			return []domain.CartItem{a}, nil
		},
	}
	s := newStore(gw)
	require.NoError(t, s.Fetch(context.Background()))

	fail = true
	err := s.Fetch(context.Background())
	require.Error(t, err)

	assert.Equal(t, lifecycle.StatusError, s.Status())
	assert.Equal(t, "Failed to fetch cart items", s.LastError())
	assert.Equal(t, []domain.CartItem{a}, s.Items())
}

func TestDerivedTotals(t *testing.T) {
	items := []domain.CartItem{line("a", "p1", 10, 2), line("b", "p2", 5, 3)}
	reversed := []domain.CartItem{items[1], items[0]}

	for _, list := range [][]domain.CartItem{items, reversed} {
		list := list
		gw := &stubGateway{fetch: func(context.Context) ([]domain.CartItem, error) { return list, nil }}
		s := newStore(gw)
		require.NoError(t, s.Fetch(context.Background()))

		assert.Equal(t, 35.0, s.Total())
		assert.Equal(t, 5, s.Count())
	}
}

func TestValidationShortCircuits(t *testing.T) {
	gw := &stubGateway{}
	s := newStore(gw)

	tests := []struct {
		name      string
		productID string
		qty       int
	}{
		{"zero quantity", "p1", 0},
		{"negative quantity", "p1", -1},
		{"missing product", "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Add(context.Background(), tt.productID, tt.qty)
			require.Error(t, err)
			assert.True(t, lifecycle.IsValidation(err))
			assert.Equal(t, lifecycle.StatusError, s.Status())
			assert.NotEmpty(t, s.LastError())
		})
	}

	err := s.Remove(context.Background(), "")
	assert.True(t, lifecycle.IsValidation(err))
	assert.Equal(t, int32(0), gw.calls.Load())
}

func TestRemoveFailsWhenRefetchFails(t *testing.T) {
	a := line("a", "p1", 10, 2)
	gw := &stubGateway{
		fetch:  func(context.Context) ([]domain.CartItem, error) { return []domain.CartItem{a}, nil },
		remove: func(context.Context, string) error { return nil },
		refetch: func(context.Context) ([]domain.CartItem, error) {
			return nil, lifecycle.Rejected(gateway.OpRefetchCart, 500, "Failed to fetch updated cart items")
		},
	}
	s := newStore(gw)
	require.NoError(t, s.Fetch(context.Background()))

	err := s.Remove(context.Background(), "p1")
	require.Error(t, err)
	assert.Equal(t, "Failed to fetch updated cart items", s.LastError())
	assert.Equal(t, []domain.CartItem{a}, s.Items())
}

func TestRemoveFailsWhenDeleteFails(t *testing.T) {
	gw := &stubGateway{
		remove: func(context.Context, string) error {
			return lifecycle.Rejected(gateway.OpRemoveFromCart, 404, "Item not found in cart")
		},
	}
	s := newStore(gw)

	err := s.Remove(context.Background(), "p1")
	require.Error(t, err)
	assert.Equal(t, lifecycle.StatusError, s.Status())
	assert.Equal(t, int32(1), gw.calls.Load(), "refetch must not run after a failed delete")
}

func TestClearIsLocal(t *testing.T) {
	gw := &stubGateway{
		fetch: func(context.Context) ([]domain.CartItem, error) {
			return nil, lifecycle.Rejected(gateway.OpFetchCart, 500, "boom")
		},
	}
	s := newStore(gw)
	require.Error(t, s.Fetch(context.Background()))
	calls := gw.calls.Load()

	s.Clear()
	assert.Empty(t, s.Items())
	assert.NotNil(t, s.Items())
	assert.Equal(t, lifecycle.StatusIdle, s.Status())
	assert.Equal(t, calls, gw.calls.Load())
}

func TestIdenticalFetchesJoin(t *testing.T) {
	a := line("a", "p1", 10, 1)
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	gw := &stubGateway{
		fetch: func(context.Context) ([]domain.CartItem, error) {
			started <- struct{}{}
			<-gate
			return []domain.CartItem{a}, nil
		},
	}
	s := newStore(gw)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[0] = s.Fetch(context.Background())
	}()
	<-started
	assert.Equal(t, lifecycle.StatusPending, s.Status())

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[1] = s.Fetch(context.Background())
	}()
	require.Eventually(t, func() bool {
		return s.Snapshot().Status == lifecycle.StatusPending.String()
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, int32(1), gw.calls.Load())
	assert.Equal(t, []domain.CartItem{a}, s.Items())
	assert.Equal(t, lifecycle.StatusIdle, s.Status())
}

func TestIdenticalAddsAppendOnce(t *testing.T) {
	b := line("b", "p2", 5, 1)
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	gw := &stubGateway{
		add: func(context.Context, string, int) (domain.CartItem, error) {
			started <- struct{}{}
			<-gate
			return b, nil
		},
	}
	m := metrics.New()
	s := cart.New(cart.Options{Gateway: gw, Tokens: staticToken("t"), Metrics: m})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.Add(context.Background(), "p2", 1))
	}()
	<-started

	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.Add(context.Background(), "p2", 1))
	}()
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), gw.calls.Load())
	assert.Equal(t, []domain.CartItem{b}, s.Items())
	assert.Equal(t, int64(2), m.Snapshot().Intents)
}

func TestStaleReplaceDiscarded(t *testing.T) {
	old := line("old", "p1", 10, 5)
	fresh := line("fresh", "p1", 10, 1)
	slow := make(chan struct{})
	started := make(chan struct{}, 1)
	gw := &stubGateway{
		fetch: func(context.Context) ([]domain.CartItem, error) {
			started <- struct{}{}
			<-slow
			return []domain.CartItem{old}, nil
		},
		remove:  func(context.Context, string) error { return nil },
		refetch: func(context.Context) ([]domain.CartItem, error) { return []domain.CartItem{fresh}, nil },
	}
	s := newStore(gw)

	done := make(chan error, 1)
	go func() { done <- s.Fetch(context.Background()) }()
	<-started

	// Issued after the fetch, settles before it.
	require.NoError(t, s.Remove(context.Background(), "p2"))
	assert.Equal(t, []domain.CartItem{fresh}, s.Items())
	assert.Equal(t, lifecycle.StatusPending, s.Status())

	close(slow)
	require.NoError(t, <-done)
	assert.Equal(t, []domain.CartItem{fresh}, s.Items())
	assert.Equal(t, lifecycle.StatusIdle, s.Status())
}

func TestClearDiscardsInFlight(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	gw := &stubGateway{
		fetch: func(context.Context) ([]domain.CartItem, error) {
			started <- struct{}{}
			<-gate
			return []domain.CartItem{line("a", "p1", 1, 1)}, nil
		},
	}
	s := newStore(gw)

	done := make(chan error, 1)
	go func() { done <- s.Fetch(context.Background()) }()
	<-started
	s.Clear()
	close(gate)

	require.NoError(t, <-done)
	assert.Empty(t, s.Items())
}

func TestCancellationSettlesAsNetworkFailure(t *testing.T) {
	gw := &stubGateway{
		fetch: func(ctx context.Context) ([]domain.CartItem, error) {
			<-ctx.Done()
			return nil, lifecycle.Network(gateway.OpFetchCart, ctx.Err())
		},
	}
	s := newStore(gw)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Fetch(ctx) }()
	require.Eventually(t, func() bool { return gw.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	err := <-done
	require.Error(t, err)
	assert.True(t, lifecycle.IsNetwork(err))
	assert.Equal(t, lifecycle.StatusError, s.Status())
}

func TestAgainstFakeServer(t *testing.T) {
	srv := gatewaytest.New()
	defer srv.Close()
	srv.AddProduct(domain.Product{ID: "p1", Name: "Mug", UnitPrice: 10, Stock: 5})
	token := srv.AddUser("Ada", "ada@example.com", "password1")

	gw := gateway.New(gateway.Options{BaseURL: srv.URL, Metrics: metrics.New()})
	s := cart.New(cart.Options{Gateway: gw, Tokens: staticToken(token), Metrics: metrics.New()})
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "p1", 1))
	require.NoError(t, s.Add(ctx, "p1", 2))
	// The server creates one line per add.
	assert.Len(t, s.Items(), 2)
	assert.Equal(t, 3, s.Count())
	assert.Equal(t, 30.0, s.Total())

	require.NoError(t, s.Fetch(ctx))
	assert.Equal(t, 3, s.Count())

	srv.Fail(gatewaytest.RouteCart, http.StatusInternalServerError, "")
	err := s.Remove(ctx, "p1")
	require.Error(t, err)
	assert.Equal(t, "Failed to fetch updated cart items", s.LastError())
	assert.Len(t, s.Items(), 2)

	srv.Clear(gatewaytest.RouteCart)
	require.NoError(t, s.Fetch(ctx))
	assert.Empty(t, s.Items())
}

func TestUnauthenticatedFetchRejected(t *testing.T) {
	srv := gatewaytest.New()
	defer srv.Close()

	gw := gateway.New(gateway.Options{BaseURL: srv.URL, Metrics: metrics.New()})
	s := cart.New(cart.Options{Gateway: gw, Tokens: staticToken(""), Metrics: metrics.New()})

	err := s.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, lifecycle.IsRejected(err))
	assert.Equal(t, "Unauthorized", s.LastError())
}

func TestJoinedFetchOutlivesCancelledFirstCaller(t *testing.T) {
	a := line("a", "p1", 10, 1)
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	gw := &stubGateway{
		fetch: func(ctx context.Context) ([]domain.CartItem, error) {
			started <- struct{}{}
			select {
			case <-gate:
				return []domain.CartItem{a}, nil
			case <-ctx.Done():
				return nil, lifecycle.Network(gateway.OpFetchCart, ctx.Err())
			}
		},
	}
	s := newStore(gw)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- s.Fetch(firstCtx) }()
	<-started

	second := make(chan error, 1)
	go func() { second <- s.Fetch(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	err := <-first
	require.Error(t, err)
	assert.True(t, lifecycle.IsNetwork(err))
	assert.Equal(t, lifecycle.StatusPending, s.Status())

	close(gate)
	require.NoError(t, <-second)
	assert.Equal(t, int32(1), gw.calls.Load())
	assert.Equal(t, []domain.CartItem{a}, s.Items())
	assert.Equal(t, lifecycle.StatusIdle, s.Status())
	assert.Empty(t, s.LastError())
}

func TestRemoveRefetchWinsOverFetchIssuedDuringDelete(t *testing.T) {
	a := line("a", "p1", 10, 1)
	b := line("b", "p2", 5, 1)
	deleting := make(chan struct{})
	releaseDelete := make(chan struct{})
	gw := &stubGateway{
		fetch: func(context.Context) ([]domain.CartItem, error) {
			return []domain.CartItem{a, b}, nil
		},
		remove: func(context.Context, string) error {
			close(deleting)
			<-releaseDelete
			return nil
		},
		refetch: func(context.Context) ([]domain.CartItem, error) {
			return []domain.CartItem{a}, nil
		},
	}
	s := newStore(gw)

	removed := make(chan error, 1)
	go func() { removed <- s.Remove(context.Background(), "p2") }()
	<-deleting

	// Reads the cart before the delete lands.
	require.NoError(t, s.Fetch(context.Background()))
	assert.Equal(t, []domain.CartItem{a, b}, s.Items())

	close(releaseDelete)
	require.NoError(t, <-removed)
	assert.Equal(t, []domain.CartItem{a}, s.Items())
	assert.Equal(t, lifecycle.StatusIdle, s.Status())
}

func TestLaterSuccessClearsEarlierFailure(t *testing.T) {
	tests := []struct {
		name string
		fail func(s *cart.Store) error
	}{
		{
			name: "validation reject",
			fail: func(s *cart.Store) error { return s.Add(context.Background(), "p1", 0) },
		},
		{
			name: "server rejection",
			fail: func(s *cart.Store) error { return s.Remove(context.Background(), "p9") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := line("a", "p1", 10, 1)
			gate := make(chan struct{})
			started := make(chan struct{}, 1)
			gw := &stubGateway{
				fetch: func(context.Context) ([]domain.CartItem, error) {
					started <- struct{}{}
					<-gate
					return []domain.CartItem{a}, nil
				},
				remove: func(context.Context, string) error {
					return lifecycle.Rejected(gateway.OpRemoveFromCart, 404, "Item not found in cart")
				},
			}
			s := newStore(gw)

			done := make(chan error, 1)
			go func() { done <- s.Fetch(context.Background()) }()
			<-started

			require.Error(t, tt.fail(s))
			assert.Equal(t, lifecycle.StatusPending, s.Status())

			close(gate)
			require.NoError(t, <-done)
			assert.Equal(t, lifecycle.StatusIdle, s.Status())
			assert.Empty(t, s.LastError())
			assert.Equal(t, []domain.CartItem{a}, s.Items())
		})
	}
}
