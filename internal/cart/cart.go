// Package cart holds the authoritative list of cart lines and the status of
// the intents that change it. Fetch and Remove replace the list wholesale;
// Add appends the single line the server returns.
package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/joss/storefront/internal/domain"
	"github.com/joss/storefront/internal/lifecycle"
	"github.com/joss/storefront/internal/logging"
	"github.com/joss/storefront/internal/metrics"
)

// Intent names used in logs, metrics and validation errors.
const (
	IntentFetch  = "fetch"
	IntentAdd    = "add"
	IntentRemove = "remove"
)

// Gateway is the subset of the remote API the cart needs.
type Gateway interface {
	FetchCart(ctx context.Context, token string) ([]domain.CartItem, error)
	AddToCart(ctx context.Context, token, productID string, quantity int) (domain.CartItem, error)
	RemoveFromCart(ctx context.Context, token, productID string) error
	RefetchCart(ctx context.Context, token string) ([]domain.CartItem, error)
}

// TokenSource yields the bearer token attached to each request.
type TokenSource interface {
	Token() string
}

// Snapshot is a consistent copy of the cart state.
type Snapshot struct {
	Items     []domain.CartItem `json:"items"`
	Status    string            `json:"status"`
	LastError string            `json:"lastError,omitempty"`
	Count     int               `json:"count"`
	Total     float64           `json:"total"`
}

// Store is the cart state. It is safe for concurrent use.
//
// Identical intents issued while one is in flight join it and share its
// outcome. Wholesale replacements carry a ticket taken when their read is
// issued so a slow replace cannot overwrite a newer one. Clear starts a new epoch:
// anything issued before it is discarded when it settles.
type Store struct {
	gw      Gateway
	tokens  TokenSource
	metrics *metrics.Metrics
	log     *logging.Logger
	flights lifecycle.Group

	mu      sync.Mutex
	items   []domain.CartItem
	tracker lifecycle.Tracker
	seq     lifecycle.Sequencer
	epoch   uint64
}

// Options configures a Store.
type Options struct {
	Gateway Gateway
	Tokens  TokenSource
	Metrics *metrics.Metrics
}

// New creates an empty, idle cart.
func New(opts Options) *Store {
	m := opts.Metrics
	if m == nil {
		m = metrics.Global()
	}
	return &Store{
		gw:      opts.Gateway,
		tokens:  opts.Tokens,
		metrics: m,
		log:     logging.New("cart"),
		items:   []domain.CartItem{},
	}
}

// Fetch replaces the items with the server's cart. On failure the items are
// left as they were.
func (s *Store) Fetch(ctx context.Context) error {
	return s.run(ctx, IntentFetch, IntentFetch, func(ctx context.Context) error {
		ticket, epoch := s.issue()
		items, err := s.gw.FetchCart(ctx, s.tokens.Token())
		if err != nil {
			return err
		}
		s.replace(ticket, epoch, IntentFetch, items)
		return nil
	})
}

// Add posts one add and appends the returned line. It does not reconcile
// with the server; callers that need merged quantities follow up with Fetch.
func (s *Store) Add(ctx context.Context, productID string, quantity int) error {
	switch {
	case productID == "":
		return s.reject(IntentAdd, lifecycle.Validation(IntentAdd, "product id is required"))
	case quantity <= 0:
		return s.reject(IntentAdd, lifecycle.Validation(IntentAdd, "quantity must be positive"))
	}

	key := fmt.Sprintf("%s:%s:%d", IntentAdd, productID, quantity)
	return s.run(ctx, IntentAdd, key, func(ctx context.Context) error {
		epoch := s.currentEpoch()
		item, err := s.gw.AddToCart(ctx, s.tokens.Token(), productID, quantity)
		if err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if epoch != s.epoch {
			s.log.Debug("discarded", map[string]interface{}{"intent": IntentAdd, "reason": "cleared"})
			return nil
		}
		s.items = append(s.items, item)
		return nil
	})
}

// Remove deletes every line for productID, then refetches the cart and
// replaces the items with it. Either request failing fails the intent.
// The replace is ordered by when the refetch was issued.
func (s *Store) Remove(ctx context.Context, productID string) error {
	if productID == "" {
		return s.reject(IntentRemove, lifecycle.Validation(IntentRemove, "product id is required"))
	}

	key := IntentRemove + ":" + productID
	return s.run(ctx, IntentRemove, key, func(ctx context.Context) error {
		epoch := s.currentEpoch()
		token := s.tokens.Token()
		if err := s.gw.RemoveFromCart(ctx, token, productID); err != nil {
			return err
		}
		// The refetch is the read that matters, so it is sequenced against
		// fetches issued while the delete was in flight.
		ticket, _ := s.issue()
		items, err := s.gw.RefetchCart(ctx, token)
		if err != nil {
			return err
		}
		s.replace(ticket, epoch, IntentRemove, items)
		return nil
	})
}

// Clear empties the items locally and drops any recorded failure. Results
// of intents issued before the call are discarded.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = []domain.CartItem{}
	s.tracker.Reset()
	s.epoch++
}

// Items returns a copy of the current lines.
func (s *Store) Items() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CartItem{}, s.items...)
}

// Status returns the lifecycle status.
func (s *Store) Status() lifecycle.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Status()
}

// LastError returns the failure message; it is empty unless Status is
// StatusError.
func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.LastError()
}

// Count sums quantities across lines.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CountItems(s.items)
}

// Total sums quantity × unit price across lines.
func (s *Store) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.TotalPrice(s.items)
}

// Snapshot returns the full state under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Items:     append([]domain.CartItem{}, s.items...),
		Status:    s.tracker.Status().String(),
		LastError: s.tracker.LastError(),
		Count:     domain.CountItems(s.items),
		Total:     domain.TotalPrice(s.items),
	}
}

// run wraps one intent in the lifecycle: Pending while in flight, joined
// with an identical in-flight intent, settled with its outcome.
func (s *Store) run(ctx context.Context, intent, key string, fn func(ctx context.Context) error) error {
	opID := logging.NewOpID()
	ctx = logging.WithOpID(ctx, opID)
	start := time.Now()

	s.mu.Lock()
	s.tracker.Begin()
	s.mu.Unlock()
	s.log.Debug("issued", map[string]interface{}{"intent": intent, "key": key, "op_id": opID})

	_, shared, err := lifecycle.Do(ctx, &s.flights, key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})

	s.mu.Lock()
	s.tracker.Settle(err)
	s.mu.Unlock()

	s.metrics.RecordIntent("cart", intent, err, shared)
	s.log.TimedEvent("settled", start, map[string]interface{}{
		"intent": intent,
		"key":    key,
		"op_id":  opID,
		"shared": shared,
	}, err)
	return err
}

// reject settles a failed precondition without issuing a request.
func (s *Store) reject(intent string, err error) error {
	s.mu.Lock()
	s.tracker.Fail(err)
	s.mu.Unlock()

	s.metrics.RecordIntent("cart", intent, err, false)
	s.log.Debug("rejected", map[string]interface{}{"intent": intent, "reason": lifecycle.Message(err)})
	return err
}

// issue takes a replace ticket and the current epoch.
func (s *Store) issue() (ticket, epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.Next(), s.epoch
}

func (s *Store) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *Store) replace(ticket, epoch uint64, intent string, items []domain.CartItem) {
	if items == nil {
		items = []domain.CartItem{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		s.log.Debug("discarded", map[string]interface{}{"intent": intent, "reason": "cleared"})
		return
	}
	if !s.seq.Admit(ticket) {
		s.log.Debug("discarded", map[string]interface{}{"intent": intent, "reason": "stale", "ticket": ticket})
		return
	}
	s.items = items
}
