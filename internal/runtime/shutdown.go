// Package runtime runs cleanup handlers when the process exits or receives
// SIGINT/SIGTERM.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joss/storefront/internal/logging"
)

// ShutdownFunc is a cleanup function called during shutdown
type ShutdownFunc func(ctx context.Context) error

// ShutdownManager runs registered handlers once, last registered first.
type ShutdownManager struct {
	mu          sync.Mutex
	handlers    []namedHandler
	timeout     time.Duration
	shutdownCtx context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	once        sync.Once
	err         error
	log         *logging.Logger
}

type namedHandler struct {
	name string
	fn   ShutdownFunc
}

// DefaultShutdownTimeout bounds all cleanup handlers together.
const DefaultShutdownTimeout = 5 * time.Second

// NewShutdownManager creates a new shutdown manager with specified timeout
func NewShutdownManager(timeout time.Duration) *ShutdownManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &ShutdownManager{
		timeout:     timeout,
		shutdownCtx: ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		log:         logging.New("runtime"),
	}
}

// Register adds a cleanup handler. Handlers run in reverse registration
// order, so resources opened first are closed last.
func (m *ShutdownManager) Register(name string, fn ShutdownFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, namedHandler{name: name, fn: fn})
}

// RegisterCloser registers c.Close.
func (m *ShutdownManager) RegisterCloser(name string, c interface{ Close() error }) {
	m.Register(name, func(context.Context) error {
		return c.Close()
	})
}

// Context is cancelled when shutdown begins. Long-running commands derive
// their contexts from it so a signal aborts in-flight requests.
func (m *ShutdownManager) Context() context.Context {
	return m.shutdownCtx
}

// Done returns a channel that's closed when shutdown is complete
func (m *ShutdownManager) Done() <-chan struct{} {
	return m.done
}

// ListenForSignals starts shutdown on SIGINT or SIGTERM. The returned stop
// function detaches the listener.
func (m *ShutdownManager) ListenForSignals() (stop func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	quit := make(chan struct{})
	logging.SafeGo("runtime", func() {
		select {
		case sig := <-sigChan:
			m.log.Info("signal", map[string]interface{}{"signal": sig.String()})
			m.Shutdown()
		case <-quit:
		}
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigChan)
			close(quit)
		})
	}
}

// Shutdown runs the handlers. Only the first call has any effect; every
// call returns the combined handler errors.
func (m *ShutdownManager) Shutdown() error {
	m.once.Do(func() {
		m.err = m.performShutdown()
	})
	return m.err
}

func (m *ShutdownManager) performShutdown() error {
	defer close(m.done)
	m.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.mu.Lock()
	handlers := make([]namedHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	var errs []error
	for i := len(handlers) - 1; i >= 0; i-- {
		h := handlers[i]
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.name, ctx.Err()))
			continue
		}

		start := time.Now()
		err := runHandler(ctx, h.fn)
		m.log.TimedEvent("shutdown_handler", start, map[string]interface{}{"handler": h.name}, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	return errors.Join(errs...)
}

// runHandler returns when fn does or ctx expires, whichever is first.
func runHandler(ctx context.Context, fn ShutdownFunc) error {
	result := make(chan error, 1)
	go func() { result <- fn(ctx) }()
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
