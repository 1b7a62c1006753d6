package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joss/storefront/internal/logging"
)

// Saver persists finished events.
type Saver interface {
	Save(ctx context.Context, e *Event) error
}

// Logger starts and records audit events.
type Logger struct {
	sessionID string
	user      string
	store     Saver
	log       *logging.Logger
}

// LoggerOption configures the logger.
type LoggerOption func(*Logger)

// WithStore sets where finished events are persisted.
func WithStore(store Saver) LoggerOption {
	return func(l *Logger) {
		l.store = store
	}
}

// WithSession sets the session ID.
func WithSession(id string) LoggerOption {
	return func(l *Logger) {
		l.sessionID = id
	}
}

// WithUser tags every event with the signed-in user's name.
func WithUser(name string) LoggerOption {
	return func(l *Logger) {
		l.user = name
	}
}

// NewLogger creates a new audit logger. Without a store events only go to
// the structured log.
func NewLogger(opts ...LoggerOption) *Logger {
	l := &Logger{log: logging.New("audit")}
	for _, opt := range opts {
		opt(l)
	}
	if l.sessionID == "" {
		l.sessionID = logging.NewOpID()
	}
	return l
}

// SessionID returns the id shared by events of this process.
func (l *Logger) SessionID() string {
	return l.sessionID
}

// Start begins tracking an operation.
func (l *Logger) Start(category Category, operation string) *Event {
	return &Event{
		EventID:   uuid.New().String(),
		SessionID: l.sessionID,
		Category:  category,
		Operation: operation,
		User:      l.user,
		StartedAt: time.Now(),
	}
}

// Finish completes e with err and records it. Persistence failures are
// logged and never replace err.
func (l *Logger) Finish(e *Event, err error) error {
	e.Complete(err)

	extra := map[string]interface{}{
		"event_id":    e.EventID,
		"category":    string(e.Category),
		"operation":   e.Operation,
		"status":      string(e.Status),
		"duration_ms": e.DurationMs,
	}
	l.log.Debug("audit", extra)

	if l.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if serr := l.store.Save(ctx, e); serr != nil {
			l.log.Warn("audit_save_failed", extra, serr)
		}
	}
	return err
}

// Track runs fn as one audited operation and returns its error.
func (l *Logger) Track(category Category, operation string, fn func() error) error {
	e := l.Start(category, operation)
	return l.Finish(e, fn())
}
