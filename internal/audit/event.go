// Package audit keeps a local journal of storefront commands: what was run,
// by whom, how long it took and how it failed.
package audit

import (
	"time"

	"github.com/joss/storefront/internal/lifecycle"
)

// Category groups operations by the state they touch.
type Category string

const (
	CategorySession Category = "session"
	CategoryCart    Category = "cart"
	CategoryCatalog Category = "catalog"
	CategoryOrders  Category = "orders"
	CategorySystem  Category = "system"
)

// Status represents the outcome of an operation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	// StatusRefused marks a client-side validation failure: no request was
	// sent.
	StatusRefused Status = "refused"
)

// Event is one journaled operation.
type Event struct {
	EventID   string   `json:"event_id"`
	SessionID string   `json:"session_id,omitempty"`
	Category  Category `json:"category"`
	Operation string   `json:"operation"`
	User      string   `json:"user,omitempty"`

	Status       Status `json:"status"`
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at,omitempty"`
	DurationMs  int64         `json:"duration_ms"`
	Duration    time.Duration `json:"-"`
}

// Complete finalizes the event with timing and the outcome of err.
func (e *Event) Complete(err error) {
	e.CompletedAt = time.Now()
	e.Duration = e.CompletedAt.Sub(e.StartedAt)
	e.DurationMs = e.Duration.Milliseconds()

	if err == nil {
		e.Status = StatusSuccess
		return
	}
	e.Status = StatusError
	e.ErrorMessage = lifecycle.Message(err)
	if kind := lifecycle.KindOf(err); kind != 0 {
		e.ErrorKind = kind.String()
		if kind == lifecycle.KindValidation {
			e.Status = StatusRefused
		}
	}
}
