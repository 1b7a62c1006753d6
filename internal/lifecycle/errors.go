package lifecycle

import (
	"errors"
	"fmt"
)

// Kind classifies why an intent was rejected. Stores do not branch on it;
// it exists for callers that want to render failures differently.
type Kind int

const (
	// KindNetwork: the request could not be sent, timed out or was cancelled.
	KindNetwork Kind = iota + 1
	// KindRejected: the server answered with a non-success status.
	KindRejected
	// KindValidation: a client-side precondition failed before any request.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network_failure"
	case KindRejected:
		return "server_rejected"
	case KindValidation:
		return "validation_failure"
	}
	return "unknown"
}

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrNetwork    = errors.New("network failure")
	ErrRejected   = errors.New("server rejected request")
	ErrValidation = errors.New("validation failure")
)

// Error is the settled-with-error outcome of an intent.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrRejected:
		return e.Kind == KindRejected
	case ErrValidation:
		return e.Kind == KindValidation
	}
	return false
}

// Network wraps a transport failure for op.
func Network(op string, err error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Op:      op,
		Message: fmt.Sprintf("%s: %v", op, err),
		Err:     err,
	}
}

// Rejected reports a non-success response. message is the human-readable
// text shown to the user.
func Rejected(op string, status int, message string) *Error {
	return &Error{
		Kind:    KindRejected,
		Op:      op,
		Message: message,
		Status:  status,
	}
}

// Validation reports a failed client-side precondition.
func Validation(op, message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Op:      op,
		Message: message,
	}
}

// Message returns the user-facing text of err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var le *Error
	if errors.As(err, &le) {
		return le.Message
	}
	return err.Error()
}

// KindOf returns the kind of err, or 0 when err is not a lifecycle error.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return 0
}

// IsNetwork reports whether err is a network failure.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// IsRejected reports whether err is a server rejection.
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}

// IsValidation reports whether err is a client-side validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
