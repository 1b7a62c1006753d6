package logging

import (
	"context"

	"github.com/oklog/ulid/v2"
)

type contextKey string

const opIDKey contextKey = "op_id"

// NewOpID generates a sortable operation id for one intent dispatch.
func NewOpID() string {
	return ulid.Make().String()
}

// WithOpID adds an operation id to ctx. If id is empty, generates a new one.
func WithOpID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = NewOpID()
	}
	return context.WithValue(ctx, opIDKey, id)
}

// OpID extracts the operation id from ctx, or "" when absent.
func OpID(ctx context.Context) string {
	if v, ok := ctx.Value(opIDKey).(string); ok {
		return v
	}
	return ""
}
