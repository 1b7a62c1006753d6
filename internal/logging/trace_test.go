package logging

import (
	"context"
	"testing"
)

func TestNewOpIDUnique(t *testing.T) {
	a, b := NewOpID(), NewOpID()
	if a == b {
		t.Errorf("expected distinct ids, got %s twice", a)
	}
	if len(a) != 26 {
		t.Errorf("expected 26-char ulid, got %d", len(a))
	}
}

func TestWithOpID(t *testing.T) {
	ctx := WithOpID(context.Background(), "op-1")
	if got := OpID(ctx); got != "op-1" {
		t.Errorf("expected 'op-1', got '%s'", got)
	}

	ctx = WithOpID(context.Background(), "")
	if OpID(ctx) == "" {
		t.Error("expected generated id")
	}

	if OpID(context.Background()) != "" {
		t.Error("expected empty id for bare context")
	}
}
