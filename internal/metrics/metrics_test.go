package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsGlobal(t *testing.T) {
	if Global() != Global() {
		t.Error("Global() should return same instance")
	}
}

func TestRecordRequest(t *testing.T) {
	m := New()

	m.RecordRequest("fetch_cart", 200, nil, 120*time.Millisecond)
	if m.Requests.Load() != 1 {
		t.Errorf("expected 1 request, got %d", m.Requests.Load())
	}
	if m.RequestErrors.Load() != 0 {
		t.Errorf("expected 0 errors, got %d", m.RequestErrors.Load())
	}
	if m.LastRequestMs.Load() != 120 {
		t.Errorf("expected duration 120, got %d", m.LastRequestMs.Load())
	}

	m.RecordRequest("fetch_cart", 0, errors.New("refused"), 5*time.Millisecond)
	if m.Requests.Load() != 2 {
		t.Errorf("expected 2 requests, got %d", m.Requests.Load())
	}
	if m.RequestErrors.Load() != 1 {
		t.Errorf("expected 1 error, got %d", m.RequestErrors.Load())
	}
}

func TestRecordIntent(t *testing.T) {
	m := New()

	m.RecordIntent("cart", "fetch", nil, false)
	m.RecordIntent("cart", "fetch", nil, true)
	m.RecordIntent("cart", "add", errors.New("x"), false)

	s := m.Snapshot()
	if s.Intents != 3 {
		t.Errorf("expected 3 intents, got %d", s.Intents)
	}
	if s.IntentErrors != 1 {
		t.Errorf("expected 1 intent error, got %d", s.IntentErrors)
	}
	if s.IntentsJoined != 1 {
		t.Errorf("expected 1 joined intent, got %d", s.IntentsJoined)
	}
}

func TestHandlerExposition(t *testing.T) {
	m := New()
	m.RecordRequest("list_products", 200, nil, time.Millisecond)
	m.RecordIntent("cart", "remove", nil, false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`storefront_gateway_requests_total{op="list_products",status="200"} 1`,
		`storefront_store_intents_total{intent="remove",outcome="fulfilled",store="cart"} 1`,
		"storefront_gateway_request_duration_seconds_bucket",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in exposition:\n%s", want, body)
		}
	}
}

func TestServerLifecycle(t *testing.T) {
	srv := NewServer("127.0.0.1:0", New())
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Stop(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Errorf("expected 'ok', got %q", body)
	}
}

func TestServerHandle(t *testing.T) {
	srv := NewServer("127.0.0.1:0", New())
	srv.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Stop(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("expected 418, got %d", resp.StatusCode)
	}
}
