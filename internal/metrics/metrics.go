// Package metrics counts gateway requests and store intents. Counters are
// kept both as atomics for the in-process status views and as Prometheus
// collectors for the optional /metrics endpoint.
package metrics

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds runtime metrics for the storefront client
type Metrics struct {
	// Gateway round trips
	Requests      atomic.Int64
	RequestErrors atomic.Int64

	// Store intents
	Intents       atomic.Int64
	IntentErrors  atomic.Int64
	IntentsJoined atomic.Int64

	// Timing (last round trip duration in ms)
	LastRequestMs atomic.Int64

	startTime time.Time

	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	intents  *prometheus.CounterVec
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// Global returns the process-wide metrics instance
func Global() *Metrics {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

// New creates an isolated metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		startTime: time.Now(),
		registry:  prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storefront",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total number of gateway round trips.",
			},
			[]string{"op", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "storefront",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Duration of gateway round trips.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
			},
			[]string{"op"},
		),
		intents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storefront",
				Subsystem: "store",
				Name:      "intents_total",
				Help:      "Total number of settled store intents.",
			},
			[]string{"store", "intent", "outcome"},
		),
	}
	m.registry.MustRegister(m.requests, m.duration, m.intents)
	return m
}

// RecordRequest records one gateway round trip. status is 0 when no
// response was received.
func (m *Metrics) RecordRequest(op string, status int, err error, d time.Duration) {
	m.Requests.Add(1)
	if err != nil {
		m.RequestErrors.Add(1)
	}
	m.LastRequestMs.Store(d.Milliseconds())

	label := "none"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(op, label).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordIntent records a settled intent. joined is true when the caller
// shared an in-flight call instead of issuing its own.
func (m *Metrics) RecordIntent(store, intent string, err error, joined bool) {
	m.Intents.Add(1)
	outcome := "fulfilled"
	if err != nil {
		m.IntentErrors.Add(1)
		outcome = "rejected"
	}
	if joined {
		m.IntentsJoined.Add(1)
		outcome += "_joined"
	}
	m.intents.WithLabelValues(store, intent, outcome).Inc()
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	Requests      int64
	RequestErrors int64
	Intents       int64
	IntentErrors  int64
	IntentsJoined int64
	LastRequestMs int64
	Uptime        time.Duration
}

// Snapshot returns the current counter values
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Requests:      m.Requests.Load(),
		RequestErrors: m.RequestErrors.Load(),
		Intents:       m.Intents.Load(),
		IntentErrors:  m.IntentErrors.Load(),
		IntentsJoined: m.IntentsJoined.Load(),
		LastRequestMs: m.LastRequestMs.Load(),
		Uptime:        time.Since(m.startTime),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server wraps the metrics HTTP server
type Server struct {
	srv *http.Server
	mux *http.ServeMux
	ln  net.Listener
}

// NewServer creates a metrics server on addr (e.g. "127.0.0.1:9464")
func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		mux: mux,
	}
}

// Handle mounts an extra handler. Call it before Start.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Start binds the listener and serves in background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	go s.srv.Serve(ln)
	return nil
}

// Addr returns the bound address, or "" before Start
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop gracefully shuts down the metrics server
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
