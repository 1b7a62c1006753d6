// Package selftest checks that the client's local stores and the remote
// API are usable.
package selftest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Component states.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// Overall states.
const (
	Healthy   = "healthy"
	Degraded  = "degraded"
	Unhealthy = "unhealthy"
)

// DefaultSlow is the latency above which a passing check is degraded.
const DefaultSlow = 500 * time.Millisecond

// Probe reports whether one component is usable.
type Probe func(ctx context.Context) error

// ComponentStatus represents health of a single component
type ComponentStatus struct {
	Status  string `json:"status"`
	Latency int64  `json:"latency_ms"`
	Error   string `json:"error,omitempty"`
}

// HealthStatus represents overall client health
type HealthStatus struct {
	Status     string                     `json:"status"`
	Uptime     string                     `json:"uptime"`
	Components map[string]ComponentStatus `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Healthy reports whether no component failed.
func (h *HealthStatus) Healthy() bool {
	return h.Status != Unhealthy
}

// Checker runs named probes concurrently.
type Checker struct {
	mu      sync.Mutex
	probes  map[string]Probe
	slow    time.Duration
	timeout time.Duration
	started time.Time
}

// New creates a Checker. Each probe gets timeout; a passing probe slower
// than slow is degraded.
func New(slow, timeout time.Duration) *Checker {
	if slow <= 0 {
		slow = DefaultSlow
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		probes:  make(map[string]Probe),
		slow:    slow,
		timeout: timeout,
		started: time.Now(),
	}
}

// Add registers a probe. Adding a name twice replaces the probe.
func (c *Checker) Add(name string, p Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = p
}

// Check performs every probe and aggregates the result.
func (c *Checker) Check(ctx context.Context) *HealthStatus {
	c.mu.Lock()
	probes := make(map[string]Probe, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	c.mu.Unlock()

	status := &HealthStatus{
		Status:     Healthy,
		Uptime:     formatUptime(time.Since(c.started)),
		Components: make(map[string]ComponentStatus, len(probes)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, p := range probes {
		wg.Add(1)
		go func(name string, p Probe) {
			defer wg.Done()
			result := c.run(ctx, p)
			mu.Lock()
			defer mu.Unlock()
			status.Components[name] = result
			if result.Status == StatusError {
				status.Status = Unhealthy
			} else if result.Status == StatusDegraded && status.Status == Healthy {
				status.Status = Degraded
			}
		}(name, p)
	}

	wg.Wait()
	return status
}

func (c *Checker) run(ctx context.Context, p Probe) ComponentStatus {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := p(ctx)
	latency := time.Since(start)

	switch {
	case err != nil:
		return ComponentStatus{Status: StatusError, Latency: latency.Milliseconds(), Error: err.Error()}
	case latency > c.slow:
		return ComponentStatus{Status: StatusDegraded, Latency: latency.Milliseconds()}
	default:
		return ComponentStatus{Status: StatusOK, Latency: latency.Milliseconds()}
	}
}

// Handler returns an HTTP handler for the health endpoint
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if status.Healthy() {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(status)
	}
}

// Summary returns a human-readable report, components in name order.
func (h *HealthStatus) Summary(pretty bool) string {
	var sb strings.Builder

	names := make([]string, 0, len(h.Components))
	for name := range h.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	if !pretty {
		for _, name := range names {
			cs := h.Components[name]
			fmt.Fprintf(&sb, "component=%s status=%s latency_ms=%d", name, cs.Status, cs.Latency)
			if cs.Error != "" {
				fmt.Fprintf(&sb, " error=%q", cs.Error)
			}
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "status=%s\n", h.Status)
		return sb.String()
	}

	sb.WriteString(color.CyanString("Storefront Health\n"))
	sb.WriteString(strings.Repeat("─", 40) + "\n")
	for _, name := range names {
		cs := h.Components[name]
		icon := color.GreenString("✓")
		switch cs.Status {
		case StatusDegraded:
			icon = color.YellowString("⚠")
		case StatusError:
			icon = color.RedString("✗")
		}
		fmt.Fprintf(&sb, "  %s %-12s %5dms\n", icon, name, cs.Latency)
		if cs.Error != "" {
			fmt.Fprintf(&sb, "      %s\n", cs.Error)
		}
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Status: %s\n", strings.ToUpper(h.Status))
	return sb.String()
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd%dh%dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
