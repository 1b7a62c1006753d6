package selftest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{30 * time.Second, "30s"},
		{5*time.Minute + 30*time.Second, "5m30s"},
		{2*time.Hour + 15*time.Minute + 30*time.Second, "2h15m30s"},
		{3*24*time.Hour + 5*time.Hour + 30*time.Minute, "3d5h30m"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatUptime(tt.duration))
		})
	}
}

func ok(context.Context) error { return nil }

func TestCheckAggregates(t *testing.T) {
	tests := []struct {
		name   string
		probes map[string]Probe
		want   string
	}{
		{"empty", nil, Healthy},
		{"all ok", map[string]Probe{"a": ok, "b": ok}, Healthy},
		{
			name: "slow is degraded",
			probes: map[string]Probe{"a": ok, "slow": func(context.Context) error {
				time.Sleep(20 * time.Millisecond)
				return nil
			}},
			want: Degraded,
		},
		{
			name: "failure wins",
			probes: map[string]Probe{"a": ok, "bad": func(context.Context) error {
				return errors.New("boom")
			}},
			want: Unhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(10*time.Millisecond, time.Second)
			for name, p := range tt.probes {
				c.Add(name, p)
			}
			status := c.Check(context.Background())
			assert.Equal(t, tt.want, status.Status)
			assert.Len(t, status.Components, len(tt.probes))
			assert.NotEmpty(t, status.Timestamp)
			assert.NotEmpty(t, status.Uptime)
		})
	}
}

func TestCheckRecordsError(t *testing.T) {
	c := New(0, 0)
	c.Add("api", func(context.Context) error { return errors.New("connection refused") })

	status := c.Check(context.Background())
	require.Contains(t, status.Components, "api")
	assert.Equal(t, StatusError, status.Components["api"].Status)
	assert.Equal(t, "connection refused", status.Components["api"].Error)
	assert.False(t, status.Healthy())
}

func TestCheckAppliesTimeout(t *testing.T) {
	c := New(time.Second, 20*time.Millisecond)
	c.Add("hang", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := c.Check(context.Background())
	assert.Equal(t, StatusError, status.Components["hang"].Status)
	assert.Contains(t, status.Components["hang"].Error, "deadline exceeded")
}

func TestAddReplaces(t *testing.T) {
	c := New(0, 0)
	c.Add("db", func(context.Context) error { return errors.New("old") })
	c.Add("db", ok)

	status := c.Check(context.Background())
	assert.Equal(t, Healthy, status.Status)
	assert.Len(t, status.Components, 1)
}

func TestHandler(t *testing.T) {
	c := New(0, 0)
	c.Add("credentials", ok)

	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, Healthy, status.Status)

	c.Add("api", func(context.Context) error { return errors.New("down") })
	rec = httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSummary(t *testing.T) {
	status := &HealthStatus{
		Status: Unhealthy,
		Components: map[string]ComponentStatus{
			"journal": {Status: StatusOK, Latency: 1},
			"api":     {Status: StatusError, Latency: 3, Error: "refused"},
		},
	}

	plain := status.Summary(false)
	assert.Equal(t,
		"component=api status=error latency_ms=3 error=\"refused\"\n"+
			"component=journal status=ok latency_ms=1\n"+
			"status=unhealthy\n",
		plain)

	assert.Contains(t, status.Summary(true), "UNHEALTHY")
}
