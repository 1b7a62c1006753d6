// Package gateway is the typed HTTP client for the remote storefront API.
// It is stateless: credentials are passed per call and every response is
// classified into the lifecycle failure taxonomy.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/joss/storefront/internal/lifecycle"
	"github.com/joss/storefront/internal/logging"
	"github.com/joss/storefront/internal/metrics"
)

// maxBody caps how much of a response is read.
const maxBody = 4 << 20

// HTTPClient interface for HTTP requests (enables testing)
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Verify http.Client implements HTTPClient
var _ HTTPClient = (*http.Client)(nil)

// Options configures a Client.
type Options struct {
	BaseURL string
	// Timeout bounds each round trip when HTTPClient is nil.
	Timeout time.Duration
	// Rate caps requests per second. Zero disables pacing.
	Rate       float64
	HTTPClient HTTPClient
	Metrics    *metrics.Metrics
}

// Client talks to the storefront API.
type Client struct {
	baseURL string
	http    HTTPClient
	limiter *rate.Limiter
	metrics *metrics.Metrics
	log     *logging.Logger
}

// New creates a Client.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if opts.Rate > 0 {
		burst := int(opts.Rate)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), burst)
	}

	m := opts.Metrics
	if m == nil {
		m = metrics.Global()
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    hc,
		limiter: limiter,
		metrics: m,
		log:     logging.New("gateway"),
	}
}

// BaseURL returns the API root the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// call describes one round trip.
type call struct {
	op     string
	method string
	path   string
	token  string
	body   any
}

// do executes a call and returns the response body of a 2xx answer.
// Transport failures become network failures; any other status becomes a
// rejection carrying the server's message when it sent one.
func (c *Client) do(ctx context.Context, cl call) ([]byte, error) {
	start := time.Now()
	status := 0
	body, err := c.roundTrip(ctx, cl, &status)

	c.metrics.RecordRequest(cl.op, status, err, time.Since(start))
	c.log.TimedEvent("request", start, map[string]interface{}{
		"op":     cl.op,
		"method": cl.method,
		"path":   cl.path,
		"status": status,
		"op_id":  logging.OpID(ctx),
	}, err)
	return body, err
}

func (c *Client) roundTrip(ctx context.Context, cl call, status *int) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, networkFailure(cl.op, err)
		}
	}

	var reader io.Reader
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", cl.op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, reader)
	if err != nil {
		return nil, networkFailure(cl.op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, networkFailure(cl.op, err)
	}
	defer resp.Body.Close()
	*status = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, networkFailure(cl.op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, lifecycle.Rejected(cl.op, resp.StatusCode, serverMessage(cl.op, body))
	}
	return body, nil
}

func networkFailure(op string, err error) error {
	e := lifecycle.Network(op, err)
	e.Message = fmt.Sprintf("%s: %v", DefaultMessage(op), err)
	return e
}

// serverMessage prefers the server's own explanation over the default.
func serverMessage(op string, body []byte) string {
	if gjson.ValidBytes(body) {
		for _, key := range []string{"message", "error.message", "error"} {
			if r := gjson.GetBytes(body, key); r.Type == gjson.String && r.Str != "" {
				return r.Str
			}
		}
	}
	return DefaultMessage(op)
}

// pick returns the first of keys present at the top level of body, or the
// whole body when none is. Endpoints disagree on whether payloads are
// wrapped (`{"cartItems": [...]}`) or bare.
func pick(body []byte, keys ...string) []byte {
	for _, k := range keys {
		if r := gjson.GetBytes(body, k); r.Exists() {
			return []byte(r.Raw)
		}
	}
	return body
}

func decode[T any](op string, data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, lifecycle.Rejected(op, http.StatusOK, fmt.Sprintf("%s: malformed response", DefaultMessage(op)))
	}
	return v, nil
}
