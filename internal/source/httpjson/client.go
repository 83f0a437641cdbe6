// Package httpjson is the shared GET-and-decode helper used by the API
// source clients.
package httpjson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/JakeFAU/jobsweep/internal/metrics"
	"github.com/JakeFAU/jobsweep/internal/ratelimit"
)

// DefaultTimeout bounds a single upstream request.
const DefaultTimeout = 30 * time.Second

// ErrStatus is wrapped by Get for non-2xx responses.
var ErrStatus = errors.New("unexpected status")

// maxErrorBody caps how much of an error response is echoed into the error.
const maxErrorBody = 512

// Client issues rate-limited JSON GETs on behalf of one source.
type Client struct {
	source string
	http   *http.Client
}

// New returns a Client for source. A nil limiter disables rate limiting; a
// nil base client uses a fresh one with DefaultTimeout.
func New(source string, base *http.Client, limiter *ratelimit.Limiter) *Client {
	hc := &http.Client{Timeout: DefaultTimeout}
	if base != nil {
		clone := *base
		hc = &clone
	}
	if limiter != nil {
		hc.Transport = limiter.Transport(hc.Transport, source)
	}
	return &Client{source: source, http: hc}
}

// Get requests endpoint with params and headers and decodes the JSON body into out.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values, headers map[string]string, out any) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveSourceCall(c.source, time.Since(start))
	if err != nil {
		return fmt.Errorf("%s request: %w", c.source, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s: %w %d: %s", c.source, ErrStatus, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.source, err)
	}
	return nil
}
