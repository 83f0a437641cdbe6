// Package ratelimit implements per-source token buckets so outbound API and
// scraper traffic stays under each upstream's request rate.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/jobsweep/internal/metrics"
)

// Rate is a requests-per-second budget with a burst allowance.
type Rate struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// Config holds the default rate and per-source overrides.
type Config struct {
	Default   Rate
	Overrides map[string]Rate
}

// Limiter manages one token bucket per source.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	cfg      Config
}

// New creates a new Limiter. A non-positive RPS means unlimited.
func New(cfg Config) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		cfg:      cfg,
	}
}

// Wait blocks until a token is available for source, respecting the context.
func (l *Limiter) Wait(ctx context.Context, source string) error {
	limiter := l.limiterFor(source)
	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait %s: %w", source, err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitWait(source, waited)
	}
	return nil
}

func (l *Limiter) limiterFor(source string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.limiters[source]; ok {
		return limiter
	}
	r := l.cfg.Default
	if o, ok := l.cfg.Overrides[source]; ok {
		r = o
	}
	limit := rate.Limit(r.RPS)
	if r.RPS <= 0 {
		limit = rate.Inf
	}
	burst := r.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)
	l.limiters[source] = limiter
	return limiter
}

// Transport wraps base so every request waits on source's bucket first.
func (l *Limiter) Transport(base http.RoundTripper, source string) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &transport{base: base, limiter: l, source: source}
}

type transport struct {
	base    http.RoundTripper
	limiter *Limiter
	source  string
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context(), t.source); err != nil {
		return nil, err
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("round trip: %w", err)
	}
	return resp, nil
}
