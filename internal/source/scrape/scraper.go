package scrape

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobsweep/internal/jobs"
	"github.com/JakeFAU/jobsweep/internal/metrics"
	"github.com/JakeFAU/jobsweep/internal/ratelimit"
)

// DefaultMaxPages bounds pagination when the caller passes no limit.
const DefaultMaxPages = 3

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// Scraper walks a Site's result pages with colly.
type Scraper struct {
	site      Site
	cfg       Config
	limiter   *ratelimit.Limiter
	transport http.RoundTripper
	logger    *zap.Logger
}

// New builds a Scraper for site. A nil limiter disables rate limiting.
func New(site Site, cfg Config, limiter *ratelimit.Limiter, logger *zap.Logger) *Scraper {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var transport http.RoundTripper = newHTTPTransport()
	if limiter != nil {
		transport = limiter.Transport(transport, site.Name)
	}
	return &Scraper{
		site:      site,
		cfg:       cfg,
		limiter:   limiter,
		transport: transport,
		logger:    logger.Named("scrape").With(zap.String("site", site.Name)),
	}
}

// Site returns the scraped site definition.
func (s *Scraper) Site() Site {
	return s.site
}

// RunJobSearch scrapes up to maxPages result pages. Credentials are ignored;
// sites needing a login use the browser scraper.
func (s *Scraper) RunJobSearch(ctx context.Context, remoteOnly bool, maxPages int, _ *jobs.Credentials) ([]jobs.RawJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scrape canceled: %w", err)
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	var (
		mu       sync.Mutex
		results  []jobs.RawJob
		pages    int
		fetchErr error
		seen     = make(map[string]struct{})
	)

	collector := s.buildCollector()
	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		mu.Lock()
		pages++
		mu.Unlock()
	})
	collector.OnResponse(func(r *colly.Response) {
		if BlockedPage(r.Body, s.site.Selectors.Row) {
			mu.Lock()
			fetchErr = fmt.Errorf("%s %s: %w", s.site.Name, r.Request.URL, ErrBlocked)
			mu.Unlock()
		}
	})
	collector.OnHTML(s.site.Selectors.Row, func(e *colly.HTMLElement) {
		raw, ok := s.site.Extract(e.DOM, e.Request.URL)
		if !ok {
			return
		}
		id, _ := raw["id"].(string)
		mu.Lock()
		defer mu.Unlock()
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		results = append(results, raw)
	})
	if s.site.Selectors.Next != "" {
		collector.OnHTML(s.site.Selectors.Next, func(e *colly.HTMLElement) {
			mu.Lock()
			more := pages < maxPages
			mu.Unlock()
			if !more {
				return
			}
			next := e.Request.AbsoluteURL(e.Attr("href"))
			if next == "" {
				return
			}
			if err := e.Request.Visit(next); err != nil {
				s.logger.Debug("next page not followed", zap.String("url", next), zap.Error(err))
			}
		})
	}
	collector.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		defer mu.Unlock()
		if fetchErr == nil {
			fetchErr = fmt.Errorf("%s %s: %w", s.site.Name, r.Request.URL, err)
		}
	})

	if err := runCollector(ctx, collector, s.site.StartURL(remoteOnly)); err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	if fetchErr != nil && len(results) == 0 {
		return nil, fetchErr
	}
	if fetchErr != nil {
		s.logger.Warn("partial scrape", zap.Int("results", len(results)), zap.Error(fetchErr))
	}
	metrics.ObservePagesScraped(s.site.Name, pages)
	s.logger.Debug("scrape finished", zap.Int("pages", pages), zap.Int("results", len(results)))
	return results, nil
}

func (s *Scraper) buildCollector() *colly.Collector {
	c := colly.NewCollector(colly.Async(false))
	if s.cfg.UserAgent != "" {
		c.UserAgent = s.cfg.UserAgent
	}
	c.IgnoreRobotsTxt = !s.cfg.RespectRobots
	c.SetRequestTimeout(s.cfg.Timeout)
	c.WithTransport(s.transport)
	return c
}

func runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("scrape canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("scrape visit: %w", err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
