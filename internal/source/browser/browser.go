// Package browser implements a login-capable scraper over headless Chrome.
//
// Boards that only show listings to signed-in users are driven with
// chromedp: the scraper signs in, walks the result pages and parses the
// rendered DOM with the scrape package's selector contract.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobsweep/internal/jobs"
	"github.com/JakeFAU/jobsweep/internal/metrics"
	"github.com/JakeFAU/jobsweep/internal/source/scrape"
)

// ErrLoginRequired is returned when a login site is run without credentials.
var ErrLoginRequired = errors.New("login credentials required")

// ErrLoginFailed is returned when the post-login marker never appears.
var ErrLoginFailed = errors.New("login failed")

// Login describes a site's sign-in form.
type Login struct {
	URL      string
	Username string
	Password string
	Submit   string
	// Verify is a selector present only once signed in.
	Verify string
}

// Config controls the headless browser.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	ExecPath          string
}

// Scraper drives a headless browser through a site's result pages.
type Scraper struct {
	site        scrape.Site
	login       *Login
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// New creates a Scraper. A nil login means the site is public.
func New(site scrape.Site, login *Login, cfg Config, logger *zap.Logger) (*Scraper, error) {
	if site.StartURL(true) == "" {
		return nil, fmt.Errorf("browser site %q: start url required", site.Name)
	}
	if site.Selectors.Row == "" {
		return nil, fmt.Errorf("browser site %q: row selector required", site.Name)
	}
	if login != nil && (login.URL == "" || login.Username == "" || login.Password == "" || login.Submit == "") {
		return nil, fmt.Errorf("browser site %q: incomplete login form", site.Name)
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Scraper{
		site:        site,
		login:       login,
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger.Named("browser").With(zap.String("site", site.Name)),
	}, nil
}

// Close shuts the browser allocator down.
func (s *Scraper) Close() {
	s.allocCancel()
}

// RequiresLogin reports whether RunJobSearch needs credentials.
func (s *Scraper) RequiresLogin() bool {
	return s.login != nil
}

// RunJobSearch signs in when required, then renders up to maxPages pages.
func (s *Scraper) RunJobSearch(ctx context.Context, remoteOnly bool, maxPages int, creds *jobs.Credentials) ([]jobs.RawJob, error) {
	if s.login != nil && (creds == nil || creds.Empty()) {
		return nil, fmt.Errorf("%s: %w", s.site.Name, ErrLoginRequired)
	}
	if maxPages <= 0 {
		maxPages = scrape.DefaultMaxPages
	}

	taskCtx, taskCancel := chromedp.NewContext(s.allocator)
	defer taskCancel()
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	if err := s.run(taskCtx, s.setupAction()); err != nil {
		return nil, err
	}
	if s.login != nil {
		if err := s.signIn(taskCtx, *creds); err != nil {
			return nil, err
		}
	}

	start := s.site.StartURL(remoteOnly)
	target := start
	seen := make(map[string]struct{})
	var results []jobs.RawJob
	for page := 1; page <= maxPages && target != ""; page++ {
		html, location, err := s.render(taskCtx, target)
		if err != nil {
			if len(results) > 0 {
				s.logger.Warn("partial scrape", zap.Int("page", page), zap.Error(err))
				break
			}
			return nil, err
		}
		metrics.ObservePagesScraped(s.site.Name, 1)
		if scrape.BlockedPage([]byte(html), s.site.Selectors.Row) {
			if len(results) > 0 {
				break
			}
			return nil, fmt.Errorf("%s %s: %w", s.site.Name, target, scrape.ErrBlocked)
		}

		pageURL, _ := url.Parse(location)
		raws, next, err := s.site.ParsePage([]byte(html), pageURL)
		if err != nil {
			return nil, err
		}
		added := 0
		for _, raw := range raws {
			id, _ := raw["id"].(string)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			results = append(results, raw)
			added++
		}
		if added == 0 {
			break
		}
		if next == "" {
			next = s.site.PageURL(start, page+1)
		}
		target = next
	}
	s.logger.Debug("scrape finished", zap.Int("results", len(results)))
	return results, nil
}

func (s *Scraper) signIn(ctx context.Context, creds jobs.Credentials) error {
	l := s.login
	actions := []chromedp.Action{
		chromedp.Navigate(l.URL),
		chromedp.WaitVisible(l.Username, chromedp.ByQuery),
		chromedp.SendKeys(l.Username, creds.Username, chromedp.ByQuery),
		chromedp.SendKeys(l.Password, creds.Password, chromedp.ByQuery),
		chromedp.Click(l.Submit, chromedp.ByQuery),
	}
	if l.Verify != "" {
		actions = append(actions, chromedp.WaitVisible(l.Verify, chromedp.ByQuery))
	}
	if err := s.run(ctx, actions...); err != nil {
		return fmt.Errorf("%s: %w: %w", s.site.Name, ErrLoginFailed, err)
	}
	s.logger.Info("signed in")
	return nil
}

func (s *Scraper) render(ctx context.Context, target string) (string, string, error) {
	var html, location string
	err := s.run(ctx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.cfg.SettleDelay),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", "", err
	}
	if location == "" {
		location = target
	}
	return html, location, nil
}

func (s *Scraper) run(ctx context.Context, actions ...chromedp.Action) error {
	stepCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(stepCtx, actions...); err != nil {
		return fmt.Errorf("chromedp run: %w", err)
	}
	return nil
}

func (s *Scraper) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(s.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}
