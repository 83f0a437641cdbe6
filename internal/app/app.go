// Package app builds the long-lived jobsweep services from configuration and
// owns their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gcsstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobsweep/internal/cache"
	cachegcs "github.com/JakeFAU/jobsweep/internal/cache/gcs"
	cachelocal "github.com/JakeFAU/jobsweep/internal/cache/local"
	cachememory "github.com/JakeFAU/jobsweep/internal/cache/memory"
	"github.com/JakeFAU/jobsweep/internal/classifier"
	"github.com/JakeFAU/jobsweep/internal/clock/system"
	"github.com/JakeFAU/jobsweep/internal/config"
	"github.com/JakeFAU/jobsweep/internal/coordinator"
	"github.com/JakeFAU/jobsweep/internal/hash/sha256"
	"github.com/JakeFAU/jobsweep/internal/id/uuid"
	"github.com/JakeFAU/jobsweep/internal/jobs"
	"github.com/JakeFAU/jobsweep/internal/ledger"
	"github.com/JakeFAU/jobsweep/internal/metrics"
	"github.com/JakeFAU/jobsweep/internal/planner"
	memorypublisher "github.com/JakeFAU/jobsweep/internal/publisher/memory"
	"github.com/JakeFAU/jobsweep/internal/publisher/pubsub"
	"github.com/JakeFAU/jobsweep/internal/ratelimit"
	"github.com/JakeFAU/jobsweep/internal/registry"
	"github.com/JakeFAU/jobsweep/internal/search"
	"github.com/JakeFAU/jobsweep/internal/source/browser"
	"github.com/JakeFAU/jobsweep/internal/source/scrape"
	memorystore "github.com/JakeFAU/jobsweep/internal/storage/memory"
	"github.com/JakeFAU/jobsweep/internal/storage/postgres"
	"github.com/JakeFAU/jobsweep/internal/storage/sqlite"
)

// App holds all the shared, long-lived services for the application.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Clock    jobs.Clock
	Ledger   *ledger.Ledger
	Registry *registry.Registry
	Planner  *planner.Planner
	Search   *search.Service
	Store    jobs.JobStore
	Cache    *cache.Cache

	closers []func() error
}

// Options swaps collaborators that are otherwise built from configuration.
type Options struct {
	Manifest  []registry.Entry
	Clock     jobs.Clock
	HTTP      *http.Client
	GCSClient *gcsstorage.Client
}

// New creates and initializes the App. It fails fast when a configured
// provider cannot be reached. Sources missing credentials are refused, not
// fatal.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	a := &App{Config: cfg, Logger: logger, Clock: opts.Clock}
	if a.Clock == nil {
		a.Clock = system.New()
	}
	if opts.Manifest == nil {
		opts.Manifest = registry.DefaultManifest()
	}

	limiter := ratelimit.New(rateConfig(cfg.Sources))
	a.Registry = registry.New(opts.Manifest, credentials(cfg.Credentials), registry.Deps{
		Limiter:          limiter,
		HTTP:             opts.HTTP,
		BaseURLs:         cfg.Sources.BaseURLs,
		AdzunaCountry:    cfg.Sources.AdzunaCountry,
		LinkedInKeywords: cfg.Sources.LinkedInKeywords,
		Scrape: scrape.Config{
			UserAgent:     cfg.Sources.UserAgent,
			RespectRobots: cfg.Sources.RespectRobots,
			Timeout:       cfg.Sources.ScrapeTimeout,
		},
		Browser: browser.Config{
			UserAgent:         cfg.Sources.UserAgent,
			NavigationTimeout: cfg.Sources.BrowserTimeout,
			ExecPath:          cfg.Sources.ChromePath,
		},
	}, logger)
	a.closers = append(a.closers, a.Registry.Close)

	backend, err := a.ledgerBackend(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Ledger = ledger.New(ctx, backend, a.Clock, ledger.Config{
		Quotas:        a.Registry.Quotas(),
		LowWater:      cfg.Ledger.LowWater,
		Notice:        cfg.Ledger.Notice,
		ScarceCeiling: cfg.Ledger.ScarceCeiling,
	}, logger)

	a.Cache, err = a.resultCache(ctx, opts.GCSClient)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Store, err = a.jobStore(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	publisher, err := a.publisher(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	kw := classifier.Keywords{
		Seniority:      cfg.Classifier.Seniority,
		SalaryResearch: cfg.Classifier.SalaryResearch,
		Platform:       cfg.Classifier.Platform,
		Employers:      cfg.Classifier.Employers,
		Technology:     cfg.Classifier.Technology,
	}
	a.Planner = planner.New(a.Registry, a.Ledger, classifier.New(kw), planner.Options{
		MediumReserveFloor:  cfg.Planner.MediumReserveFloor,
		DefaultCallsPerStep: cfg.Planner.CallsPerStep,
	}, logger)
	coord := coordinator.New(a.Registry, a.Cache, a.Ledger, a.Store, publisher, a.Clock, coordinator.Config{
		CallTimeout: cfg.Search.CallTimeout,
		Topic:       cfg.PubSub.Topic,
	}, logger)

	platforms := cfg.Search.Platforms
	if len(platforms) == 0 {
		platforms = a.Registry.Platforms()
	}
	a.Search = search.New(a.Planner, coord, search.Defaults{
		Platforms:  platforms,
		MaxResults: cfg.Search.MaxResults,
		MaxPages:   cfg.Search.MaxPages,
	}, logger)

	logger.Info("application services initialized",
		zap.String("ledger", cfg.Ledger.Provider),
		zap.String("cache", cfg.Cache.Provider),
		zap.String("storage", cfg.Storage.Provider),
		zap.Bool("pubsub", cfg.PubSub.Enabled),
		zap.Int("sources", len(a.Registry.Descriptors())),
	)
	return a, nil
}

// Ready reports whether the job store answers.
func (a *App) Ready(ctx context.Context) error {
	if _, err := a.Store.ListJobs(ctx, "", 1); err != nil {
		return fmt.Errorf("job store: %w", err)
	}
	return nil
}

// Close releases every service in reverse construction order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.Logger.Warn("error closing services", zap.Error(err))
		return err
	}
	return nil
}

func (a *App) ledgerBackend(ctx context.Context) (ledger.Backend, error) {
	cfg := a.Config.Ledger
	switch cfg.Provider {
	case config.ProviderFile:
		backend, err := ledger.NewFileBackend(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("init file ledger: %w", err)
		}
		return backend, nil
	case config.ProviderRedis:
		client, err := ledger.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("init redis ledger: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return ledger.NewRedisBackend(client, cfg.RedisKey)
	case config.ProviderMemory:
		return ledger.NewMemoryBackend(nil), nil
	default:
		return nil, fmt.Errorf("unknown ledger provider %q", cfg.Provider)
	}
}

func (a *App) resultCache(ctx context.Context, client *gcsstorage.Client) (*cache.Cache, error) {
	cfg := a.Config.Cache
	var store cache.Store
	switch cfg.Provider {
	case config.ProviderLocal:
		local, err := cachelocal.New(cachelocal.Config{Dir: cfg.Dir})
		if err != nil {
			return nil, fmt.Errorf("init local cache: %w", err)
		}
		store = local
	case config.ProviderGCS:
		if client == nil {
			var err error
			client, err = gcsstorage.NewClient(ctx)
			if err != nil {
				return nil, fmt.Errorf("create gcs client: %w", err)
			}
			a.closers = append(a.closers, client.Close)
		}
		remote, err := cachegcs.New(client, cachegcs.Config{Bucket: cfg.GCSBucket, Prefix: cfg.GCSPrefix})
		if err != nil {
			return nil, fmt.Errorf("init gcs cache: %w", err)
		}
		store = remote
	case config.ProviderMemory:
		store = cachememory.New(a.Clock)
	default:
		return nil, fmt.Errorf("unknown cache provider %q", cfg.Provider)
	}
	c, err := cache.New(store, sha256.New(), a.Clock, cache.Config{APITTL: cfg.APITTL, ScraperTTL: cfg.ScraperTTL}, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	return c, nil
}

func (a *App) jobStore(ctx context.Context) (jobs.JobStore, error) {
	cfg := a.Config.Storage
	ids := uuid.New()
	switch cfg.Provider {
	case config.ProviderMemory:
		return memorystore.NewJobStore(ids), nil
	case config.ProviderSQLite:
		store, err := sqlite.Open(cfg.SQLitePath, ids, a.Clock)
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case config.ProviderPostgres:
		store, err := postgres.NewJobStore(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			Table:           cfg.Postgres.Table,
			MaxConns:        cfg.Postgres.MaxConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
		}, ids, a.Clock)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		a.closers = append(a.closers, func() error {
			store.Close()
			return nil
		})
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

func (a *App) publisher(ctx context.Context) (jobs.Publisher, error) {
	cfg := a.Config.PubSub
	if !cfg.Enabled {
		return memorypublisher.New(a.Logger), nil
	}
	pub, err := pubsub.New(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("init pubsub publisher: %w", err)
	}
	a.closers = append(a.closers, pub.Close)
	return pub, nil
}

func rateConfig(cfg config.SourcesConfig) ratelimit.Config {
	out := ratelimit.Config{
		Default:   ratelimit.Rate{RPS: cfg.RateLimit.RPS, Burst: cfg.RateLimit.Burst},
		Overrides: make(map[string]ratelimit.Rate, len(cfg.RateLimitOverride)),
	}
	for name, r := range cfg.RateLimitOverride {
		out.Overrides[name] = ratelimit.Rate{RPS: r.RPS, Burst: r.Burst}
	}
	return out
}

func credentials(c config.CredentialsConfig) registry.Credentials {
	return registry.Credentials{
		AdzunaAppID:      c.AdzunaAppID,
		AdzunaAppKey:     c.AdzunaAppKey,
		RapidAPIKey:      c.RapidAPIKey,
		LinkedInEmail:    c.LinkedInEmail,
		LinkedInPassword: c.LinkedInPassword,
	}
}
