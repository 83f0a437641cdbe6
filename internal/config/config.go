// Package config loads and validates jobsweep configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider names accepted by the pluggable sections.
const (
	ProviderMemory   = "memory"
	ProviderFile     = "file"
	ProviderRedis    = "redis"
	ProviderLocal    = "local"
	ProviderGCS      = "gcs"
	ProviderSQLite   = "sqlite"
	ProviderPostgres = "postgres"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Planner     PlannerConfig     `mapstructure:"planner"`
	Classifier  ClassifierConfig  `mapstructure:"classifier"`
	Search      SearchConfig      `mapstructure:"search"`
	Storage     StorageConfig     `mapstructure:"storage"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
	Sources     SourcesConfig     `mapstructure:"sources"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// LedgerConfig selects where monthly usage counters live.
type LedgerConfig struct {
	Provider      string `mapstructure:"provider"`
	Path          string `mapstructure:"path"`
	RedisURL      string `mapstructure:"redis_url"`
	RedisKey      string `mapstructure:"redis_key"`
	LowWater      int    `mapstructure:"low_water"`
	Notice        int    `mapstructure:"notice"`
	ScarceCeiling int    `mapstructure:"scarce_ceiling"`
}

// CacheConfig selects the result cache store and its lifetimes.
type CacheConfig struct {
	Provider   string        `mapstructure:"provider"`
	Dir        string        `mapstructure:"dir"`
	GCSBucket  string        `mapstructure:"gcs_bucket"`
	GCSPrefix  string        `mapstructure:"gcs_prefix"`
	APITTL     time.Duration `mapstructure:"api_ttl"`
	ScraperTTL time.Duration `mapstructure:"scraper_ttl"`
}

// PlannerConfig tunes strategy planning.
type PlannerConfig struct {
	MediumReserveFloor int `mapstructure:"medium_reserve_floor"`
	CallsPerStep       int `mapstructure:"calls_per_step"`
}

// ClassifierConfig overrides the query keyword sets. An empty set keeps the
// built-in keywords.
type ClassifierConfig struct {
	Seniority      []string `mapstructure:"seniority"`
	SalaryResearch []string `mapstructure:"salary_research"`
	Platform       []string `mapstructure:"platform"`
	Employers      []string `mapstructure:"employers"`
	Technology     []string `mapstructure:"technology"`
}

// SearchConfig holds request defaults and execution limits.
type SearchConfig struct {
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	MaxResults  int           `mapstructure:"max_results"`
	MaxPages    int           `mapstructure:"max_pages"`
	RemoteOnly  bool          `mapstructure:"remote_only"`
	Platforms   []string      `mapstructure:"platforms"`
}

// StorageConfig selects the job store.
type StorageConfig struct {
	Provider   string         `mapstructure:"provider"`
	SQLitePath string         `mapstructure:"sqlite_path"`
	Postgres   PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig controls access to the relational database.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// PubSubConfig holds metadata for step notifications. When disabled the
// notifications go to the in-memory publisher.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// RateConfig is one token bucket.
type RateConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// SourcesConfig configures source clients and scrapers.
type SourcesConfig struct {
	UserAgent         string                `mapstructure:"user_agent"`
	RespectRobots     bool                  `mapstructure:"respect_robots"`
	ScrapeTimeout     time.Duration         `mapstructure:"scrape_timeout"`
	BrowserTimeout    time.Duration         `mapstructure:"browser_timeout"`
	ChromePath        string                `mapstructure:"chrome_path"`
	AdzunaCountry     string                `mapstructure:"adzuna_country"`
	LinkedInKeywords  string                `mapstructure:"linkedin_keywords"`
	RateLimit         RateConfig            `mapstructure:"rate_limit"`
	RateLimitOverride map[string]RateConfig `mapstructure:"rate_limit_overrides"`
	BaseURLs          map[string]string     `mapstructure:"base_urls"`
}

// CredentialsConfig carries source secrets. Each also reads from its
// conventional environment variable.
type CredentialsConfig struct {
	AdzunaAppID      string `mapstructure:"adzuna_app_id"`
	AdzunaAppKey     string `mapstructure:"adzuna_app_key"`
	RapidAPIKey      string `mapstructure:"rapidapi_key"`
	LinkedInEmail    string `mapstructure:"linkedin_email"`
	LinkedInPassword string `mapstructure:"linkedin_password"`
}

var credentialEnv = map[string]string{
	"credentials.adzuna_app_id":     "ADZUNA_APP_ID",
	"credentials.adzuna_app_key":    "ADZUNA_APP_KEY",
	"credentials.rapidapi_key":      "RAPIDAPI_KEY",
	"credentials.linkedin_email":    "LINKEDIN_EMAIL",
	"credentials.linkedin_password": "LINKEDIN_PASSWORD",
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBSWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, env := range credentialEnv {
		prefixed := "JOBSWEEP_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 3*time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("ledger.provider", ProviderFile)
	v.SetDefault("ledger.path", "api_usage.json")
	v.SetDefault("ledger.redis_url", "")
	v.SetDefault("ledger.redis_key", "jobsweep:ledger")
	v.SetDefault("ledger.low_water", 20)
	v.SetDefault("ledger.notice", 50)
	v.SetDefault("ledger.scarce_ceiling", 500)
	v.SetDefault("cache.provider", ProviderLocal)
	v.SetDefault("cache.dir", "api_cache")
	v.SetDefault("cache.gcs_bucket", "")
	v.SetDefault("cache.gcs_prefix", "cache")
	v.SetDefault("cache.api_ttl", 24*time.Hour)
	v.SetDefault("cache.scraper_ttl", 6*time.Hour)
	v.SetDefault("planner.medium_reserve_floor", 10)
	v.SetDefault("planner.calls_per_step", 1)
	v.SetDefault("search.call_timeout", 30*time.Second)
	v.SetDefault("search.max_results", 50)
	v.SetDefault("search.max_pages", 3)
	v.SetDefault("search.remote_only", true)
	v.SetDefault("search.platforms", []string{"indeed", "linkedin", "web3career"})
	v.SetDefault("storage.provider", ProviderSQLite)
	v.SetDefault("storage.sqlite_path", "jobs.db")
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.table", "jobs")
	v.SetDefault("storage.postgres.max_conns", 4)
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "jobsweep-search-steps")
	v.SetDefault("sources.user_agent", "jobsweep/0.1 (+https://github.com/JakeFAU/jobsweep)")
	v.SetDefault("sources.respect_robots", true)
	v.SetDefault("sources.scrape_timeout", 15*time.Second)
	v.SetDefault("sources.browser_timeout", 45*time.Second)
	v.SetDefault("sources.chrome_path", "")
	v.SetDefault("sources.adzuna_country", "us")
	v.SetDefault("sources.linkedin_keywords", "frontend developer")
	v.SetDefault("sources.rate_limit.rps", 1.0)
	v.SetDefault("sources.rate_limit.burst", 2)
	for key := range credentialEnv {
		v.SetDefault(key, "")
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Ledger.Provider {
	case ProviderFile:
		if c.Ledger.Path == "" {
			return fmt.Errorf("ledger.path is required for the file ledger")
		}
	case ProviderRedis:
		if c.Ledger.RedisURL == "" {
			return fmt.Errorf("ledger.redis_url is required for the redis ledger")
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("unknown ledger provider %q", c.Ledger.Provider)
	}
	switch c.Cache.Provider {
	case ProviderLocal:
		if c.Cache.Dir == "" {
			return fmt.Errorf("cache.dir is required for the local cache")
		}
	case ProviderGCS:
		if c.Cache.GCSBucket == "" {
			return fmt.Errorf("cache.gcs_bucket is required for the gcs cache")
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("unknown cache provider %q", c.Cache.Provider)
	}
	if c.Cache.APITTL < 0 || c.Cache.ScraperTTL < 0 {
		return fmt.Errorf("cache ttl must not be negative")
	}
	if c.Ledger.LowWater < 0 || c.Ledger.Notice < c.Ledger.LowWater {
		return fmt.Errorf("ledger.notice must be >= ledger.low_water >= 0")
	}
	if c.Planner.MediumReserveFloor < 0 {
		return fmt.Errorf("planner.medium_reserve_floor must not be negative")
	}
	if c.Planner.CallsPerStep < 0 {
		return fmt.Errorf("planner.calls_per_step must not be negative")
	}
	if c.Search.CallTimeout <= 0 {
		return fmt.Errorf("search.call_timeout must be > 0")
	}
	if c.Search.MaxResults <= 0 || c.Search.MaxPages <= 0 {
		return fmt.Errorf("search.max_results and search.max_pages must be > 0")
	}
	switch c.Storage.Provider {
	case ProviderSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite store")
		}
	case ProviderPostgres:
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for the postgres store")
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("unknown storage provider %q", c.Storage.Provider)
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set when pubsub is enabled")
	}
	if c.Sources.RateLimit.RPS < 0 {
		return fmt.Errorf("sources.rate_limit.rps must not be negative")
	}
	return nil
}
