package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobsweep/internal/config"
	"github.com/JakeFAU/jobsweep/internal/jobs"
	"github.com/JakeFAU/jobsweep/internal/registry"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Server:  config.ServerConfig{Port: 8080},
		Ledger:  config.LedgerConfig{Provider: config.ProviderFile, Path: filepath.Join(dir, "api_usage.json")},
		Cache:   config.CacheConfig{Provider: config.ProviderLocal, Dir: filepath.Join(dir, "cache"), APITTL: time.Hour},
		Search:  config.SearchConfig{CallTimeout: time.Second, MaxResults: 10, MaxPages: 1},
		Storage: config.StorageConfig{Provider: config.ProviderSQLite, SQLitePath: filepath.Join(dir, "jobs.db")},
		PubSub:  config.PubSubConfig{Topic: "search-steps"},
	}
}

func fakeManifest() []registry.Entry {
	return []registry.Entry{
		{
			Descriptor: jobs.SourceDescriptor{
				Name: "adzuna", Kind: jobs.KindAPI, Tier: jobs.TierGenerous,
				Covers: []string{"indeed"}, MonthlyQuota: jobs.Quota(1000), RequiresCredentials: true,
			},
			Factory: func(desc jobs.SourceDescriptor, _ registry.Credentials, _ registry.Deps) (jobs.Source, error) {
				return &fakeSource{desc: desc}, nil
			},
		},
		{
			Descriptor: jobs.SourceDescriptor{
				Name: "jsearch", Kind: jobs.KindAPI, Tier: jobs.TierScarce,
				Covers: []string{"linkedin"}, MonthlyQuota: jobs.Quota(200), RequiresCredentials: true,
			},
			Factory: func(_ jobs.SourceDescriptor, creds registry.Credentials, _ registry.Deps) (jobs.Source, error) {
				if creds.RapidAPIKey == "" {
					return nil, registry.ErrMissingCredentials
				}
				return nil, nil
			},
		},
	}
}

func TestNewWiresSearchEndToEnd(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, nil, Options{Manifest: fakeManifest()})
	require.NoError(t, err)
	defer a.Close()

	avail := a.Registry.All()
	require.Len(t, avail, 2)
	require.True(t, avail[0].Available)
	require.False(t, avail[1].Available, "jsearch refused without a key")
	require.Equal(t, []string{"indeed"}, a.Registry.Platforms())

	res, err := a.Search.Search(context.Background(), jobs.SearchRequest{Query: "react developer", Platforms: []string{"indeed"}})
	require.NoError(t, err)
	require.Len(t, res.Jobs["indeed"], 1)
	require.Equal(t, 1, a.Ledger.Used("adzuna"))
	require.Equal(t, 200, a.Ledger.Remaining("jsearch"), "refused sources keep their quota row")

	stored, err := a.Store.ListJobs(context.Background(), "adzuna", 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.NoError(t, a.Ready(context.Background()))
}

func TestLedgerSurvivesRestart(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	first, err := New(context.Background(), cfg, nil, Options{Manifest: fakeManifest()})
	require.NoError(t, err)
	_, err = first.Search.Search(context.Background(), jobs.SearchRequest{Query: "go", Platforms: []string{"indeed"}})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(context.Background(), cfg, nil, Options{Manifest: fakeManifest()})
	require.NoError(t, err)
	defer second.Close()
	require.Equal(t, 1, second.Ledger.Used("adzuna"))
}

func TestNewMemoryProviders(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Ledger.Provider = config.ProviderMemory
	cfg.Cache.Provider = config.ProviderMemory
	cfg.Storage.Provider = config.ProviderMemory
	a, err := New(context.Background(), cfg, nil, Options{Manifest: fakeManifest(), Clock: fixedClock{}})
	require.NoError(t, err)
	require.NoError(t, a.Close())
}

func TestNewRejectsUnknownProviders(t *testing.T) {
	t.Parallel()

	for name, mutate := range map[string]func(*config.Config){
		"ledger":  func(c *config.Config) { c.Ledger.Provider = "etcd" },
		"cache":   func(c *config.Config) { c.Cache.Provider = "s3" },
		"storage": func(c *config.Config) { c.Storage.Provider = "mongo" },
		"redis":   func(c *config.Config) { c.Ledger.Provider, c.Ledger.RedisURL = config.ProviderRedis, "not a url" },
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig(t)
			mutate(&cfg)
			_, err := New(context.Background(), cfg, nil, Options{Manifest: fakeManifest()})
			require.Error(t, err)
		})
	}
}

func TestNewAppliesTuningConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Classifier.Employers = []string{"Acme"}
	cfg.Planner.CallsPerStep = 3
	cfg.Ledger.LowWater = 5
	cfg.Ledger.Notice = 40
	a, err := New(context.Background(), cfg, nil, Options{Manifest: fakeManifest()})
	require.NoError(t, err)
	defer a.Close()

	require.Equal(t, jobs.PriorityHigh, a.Planner.Priority("acme engineer"))
	require.Equal(t, jobs.PriorityLow, a.Planner.Priority("google engineer"), "overridden sets replace the defaults")
	require.Equal(t, jobs.PriorityHigh, a.Planner.Priority("senior engineer"), "unset sets keep the defaults")

	plan := a.Planner.Plan("engineer", []string{"indeed"}, 10)
	require.Len(t, plan, 1)
	require.Equal(t, 3, plan[0].EstimatedCalls)
}
func TestCachePruneRemovesStaleLocalEntries(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, nil, Options{Manifest: fakeManifest()})
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Search.Search(context.Background(), jobs.SearchRequest{Query: "react developer", Platforms: []string{"indeed"}})
	require.NoError(t, err)

	entries, err := filepath.Glob(filepath.Join(cfg.Cache.Dir, "*.json"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(entries[0], stale, stale))

	removed, err := a.Cache.Prune(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, removed)
}

// --- fakes ---

type fakeSource struct {
	desc jobs.SourceDescriptor
}

func (f *fakeSource) Descriptor() jobs.SourceDescriptor { return f.desc }

func (f *fakeSource) Fetch(_ context.Context, req jobs.SearchRequest, platform string) ([]jobs.RawJob, error) {
	return []jobs.RawJob{{"id": platform + "-1", "title": req.Query}}, nil
}

func (f *fakeSource) Normalize(raw jobs.RawJob, now time.Time) (jobs.NormalizedJob, error) {
	return jobs.NormalizedJob{
		ID:        raw["id"].(string),
		Title:     raw["title"].(string),
		Source:    f.desc.Name,
		DateFound: now.Format("2006-01-02"),
	}, nil
}

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC) }
