package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobsweep/internal/cache"
	cachememory "github.com/JakeFAU/jobsweep/internal/cache/memory"
	"github.com/JakeFAU/jobsweep/internal/classifier"
	"github.com/JakeFAU/jobsweep/internal/coordinator"
	"github.com/JakeFAU/jobsweep/internal/hash/sha256"
	"github.com/JakeFAU/jobsweep/internal/jobs"
	"github.com/JakeFAU/jobsweep/internal/ledger"
	"github.com/JakeFAU/jobsweep/internal/planner"
	"github.com/JakeFAU/jobsweep/internal/registry"
)

type fixture struct {
	svc     *Service
	ledger  *ledger.Ledger
	store   *fakeStore
	sources map[string]*fakeSource
}

// newFixture wires the real planner, coordinator, cache and ledger over fake
// sources carrying the default manifest descriptors.
func newFixture(t *testing.T, used map[string]int, raws map[string][]jobs.RawJob) *fixture {
	t.Helper()
	clk := fakeClock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}

	lookup := &fakeLookup{byName: map[string]jobs.Source{}}
	sources := map[string]*fakeSource{}
	quotas := map[string]int{}
	for _, e := range registry.DefaultManifest() {
		src := &fakeSource{desc: e.Descriptor, raws: raws[e.Descriptor.Name]}
		lookup.descs = append(lookup.descs, e.Descriptor)
		lookup.byName[e.Descriptor.Name] = src
		sources[e.Descriptor.Name] = src
		if e.Descriptor.MonthlyQuota != nil {
			quotas[e.Descriptor.Name] = *e.Descriptor.MonthlyQuota
		}
	}

	records := map[string]ledger.UsageRecord{}
	for api, n := range used {
		records[api] = ledger.UsageRecord{Period: "2024-03", CallsUsed: n}
	}
	l := ledger.New(context.Background(), ledger.NewMemoryBackend(records), clk, ledger.Config{Quotas: quotas}, nil)
	c, err := cache.New(cachememory.New(clk), sha256.New(), clk, cache.Config{}, nil)
	require.NoError(t, err)

	store := &fakeStore{}
	p := planner.New(lookup, l, classifier.New(classifier.DefaultKeywords()), planner.Options{}, nil)
	coord := coordinator.New(lookup, c, l, store, nil, clk, coordinator.Config{}, nil)
	return &fixture{
		svc:     New(p, coord, Defaults{Platforms: []string{"indeed", "arbeitnow"}}, nil),
		ledger:  l,
		store:   store,
		sources: sources,
	}
}

func TestSearchEndToEndScenario(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]int{"jsearch": 198}, map[string][]jobs.RawJob{
		"adzuna":  {{"id": "a1", "title": "Senior React Developer"}},
		"jsearch": {{"id": "j1", "title": "Senior React Engineer"}},
	})

	res, err := f.svc.Search(context.Background(), jobs.SearchRequest{
		Query:     "senior react developer",
		Platforms: []string{"indeed", "linkedin"},
	})
	require.NoError(t, err)
	require.Equal(t, jobs.PriorityHigh, res.Priority)
	require.Equal(t, []jobs.StrategyStep{
		{SourceName: "adzuna", TargetPlatform: "indeed", EstimatedCalls: 1},
		{SourceName: "jsearch", TargetPlatform: "linkedin", EstimatedCalls: 1},
	}, res.Plan)
	require.Empty(t, res.Fallback)
	require.Empty(t, res.Unfulfilled)
	require.Len(t, res.Jobs["indeed"], 1)
	require.Len(t, res.Jobs["linkedin"], 1)
	require.Equal(t, 2, res.Total())

	require.Equal(t, 199, f.ledger.Used("jsearch"))
	require.Equal(t, 1, f.ledger.Used("adzuna"))
	require.ElementsMatch(t, []string{"adzuna", "jsearch"}, f.store.sourcesSaved())
}

func TestSearchFallsBackWhenAPIComesBackEmpty(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, map[string][]jobs.RawJob{
		"linkedin-browser": {{"id": "l1", "title": "Staff Engineer"}},
	})
	f.sources["jsearch"].err = errors.New("503 from upstream")

	res, err := f.svc.Search(context.Background(), jobs.SearchRequest{
		Query:     "staff engineer",
		Platforms: []string{"linkedin"},
	})
	require.NoError(t, err)
	require.Equal(t, []jobs.StrategyStep{{SourceName: "jsearch", TargetPlatform: "linkedin", EstimatedCalls: 1}}, res.Plan)
	require.Equal(t, []jobs.StrategyStep{{SourceName: "linkedin-browser", TargetPlatform: "linkedin", EstimatedCalls: 0}}, res.Fallback)
	require.Len(t, res.Jobs["linkedin"], 1)
	require.Len(t, res.Reports, 2)
	require.Equal(t, jobs.StepFailed, res.Reports[0].Outcome)
	require.Equal(t, jobs.StepSuccess, res.Reports[1].Outcome)
	require.Equal(t, 0, f.ledger.Used("jsearch"))
}

func TestSearchWithoutFallbackLeavesEmptyList(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	res, err := f.svc.Search(context.Background(), jobs.SearchRequest{
		Query:     "barista",
		Platforms: []string{"monster", "nowhere"},
	})
	require.NoError(t, err)
	require.Empty(t, res.Fallback)
	require.NotNil(t, res.Jobs["monster"])
	require.Empty(t, res.Jobs["monster"])
	require.NotNil(t, res.Jobs["nowhere"])
	require.Equal(t, []string{"nowhere"}, res.Unfulfilled)
}

func TestSearchAppliesDefaults(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	res, err := f.svc.Search(context.Background(), jobs.SearchRequest{Query: "  barista "})
	require.NoError(t, err)
	require.Equal(t, "barista", res.Query)
	require.Equal(t, []jobs.StrategyStep{
		{SourceName: "adzuna", TargetPlatform: "indeed", EstimatedCalls: 1},
		{SourceName: "arbeitnow", TargetPlatform: "arbeitnow", EstimatedCalls: 1},
	}, res.Plan)

	req := f.sources["adzuna"].lastRequest()
	require.Equal(t, 50, req.MaxResults)
	require.Equal(t, 3, req.MaxPages)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	_, err := f.svc.Search(context.Background(), jobs.SearchRequest{Query: " "})
	require.ErrorIs(t, err, ErrEmptyQuery)
	_, err = f.svc.Preview(jobs.SearchRequest{})
	require.ErrorIs(t, err, ErrEmptyQuery)
}

func TestPreviewDoesNotSpend(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]int{"jsearch": 185}, nil)
	preview, err := f.svc.Preview(jobs.SearchRequest{Query: "senior go", Platforms: []string{"LinkedIn", "dice", "mars"}})
	require.NoError(t, err)
	require.Equal(t, []string{"linkedin", "dice", "mars"}, preview.Platforms)
	require.Equal(t, []jobs.StrategyStep{
		{SourceName: "adzuna", TargetPlatform: "dice", EstimatedCalls: 1},
		{SourceName: "jsearch", TargetPlatform: "linkedin", EstimatedCalls: 1},
	}, preview.Plan)
	require.Equal(t, []string{"mars"}, preview.Unfulfilled)
	require.Contains(t, preview.Recommendations, "WARNING: jsearch quota low (15 calls left). Use for high-priority searches only.")
	require.Zero(t, f.sources["jsearch"].callCount())
	require.Equal(t, 185, f.ledger.Used("jsearch"))
}

func TestSearchesAreSerialized(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]int{"jsearch": 199}, map[string][]jobs.RawJob{
		"jsearch": {{"id": "j1", "title": "Principal Engineer"}},
	})

	var wg sync.WaitGroup
	for _, q := range []string{"principal engineer", "principal architect", "principal designer"} {
		wg.Add(1)
		go func(query string) {
			defer wg.Done()
			_, err := f.svc.Search(context.Background(), jobs.SearchRequest{Query: query, Platforms: []string{"glassdoor"}})
			assert.NoError(t, err)
		}(q)
	}
	wg.Wait()
	require.Equal(t, 200, f.ledger.Used("jsearch"), "only one search may take the last call")
}

func TestQueuedSearchGivesUpWhenContextEnds(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, map[string][]jobs.RawJob{"adzuna": {{"id": "a1", "title": "Go Developer"}}})
	hold := make(chan struct{})
	f.sources["adzuna"].hold = hold

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Search(context.Background(), jobs.SearchRequest{Query: "go", Platforms: []string{"indeed"}})
		done <- err
	}()
	require.Eventually(t, func() bool { return f.sources["adzuna"].callCount() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := f.svc.Search(ctx, jobs.SearchRequest{Query: "python", Platforms: []string{"indeed"}})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)

	close(hold)
	require.NoError(t, <-done)
	require.Equal(t, 1, f.sources["adzuna"].callCount(), "the abandoned search never ran")

	_, err = f.svc.Search(context.Background(), jobs.SearchRequest{Query: "rust", Platforms: []string{"indeed"}})
	require.NoError(t, err, "the slot is released after each search")
}

// --- fakes ---

type fakeSource struct {
	desc jobs.SourceDescriptor
	raws []jobs.RawJob
	err  error
	hold chan struct{}

	mu    sync.Mutex
	calls int
	last  jobs.SearchRequest
}

func (f *fakeSource) Descriptor() jobs.SourceDescriptor { return f.desc }

func (f *fakeSource) Fetch(ctx context.Context, req jobs.SearchRequest, _ string) ([]jobs.RawJob, error) {
	f.mu.Lock()
	f.calls++
	f.last = req
	f.mu.Unlock()
	if f.hold != nil {
		select {
		case <-f.hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.raws, nil
}

func (f *fakeSource) Normalize(raw jobs.RawJob, now time.Time) (jobs.NormalizedJob, error) {
	id, _ := raw["id"].(string)
	title, _ := raw["title"].(string)
	return jobs.NormalizedJob{ID: id, Title: title, Source: f.desc.Name, DateFound: now.Format("2006-01-02")}, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSource) lastRequest() jobs.SearchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type fakeLookup struct {
	descs  []jobs.SourceDescriptor
	byName map[string]jobs.Source
}

func (f *fakeLookup) Lookup(name string) (jobs.Source, bool) {
	s, ok := f.byName[name]
	return s, ok
}

func (f *fakeLookup) Descriptors() []jobs.SourceDescriptor { return f.descs }

type fakeStore struct {
	mu    sync.Mutex
	saved []jobs.NormalizedJob
}

func (f *fakeStore) AddJob(_ context.Context, job jobs.NormalizedJob) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, job)
	return job.ID, nil
}

func (f *fakeStore) ListJobs(context.Context, string, int) ([]jobs.NormalizedJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]jobs.NormalizedJob(nil), f.saved...), nil
}

func (f *fakeStore) sourcesSaved() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.saved))
	for _, j := range f.saved {
		out = append(out, j.Source)
	}
	return out
}

type fakeClock struct {
	now time.Time
}

func (f fakeClock) Now() time.Time { return f.now }
