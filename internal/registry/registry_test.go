package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/jobsweep/internal/jobs"
)

func TestDefaultManifestShape(t *testing.T) {
	t.Parallel()

	manifest := DefaultManifest()
	names := make([]string, 0, len(manifest))
	for _, e := range manifest {
		names = append(names, e.Descriptor.Name)
		require.NotNil(t, e.Factory, e.Descriptor.Name)
	}
	require.Equal(t, []string{"adzuna", "jsearch", "arbeitnow", "web3career", "linkedin-browser"}, names)

	jsearchDesc := manifest[1].Descriptor
	require.Equal(t, jobs.TierScarce, jsearchDesc.Tier)
	require.Equal(t, 200, *jsearchDesc.MonthlyQuota)
	require.True(t, jsearchDesc.CoversPlatform("LinkedIn"))
	require.True(t, manifest[2].Descriptor.Unlimited())
	require.True(t, manifest[4].Descriptor.RequiresLogin)
}

func TestNewRefusesSourcesWithoutCredentials(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	r := New(DefaultManifest(), Credentials{}, Deps{}, zap.New(core))
	defer func() { require.NoError(t, r.Close()) }()

	_, ok := r.Lookup("adzuna")
	require.False(t, ok)
	_, ok = r.Lookup("jsearch")
	require.False(t, ok)
	_, ok = r.Lookup("linkedin-browser")
	require.False(t, ok)
	_, ok = r.Lookup("arbeitnow")
	require.True(t, ok)
	_, ok = r.Lookup("web3career")
	require.True(t, ok)

	names := make([]string, 0)
	for _, d := range r.Descriptors() {
		names = append(names, d.Name)
	}
	require.Equal(t, []string{"arbeitnow", "web3career"}, names)
	require.Equal(t, 3, logs.FilterMessage("source refused").Len())

	all := r.All()
	require.Len(t, all, 5)
	require.False(t, all[0].Available)
	require.Contains(t, all[0].Reason, ErrMissingCredentials.Error())
	require.True(t, all[2].Available)
	require.Empty(t, all[2].Reason)
}

func TestNewWithCredentialsRegistersAPIs(t *testing.T) {
	t.Parallel()

	r := New(DefaultManifest(), Credentials{
		AdzunaAppID: "id", AdzunaAppKey: "key", RapidAPIKey: "rk",
	}, Deps{}, nil)
	defer func() { require.NoError(t, r.Close()) }()

	src, ok := r.Lookup("jsearch")
	require.True(t, ok)
	require.Equal(t, jobs.KindAPI, src.Descriptor().Kind)
	require.Equal(t, map[string]int{"adzuna": 1000, "jsearch": 200}, r.Quotas())
	require.Equal(t,
		[]string{"indeed", "monster", "dice", "jobsite", "cvlibrary", "linkedin", "glassdoor", "arbeitnow", "web3career"},
		r.Platforms())
}

func TestFactoryErrorsAreRefusals(t *testing.T) {
	t.Parallel()

	manifest := []Entry{
		{Descriptor: jobs.SourceDescriptor{Name: "broken"}, Factory: func(jobs.SourceDescriptor, Credentials, Deps) (jobs.Source, error) {
			return nil, errors.New("boom")
		}},
		{Descriptor: jobs.SourceDescriptor{Name: "nofactory"}},
		{Descriptor: jobs.SourceDescriptor{Name: "ok", Kind: jobs.KindAPI}, Factory: func(d jobs.SourceDescriptor, _ Credentials, _ Deps) (jobs.Source, error) {
			return NewAPISource(d, &fakeClient{}, fakeNormalize), nil
		}},
	}
	r := New(manifest, Credentials{}, Deps{}, nil)
	require.Len(t, r.Descriptors(), 1)
	all := r.All()
	require.Equal(t, "boom", all[0].Reason)
	require.Equal(t, "no factory", all[1].Reason)
}

func TestAPISourceForwardsRequest(t *testing.T) {
	t.Parallel()

	client := &fakeClient{raws: []jobs.RawJob{{"title": "Go"}}}
	src := NewAPISource(jobs.SourceDescriptor{Name: "fake"}, client, fakeNormalize)

	raws, err := src.Fetch(context.Background(), jobs.SearchRequest{
		Query: "go", Location: "Berlin", RemoteOnly: true, MaxResults: 5,
	}, "indeed")
	require.NoError(t, err)
	require.Len(t, raws, 1)
	require.Equal(t, jobs.APIQuery{Query: "go", Location: "Berlin", MaxResults: 5, RemoteOnly: true, Platform: "indeed"}, client.last)

	client.err = errors.New("down")
	_, err = src.Fetch(context.Background(), jobs.SearchRequest{Query: "go"}, "indeed")
	require.Error(t, err)
}

func TestScraperSourcePassesCredentialsAndNormalizesFlat(t *testing.T) {
	t.Parallel()

	creds := &jobs.Credentials{Username: "u", Password: "p"}
	scraper := &fakeScraper{raws: []jobs.RawJob{{"id": "1", "title": "Frontend", "posted": "2 days ago"}}}
	src := NewScraperSource(jobs.SourceDescriptor{Name: "web3career", Kind: jobs.KindScraper}, scraper, creds)

	raws, err := src.Fetch(context.Background(), jobs.SearchRequest{RemoteOnly: true, MaxPages: 4}, "web3career")
	require.NoError(t, err)
	require.Same(t, creds, scraper.creds)
	require.True(t, scraper.remote)
	require.Equal(t, 4, scraper.pages)

	job, err := src.Normalize(raws[0], time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "web3career", job.Source)
	require.Equal(t, "2d", job.Posted)
	require.NoError(t, src.Close())
	require.True(t, scraper.closed)
}

// --- fakes ---

type fakeClient struct {
	raws []jobs.RawJob
	err  error
	last jobs.APIQuery
}

func (f *fakeClient) Search(_ context.Context, q jobs.APIQuery) ([]jobs.RawJob, error) {
	f.last = q
	if f.err != nil {
		return nil, f.err
	}
	return f.raws, nil
}

func fakeNormalize(raw jobs.RawJob, _ time.Time) (jobs.NormalizedJob, error) {
	title, _ := raw["title"].(string)
	return jobs.NormalizedJob{Title: title}, nil
}

type fakeScraper struct {
	raws   []jobs.RawJob
	creds  *jobs.Credentials
	remote bool
	pages  int
	closed bool
}

func (f *fakeScraper) RunJobSearch(_ context.Context, remoteOnly bool, maxPages int, creds *jobs.Credentials) ([]jobs.RawJob, error) {
	f.creds = creds
	f.remote = remoteOnly
	f.pages = maxPages
	return f.raws, nil
}

func (f *fakeScraper) Close() {
	f.closed = true
}
