package registry

import (
	"context"
	"time"

	"github.com/JakeFAU/jobsweep/internal/jobs"
	"github.com/JakeFAU/jobsweep/internal/normalize"
)

// NormalizeFunc is a per-source record mapper.
type NormalizeFunc func(raw jobs.RawJob, now time.Time) (jobs.NormalizedJob, error)

// APISource adapts an API client to jobs.Source.
type APISource struct {
	desc      jobs.SourceDescriptor
	client    jobs.APIClient
	normalize NormalizeFunc
}

// NewAPISource binds client and its normalizer to desc.
func NewAPISource(desc jobs.SourceDescriptor, client jobs.APIClient, fn NormalizeFunc) *APISource {
	return &APISource{desc: desc, client: client, normalize: fn}
}

// Descriptor returns the source's static metadata.
func (s *APISource) Descriptor() jobs.SourceDescriptor { return s.desc }

// Fetch issues one API search for platform.
func (s *APISource) Fetch(ctx context.Context, req jobs.SearchRequest, platform string) ([]jobs.RawJob, error) {
	raws, err := s.client.Search(ctx, jobs.APIQuery{
		Query:      req.Query,
		Location:   req.Location,
		MaxResults: req.MaxResults,
		RemoteOnly: req.RemoteOnly,
		Platform:   platform,
	})
	if err != nil {
		return nil, err
	}
	return raws, nil
}

// Normalize maps one raw API record.
func (s *APISource) Normalize(raw jobs.RawJob, now time.Time) (jobs.NormalizedJob, error) {
	return s.normalize(raw, now)
}

// ScraperSource adapts an HTML scraper to jobs.Source. Scrapers run their
// configured search; the request's query is not forwarded.
type ScraperSource struct {
	desc    jobs.SourceDescriptor
	scraper jobs.Scraper
	creds   *jobs.Credentials
}

// NewScraperSource binds scraper to desc. creds may be nil for public boards.
func NewScraperSource(desc jobs.SourceDescriptor, scraper jobs.Scraper, creds *jobs.Credentials) *ScraperSource {
	return &ScraperSource{desc: desc, scraper: scraper, creds: creds}
}

// Descriptor returns the source's static metadata.
func (s *ScraperSource) Descriptor() jobs.SourceDescriptor { return s.desc }

// Fetch runs the scraper.
func (s *ScraperSource) Fetch(ctx context.Context, req jobs.SearchRequest, _ string) ([]jobs.RawJob, error) {
	return s.scraper.RunJobSearch(ctx, req.RemoteOnly, req.MaxPages, s.creds)
}

// Normalize maps one scraped record.
func (s *ScraperSource) Normalize(raw jobs.RawJob, now time.Time) (jobs.NormalizedJob, error) {
	return normalize.Flat(s.desc.Name, raw, now)
}

// Close releases the scraper when it holds resources.
func (s *ScraperSource) Close() error {
	if c, ok := s.scraper.(interface{ Close() }); ok {
		c.Close()
	}
	return nil
}
