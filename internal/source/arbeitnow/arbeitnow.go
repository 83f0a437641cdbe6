// Package arbeitnow is the client for the free Arbeitnow job board feed.
// The feed has no server-side search, so queries are filtered client-side.
package arbeitnow

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/JakeFAU/jobsweep/internal/jobs"
	"github.com/JakeFAU/jobsweep/internal/normalize"
	"github.com/JakeFAU/jobsweep/internal/ratelimit"
	"github.com/JakeFAU/jobsweep/internal/source/httpjson"
)

// Name is the registry name of the source.
const Name = "arbeitnow"

// DefaultURL is the public feed endpoint.
const DefaultURL = "https://www.arbeitnow.com/api/job-board-api"

// DefaultMaxResults caps the page scan when the query carries no limit.
const DefaultMaxResults = 50

// Config configures the Arbeitnow client.
type Config struct {
	URL  string
	HTTP *http.Client
}

// Client reads and filters the Arbeitnow feed.
type Client struct {
	url  string
	http *httpjson.Client
}

// New returns a Client.
func New(cfg Config, limiter *ratelimit.Limiter) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	return &Client{url: cfg.URL, http: httpjson.New(Name, cfg.HTTP, limiter)}
}

type response struct {
	Data []jobs.RawJob `json:"data"`
}

// Search scans the first MaxResults feed entries, keeping those whose title
// contains the query and whose location contains the requested location.
// RemoteOnly drops entries the feed marks as on-site.
func (c *Client) Search(ctx context.Context, q jobs.APIQuery) ([]jobs.RawJob, error) {
	var resp response
	if err := c.http.Get(ctx, c.url, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("arbeitnow search: %w", err)
	}

	limit := q.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	data := resp.Data
	if len(data) > limit {
		data = data[:limit]
	}

	query := strings.ToLower(strings.TrimSpace(q.Query))
	location := strings.ToLower(strings.TrimSpace(q.Location))
	out := make([]jobs.RawJob, 0, len(data))
	for _, raw := range data {
		if query != "" && !strings.Contains(strings.ToLower(normalize.String(raw, "title")), query) {
			continue
		}
		if location != "" && !strings.Contains(strings.ToLower(normalize.String(raw, "location")), location) {
			continue
		}
		if q.RemoteOnly {
			if remote, ok := raw["remote"].(bool); ok && !remote {
				continue
			}
		}
		out = append(out, raw)
	}
	return out, nil
}

// Normalize maps a feed entry into a NormalizedJob.
func Normalize(raw jobs.RawJob, now time.Time) (jobs.NormalizedJob, error) {
	return normalize.Job(Name, normalize.Fields{
		ID:          normalize.String(raw, "slug"),
		Title:       normalize.String(raw, "title"),
		Company:     normalize.String(raw, "company_name"),
		Location:    normalize.String(raw, "location"),
		Salary:      jobs.NotSpecified,
		Posted:      normalize.PostedSince(raw["created_at"], now),
		Tags:        normalize.Tags(raw["tags"]),
		URL:         normalize.String(raw, "url"),
		Description: normalize.String(raw, "description"),
	}, now)
}
