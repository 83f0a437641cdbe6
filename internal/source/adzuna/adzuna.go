// Package adzuna is the client for the Adzuna job search API, the generous
// aggregator covering Indeed, Monster, Dice and the UK boards.
package adzuna

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/jobsweep/internal/jobs"
	"github.com/JakeFAU/jobsweep/internal/normalize"
	"github.com/JakeFAU/jobsweep/internal/ratelimit"
	"github.com/JakeFAU/jobsweep/internal/source/httpjson"
)

// Name is the registry and ledger name of the source.
const Name = "adzuna"

// DefaultBaseURL is the public Adzuna jobs endpoint root.
const DefaultBaseURL = "https://api.adzuna.com/v1/api/jobs"

// maxPerPage is the upstream page size ceiling.
const maxPerPage = 50

var countries = map[string]string{"us": "us", "uk": "gb", "gb": "gb", "ca": "ca"}

// Config configures the Adzuna client.
type Config struct {
	AppID   string
	AppKey  string
	Country string
	BaseURL string
	HTTP    *http.Client
}

// Client searches Adzuna.
type Client struct {
	cfg  Config
	http *httpjson.Client
}

// New returns a Client. Unknown countries fall back to "us".
func New(cfg Config, limiter *ratelimit.Limiter) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	code, ok := countries[strings.ToLower(cfg.Country)]
	if !ok {
		code = "us"
	}
	cfg.Country = code
	return &Client{cfg: cfg, http: httpjson.New(Name, cfg.HTTP, limiter)}
}

type response struct {
	Results []jobs.RawJob `json:"results"`
}

// Search queries the first results page.
func (c *Client) Search(ctx context.Context, q jobs.APIQuery) ([]jobs.RawJob, error) {
	perPage := q.MaxResults
	if perPage <= 0 || perPage > maxPerPage {
		perPage = maxPerPage
	}
	what := q.Query
	if q.RemoteOnly {
		what += " remote"
	}
	params := url.Values{
		"app_id":                 {c.cfg.AppID},
		"app_key":                {c.cfg.AppKey},
		"results_per_page":       {strconv.Itoa(perPage)},
		"what":                   {what},
		"salary_include_unknown": {"0"},
		"content-type":           {"application/json"},
	}
	if q.Location != "" {
		params.Set("where", q.Location)
	}

	endpoint := fmt.Sprintf("%s/%s/search/1", c.cfg.BaseURL, c.cfg.Country)
	var resp response
	if err := c.http.Get(ctx, endpoint, params, nil, &resp); err != nil {
		return nil, fmt.Errorf("adzuna search: %w", err)
	}
	return resp.Results, nil
}

// Normalize maps an Adzuna result into a NormalizedJob.
func Normalize(raw jobs.RawJob, now time.Time) (jobs.NormalizedJob, error) {
	loc := normalize.Object(raw, "location")
	location := normalize.String(loc, "display_name")
	if location == "" {
		location = normalize.Tags(loc["area"])
	}
	posted := ""
	if created := normalize.String(raw, "created"); created != "" {
		posted = normalize.PostedSince(created, now)
	}
	return normalize.Job(Name, normalize.Fields{
		ID:          normalize.String(raw, "id"),
		Title:       normalize.String(raw, "title"),
		Company:     normalize.String(normalize.Object(raw, "company"), "display_name"),
		Location:    location,
		Salary:      normalize.SalaryRange("$", normalize.Float(raw, "salary_min"), normalize.Float(raw, "salary_max")),
		Posted:      posted,
		Tags:        normalize.String(normalize.Object(raw, "category"), "tag"),
		URL:         normalize.String(raw, "redirect_url"),
		Description: normalize.String(raw, "description"),
	}, now)
}
