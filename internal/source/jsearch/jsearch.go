// Package jsearch is the client for the RapidAPI JSearch API, the scarce
// source covering LinkedIn, Glassdoor and Indeed.
package jsearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JakeFAU/jobsweep/internal/jobs"
	"github.com/JakeFAU/jobsweep/internal/normalize"
	"github.com/JakeFAU/jobsweep/internal/ratelimit"
	"github.com/JakeFAU/jobsweep/internal/source/httpjson"
)

// Name is the registry and ledger name of the source.
const Name = "jsearch"

// DefaultBaseURL is the RapidAPI JSearch endpoint root.
const DefaultBaseURL = "https://jsearch.p.rapidapi.com"

const rapidAPIHost = "jsearch.p.rapidapi.com"

// ErrBadStatus is returned when the response envelope is not "OK".
var ErrBadStatus = errors.New("jsearch response status not OK")

// Config configures the JSearch client.
type Config struct {
	APIKey          string
	BaseURL         string
	EmploymentTypes string
	HTTP            *http.Client
}

// Client searches JSearch.
type Client struct {
	cfg  Config
	http *httpjson.Client
}

// New returns a Client. EmploymentTypes defaults to FULLTIME.
func New(cfg Config, limiter *ratelimit.Limiter) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.EmploymentTypes == "" {
		cfg.EmploymentTypes = "FULLTIME"
	}
	return &Client{cfg: cfg, http: httpjson.New(Name, cfg.HTTP, limiter)}
}

type response struct {
	Status string        `json:"status"`
	Data   []jobs.RawJob `json:"data"`
}

// Search queries a single results page. One call is one unit of quota.
func (c *Client) Search(ctx context.Context, q jobs.APIQuery) ([]jobs.RawJob, error) {
	params := url.Values{
		"query":            {q.Query},
		"page":             {"1"},
		"num_pages":        {"1"},
		"date_posted":      {"all"},
		"employment_types": {c.cfg.EmploymentTypes},
	}
	if q.Location != "" {
		params.Set("location", q.Location)
	}
	if q.RemoteOnly {
		params.Set("remote_only", "true")
	}
	headers := map[string]string{
		"X-RapidAPI-Key":  c.cfg.APIKey,
		"X-RapidAPI-Host": rapidAPIHost,
	}

	var resp response
	if err := c.http.Get(ctx, c.cfg.BaseURL+"/search", params, headers, &resp); err != nil {
		return nil, fmt.Errorf("jsearch search: %w", err)
	}
	if resp.Status != "OK" {
		return nil, fmt.Errorf("jsearch search: %w: %q", ErrBadStatus, resp.Status)
	}
	data := preferPublisher(resp.Data, q.Platform)
	if q.MaxResults > 0 && len(data) > q.MaxResults {
		data = data[:q.MaxResults]
	}
	return data, nil
}

// preferPublisher keeps the records published on platform. When none are,
// the full set is returned since JSearch aggregates across boards.
func preferPublisher(data []jobs.RawJob, platform string) []jobs.RawJob {
	if platform == "" {
		return data
	}
	matched := make([]jobs.RawJob, 0, len(data))
	for _, raw := range data {
		if strings.EqualFold(strings.TrimSpace(normalize.String(raw, "job_publisher")), platform) {
			matched = append(matched, raw)
		}
	}
	if len(matched) == 0 {
		return data
	}
	return matched
}

// Normalize maps a JSearch record into a NormalizedJob.
func Normalize(raw jobs.RawJob, now time.Time) (jobs.NormalizedJob, error) {
	salary := ""
	currency := normalize.String(raw, "job_salary_currency")
	minSalary := normalize.Float(raw, "job_min_salary")
	if currency != "" && minSalary > 0 {
		maxSalary := normalize.Float(raw, "job_max_salary")
		if maxSalary <= minSalary {
			maxSalary = 0
		}
		salary = normalize.SalaryRange(currency, minSalary, maxSalary)
	}

	city := normalize.String(raw, "job_city")
	location := city
	switch state := normalize.String(raw, "job_state"); {
	case normalize.Bool(raw, "job_is_remote"):
		location = "Remote"
		if city != "" {
			location += " (" + city + ")"
		}
	case state != "" && city != "":
		location = city + ", " + state
	case state != "":
		location = state
	}

	return normalize.Job(Name, normalize.Fields{
		ID:          normalize.String(raw, "job_id"),
		Title:       normalize.String(raw, "job_title"),
		Company:     normalize.String(raw, "employer_name"),
		Location:    location,
		Salary:      salary,
		Posted:      normalize.PostedSince(raw["job_posted_at_datetime_utc"], now),
		Tags:        normalize.Tags(raw["job_required_skills"]),
		URL:         normalize.String(raw, "job_apply_link"),
		Description: normalize.String(raw, "job_description"),
	}, now)
}
