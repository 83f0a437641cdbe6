// Package scrape implements the HTML scraper collaborator over colly.
//
// A Site describes where a board's listings live and how to read them; the
// Scraper walks its result pages and returns one RawJob per listing row,
// keyed with the canonical field names normalize.Flat understands.
package scrape

import (
	"net/url"
	"strconv"
	"strings"
)

// Selectors are the CSS selectors locating one listing's fields inside its row.
type Selectors struct {
	Row      string
	IDAttr   string
	Title    string
	Link     string
	Company  string
	Location string
	Salary   string
	Posted   string
	Tags     string
	Next     string
}

// Site is a scrapeable job board.
type Site struct {
	Name      string
	BaseURL   string
	RemoteURL string
	OnsiteURL string
	Selectors Selectors
	// MaxAgeDays drops listings older than this many days; zero keeps all.
	MaxAgeDays int
	// Exclude drops listings whose text contains any of these (lower-case) markers.
	Exclude []string
	// ExcludeIDMarker drops listings whose row id contains it.
	ExcludeIDMarker string
	// PageParam and PageSize paginate by offset for boards without a next link.
	PageParam string
	PageSize  int
}

// StartURL returns the first results page for the requested mode.
func (s Site) StartURL(remoteOnly bool) string {
	if remoteOnly || s.OnsiteURL == "" {
		return s.RemoteURL
	}
	return s.OnsiteURL
}

// PageURL returns the offset-paginated URL of page n (1-based) derived from
// start, or "" when the site does not paginate by offset.
func (s Site) PageURL(start string, n int) string {
	if s.PageParam == "" || s.PageSize <= 0 || n < 1 {
		return ""
	}
	u, err := url.Parse(start)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set(s.PageParam, strconv.Itoa((n-1)*s.PageSize))
	u.RawQuery = q.Encode()
	return u.String()
}

// WithBaseURL returns a copy of s with every URL rebased onto base. Used to
// point a site at a mirror or a test server.
func (s Site) WithBaseURL(base string) Site {
	base = strings.TrimRight(base, "/")
	rebase := func(u string) string {
		if s.BaseURL == "" || u == "" {
			return u
		}
		return base + strings.TrimPrefix(u, strings.TrimRight(s.BaseURL, "/"))
	}
	s.RemoteURL = rebase(s.RemoteURL)
	s.OnsiteURL = rebase(s.OnsiteURL)
	s.BaseURL = base
	return s
}

// Web3CareerName is the registry name of the web3.career scraper.
const Web3CareerName = "web3career"

// Web3Career is the front-end listing board at web3.career.
func Web3Career() Site {
	const location = "td:nth-of-type(4) span[style*='color: #d5d3d3'], td:nth-of-type(4) a[style*='color: #d5d3d3']"
	return Site{
		Name:      Web3CareerName,
		BaseURL:   "https://web3.career",
		RemoteURL: "https://web3.career/front-end+remote-jobs",
		OnsiteURL: "https://web3.career/front-end-jobs",
		Selectors: Selectors{
			Row:      "tr[data-jobid]",
			IDAttr:   "data-jobid",
			Title:    "h2.fs-6.fs-md-5.fw-bold.my-primary",
			Link:     "a:has(h2.my-primary)",
			Company:  "h3[style*='font-size: 12px']",
			Location: location,
			Salary:   "p[class*='text-salary']",
			Posted:   "time",
			Tags:     "span.my-badge.my-badge-secondary a",
			Next:     "li.page-item.next:not(.disabled) a",
		},
		MaxAgeDays:      30,
		Exclude:         []string{"bootcamp", "course", "guaranteed", "learn", "training"},
		ExcludeIDMarker: "sponsor",
	}
}
