package scrape

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/jobsweep/internal/jobs"
	"github.com/JakeFAU/jobsweep/internal/normalize"
)

// Extract reads one listing row. It returns false for rows without an id or
// title and for rows the site excludes (ads, stale posts).
func (s Site) Extract(row *goquery.Selection, page *url.URL) (jobs.RawJob, bool) {
	sel := s.Selectors
	id, _ := row.Attr(sel.IDAttr)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false
	}
	if s.excluded(id, row.Text()) {
		return nil, false
	}

	title := first(row, sel.Title)
	if title == "" {
		return nil, false
	}

	posted := normalize.RelativePosted(first(row, sel.Posted))
	if !s.fresh(posted) {
		return nil, false
	}

	tags := make([]string, 0)
	if sel.Tags != "" {
		row.Find(sel.Tags).Each(func(_ int, tag *goquery.Selection) {
			if t := text(tag); t != "" {
				tags = append(tags, t)
			}
		})
	}

	salary := first(row, sel.Salary)
	if i := strings.IndexByte(salary, '\n'); i >= 0 {
		salary = strings.TrimSpace(salary[:i])
	}

	location := first(row, sel.Location)
	if location == "" {
		location = jobs.NotSpecified
	}

	return jobs.RawJob{
		"id":       id,
		"title":    title,
		"company":  first(row, sel.Company),
		"location": location,
		"salary":   salary,
		"posted":   posted,
		"tags":     strings.Join(tags, ", "),
		"url":      s.listingURL(row, id, page),
	}, true
}

func (s Site) excluded(id, rowText string) bool {
	if s.ExcludeIDMarker != "" && strings.Contains(strings.ToLower(id), s.ExcludeIDMarker) {
		return true
	}
	lower := strings.ToLower(rowText)
	for _, marker := range s.Exclude {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// fresh keeps posts within MaxAgeDays. Unparseable ages are dropped when an
// age limit is configured.
func (s Site) fresh(posted string) bool {
	if s.MaxAgeDays <= 0 {
		return true
	}
	if posted == normalize.PostedToday {
		return true
	}
	days, err := strconv.Atoi(strings.TrimSuffix(posted, "d"))
	if err != nil {
		return false
	}
	return days <= s.MaxAgeDays
}

func (s Site) listingURL(row *goquery.Selection, id string, page *url.URL) string {
	var href string
	if s.Selectors.Link != "" {
		href, _ = row.Find(s.Selectors.Link).First().Attr("href")
		href = strings.TrimSpace(href)
	}
	if href != "" {
		if abs := resolve(page, href); abs != "" {
			return abs
		}
	}
	if s.OnsiteURL == "" {
		return ""
	}
	return strings.TrimRight(s.OnsiteURL, "/") + "/" + url.PathEscape(id)
}

func resolve(page *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if page == nil {
		return ref.String()
	}
	return page.ResolveReference(ref).String()
}

// ParsePage extracts every listing row of a rendered results page and the
// absolute URL of the next page, if the site links one.
func (s Site) ParsePage(body []byte, page *url.URL) ([]jobs.RawJob, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("parse %s page: %w", s.Name, err)
	}
	var out []jobs.RawJob
	doc.Find(s.Selectors.Row).Each(func(_ int, row *goquery.Selection) {
		if raw, ok := s.Extract(row, page); ok {
			out = append(out, raw)
		}
	})
	next := ""
	if s.Selectors.Next != "" {
		if href, ok := doc.Find(s.Selectors.Next).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
			next = resolve(page, strings.TrimSpace(href))
		}
	}
	return out, next, nil
}

func first(row *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return text(row.Find(selector).First())
}

func text(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.Text())
}
