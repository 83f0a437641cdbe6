package browser

import (
	"net/url"

	"github.com/JakeFAU/jobsweep/internal/source/scrape"
)

// LinkedInName is the registry name of the signed-in LinkedIn scraper.
const LinkedInName = "linkedin-browser"

// DefaultLinkedInKeywords is the search used when none is configured.
const DefaultLinkedInKeywords = "frontend developer"

// LinkedIn is the jobs search of the last 30 days, newest first.
func LinkedIn(keywords string) scrape.Site {
	if keywords == "" {
		keywords = DefaultLinkedInKeywords
	}
	base := url.Values{
		"keywords": {keywords},
		"f_TPR":    {"r2592000"},
		"sortBy":   {"DD"},
	}
	remote := url.Values{
		"keywords": {keywords},
		"f_TPR":    {"r2592000"},
		"sortBy":   {"DD"},
		"f_WT":     {"2"},
	}
	const search = "https://www.linkedin.com/jobs/search/?"
	return scrape.Site{
		Name:      LinkedInName,
		BaseURL:   "https://www.linkedin.com",
		RemoteURL: search + remote.Encode(),
		OnsiteURL: search + base.Encode(),
		Selectors: scrape.Selectors{
			Row:      "li.jobs-search-results__list-item",
			IDAttr:   "data-occludable-job-id",
			Title:    "h3.base-search-card__title, .job-card-list__title",
			Link:     "a.base-card__full-link, a.job-card-list__title",
			Company:  ".base-search-card__subtitle, .job-card-container__primary-description",
			Location: ".job-search-card__location, .job-card-container__metadata-item",
			Salary:   ".job-search-card__salary-info",
			Posted:   ".job-search-card__listdate, time",
		},
		MaxAgeDays: 30,
		PageParam:  "start",
		PageSize:   25,
	}
}

// LinkedInLogin is LinkedIn's sign-in form.
func LinkedInLogin() *Login {
	return &Login{
		URL:      "https://www.linkedin.com/login",
		Username: "#username",
		Password: "#password",
		Submit:   "button[type='submit']",
		Verify:   ".global-nav__logo",
	}
}
