package registry

import (
	"fmt"

	"github.com/JakeFAU/jobsweep/internal/jobs"
	"github.com/JakeFAU/jobsweep/internal/source/adzuna"
	"github.com/JakeFAU/jobsweep/internal/source/arbeitnow"
	"github.com/JakeFAU/jobsweep/internal/source/browser"
	"github.com/JakeFAU/jobsweep/internal/source/jsearch"
	"github.com/JakeFAU/jobsweep/internal/source/scrape"
)

// Monthly limits of the metered APIs' free plans.
const (
	AdzunaMonthlyQuota  = 1000
	JSearchMonthlyQuota = 200
)

// DefaultManifest is the built-in source catalogue in tie-break order.
func DefaultManifest() []Entry {
	return []Entry{
		{
			Descriptor: jobs.SourceDescriptor{
				Name:                adzuna.Name,
				Kind:                jobs.KindAPI,
				Tier:                jobs.TierGenerous,
				Covers:              []string{"indeed", "monster", "dice", "jobsite", "cvlibrary"},
				MonthlyQuota:        jobs.Quota(AdzunaMonthlyQuota),
				RequiresCredentials: true,
			},
			Factory: newAdzuna,
		},
		{
			Descriptor: jobs.SourceDescriptor{
				Name:                jsearch.Name,
				Kind:                jobs.KindAPI,
				Tier:                jobs.TierScarce,
				Covers:              []string{"linkedin", "glassdoor", "indeed"},
				MonthlyQuota:        jobs.Quota(JSearchMonthlyQuota),
				RequiresCredentials: true,
			},
			Factory: newJSearch,
		},
		{
			Descriptor: jobs.SourceDescriptor{
				Name:   arbeitnow.Name,
				Kind:   jobs.KindAPI,
				Tier:   jobs.TierGenerous,
				Covers: []string{"arbeitnow"},
			},
			Factory: newArbeitnow,
		},
		{
			Descriptor: jobs.SourceDescriptor{
				Name:   scrape.Web3CareerName,
				Kind:   jobs.KindScraper,
				Tier:   jobs.TierFallback,
				Covers: []string{"web3career"},
			},
			Factory: newWeb3Career,
		},
		{
			Descriptor: jobs.SourceDescriptor{
				Name:          browser.LinkedInName,
				Kind:          jobs.KindScraper,
				Tier:          jobs.TierFallback,
				Covers:        []string{"linkedin"},
				RequiresLogin: true,
			},
			Factory: newLinkedInBrowser,
		},
	}
}

func newAdzuna(desc jobs.SourceDescriptor, creds Credentials, deps Deps) (jobs.Source, error) {
	if creds.AdzunaAppID == "" || creds.AdzunaAppKey == "" {
		return nil, fmt.Errorf("adzuna app id/key: %w", ErrMissingCredentials)
	}
	client := adzuna.New(adzuna.Config{
		AppID:   creds.AdzunaAppID,
		AppKey:  creds.AdzunaAppKey,
		Country: deps.AdzunaCountry,
		BaseURL: deps.baseURL(adzuna.Name),
		HTTP:    deps.HTTP,
	}, deps.Limiter)
	return NewAPISource(desc, client, adzuna.Normalize), nil
}

func newJSearch(desc jobs.SourceDescriptor, creds Credentials, deps Deps) (jobs.Source, error) {
	if creds.RapidAPIKey == "" {
		return nil, fmt.Errorf("rapidapi key: %w", ErrMissingCredentials)
	}
	client := jsearch.New(jsearch.Config{
		APIKey:  creds.RapidAPIKey,
		BaseURL: deps.baseURL(jsearch.Name),
		HTTP:    deps.HTTP,
	}, deps.Limiter)
	return NewAPISource(desc, client, jsearch.Normalize), nil
}

func newArbeitnow(desc jobs.SourceDescriptor, _ Credentials, deps Deps) (jobs.Source, error) {
	client := arbeitnow.New(arbeitnow.Config{
		URL:  deps.baseURL(arbeitnow.Name),
		HTTP: deps.HTTP,
	}, deps.Limiter)
	return NewAPISource(desc, client, arbeitnow.Normalize), nil
}

func newWeb3Career(desc jobs.SourceDescriptor, _ Credentials, deps Deps) (jobs.Source, error) {
	site := scrape.Web3Career()
	if base := deps.baseURL(scrape.Web3CareerName); base != "" {
		site = site.WithBaseURL(base)
	}
	scraper := scrape.New(site, deps.Scrape, deps.Limiter, deps.Logger)
	return NewScraperSource(desc, scraper, nil), nil
}

func newLinkedInBrowser(desc jobs.SourceDescriptor, creds Credentials, deps Deps) (jobs.Source, error) {
	login := jobs.Credentials{Username: creds.LinkedInEmail, Password: creds.LinkedInPassword}
	if login.Empty() {
		return nil, fmt.Errorf("linkedin email/password: %w", ErrMissingCredentials)
	}
	scraper, err := browser.New(browser.LinkedIn(deps.LinkedInKeywords), browser.LinkedInLogin(), deps.Browser, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("linkedin browser: %w", err)
	}
	return NewScraperSource(desc, scraper, &login), nil
}
