// Package source holds the job source adapters: quota-metered HTTP APIs
// (adzuna, jsearch, arbeitnow) and HTML scrapers (scrape, browser).
//
// Each API adapter exposes a Client implementing jobs.APIClient and a
// Normalize function mapping its native record into a jobs.NormalizedJob.
// The registry binds them to descriptors.
package source
