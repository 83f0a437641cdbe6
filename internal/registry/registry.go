// Package registry is the static catalogue of job sources: what each covers,
// how it is metered, and how to construct it from credentials.
package registry

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsweep/internal/jobs"
	"github.com/JakeFAU/jobsweep/internal/ratelimit"
	"github.com/JakeFAU/jobsweep/internal/source/browser"
	"github.com/JakeFAU/jobsweep/internal/source/scrape"
)

// ErrMissingCredentials is returned by factories whose source cannot run
// without credentials that were not supplied.
var ErrMissingCredentials = errors.New("missing credentials")

// Credentials are the secrets the built-in factories draw from.
type Credentials struct {
	AdzunaAppID      string `mapstructure:"adzuna_app_id"`
	AdzunaAppKey     string `mapstructure:"adzuna_app_key"`
	RapidAPIKey      string `mapstructure:"rapidapi_key"`
	LinkedInEmail    string `mapstructure:"linkedin_email"`
	LinkedInPassword string `mapstructure:"linkedin_password"`
}

// Deps are the shared collaborators handed to factories.
type Deps struct {
	Limiter *ratelimit.Limiter
	HTTP    *http.Client
	// BaseURLs overrides a source's upstream endpoint by name.
	BaseURLs         map[string]string
	AdzunaCountry    string
	LinkedInKeywords string
	Scrape           scrape.Config
	Browser          browser.Config
	Logger           *zap.Logger
}

func (d Deps) baseURL(name string) string {
	return d.BaseURLs[name]
}

// Factory builds a ready source for desc.
type Factory func(desc jobs.SourceDescriptor, creds Credentials, deps Deps) (jobs.Source, error)

// Entry is one manifest row.
type Entry struct {
	Descriptor jobs.SourceDescriptor
	Factory    Factory
}

// Availability reports whether a manifest entry could be constructed.
type Availability struct {
	Descriptor jobs.SourceDescriptor `json:"descriptor"`
	Available  bool                  `json:"available"`
	Reason     string                `json:"reason,omitempty"`
}

// Registry holds the constructed sources in manifest order.
type Registry struct {
	entries []Entry
	sources map[string]jobs.Source
	reasons map[string]string
	logger  *zap.Logger
}

// New runs each factory. Sources whose factory fails are refused: logged at
// Warn and left out of Lookup and Descriptors.
func New(manifest []Entry, creds Credentials, deps Deps, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	r := &Registry{
		entries: manifest,
		sources: make(map[string]jobs.Source, len(manifest)),
		reasons: make(map[string]string),
		logger:  logger.Named("registry"),
	}
	for _, e := range manifest {
		name := e.Descriptor.Name
		if e.Factory == nil {
			r.reasons[name] = "no factory"
			r.logger.Warn("source refused", zap.String("source", name), zap.String("reason", "no factory"))
			continue
		}
		src, err := e.Factory(e.Descriptor, creds, deps)
		if err != nil {
			r.reasons[name] = err.Error()
			r.logger.Warn("source refused", zap.String("source", name), zap.Error(err))
			continue
		}
		r.sources[name] = src
	}
	r.logger.Info("sources registered", zap.Int("available", len(r.sources)), zap.Int("refused", len(r.reasons)))
	return r
}

// Lookup returns the available source called name.
func (r *Registry) Lookup(name string) (jobs.Source, bool) {
	src, ok := r.sources[name]
	return src, ok
}

// Descriptors lists available sources in manifest order.
func (r *Registry) Descriptors() []jobs.SourceDescriptor {
	out := make([]jobs.SourceDescriptor, 0, len(r.sources))
	for _, e := range r.entries {
		if _, ok := r.sources[e.Descriptor.Name]; ok {
			out = append(out, e.Descriptor)
		}
	}
	return out
}

// All lists every manifest entry with its availability.
func (r *Registry) All() []Availability {
	out := make([]Availability, 0, len(r.entries))
	for _, e := range r.entries {
		_, ok := r.sources[e.Descriptor.Name]
		out = append(out, Availability{
			Descriptor: e.Descriptor,
			Available:  ok,
			Reason:     r.reasons[e.Descriptor.Name],
		})
	}
	return out
}

// Quotas returns the monthly limit of every metered manifest entry.
func (r *Registry) Quotas() map[string]int {
	out := make(map[string]int)
	for _, e := range r.entries {
		if q := e.Descriptor.MonthlyQuota; q != nil {
			out[e.Descriptor.Name] = *q
		}
	}
	return out
}

// Platforms lists every platform covered by an available source, in first
// appearance order.
func (r *Registry) Platforms() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range r.Descriptors() {
		for _, p := range d.Covers {
			key := strings.ToLower(p)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, key)
		}
	}
	return out
}

// Close releases sources holding resources, such as browser allocators.
func (r *Registry) Close() error {
	var errs []error
	for name, src := range r.sources {
		if c, ok := src.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}
