package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// JobStore persists normalized jobs. AddJob is an upsert keyed by (source, id).
type JobStore interface {
	AddJob(ctx context.Context, job NormalizedJob) (string, error)
	ListJobs(ctx context.Context, source string, limit int) ([]NormalizedJob, error)
}

// Publisher pushes search notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// APIClient is a quota-metered job search API.
type APIClient interface {
	Search(ctx context.Context, query APIQuery) ([]RawJob, error)
}

// Scraper is an HTML job board scraper.
type Scraper interface {
	RunJobSearch(ctx context.Context, remoteOnly bool, maxPages int, creds *Credentials) ([]RawJob, error)
}

// Normalizer maps one source-native record to a NormalizedJob.
type Normalizer interface {
	Normalize(raw RawJob, now time.Time) (NormalizedJob, error)
}

// Source is a registered source ready to be executed by the coordinator.
type Source interface {
	Normalizer
	Descriptor() SourceDescriptor
	Fetch(ctx context.Context, req SearchRequest, platform string) ([]RawJob, error)
}

// SourceLookup resolves registered sources by name.
type SourceLookup interface {
	Lookup(name string) (Source, bool)
	Descriptors() []SourceDescriptor
}

// QuotaReader is the read side of the usage ledger.
type QuotaReader interface {
	CanUse(api string, n int) bool
	Remaining(api string) int
}

// UsageLogger is the write side of the usage ledger.
type UsageLogger interface {
	LogUsage(api string, n int)
}

// ResultCache stores normalized results per (source, query, params) key.
type ResultCache interface {
	KeyFor(source, query string, params map[string]any) string
	Get(ctx context.Context, key string, kind SourceKind) ([]NormalizedJob, bool)
	Put(ctx context.Context, key string, payload []NormalizedJob) error
}

// Hasher computes digests for cache keys.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
