package jobs

import (
	"strings"
	"time"
)

// NotSpecified is the sentinel used for salary and posted fields that a
// source did not supply.
const NotSpecified = "Not specified"

// SourceKind distinguishes quota-metered APIs from HTML scrapers.
type SourceKind string

// Source kinds.
const (
	KindAPI     SourceKind = "api"
	KindScraper SourceKind = "scraper"
)

// Tier places a source into one of the planner's spending tiers.
type Tier string

// Planner tiers, cheapest quota first.
const (
	TierGenerous Tier = "generous"
	TierScarce   Tier = "scarce"
	TierFallback Tier = "fallback"
)

// Priority is the classifier's verdict on how much scarce quota a query deserves.
type Priority int

// Priority tiers.
const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

// String renders the priority as a lower-case label.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// MarshalText encodes the priority label for JSON payloads.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// SourceDescriptor is the static metadata of a registered source.
type SourceDescriptor struct {
	Name                string     `json:"name"`
	Kind                SourceKind `json:"kind"`
	Tier                Tier       `json:"tier"`
	Covers              []string   `json:"covers"`
	MonthlyQuota        *int       `json:"monthly_quota,omitempty"`
	RequiresCredentials bool       `json:"requires_credentials"`
	RequiresLogin       bool       `json:"requires_login"`
}

// CoversPlatform reports whether the source can answer for platform.
func (d SourceDescriptor) CoversPlatform(platform string) bool {
	for _, p := range d.Covers {
		if strings.EqualFold(p, platform) {
			return true
		}
	}
	return false
}

// Unlimited reports whether the source carries no monthly quota.
func (d SourceDescriptor) Unlimited() bool {
	return d.MonthlyQuota == nil
}

// Quota returns a pointer to n, for descriptor literals.
func Quota(n int) *int {
	return &n
}

// StrategyStep is one planned call: a source answering for a platform at an
// estimated cost in API calls (zero for scrapers).
type StrategyStep struct {
	SourceName     string `json:"source"`
	TargetPlatform string `json:"platform"`
	EstimatedCalls int    `json:"estimated_calls"`
}

// NormalizedJob is the canonical job record. Every field is a string.
type NormalizedJob struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Salary      string `json:"salary"`
	Posted      string `json:"posted"`
	Tags        string `json:"tags"`
	URL         string `json:"url"`
	DateFound   string `json:"date_found"`
	Source      string `json:"source"`
	Description string `json:"description"`
}

// RawJob is a source-native record before normalization.
type RawJob map[string]any

// SearchRequest is a caller's query against a set of platforms.
type SearchRequest struct {
	Query      string   `json:"query"`
	Location   string   `json:"location"`
	Platforms  []string `json:"platforms"`
	RemoteOnly bool     `json:"remote_only"`
	MaxResults int      `json:"max_results"`
	MaxPages   int      `json:"max_pages"`
}

// APIQuery is the argument set handed to an API client.
type APIQuery struct {
	Query      string
	Location   string
	MaxResults int
	RemoteOnly bool
	Platform   string
}

// Credentials carries a login for scrapers that need an authenticated session.
type Credentials struct {
	Username string
	Password string
}

// Empty reports whether either half of the login is missing.
func (c Credentials) Empty() bool {
	return c.Username == "" || c.Password == ""
}

// StepState tracks a strategy step through execution.
type StepState string

// Step states.
const (
	StepPending  StepState = "pending"
	StepCacheHit StepState = "cache_hit"
	StepCalling  StepState = "calling"
	StepSuccess  StepState = "success"
	StepFailed   StepState = "failed"
	StepDone     StepState = "done"
)

// StepReport is the outcome of one executed step. State is the last state
// reached; Outcome is the terminal state before DONE.
type StepReport struct {
	Step     StrategyStep  `json:"step"`
	State    StepState     `json:"state"`
	Outcome  StepState     `json:"outcome"`
	CacheHit bool          `json:"cache_hit"`
	Results  int           `json:"results"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}
