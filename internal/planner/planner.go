// Package planner turns a query and a set of platforms into an ordered list
// of strategy steps, spending generous quota first, scarce quota only on
// queries that merit it, and falling back to scrapers for the rest.
//
// Planning never mutates the ledger. It projects remaining quota locally so
// a plan never schedules more calls than a source has left.
package planner

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsweep/internal/jobs"
)

// Defaults for Options.
const (
	DefaultMediumReserveFloor = 10
	DefaultCallsPerStep       = 1
	// LowQuotaWarning is the scarce remaining count at which Recommendations warns.
	LowQuotaWarning = 20
)

// Classifier assigns a query its priority tier.
type Classifier interface {
	Classify(query string) jobs.Priority
}

// Options tune the planner.
type Options struct {
	// MediumReserveFloor is the scarce quota a MEDIUM query must leave untouched.
	MediumReserveFloor int
	// DefaultCallsPerStep is the estimated cost of one API step.
	DefaultCallsPerStep int
}

// Planner builds strategy plans against a source registry and the ledger.
type Planner struct {
	sources    jobs.SourceLookup
	quota      jobs.QuotaReader
	classifier Classifier
	opts       Options
	logger     *zap.Logger
}

// New returns a Planner. Zero options take the defaults.
func New(sources jobs.SourceLookup, quota jobs.QuotaReader, classifier Classifier, opts Options, logger *zap.Logger) *Planner {
	if opts.MediumReserveFloor <= 0 {
		opts.MediumReserveFloor = DefaultMediumReserveFloor
	}
	if opts.DefaultCallsPerStep <= 0 {
		opts.DefaultCallsPerStep = DefaultCallsPerStep
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		sources:    sources,
		quota:      quota,
		classifier: classifier,
		opts:       opts,
		logger:     logger.Named("planner"),
	}
}

// Priority classifies query.
func (p *Planner) Priority(query string) jobs.Priority {
	return p.classifier.Classify(query)
}

// Plan returns the steps for query over platforms. Identical ledger state and
// classifier output yield identical plans. maxResults does not change the
// plan: every API step is a single results page.
func (p *Planner) Plan(query string, platforms []string, maxResults int) []jobs.StrategyStep {
	priority := p.classifier.Classify(query)
	requested := Platforms(platforms)
	fulfilled := make(map[string]bool, len(requested))
	steps := make([]jobs.StrategyStep, 0, len(requested))
	calls := p.opts.DefaultCallsPerStep

	descs := p.sources.Descriptors()
	projected := make(map[string]int, len(descs))
	for _, d := range descs {
		if d.Kind == jobs.KindAPI {
			projected[d.Name] = p.quota.Remaining(d.Name)
		}
	}

	// Generous tier: every covered platform while the projection allows.
	generous := p.ranked(descs, jobs.TierGenerous, projected)
	for _, platform := range requested {
		for _, d := range generous {
			if !d.CoversPlatform(platform) || projected[d.Name] < calls {
				continue
			}
			steps = append(steps, step(d.Name, platform, calls))
			projected[d.Name] -= calls
			fulfilled[platform] = true
			break
		}
	}

	// Scarce tier, gated by priority.
	scarce := p.ranked(descs, jobs.TierScarce, projected)
	switch priority {
	case jobs.PriorityHigh:
		for _, platform := range requested {
			if fulfilled[platform] {
				continue
			}
			for _, d := range scarce {
				if !d.CoversPlatform(platform) || projected[d.Name] < calls {
					continue
				}
				steps = append(steps, step(d.Name, platform, calls))
				projected[d.Name] -= calls
				fulfilled[platform] = true
				break
			}
		}
	case jobs.PriorityMedium:
	medium:
		for _, d := range scarce {
			if projected[d.Name] <= p.opts.MediumReserveFloor || projected[d.Name] < calls {
				continue
			}
			for _, covered := range d.Covers {
				platform := strings.ToLower(covered)
				if contains(requested, platform) && !fulfilled[platform] {
					steps = append(steps, step(d.Name, platform, calls))
					projected[d.Name] -= calls
					fulfilled[platform] = true
					break medium
				}
			}
		}
	}

	// Fallback tier: scrapers for whatever is still open.
	open := make([]string, 0, len(requested))
	for _, platform := range requested {
		if !fulfilled[platform] {
			open = append(open, platform)
		}
	}
	steps = append(steps, p.fallback(descs, open)...)

	p.logger.Debug("plan built",
		zap.String("query", query),
		zap.Stringer("priority", priority),
		zap.Strings("platforms", requested),
		zap.Int("max_results", maxResults),
		zap.Int("steps", len(steps)),
	)
	return steps
}

// FallbackPlan returns scraper steps for platforms, ignoring API tiers.
func (p *Planner) FallbackPlan(platforms []string) []jobs.StrategyStep {
	return p.fallback(p.sources.Descriptors(), Platforms(platforms))
}

func (p *Planner) fallback(descs []jobs.SourceDescriptor, platforms []string) []jobs.StrategyStep {
	steps := make([]jobs.StrategyStep, 0, len(platforms))
	for _, platform := range platforms {
		for _, d := range descs {
			if d.Tier == jobs.TierFallback && d.CoversPlatform(platform) {
				steps = append(steps, step(d.Name, platform, 0))
				break
			}
		}
	}
	return steps
}

// ranked returns tier's API sources, larger projected quota first and
// registry order among equals.
func (p *Planner) ranked(descs []jobs.SourceDescriptor, tier jobs.Tier, projected map[string]int) []jobs.SourceDescriptor {
	out := make([]jobs.SourceDescriptor, 0, len(descs))
	for _, d := range descs {
		if d.Tier == tier && d.Kind == jobs.KindAPI {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return projected[out[i].Name] > projected[out[j].Name]
	})
	return out
}

// Unfulfilled lists the requested platforms no step targets.
func Unfulfilled(platforms []string, plan []jobs.StrategyStep) []string {
	targeted := make(map[string]bool, len(plan))
	for _, s := range plan {
		targeted[strings.ToLower(s.TargetPlatform)] = true
	}
	out := make([]string, 0)
	for _, platform := range Platforms(platforms) {
		if !targeted[platform] {
			out = append(out, platform)
		}
	}
	return out
}

// Recommendations returns advisory notes on quota usage for query.
func (p *Planner) Recommendations(query string, platforms []string) []string {
	priority := p.classifier.Classify(query)
	plan := p.Plan(query, platforms, 0)
	planned := make(map[string]bool, len(plan))
	for _, s := range plan {
		planned[s.SourceName] = true
	}

	var (
		out      []string
		generous []jobs.SourceDescriptor
		scarce   []jobs.SourceDescriptor
	)
	for _, d := range p.sources.Descriptors() {
		switch {
		case d.Kind != jobs.KindAPI:
		case d.Tier == jobs.TierScarce:
			scarce = append(scarce, d)
		case d.Tier == jobs.TierGenerous && !d.Unlimited():
			generous = append(generous, d)
		}
	}

	for _, d := range scarce {
		if remaining := p.quota.Remaining(d.Name); remaining <= LowQuotaWarning {
			out = append(out, fmt.Sprintf("WARNING: %s quota low (%d calls left). Use for high-priority searches only.", d.Name, remaining))
		}
	}
	if priority == jobs.PriorityLow && len(generous) > 0 {
		for _, d := range scarce {
			if planned[d.Name] {
				out = append(out, fmt.Sprintf("TIP: Consider using %s for broad searches to preserve %s quota.", generous[0].Name, d.Name))
				break
			}
		}
	}
	anyGenerous := false
	for _, d := range generous {
		anyGenerous = anyGenerous || planned[d.Name]
	}
	if !anyGenerous {
		for _, d := range generous {
			if p.quota.CanUse(d.Name, p.opts.DefaultCallsPerStep) {
				out = append(out, fmt.Sprintf("TIP: %s API available with generous quota - consider using for %s.", d.Name, strings.Join(d.Covers, "/")))
				break
			}
		}
	}
	if priority >= jobs.PriorityMedium {
		out = append(out, "TIP: Results will be cached to avoid duplicate API calls.")
	}
	return out
}

// Platforms lower-cases and de-duplicates platforms, keeping first-seen order.
func Platforms(platforms []string) []string {
	seen := make(map[string]bool, len(platforms))
	out := make([]string, 0, len(platforms))
	for _, p := range platforms {
		key := strings.ToLower(strings.TrimSpace(p))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func step(source, platform string, calls int) jobs.StrategyStep {
	return jobs.StrategyStep{SourceName: source, TargetPlatform: platform, EstimatedCalls: calls}
}
