// Package classifier assigns a spending priority to free-text job queries.
//
// Queries that name seniority, salary research, premium platforms or
// well-known employers justify scarce quota (HIGH); technology keywords earn
// a single scarce call (MEDIUM); everything else stays on free sources (LOW).
package classifier

import (
	"strings"

	"github.com/JakeFAU/jobsweep/internal/jobs"
)

// Keywords lists the case-insensitive substrings that drive classification.
type Keywords struct {
	Seniority      []string
	SalaryResearch []string
	Platform       []string
	Employers      []string
	Technology     []string
}

// DefaultKeywords returns the stock keyword sets.
func DefaultKeywords() Keywords {
	return Keywords{
		Seniority:      []string{"senior", "principal", "lead", "architect", "staff"},
		SalaryResearch: []string{"glassdoor", "salary", "compensation"},
		Platform:       []string{"linkedin", "premium"},
		Employers:      []string{"google", "facebook", "amazon", "microsoft", "apple"},
		Technology:     []string{"react", "nodejs", "python", "frontend", "backend", "fullstack"},
	}
}

// Classifier is a pure query to priority mapping.
type Classifier struct {
	high   [][]string
	medium []string
}

// New builds a Classifier. Empty keyword sets fall back to the defaults.
func New(kw Keywords) *Classifier {
	def := DefaultKeywords()
	pick := func(set, fallback []string) []string {
		if len(set) == 0 {
			return fallback
		}
		out := make([]string, 0, len(set))
		for _, k := range set {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				out = append(out, k)
			}
		}
		return out
	}
	return &Classifier{
		high: [][]string{
			pick(kw.Seniority, def.Seniority),
			pick(kw.SalaryResearch, def.SalaryResearch),
			pick(kw.Platform, def.Platform),
			pick(kw.Employers, def.Employers),
		},
		medium: pick(kw.Technology, def.Technology),
	}
}

// Classify returns the priority tier for query.
func (c *Classifier) Classify(query string) jobs.Priority {
	q := strings.ToLower(query)
	if q == "" {
		return jobs.PriorityLow
	}
	for _, set := range c.high {
		if containsAny(q, set) {
			return jobs.PriorityHigh
		}
	}
	if containsAny(q, c.medium) {
		return jobs.PriorityMedium
	}
	return jobs.PriorityLow
}

var defaultClassifier = New(Keywords{})

// Classify applies the default keyword sets.
func Classify(query string) jobs.Priority {
	return defaultClassifier.Classify(query)
}

func containsAny(q string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(q, k) {
			return true
		}
	}
	return false
}
