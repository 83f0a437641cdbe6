// Package normalize maps source-native records into jobs.NormalizedJob.
//
// Source adapters pull their fields out of a RawJob with the accessor
// helpers here, fill a Fields value and hand it to Job, which applies the
// shared sentinels ("Not specified" salary, "Recently" posting date) and
// stamps the discovery date and source.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/jobsweep/internal/jobs"
)

// Posted sentinels.
const (
	PostedToday    = "Today"
	PostedRecently = "Recently"
)

// ErrUnusable is returned for records carrying neither a title nor a URL.
var ErrUnusable = errors.New("record has neither title nor url")

// Fields is the source-agnostic intermediate filled by adapters.
type Fields struct {
	ID          string
	Title       string
	Company     string
	Location    string
	Salary      string
	Posted      string
	Tags        string
	URL         string
	Description string
}

// Job finalizes f into a NormalizedJob for source.
func Job(source string, f Fields, now time.Time) (jobs.NormalizedJob, error) {
	job := jobs.NormalizedJob{
		ID:          strings.TrimSpace(f.ID),
		Title:       collapse(f.Title),
		Company:     collapse(f.Company),
		Location:    collapse(f.Location),
		Salary:      collapse(f.Salary),
		Posted:      strings.TrimSpace(f.Posted),
		Tags:        strings.TrimSpace(f.Tags),
		URL:         strings.TrimSpace(f.URL),
		DateFound:   now.Format("2006-01-02"),
		Source:      strings.ToLower(strings.TrimSpace(source)),
		Description: strings.TrimSpace(f.Description),
	}
	if job.Title == "" && job.URL == "" {
		return jobs.NormalizedJob{}, ErrUnusable
	}
	if job.Salary == "" {
		job.Salary = jobs.NotSpecified
	}
	if job.Posted == "" {
		job.Posted = PostedRecently
	}
	if job.ID == "" {
		job.ID = job.URL
	}
	return job, nil
}

// Flat normalizes a record that already uses the canonical field names, as
// HTML scrapers produce.
func Flat(source string, raw jobs.RawJob, now time.Time) (jobs.NormalizedJob, error) {
	return Job(source, Fields{
		ID:          String(raw, "id"),
		Title:       String(raw, "title"),
		Company:     String(raw, "company"),
		Location:    String(raw, "location"),
		Salary:      String(raw, "salary"),
		Posted:      RelativePosted(String(raw, "posted")),
		Tags:        Tags(raw["tags"]),
		URL:         String(raw, "url"),
		Description: String(raw, "description"),
	}, now)
}

// DaysAgo renders the whole days between posted and now as "<n>d", or
// "Today" for same-day and future dates.
func DaysAgo(posted, now time.Time) string {
	p := time.Date(posted.Year(), posted.Month(), posted.Day(), 0, 0, 0, 0, time.UTC)
	n := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := int(n.Sub(p).Hours() / 24)
	if days <= 0 {
		return PostedToday
	}
	return fmt.Sprintf("%dd", days)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses ISO-8601 strings (full or date-only) and unix seconds.
func ParseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case float64:
		if t <= 0 {
			return time.Time{}, false
		}
		return time.Unix(int64(t), 0).UTC(), true
	case int64:
		return time.Unix(t, 0).UTC(), t > 0
	case int:
		return time.Unix(int64(t), 0).UTC(), t > 0
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), true
			}
		}
		if len(s) >= 10 {
			if parsed, err := time.Parse("2006-01-02", s[:10]); err == nil {
				return parsed, true
			}
		}
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
			return time.Unix(secs, 0).UTC(), true
		}
	}
	return time.Time{}, false
}

// PostedSince renders a posting timestamp relative to now, or "Recently"
// when it cannot be parsed.
func PostedSince(v any, now time.Time) string {
	t, ok := ParseDate(v)
	if !ok {
		return PostedRecently
	}
	return DaysAgo(t, now)
}

var relativePattern = regexp.MustCompile(`^(\d+)\s*(h|hr|hrs|hours?|d|days?|w|wk|weeks?|mo|months?)\b`)

// RelativePosted converts scraped relative age text ("3d", "2 weeks ago",
// "today") into the "<n>d" encoding. Unrecognized text is kept verbatim.
func RelativePosted(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	switch {
	case s == "":
		return ""
	case s == "today" || s == "just now" || strings.HasPrefix(s, "just posted") || s == "new":
		return PostedToday
	case s == "yesterday":
		return "1d"
	}
	s = strings.TrimPrefix(s, "posted ")
	s = strings.TrimPrefix(s, "active ")
	m := relativePattern.FindStringSubmatch(s)
	if m == nil {
		return strings.TrimSpace(text)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return strings.TrimSpace(text)
	}
	switch unit := m[2]; {
	case strings.HasPrefix(unit, "h"):
		return PostedToday
	case strings.HasPrefix(unit, "w"):
		n *= 7
	case strings.HasPrefix(unit, "mo"):
		n *= 30
	}
	if n == 0 {
		return PostedToday
	}
	return fmt.Sprintf("%dd", n)
}

// Money formats v with thousands separators and no decimals.
func Money(v float64) string {
	n := int64(math.Round(v))
	neg := n < 0
	if neg {
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// SalaryRange renders "<p>min - <p>max", "<p>min+" or the sentinel.
func SalaryRange(prefix string, minSalary, maxSalary float64) string {
	switch {
	case minSalary > 0 && maxSalary > 0:
		return prefix + Money(minSalary) + " - " + prefix + Money(maxSalary)
	case minSalary > 0:
		return prefix + Money(minSalary) + "+"
	default:
		return jobs.NotSpecified
	}
}

// Tags joins a list of tags with ", ". Strings pass through.
func Tags(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []string:
		return joinNonEmpty(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
		return joinNonEmpty(parts)
	default:
		return ""
	}
}

// String reads key as a string. Numbers are formatted; other types and
// nulls read as "".
func String(raw jobs.RawJob, key string) string {
	switch t := raw[key].(type) {
	case string:
		return t
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case fmt.Stringer:
		return t.String()
	default:
		return ""
	}
}

// Float reads key as a number; numeric strings are parsed.
func Float(raw jobs.RawJob, key string) float64 {
	switch t := raw[key].(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(t), ",", ""), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Bool reads key as a boolean.
func Bool(raw jobs.RawJob, key string) bool {
	switch t := raw[key].(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	default:
		return false
	}
}

// Object reads key as a nested object; absent or mistyped values read as empty.
func Object(raw jobs.RawJob, key string) jobs.RawJob {
	switch t := raw[key].(type) {
	case map[string]any:
		return t
	case jobs.RawJob:
		return t
	default:
		return jobs.RawJob{}
	}
}

func joinNonEmpty(parts []string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
