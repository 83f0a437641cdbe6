package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/JakeFAU/jobsweep/internal/jobs"
	"github.com/JakeFAU/jobsweep/internal/ledger"
	"github.com/JakeFAU/jobsweep/internal/registry"
	"github.com/JakeFAU/jobsweep/internal/search"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	goodColor   = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	badColor    = color.New(color.FgRed)
	labelColor  = color.New(color.Bold)
	dimColor    = color.New(color.Faint)
)

func printPlan(w io.Writer, query string, priority jobs.Priority, plan []jobs.StrategyStep) {
	headerColor.Fprintf(w, "Query: %q  Priority: %s\n", query, priority)
	if len(plan) == 0 {
		warnColor.Fprintln(w, "  no source can serve this request")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  SOURCE\tPLATFORM\tCALLS")
	for _, step := range plan {
		fmt.Fprintf(tw, "  %s\t%s\t%d\n", step.SourceName, step.TargetPlatform, step.EstimatedCalls)
	}
	_ = tw.Flush()
}

func printPreview(w io.Writer, p search.Preview) {
	printPlan(w, p.Query, p.Priority, p.Plan)
	printUnfulfilled(w, p.Unfulfilled)
	printRecommendations(w, p.Recommendations)
}

func printResult(w io.Writer, res search.Result) {
	printPlan(w, res.Query, res.Priority, res.Plan)
	if len(res.Fallback) > 0 {
		labelColor.Fprintln(w, "\nFallback")
		for _, step := range res.Fallback {
			fmt.Fprintf(w, "  %s -> %s\n", step.SourceName, step.TargetPlatform)
		}
	}

	labelColor.Fprintln(w, "\nSteps")
	for _, r := range res.Reports {
		status := goodColor.Sprint(r.Outcome)
		switch {
		case r.Outcome == jobs.StepFailed:
			status = badColor.Sprint(r.Outcome)
		case r.CacheHit:
			status = dimColor.Sprint(r.Outcome)
		}
		line := fmt.Sprintf("  %-18s %-12s %-10s %3d results", r.Step.SourceName, r.Step.TargetPlatform, status, r.Results)
		if r.Error != "" {
			line += "  " + badColor.Sprint(r.Error)
		}
		fmt.Fprintln(w, line)
	}

	platforms := make([]string, 0, len(res.Jobs))
	for p := range res.Jobs {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	for _, p := range platforms {
		found := res.Jobs[p]
		headerColor.Fprintf(w, "\n%s (%d)\n", strings.ToUpper(p), len(found))
		for _, j := range found {
			labelColor.Fprintf(w, "  %s", j.Title)
			fmt.Fprintf(w, " @ %s  [%s]  %s  %s\n", j.Company, j.Location, j.Salary, j.Posted)
			if j.URL != "" {
				dimColor.Fprintf(w, "    %s\n", j.URL)
			}
		}
	}
	goodColor.Fprintf(w, "\n%d jobs found\n", res.Total())
	printUnfulfilled(w, res.Unfulfilled)
	printRecommendations(w, res.Recommendations)
}

func printUnfulfilled(w io.Writer, platforms []string) {
	if len(platforms) == 0 {
		return
	}
	warnColor.Fprintf(w, "Unfulfilled: %s\n", strings.Join(platforms, ", "))
}

func printRecommendations(w io.Writer, recs []string) {
	if len(recs) == 0 {
		return
	}
	labelColor.Fprintln(w, "\nRecommendations")
	for _, r := range recs {
		fmt.Fprintf(w, "  - %s\n", r)
	}
}

func printQuota(w io.Writer, status map[string]ledger.QuotaStatus) {
	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "API\tUSED\tLIMIT\tREMAINING\tUSED %\tLEVEL\tPERIOD")
	for _, name := range names {
		st := status[name]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.1f\t%s\t%s\n",
			name, st.Used, st.Limit, st.Remaining, st.PercentUsed, levelColor(st.Level).Sprint(st.Level), st.Period)
	}
	_ = tw.Flush()
}

func levelColor(level string) *color.Color {
	switch level {
	case ledger.LevelCritical:
		return badColor
	case ledger.LevelWarning:
		return warnColor
	default:
		return goodColor
	}
}

func printSources(w io.Writer, all []registry.Availability) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tKIND\tTIER\tCOVERS\tQUOTA\tSTATUS")
	for _, a := range all {
		d := a.Descriptor
		quota := "unlimited"
		if d.MonthlyQuota != nil {
			quota = fmt.Sprintf("%d/mo", *d.MonthlyQuota)
		}
		status := goodColor.Sprint("available")
		if !a.Available {
			status = badColor.Sprintf("refused: %s", a.Reason)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", d.Name, d.Kind, d.Tier, strings.Join(d.Covers, ","), quota, status)
	}
	_ = tw.Flush()
}

func printPruned(w io.Writer, removed int) {
	if removed == 0 {
		dimColor.Fprintln(w, "No stale cache entries")
		return
	}
	goodColor.Fprintf(w, "Pruned %d cache entries\n", removed)
}
