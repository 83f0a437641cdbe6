package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/jobsweep/internal/jobs"
)

type searchOptions struct {
	query         string
	platforms     []string
	location      string
	includeOnsite bool
	maxResults    int
	pages         int
	jsonOutput    bool
}

func (o searchOptions) request(remoteOnly bool) jobs.SearchRequest {
	if o.includeOnsite {
		remoteOnly = false
	}
	return jobs.SearchRequest{
		Query:      strings.TrimSpace(o.query),
		Location:   o.location,
		Platforms:  o.platforms,
		RemoteOnly: remoteOnly,
		MaxResults: o.maxResults,
		MaxPages:   o.pages,
	}
}

func bindSearchFlags(cmd *cobra.Command, opts *searchOptions) {
	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "search query, e.g. \"senior golang engineer\"")
	cmd.Flags().StringSliceVarP(&opts.platforms, "platforms", "p", nil, "platforms to search (default from config)")
	cmd.Flags().StringVarP(&opts.location, "location", "l", "", "location filter")
	cmd.Flags().BoolVar(&opts.includeOnsite, "include-onsite", false, "include onsite and hybrid roles")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print JSON instead of a report")
	_ = cmd.MarkFlagRequired("query")
}

// newSearchCmd creates the 'search' subcommand.
func newSearchCmd() *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Runs a quota-aware job search",
		Long: `Classifies the query, plans calls against each API's remaining monthly
quota, executes the plan (serving from cache where possible) and falls back to
HTML scrapers for platforms the APIs returned nothing for.`,
		Example: `  jobsweep search -q "react developer" -p indeed,linkedin
  jobsweep search -q "python developer" --include-onsite --location berlin`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := appInstance.Search.Search(cmd.Context(), opts.request(appInstance.Config.Search.RemoteOnly))
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if opts.jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return fmt.Errorf("encode result: %w", err)
				}
				return nil
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	bindSearchFlags(cmd, opts)
	cmd.Flags().IntVarP(&opts.maxResults, "max-results", "n", 0, "results requested per API call (default from config)")
	cmd.Flags().IntVar(&opts.pages, "pages", 0, "result pages per scraper (default from config)")
	return cmd
}
