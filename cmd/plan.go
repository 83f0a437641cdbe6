package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// newPlanCmd creates the 'plan' subcommand.
func newPlanCmd() *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Shows the strategy a search would run without spending quota",
		Example: `  jobsweep plan -q "senior go engineer" -p linkedin,indeed`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			preview, err := appInstance.Search.Preview(opts.request(appInstance.Config.Search.RemoteOnly))
			if err != nil {
				return fmt.Errorf("plan: %w", err)
			}
			if opts.jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(preview); err != nil {
					return fmt.Errorf("encode plan: %w", err)
				}
				return nil
			}
			printPreview(cmd.OutOrStdout(), preview)
			return nil
		},
	}
	bindSearchFlags(cmd, opts)
	return cmd
}
