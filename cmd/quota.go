package cmd

import (
	"github.com/spf13/cobra"
)

// newQuotaCmd creates the 'quota' subcommand.
func newQuotaCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "quota",
		Aliases: []string{"usage"},
		Short:   "Shows this month's API usage and remaining quota",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			printQuota(cmd.OutOrStdout(), appInstance.Ledger.Status())
			return nil
		},
	}
}
