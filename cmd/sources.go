package cmd

import (
	"github.com/spf13/cobra"
)

// newSourcesCmd creates the 'sources' subcommand.
func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "Lists every job source and whether it could be configured",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			printSources(cmd.OutOrStdout(), appInstance.Registry.All())
			return nil
		},
	}
}
