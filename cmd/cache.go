package cmd

import (
	"github.com/spf13/cobra"
)

// newCacheCmd groups result cache maintenance.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintains the result cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Deletes cache entries older than the longest TTL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			removed, err := appInstance.Cache.Prune(cmd.Context())
			if err != nil {
				return err
			}
			printPruned(cmd.OutOrStdout(), removed)
			return nil
		},
	})
	return cmd
}
