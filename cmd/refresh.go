package cmd

import (
	"github.com/spf13/cobra"
)

func newRefreshCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the subscription index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			return printJSON(a.engine.Refresh(cmd.Context(), force))
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "refresh even if the index is fresh")
	return cmd
}
