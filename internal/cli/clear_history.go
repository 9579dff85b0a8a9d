package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newClearHistoryCmd(a *app) *cobra.Command {
	var deployment string

	cmd := &cobra.Command{
		Use:   "clear-history",
		Short: "Delete history records of one deployment, or of all deployments",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.historyStore()
			if err != nil {
				return err
			}
			if deployment == "" {
				exists, err := store.Exists(cmd.Context())
				if err != nil {
					return err
				}
				if !exists {
					fmt.Fprintln(cmd.OutOrStdout(), "No history to clear")
					return nil
				}
			}
			if err := store.Clear(cmd.Context(), deployment); err != nil {
				return err
			}

			if deployment == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Cleared history of all deployments")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared history of deployment %q\n", deployment)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&deployment, "deployment", "d", "", "Deployment name (default: all)")
	return cmd
}
