package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVerifyCmd(a *app) *cobra.Command {
	var deployment string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a deployment definition for errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Verify(deployment); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deployment %q is valid\n", deployment)
			return nil
		},
	}

	cmd.Flags().StringVarP(&deployment, "deployment", "d", "", "Deployment to verify")
	_ = cmd.MarkFlagRequired("deployment")
	return cmd
}
