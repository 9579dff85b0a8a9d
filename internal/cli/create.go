package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nikolaikolya/deploy-commander/pkg/config"
)

func newCreateCmd(a *app) *cobra.Command {
	var deployment string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a template deployment to the deployments file",
		Long: `Add a deployment named by --deployment with pre-deploy, deploy and
post-deploy events to the deployments file. Edit the generated commands to
fit your project.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := config.CreateTemplateDeployment(a.configPath(), deployment)
			if err != nil {
				return err
			}
			a.logger.Info().Str("deployment", d.Name).Str("config", a.configPath()).Msg("Created template deployment")
			fmt.Fprintf(cmd.OutOrStdout(), "Created deployment %q with %d events in %s\n", d.Name, len(d.Events), a.configPath())
			return nil
		},
	}

	cmd.Flags().StringVarP(&deployment, "deployment", "d", "", "Name of the new deployment")
	_ = cmd.MarkFlagRequired("deployment")
	return cmd
}
