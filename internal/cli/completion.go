package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Nikolaikolya/deploy-commander/pkg/config"
)

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for deploy-commander.

Bash:
  $ source <(deploy-commander completion bash)

Zsh:
  $ deploy-commander completion zsh > "${fpath[1]}/_deploy-commander"

Fish:
  $ deploy-commander completion fish | source

PowerShell:
  PS> deploy-commander completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(out, true)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unknown shell: %s", args[0])
			}
		},
	}

	return cmd
}

// registerCompletions adds deployment and event name completion to every
// subcommand that takes those flags.
func registerCompletions(a *app, root *cobra.Command) {
	for _, sub := range root.Commands() {
		if sub.Flags().Lookup("deployment") != nil {
			withAll := sub.Name() == "run"
			_ = sub.RegisterFlagCompletionFunc("deployment", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
				names := completeDeploymentNames(a.completionConfig(), toComplete)
				if withAll && strings.HasPrefix(allDeployments, toComplete) {
					names = append(names, allDeployments)
				}
				return names, cobra.ShellCompDirectiveNoFileComp
			})
		}
		if sub.Flags().Lookup("event") != nil {
			_ = sub.RegisterFlagCompletionFunc("event", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
				deployment, _ := cmd.Flags().GetString("deployment")
				return completeEventNames(a.completionConfig(), deployment, toComplete), cobra.ShellCompDirectiveNoFileComp
			})
		}
	}
}

// completionConfig reads the deployments file without logging or creating it.
func (a *app) completionConfig() *config.Config {
	data, err := os.ReadFile(a.configPath())
	if err != nil {
		return &config.Config{}
	}
	cfg, err := config.Parse(data, a.configPath())
	if err != nil {
		return &config.Config{}
	}
	return cfg
}

func completeDeploymentNames(cfg *config.Config, toComplete string) []string {
	var names []string
	for _, name := range cfg.DeploymentNames() {
		if strings.HasPrefix(name, toComplete) {
			names = append(names, name)
		}
	}
	return names
}

// completeEventNames lists events of deployment, or the distinct events of
// every deployment when deployment is empty or "all".
func completeEventNames(cfg *config.Config, deployment, toComplete string) []string {
	seen := map[string]bool{}
	var names []string
	for _, d := range cfg.Deployments {
		if deployment != "" && deployment != allDeployments && d.Name != deployment {
			continue
		}
		for _, e := range d.Events {
			if !seen[e.Name] && strings.HasPrefix(e.Name, toComplete) {
				seen[e.Name] = true
				names = append(names, e.Name)
			}
		}
	}
	return names
}
