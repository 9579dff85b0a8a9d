package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type deploymentSummary struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	WorkingDir  string   `json:"working_dir,omitempty" yaml:"working_dir,omitempty"`
	Events      []string `json:"events" yaml:"events"`
}

func newListCmd(a *app) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List deployments and their events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			summaries := make([]deploymentSummary, 0, len(cfg.Deployments))
			for _, d := range cfg.Deployments {
				s := deploymentSummary{Name: d.Name, Description: d.Description, WorkingDir: d.WorkingDir, Events: []string{}}
				for _, e := range d.Events {
					s.Events = append(s.Events, e.Name)
				}
				summaries = append(summaries, s)
			}

			out := cmd.OutOrStdout()
			switch outputFormat {
			case "json":
				data, err := json.MarshalIndent(summaries, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal JSON: %w", err)
				}
				fmt.Fprintln(out, string(data))
			case "yaml":
				data, err := yaml.Marshal(summaries)
				if err != nil {
					return fmt.Errorf("failed to marshal YAML: %w", err)
				}
				fmt.Fprint(out, string(data))
			default:
				if len(summaries) == 0 {
					fmt.Fprintf(out, "No deployments found in %s.\n\n", a.configPath())
					fmt.Fprintln(out, "Create one:  deploy-commander create -d <name>")
					return nil
				}
				fmt.Fprintf(out, "%-25s %-40s %s\n", "NAME", "EVENTS", "DESCRIPTION")
				for _, s := range summaries {
					fmt.Fprintf(out, "%-25s %-40s %s\n",
						truncateString(s.Name, 25),
						truncateString(strings.Join(s.Events, ","), 40),
						s.Description,
					)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, yaml")
	return cmd
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
