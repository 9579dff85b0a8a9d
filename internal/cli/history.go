package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Nikolaikolya/deploy-commander/pkg/history"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		deployment   string
		limit        int
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the run history of a deployment, or list deployments with history",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.historyStore()
			if err != nil {
				return err
			}
			if deployment == "" {
				return printHistoryDeployments(cmd, store, outputFormat)
			}

			records, err := store.Query(cmd.Context(), deployment, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch outputFormat {
			case "json":
				data, err := json.MarshalIndent(records, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal JSON: %w", err)
				}
				fmt.Fprintln(out, string(data))
			case "yaml":
				data, err := yaml.Marshal(records)
				if err != nil {
					return fmt.Errorf("failed to marshal YAML: %w", err)
				}
				fmt.Fprint(out, string(data))
			default:
				if len(records) == 0 {
					fmt.Fprintf(out, "No history for deployment %q.\n", deployment)
					return nil
				}
				fmt.Fprintf(out, "%-20s %-8s %-25s %s\n", "TIME", "STATUS", "EVENT", "DETAILS")
				for _, r := range records {
					status := "ok"
					if !r.Success {
						status = "failed"
					}
					fmt.Fprintf(out, "%-20s %-8s %-25s %s\n",
						r.Time().Format("2006-01-02 15:04:05"),
						status,
						truncateString(r.Event, 25),
						r.Details,
					)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&deployment, "deployment", "d", "", "Deployment name (default: list deployments with history)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of most recent records to show (0 = all)")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, yaml")
	return cmd
}

func printHistoryDeployments(cmd *cobra.Command, store *history.Store, outputFormat string) error {
	names, err := store.Deployments(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch outputFormat {
	case "json":
		data, err := json.MarshalIndent(names, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
	case "yaml":
		data, err := yaml.Marshal(names)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		fmt.Fprint(out, string(data))
	default:
		if len(names) == 0 {
			fmt.Fprintln(out, "No history recorded.")
			return nil
		}
		fmt.Fprintln(out, "DEPLOYMENT")
		for _, name := range names {
			fmt.Fprintln(out, name)
		}
	}
	return nil
}
