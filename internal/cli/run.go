package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nikolaikolya/deploy-commander/pkg/chain"
	"github.com/Nikolaikolya/deploy-commander/pkg/cmdlog"
	"github.com/Nikolaikolya/deploy-commander/pkg/events"
	"github.com/Nikolaikolya/deploy-commander/pkg/orchestrator"
	"github.com/Nikolaikolya/deploy-commander/pkg/shell"
	"github.com/Nikolaikolya/deploy-commander/pkg/variables"
)

// allDeployments selects every deployment in the file.
const allDeployments = "all"

func newRunCmd(a *app) *cobra.Command {
	var (
		deployment  string
		event       string
		maxParallel int
		timeout     time.Duration
		noGit       bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a deployment, one of its events, or every deployment",
		Example: `  deploy-commander run -d api                 # all events of api
  deploy-commander run -d api -e deploy       # one event
  deploy-commander run -d all -e deploy -p    # deploy event of every deployment, in parallel`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			store, err := a.historyStore()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var builderOpts []chain.BuilderOption
			if isInteractive() {
				builderOpts = append(builderOpts, chain.WithPrompter(newTerminalPrompter(os.Stdin, cmd.ErrOrStderr())))
			}
			if noGit {
				builderOpts = append(builderOpts, chain.WithoutGitVariables())
			}
			builder := chain.NewBuilder(variables.NewLoader(a.logger), a.logger, builderOpts...)
			executor := chain.NewExecutor(shell.NewRunner(), a.logger, chain.WithCommandTimeout(timeout))

			bus := events.NewBus(a.logger)
			bus.Subscribe(events.LogSubscriber(a.logger.With().Str("component", "events").Logger()))
			defer bus.Close()

			orch := orchestrator.New(cfg, builder, executor, store, orchestrator.Options{
				GlobalVariablesFile: a.globalVariablesFile(cfg),
				MaxParallel:         maxParallel,
				CommandLog:          cmdlog.NewWriter(a.settings.LogsDir),
				Emitter:             bus,
				Logger:              a.logger,
			})

			out := cmd.OutOrStdout()

			switch {
			case deployment == allDeployments:
				res := orch.RunAllDeployments(ctx, event, a.v.GetBool(flagParallel))
				printBatch(out, res)
				return res.Err()

			case event != "":
				res, err := orch.RunEvent(ctx, deployment, event)
				if res != nil {
					printChainResult(out, deployment, event, res)
				}
				return err

			default:
				if err := orch.RunAllEvents(ctx, deployment); err != nil {
					return err
				}
				fmt.Fprintf(out, "Deployment %q completed successfully\n", deployment)
				return nil
			}
		},
	}

	cmd.Flags().StringVarP(&deployment, "deployment", "d", "", "Deployment name, or \"all\"")
	cmd.Flags().StringVarP(&event, "event", "e", "", "Event name (default: all events in order)")
	cmd.Flags().IntVar(&maxParallel, "max-parallel", 0, "Maximum deployments running at once with --parallel (0 = unlimited)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Timeout for each command (0 = none)")
	cmd.Flags().BoolVar(&noGit, "no-git", false, "Do not provide GIT_COMMIT, GIT_SHORT_COMMIT and GIT_BRANCH variables")
	_ = cmd.MarkFlagRequired("deployment")

	return cmd
}

func printChainResult(out io.Writer, deployment, event string, res *chain.Result) {
	status := "succeeded"
	if !res.Success {
		status = "failed"
	}
	fmt.Fprintf(out, "Event %s of %s %s\n", event, deployment, status)
	for _, cr := range res.Results {
		if cr == nil {
			continue
		}
		mark := "ok"
		if !cr.Success {
			mark = "FAILED"
		}
		fmt.Fprintf(out, "  %-40s %-7s %s\n", cr.CommandName, mark, cr.Duration.Round(time.Millisecond))
		if cr.Rollback != nil {
			rb := "ok"
			if !cr.Rollback.Success {
				rb = "FAILED"
			}
			fmt.Fprintf(out, "  %-40s %-7s rollback\n", cr.Rollback.CommandName, rb)
		}
	}
	if res.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", res.Error)
	}
}

func printBatch(out io.Writer, res *orchestrator.BatchResult) {
	fmt.Fprintf(out, "Succeeded (%d): %s\n", len(res.Succeeded), strings.Join(res.Succeeded, ", "))
	if len(res.Failed) > 0 {
		fmt.Fprintf(out, "Failed (%d): %s\n", len(res.Failed), strings.Join(res.Failed, ", "))
	}
}
