// Package orchestrator runs deployment events and whole deployments,
// sequentially or concurrently, and records every attempt to history.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Nikolaikolya/deploy-commander/pkg/chain"
	"github.com/Nikolaikolya/deploy-commander/pkg/cmdlog"
	"github.com/Nikolaikolya/deploy-commander/pkg/config"
	"github.com/Nikolaikolya/deploy-commander/pkg/errors"
	"github.com/Nikolaikolya/deploy-commander/pkg/events"
	"github.com/Nikolaikolya/deploy-commander/pkg/history"
)

// Summary records written around multi-event and multi-deployment runs.
const (
	AllDeployments = "all-deployments"

	StartFullDeploy    = "start-full-deploy"
	CompleteFullDeploy = "complete-full-deploy"
	FailedFullDeploy   = "failed-full-deploy"

	StartFullDeployAll    = "start-full-deploy-all"
	CompleteFullDeployAll = "complete-full-deploy-all"
	FailedFullDeployAll   = "failed-full-deploy-all"
)

// Options configures an Orchestrator.
type Options struct {
	// GlobalVariablesFile is the lowest-priority variables file.
	GlobalVariablesFile string
	// MaxParallel caps concurrently running deployments. Zero means no cap.
	MaxParallel int
	CommandLog  *cmdlog.Writer
	Emitter     events.Emitter
	Logger      zerolog.Logger
}

// Orchestrator ties the chain builder, executor and history store together.
type Orchestrator struct {
	cfg      *config.Config
	builder  *chain.Builder
	executor *chain.Executor
	history  *history.Store
	options  Options
	logger   zerolog.Logger
	newRunID func() string
}

// New creates an orchestrator for cfg.
func New(cfg *config.Config, builder *chain.Builder, executor *chain.Executor, store *history.Store, options Options) *Orchestrator {
	if options.Emitter == nil {
		options.Emitter = events.Nop{}
	}
	if options.MaxParallel < 0 {
		options.MaxParallel = 0
	}
	return &Orchestrator{
		cfg:      cfg,
		builder:  builder,
		executor: executor,
		history:  store,
		options:  options,
		logger:   options.Logger.With().Str("component", "orchestrator").Logger(),
		newRunID: func() string { return uuid.New().String() },
	}
}

// BatchResult is the outcome of RunAllDeployments.
type BatchResult struct {
	RunID     string
	Succeeded []string
	Failed    []string
}

// Success reports whether no deployment failed.
func (b *BatchResult) Success() bool {
	return len(b.Failed) == 0
}

// Err returns an ORCHESTRATION_FAILED error naming the failed deployments,
// or nil.
func (b *BatchResult) Err() error {
	if b.Success() {
		return nil
	}
	return errors.OrchestrationFailed(b.Failed)
}

// RunEvent builds and executes one event of a deployment. Unknown names
// yield a NOT_FOUND error and no history record; a failed chain yields a
// CHAIN_FAILED error alongside its result.
func (o *Orchestrator) RunEvent(ctx context.Context, deployment, event string) (*chain.Result, error) {
	return o.runEvent(ctx, o.newRunID(), deployment, event)
}

// RunAllEvents runs every event of a deployment in declaration order and
// stops at the first failure.
func (o *Orchestrator) RunAllEvents(ctx context.Context, deployment string) error {
	return o.runAllEvents(ctx, o.newRunID(), deployment)
}

// RunAllDeployments runs event, or every event when it is empty, for each
// deployment in the configuration. One deployment failing never stops the
// others.
func (o *Orchestrator) RunAllDeployments(ctx context.Context, event string, parallel bool) *BatchResult {
	runID := o.newRunID()
	names := o.cfg.DeploymentNames()
	log := o.logger.With().Str("run_id", runID).Str("event", event).Bool("parallel", parallel).Logger()

	log.Info().Int("deployments", len(names)).Msg("Running all deployments")
	o.record(ctx, history.Record{Deployment: AllDeployments, Event: StartFullDeployAll, Success: true, RunID: runID})

	run := func(name string) error {
		if event != "" {
			_, err := o.runEvent(ctx, runID, name, event)
			return err
		}
		return o.runAllEvents(ctx, runID, name)
	}

	failed := make([]bool, len(names))
	if parallel {
		var wg sync.WaitGroup
		var sem chan struct{}
		if o.options.MaxParallel > 0 {
			sem = make(chan struct{}, o.options.MaxParallel)
		}

		for i, name := range names {
			wg.Add(1)
			if sem != nil {
				sem <- struct{}{}
			}
			go func(i int, name string) {
				defer wg.Done()
				if sem != nil {
					defer func() { <-sem }()
				}
				if err := run(name); err != nil {
					log.Error().Err(err).Str("deployment", name).Msg("Deployment failed")
					failed[i] = true
				}
			}(i, name)
		}
		wg.Wait()
	} else {
		for i, name := range names {
			if err := run(name); err != nil {
				log.Error().Err(err).Str("deployment", name).Msg("Deployment failed")
				failed[i] = true
			}
		}
	}

	result := &BatchResult{RunID: runID}
	for i, name := range names {
		if failed[i] {
			result.Failed = append(result.Failed, name)
		} else {
			result.Succeeded = append(result.Succeeded, name)
		}
	}

	if result.Success() {
		log.Info().Int("succeeded", len(result.Succeeded)).Msg("All deployments completed")
		o.record(ctx, history.Record{Deployment: AllDeployments, Event: CompleteFullDeployAll, Success: true, RunID: runID,
			Details: fmt.Sprintf("%d deployment(s) completed", len(result.Succeeded))})
	} else {
		log.Error().Strs("failed", result.Failed).Msg("Some deployments failed")
		o.record(ctx, history.Record{Deployment: AllDeployments, Event: FailedFullDeployAll, RunID: runID,
			Details: "failed deployments: " + strings.Join(result.Failed, ", ")})
	}
	return result
}

func (o *Orchestrator) runAllEvents(ctx context.Context, runID, deployment string) error {
	dep, err := o.cfg.FindDeployment(deployment)
	if err != nil {
		return err
	}

	log := o.logger.With().Str("run_id", runID).Str("deployment", dep.Name).Logger()
	log.Info().Int("events", len(dep.Events)).Msg("Running all events")
	o.record(ctx, history.Record{Deployment: dep.Name, Event: StartFullDeploy, Success: true, RunID: runID})

	for _, ev := range dep.Events {
		if _, err := o.runEvent(ctx, runID, dep.Name, ev.Name); err != nil {
			o.record(ctx, history.Record{Deployment: dep.Name, Event: FailedFullDeploy, RunID: runID,
				Details: fmt.Sprintf("event %s failed: %v", ev.Name, err)})
			return err
		}
	}

	o.record(ctx, history.Record{Deployment: dep.Name, Event: CompleteFullDeploy, Success: true, RunID: runID,
		Details: fmt.Sprintf("completed %d events", len(dep.Events))})
	log.Info().Msg("All events completed")
	return nil
}

func (o *Orchestrator) runEvent(ctx context.Context, runID, deployment, event string) (*chain.Result, error) {
	dep, ev, err := o.cfg.FindEvent(deployment, event)
	if err != nil {
		return nil, err
	}

	log := o.logger.With().Str("run_id", runID).Str("deployment", dep.Name).Str("event", ev.Name).Logger()
	o.emit(events.Event{Type: events.DeploymentStarted, RunID: runID, Deployment: dep.Name, Event: ev.Name})
	log.Info().Msg("Running event")

	if dep.WorkingDir != "" {
		if err := os.MkdirAll(dep.WorkingDir, 0755); err != nil {
			return nil, o.fail(ctx, runID, dep.Name, ev.Name, fmt.Errorf("failed to create working directory %s: %w", dep.WorkingDir, err))
		}
	}

	c, err := o.builder.Build(ctx, o.cfg, dep.Name, ev.Name, o.options.GlobalVariablesFile)
	if err != nil {
		return nil, o.fail(ctx, runID, dep.Name, ev.Name, err)
	}

	res := o.executor.Execute(ctx, c)
	o.logCommands(runID, dep.Name, ev.Name, res, log)

	for _, cr := range res.Results {
		if cr != nil && !cr.Success {
			o.emit(events.Event{Type: events.CommandFailed, RunID: runID, Deployment: dep.Name, Event: ev.Name, Command: cr.CommandName, Error: cr.Error})
		}
	}

	if o.history != nil {
		if err := o.history.RecordChainResult(ctx, dep.Name, ev.Name, runID, res); err != nil {
			log.Warn().Err(err).Msg("Failed to record history")
		}
	}

	if !res.Success {
		msg := res.FirstError()
		o.emit(events.Event{Type: events.DeploymentFailed, RunID: runID, Deployment: dep.Name, Event: ev.Name, Error: msg})
		log.Error().Str("error", msg).Msg("Event failed")
		return res, errors.ChainFailed(dep.Name, ev.Name, res.Err())
	}

	o.emit(events.Event{Type: events.DeploymentSucceeded, RunID: runID, Deployment: dep.Name, Event: ev.Name})
	log.Info().Int("commands", len(res.Results)).Msg("Event completed")
	return res, nil
}

// fail records and reports an event that failed before its chain ran.
func (o *Orchestrator) fail(ctx context.Context, runID, deployment, event string, cause error) error {
	msg := cause.Error()
	o.record(ctx, history.Record{Deployment: deployment, Event: event, RunID: runID, Details: msg})
	o.emit(events.Event{Type: events.DeploymentFailed, RunID: runID, Deployment: deployment, Event: event, Error: msg})
	o.logger.Error().Str("run_id", runID).Str("deployment", deployment).Str("event", event).Str("error", msg).Msg("Event failed")
	return errors.ChainFailed(deployment, event, cause)
}

func (o *Orchestrator) logCommands(runID, deployment, event string, res *chain.Result, log zerolog.Logger) {
	if o.options.CommandLog == nil {
		return
	}
	entries := make([]cmdlog.Entry, 0, len(res.Results))
	for _, cr := range res.Results {
		entries = append(entries, cmdlog.Entry{RunID: runID, Deployment: deployment, Event: event, Result: cr})
	}
	if err := o.options.CommandLog.Write(entries...); err != nil {
		log.Warn().Err(err).Msg("Failed to write command log")
	}
}

func (o *Orchestrator) record(ctx context.Context, rec history.Record) {
	if o.history == nil {
		return
	}
	if err := o.history.Append(ctx, rec); err != nil {
		o.logger.Warn().Err(err).Str("deployment", rec.Deployment).Str("event", rec.Event).Msg("Failed to record history")
	}
}

func (o *Orchestrator) emit(ev events.Event) {
	o.options.Emitter.Emit(ev)
}
