package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nikolaikolya/deploy-commander/pkg/errors"
	"github.com/Nikolaikolya/deploy-commander/pkg/shell"
	"github.com/Nikolaikolya/deploy-commander/pkg/variables"
)

// Executor runs chains through a shell.Runner.
type Executor struct {
	runner  shell.Runner
	timeout time.Duration
	logger  zerolog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithCommandTimeout bounds every command and rollback. Zero means no limit.
func WithCommandTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

// NewExecutor creates an executor.
func NewExecutor(runner shell.Runner, logger zerolog.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		runner: runner,
		logger: logger.With().Str("component", "chain-executor").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs every unit of c according to its mode and returns the
// aggregate result. It never returns nil.
func (e *Executor) Execute(ctx context.Context, c *Chain) *Result {
	log := e.logger.With().Str("chain", c.Name).Str("mode", string(c.Mode)).Logger()
	log.Info().Int("units", len(c.Units)).Msg("Executing chain")

	var result *Result
	if c.Mode == ModeParallel {
		result = e.executeParallel(ctx, c, log)
	} else {
		result = e.executeSequential(ctx, c, log)
	}

	if result.Success {
		log.Info().Msg("Chain completed")
	} else {
		log.Error().Str("error", result.Error).Msg("Chain failed")
	}
	return result
}

func (e *Executor) executeSequential(ctx context.Context, c *Chain, log zerolog.Logger) *Result {
	result := &Result{Chain: c.Name, Success: true, Results: make([]*CommandResult, 0, len(c.Units))}

	for _, u := range c.Units {
		if err := ctx.Err(); err != nil {
			cancelled := fmt.Errorf("chain cancelled before %s: %w", u.Name, err)
			result.fail(cancelled.Error(), cancelled)
			break
		}

		cr := e.runUnit(ctx, u, log)
		result.Results = append(result.Results, cr)
		if cr.Success {
			continue
		}
		if u.IgnoreErrors {
			log.Warn().Str("unit", u.Name).Str("error", cr.Error).Msg("Command failed, ignoring")
			continue
		}

		cmdErr := unitError(u, cr)
		result.fail(cmdErr.Message, cmdErr)
		if c.FailFast {
			break
		}
	}
	return result
}

func (e *Executor) executeParallel(ctx context.Context, c *Chain, log zerolog.Logger) *Result {
	result := &Result{Chain: c.Name, Success: true, Results: make([]*CommandResult, len(c.Units))}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i, u := range c.Units {
		wg.Add(1)
		go func(i int, u *Unit) {
			defer wg.Done()

			cr := e.runUnit(ctx, u, log)

			mu.Lock()
			defer mu.Unlock()
			result.Results[i] = cr
			if cr.Success {
				return
			}
			if u.IgnoreErrors {
				log.Warn().Str("unit", u.Name).Str("error", cr.Error).Msg("Command failed, ignoring")
				return
			}
			cmdErr := unitError(u, cr)
			result.fail(cmdErr.Message, cmdErr)
		}(i, u)
	}

	wg.Wait()
	return result
}

// runUnit dispatches a unit and, when it fails and carries a rollback
// command, runs the rollback. The rollback outcome never changes the unit's.
func (e *Executor) runUnit(ctx context.Context, u *Unit, log zerolog.Logger) *CommandResult {
	log = log.With().Str("unit", u.Name).Logger()
	log.Info().Str("description", u.Description).Msg("Running command")

	cr := e.dispatch(ctx, u.Name, u.Command, u, log)
	if cr.Success {
		log.Info().Dur("duration", cr.Duration).Msg("Command succeeded")
		return cr
	}

	log.Error().Str("error", cr.Error).Msg("Command failed")

	if !u.IgnoreErrors && u.RollbackCommand != "" {
		log.Warn().Str("rollback", u.RollbackCommand).Msg("Running rollback command")
		rb := e.dispatch(ctx, u.Name+"_rollback", u.RollbackCommand, u, log)
		if rb.Success {
			log.Info().Msg("Rollback succeeded")
		} else {
			log.Error().Str("error", rb.Error).Msg("Rollback failed")
		}
		cr.Rollback = rb
	}
	return cr
}

func (e *Executor) dispatch(ctx context.Context, name, command string, u *Unit, log zerolog.Logger) *CommandResult {
	expanded, missing := variables.ExpandEnv(command, variables.EnvLookup(u.Env))
	if len(missing) > 0 {
		log.Warn().Strs("placeholders", missing).Msg("Unresolved environment placeholders left in command")
	}

	res := e.runner.Run(ctx, shell.Request{
		Name:       name,
		Command:    expanded,
		WorkingDir: u.WorkingDir,
		Env:        u.Env,
		Timeout:    e.timeout,
	})

	return &CommandResult{
		CommandName: name,
		Success:     res.Success,
		Output:      res.Output,
		Error:       res.Error,
		ExitCode:    res.ExitCode,
		StartTime:   res.StartTime,
		EndTime:     res.EndTime,
		Duration:    res.Duration,
	}
}

func unitError(u *Unit, cr *CommandResult) *errors.Error {
	return errors.CommandFailed(u.Name, cr.Error)
}
