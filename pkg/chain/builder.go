package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Nikolaikolya/deploy-commander/pkg/config"
	"github.com/Nikolaikolya/deploy-commander/pkg/errors"
	"github.com/Nikolaikolya/deploy-commander/pkg/variables"
)

// Prompter asks the operator for values of interactive placeholders.
type Prompter interface {
	Prompt(ctx context.Context, unit, placeholder string) (string, error)
}

// Builder turns a deployment event into a Chain.
type Builder struct {
	loader      *variables.Loader
	substitutor *variables.Substitutor
	prompter    Prompter
	gitVars     func(dir string) variables.Map
	logger      zerolog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithPrompter enables prompting for interactive commands.
func WithPrompter(p Prompter) BuilderOption {
	return func(b *Builder) { b.prompter = p }
}

// WithoutGitVariables disables the GIT_* built-in variables.
func WithoutGitVariables() BuilderOption {
	return func(b *Builder) {
		b.gitVars = func(string) variables.Map { return variables.Map{} }
	}
}

// NewBuilder creates a chain builder.
func NewBuilder(loader *variables.Loader, logger zerolog.Logger, opts ...BuilderOption) *Builder {
	b := &Builder{
		loader:      loader,
		substitutor: variables.NewSubstitutor(logger),
		gitVars:     variables.GitVariables,
		logger:      logger.With().Str("component", "chain-builder").Logger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build resolves the named event of a deployment into a chain. It returns a
// NOT_FOUND error when either name is absent from cfg.
func (b *Builder) Build(ctx context.Context, cfg *config.Config, deployment, event, globalVariablesFile string) (*Chain, error) {
	dep, ev, err := cfg.FindEvent(deployment, event)
	if err != nil {
		return nil, err
	}

	log := b.logger.With().Str("deployment", dep.Name).Str("event", ev.Name).Logger()

	chain := &Chain{
		Name:       ChainName(dep.Name, ev.Name),
		Deployment: dep.Name,
		Event:      ev.Name,
		Mode:       ModeParallel,
		FailFast:   ev.IsFailFast(),
		Units:      make([]*Unit, 0, len(ev.Commands)),
	}
	if chain.FailFast {
		chain.Mode = ModeSequential
	}

	depEnv := ParseEnvironment(dep.Environment, log)

	// Each file is read once per build.
	files := map[string]variables.Map{}
	load := func(path string) variables.Map {
		if path == "" {
			return nil
		}
		if vars, ok := files[path]; ok {
			return vars
		}
		vars := b.loader.Load(ctx, path)
		files[path] = vars
		return vars
	}
	builtins := b.gitVars(dep.WorkingDir)

	for i, cmd := range ev.Commands {
		name := UnitName(dep.Name, ev.Name, i)
		if cmd == nil {
			return nil, errors.ValidationError(
				fmt.Sprintf("command %d of event %q in deployment %q is empty", i+1, ev.Name, dep.Name),
				map[string]interface{}{"unit": name},
			)
		}

		vars := variables.Merge(
			builtins,
			load(globalVariablesFile),
			load(dep.VariablesFile),
			load(cmd.VariablesFile),
		)

		inputs := usedInputs(cmd.Command, cmd.Inputs)
		text := b.substitutor.Substitute(cmd.Command, vars, inputs)

		if cmd.Interactive {
			text, err = b.prompt(ctx, name, text, inputs)
			if err != nil {
				return nil, err
			}
		}

		if remaining := variables.InteractivePlaceholders(text); len(remaining) > 0 {
			log.Warn().Str("unit", name).Strs("placeholders", remaining).Msg("Interactive placeholders left unresolved")
		}
		if pending := variables.Unresolved(text); len(pending) > 0 {
			log.Debug().Str("unit", name).Strs("placeholders", pending).Msg("Placeholders left after substitution")
		}

		env := make(map[string]string, len(depEnv)+len(vars)+len(inputs))
		for k, v := range depEnv {
			env[k] = v
		}
		for k, v := range vars {
			env[k] = v
		}
		for k, v := range inputs {
			env[k] = v
		}

		unit := &Unit{
			Name:         name,
			Description:  cmd.Description,
			Command:      text,
			WorkingDir:   dep.WorkingDir,
			Env:          env,
			IgnoreErrors: cmd.IgnoreErrors,
		}
		if !cmd.IgnoreErrors && cmd.RollbackCommand != "" {
			unit.RollbackCommand = b.substitutor.Substitute(cmd.RollbackCommand, vars, usedInputs(cmd.RollbackCommand, inputs))
		}

		log.Debug().Str("unit", name).Str("command", text).Msg("Built chain unit")
		chain.Units = append(chain.Units, unit)
	}

	return chain, nil
}

// prompt asks for every interactive placeholder still present in text and
// records the answers in inputs.
func (b *Builder) prompt(ctx context.Context, unit, text string, inputs map[string]string) (string, error) {
	missing := variables.InteractivePlaceholders(text)
	if len(missing) == 0 || b.prompter == nil {
		return text, nil
	}

	answers := make(map[string]string, len(missing))
	for _, name := range missing {
		v, err := b.prompter.Prompt(ctx, unit, name)
		if err != nil {
			return "", fmt.Errorf("failed to read input %q for %s: %w", name, unit, err)
		}
		answers[name] = v
		inputs[name] = v
	}

	return variables.ReplaceInteractive(text, func(name string) (string, bool) {
		v, ok := answers[name]
		return v, ok
	}), nil
}

// ParseEnvironment converts KEY=VALUE entries into a map. Entries without a
// key or separator are discarded with a warning.
func ParseEnvironment(entries []string, logger zerolog.Logger) map[string]string {
	env := make(map[string]string, len(entries))
	for _, entry := range entries {
		k, v, ok := strings.Cut(entry, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			logger.Warn().Str("entry", entry).Msg("Ignoring malformed environment entry")
			continue
		}
		env[k] = v
	}
	return env
}

// usedInputs keeps the inputs whose placeholder appears in command.
func usedInputs(command string, inputs map[string]string) map[string]string {
	used := make(map[string]string)
	if len(inputs) == 0 {
		return used
	}
	for _, name := range variables.InteractivePlaceholders(command) {
		if v, ok := inputs[name]; ok {
			used[name] = v
		}
	}
	return used
}
