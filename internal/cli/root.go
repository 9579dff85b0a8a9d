// Package cli implements the deploy-commander CLI commands.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Nikolaikolya/deploy-commander/pkg/config"
	"github.com/Nikolaikolya/deploy-commander/pkg/history"
	"github.com/Nikolaikolya/deploy-commander/pkg/history/backend"
	"github.com/Nikolaikolya/deploy-commander/pkg/settings"

	// Import history backends and variable sources to register them via init()
	_ "github.com/Nikolaikolya/deploy-commander/pkg/history/backend/azurerm"
	_ "github.com/Nikolaikolya/deploy-commander/pkg/history/backend/gcs"
	_ "github.com/Nikolaikolya/deploy-commander/pkg/history/backend/local"
	_ "github.com/Nikolaikolya/deploy-commander/pkg/history/backend/s3"
	_ "github.com/Nikolaikolya/deploy-commander/pkg/variables/source/awssm"
	_ "github.com/Nikolaikolya/deploy-commander/pkg/variables/source/vault"
)

const envPrefix = "DEPLOY_COMMANDER"

// Global flag names, also used as viper keys.
const (
	flagConfig        = "config"
	flagVerbose       = "verbose"
	flagLogFile       = "log-file"
	flagParallel      = "parallel"
	flagSettings      = "settings"
	flagVariablesFile = "variables-file"
)

// app carries state shared by every command of one root command.
type app struct {
	v        *viper.Viper
	settings *settings.Settings
	logger   zerolog.Logger
	logFile  *os.File
}

var rootCmd = newRootCmd()

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), logger: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:   "deploy-commander",
		Short: "Run deployment command chains with rollback and history",
		Long: `deploy-commander runs deployments described in a YAML file.

Each deployment is a list of events (pre-deploy, deploy, post-deploy, ...),
and each event is a chain of shell commands with variable substitution,
fail-fast or parallel execution, rollback commands and a persistent history.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringP(flagConfig, "c", "deployments.yaml", "Deployments file")
	flags.BoolP(flagVerbose, "v", false, "Enable debug logging")
	flags.String(flagLogFile, "", "Log file (default from settings)")
	flags.BoolP(flagParallel, "p", false, "Run deployments in parallel when running all")
	flags.String(flagSettings, settings.DefaultPath, "Settings file")
	flags.String(flagVariablesFile, "", "Global variables file (default from the deployments file or settings)")

	for _, name := range []string{flagConfig, flagVerbose, flagLogFile, flagParallel, flagSettings, flagVariablesFile} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	cmd.AddCommand(newRunCmd(a))
	cmd.AddCommand(newListCmd(a))
	cmd.AddCommand(newCreateCmd(a))
	cmd.AddCommand(newVerifyCmd(a))
	cmd.AddCommand(newHistoryCmd(a))
	cmd.AddCommand(newClearHistoryCmd(a))
	cmd.AddCommand(newCompletionCmd())
	registerCompletions(a, cmd)

	return cmd
}

// init loads settings and installs the loggers.
func (a *app) init(stderr io.Writer) error {
	s, err := settings.Load(a.v.GetString(flagSettings))
	if err != nil {
		return err
	}
	a.settings = s

	logPath := a.v.GetString(flagLogFile)
	if logPath == "" {
		logPath = s.LogFile
	}
	return a.setupLogging(stderr, logPath, a.v.GetBool(flagVerbose))
}

func (a *app) setupLogging(stderr io.Writer, logPath string, verbose bool) error {
	zerolog.TimeFieldFormat = time.RFC3339

	console := zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339, NoColor: !isTerminal(stderr)}
	writers := []io.Writer{console}

	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", logPath, err)
		}
		a.logFile = f
		writers = append(writers, f)
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	a.logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Logger()
	log.Logger = a.logger
	return nil
}

func (a *app) close() {
	if a.logFile != nil {
		_ = a.logFile.Close()
		a.logFile = nil
	}
}

func (a *app) configPath() string {
	return a.v.GetString(flagConfig)
}

func (a *app) loadConfig() (*config.Config, error) {
	return config.Load(a.configPath())
}

// globalVariablesFile resolves the lowest-priority variables file: the flag,
// then the deployments file, then settings.
func (a *app) globalVariablesFile(cfg *config.Config) string {
	if f := a.v.GetString(flagVariablesFile); f != "" {
		return f
	}
	if cfg != nil && cfg.VariablesFile != "" {
		return cfg.VariablesFile
	}
	return a.settings.VariablesFile
}

// historyStore opens the history store described by settings. The local
// backend keeps the history file at its configured path.
func (a *app) historyStore() (*history.Store, error) {
	s := a.settings
	cfg := map[string]string{}
	for k, v := range s.HistoryBackendConfig {
		cfg[k] = v
	}

	key := s.HistoryFile
	if s.HistoryBackend == "local" && cfg["path"] == "" {
		cfg["path"] = filepath.Dir(s.HistoryFile)
		key = filepath.Base(s.HistoryFile)
	}

	b, err := backend.Create(backend.Config{Type: s.HistoryBackend, Config: cfg})
	if err != nil {
		return nil, err
	}
	return history.NewStore(b, key, history.WithLimit(s.HistoryLimit)), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
