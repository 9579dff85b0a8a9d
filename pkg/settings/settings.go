// Package settings manages the application settings file: where logs,
// history, global variables and command logs live, and which history backend
// to use.
package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	DefaultPath           = "settings.json"
	DefaultLogFile        = "deploy-commander.log"
	DefaultHistoryFile    = "deploy-history.json"
	DefaultVariablesFile  = "variables.json"
	DefaultLogsDir        = "logs"
	DefaultHistoryLimit   = 100
	DefaultHistoryBackend = "local"
)

// Settings keys as stored in the settings file.
const (
	KeyLogFile              = "log_file"
	KeyHistoryFile          = "history_file"
	KeyVariablesFile        = "variables_file"
	KeyLogsDir              = "logs_dir"
	KeyHistoryLimit         = "history_limit"
	KeyHistoryBackend       = "history_backend"
	KeyHistoryBackendConfig = "history_backend_config"
)

// Settings holds application-wide paths and storage options.
type Settings struct {
	LogFile              string            `mapstructure:"log_file"`
	HistoryFile          string            `mapstructure:"history_file"`
	VariablesFile        string            `mapstructure:"variables_file"`
	LogsDir              string            `mapstructure:"logs_dir"`
	HistoryLimit         int               `mapstructure:"history_limit"`
	HistoryBackend       string            `mapstructure:"history_backend"`
	HistoryBackendConfig map[string]string `mapstructure:"history_backend_config"`
}

// Default returns settings populated with default values.
func Default() *Settings {
	return &Settings{
		LogFile:              DefaultLogFile,
		HistoryFile:          DefaultHistoryFile,
		VariablesFile:        DefaultVariablesFile,
		LogsDir:              DefaultLogsDir,
		HistoryLimit:         DefaultHistoryLimit,
		HistoryBackend:       DefaultHistoryBackend,
		HistoryBackendConfig: map[string]string{},
	}
}

func defaults() map[string]interface{} {
	d := Default()
	return map[string]interface{}{
		KeyLogFile:              d.LogFile,
		KeyHistoryFile:          d.HistoryFile,
		KeyVariablesFile:        d.VariablesFile,
		KeyLogsDir:              d.LogsDir,
		KeyHistoryLimit:         d.HistoryLimit,
		KeyHistoryBackend:       d.HistoryBackend,
		KeyHistoryBackendConfig: d.HistoryBackendConfig,
	}
}

// Load reads the settings file at path. A missing file is written with
// defaults; fields missing from an existing file are back-filled and the file
// is rewritten.
func Load(path string) (*Settings, error) {
	return load(path, log.Logger.With().Str("component", "settings").Logger())
}

func load(path string, logger zerolog.Logger) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info().Str("path", path).Msg("Settings file not found, creating a new one")
		for k, val := range defaults() {
			v.Set(k, val)
		}
		if err := write(v, path); err != nil {
			return nil, err
		}
		return Default(), nil
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read settings %s: %w", path, err)
	}

	upgraded := false
	for k, val := range defaults() {
		if !v.InConfig(k) {
			logger.Info().Str("field", k).Msg("Upgrading settings: adding missing field")
			v.Set(k, val)
			upgraded = true
		}
	}

	s := Default()
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("failed to decode settings %s: %w", path, err)
	}

	if upgraded {
		if err := write(v, path); err != nil {
			logger.Warn().Err(err).Msg("Failed to persist upgraded settings")
		} else {
			logger.Info().Str("path", path).Msg("Settings upgraded")
		}
	}

	return s, nil
}

// Save writes the settings to path.
func (s *Settings) Save(path string) error {
	v := viper.New()
	v.SetConfigType("json")
	v.Set(KeyLogFile, s.LogFile)
	v.Set(KeyHistoryFile, s.HistoryFile)
	v.Set(KeyVariablesFile, s.VariablesFile)
	v.Set(KeyLogsDir, s.LogsDir)
	v.Set(KeyHistoryLimit, s.HistoryLimit)
	v.Set(KeyHistoryBackend, s.HistoryBackend)
	v.Set(KeyHistoryBackendConfig, s.HistoryBackendConfig)
	return write(v, path)
}

func write(v *viper.Viper, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write settings %s: %w", path, err)
	}
	return nil
}
