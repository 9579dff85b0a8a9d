// Package cmdlog appends command outputs to one log file per day.
package cmdlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nikolaikolya/deploy-commander/pkg/chain"
)

// Entry identifies the command a result belongs to.
type Entry struct {
	RunID      string
	Deployment string
	Event      string
	Result     *chain.CommandResult
}

// Writer appends entries to <dir>/<YYYYMMDD>_commands.log as JSON lines.
type Writer struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

// NewWriter creates a writer for dir. The directory is created on first
// write.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// Path returns the log file used for entries written at t.
func (w *Writer) Path(t time.Time) string {
	return filepath.Join(w.dir, t.Format("20060102")+"_commands.log")
}

// Write appends one line per entry, plus one for a rollback if present.
func (w *Writer) Write(entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory %s: %w", w.dir, err)
	}

	path := w.Path(w.now())
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open command log %s: %w", path, err)
	}
	defer f.Close()

	logger := zerolog.New(f).With().Timestamp().Logger()
	for _, e := range entries {
		if e.Result == nil {
			continue
		}
		logResult(logger, e, e.Result, false)
		if e.Result.Rollback != nil {
			logResult(logger, e, e.Result.Rollback, true)
		}
	}
	return nil
}

func logResult(logger zerolog.Logger, e Entry, r *chain.CommandResult, rollback bool) {
	level := zerolog.InfoLevel
	if !r.Success {
		level = zerolog.ErrorLevel
	}

	ev := logger.WithLevel(level).
		Str("run_id", e.RunID).
		Str("deployment", e.Deployment).
		Str("event", e.Event).
		Str("command", r.CommandName).
		Bool("rollback", rollback).
		Bool("success", r.Success).
		Time("start_time", r.StartTime).
		Dur("duration", r.Duration).
		Str("output", r.Output)
	if r.ExitCode != nil {
		ev = ev.Int("exit_code", *r.ExitCode)
	}
	if r.Error != "" {
		ev = ev.Str("error", r.Error)
	}
	ev.Msg("Command finished")
}
