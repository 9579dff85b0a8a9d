// Package chain builds executable command chains from deployment events and
// runs them with fail-fast, ignore and rollback semantics.
package chain

import (
	"errors"
	"fmt"
	"time"
)

// Mode selects how the units of a chain are scheduled.
type Mode string

const (
	// ModeSequential runs units one after another in declaration order.
	ModeSequential Mode = "sequential"
	// ModeParallel launches every unit at once and waits for all of them.
	ModeParallel Mode = "parallel"
)

// Chain is the executable form of one event of a deployment.
type Chain struct {
	Name       string
	Deployment string
	Event      string
	Mode       Mode
	// FailFast stops a sequential chain at the first unrecovered failure.
	FailFast bool
	Units    []*Unit
}

// Unit is a single resolved command of a chain.
type Unit struct {
	Name        string
	Description string
	// Command has file and input placeholders substituted. {$NAME}
	// placeholders are expanded right before dispatch.
	Command         string
	WorkingDir      string
	Env             map[string]string
	RollbackCommand string
	IgnoreErrors    bool
}

// CommandResult is the outcome of one unit.
type CommandResult struct {
	CommandName string         `json:"command_name" yaml:"command_name"`
	Success     bool           `json:"success" yaml:"success"`
	Output      string         `json:"output" yaml:"output"`
	Error       string         `json:"error,omitempty" yaml:"error,omitempty"`
	ExitCode    *int           `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`
	StartTime   time.Time      `json:"start_time" yaml:"start_time"`
	EndTime     time.Time      `json:"end_time" yaml:"end_time"`
	Duration    time.Duration  `json:"duration" yaml:"duration"`
	Rollback    *CommandResult `json:"rollback,omitempty" yaml:"rollback,omitempty"`
}

// Result is the aggregate outcome of a chain.
type Result struct {
	Chain   string           `json:"chain" yaml:"chain"`
	Success bool             `json:"success" yaml:"success"`
	Results []*CommandResult `json:"results" yaml:"results"`
	Error   string           `json:"error,omitempty" yaml:"error,omitempty"`

	err error
}

// Err returns the typed error behind Error, or nil for a successful chain.
// A failed command yields a COMMAND_FAILED error.
func (r *Result) Err() error {
	if r.Success {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	if msg := r.FirstError(); msg != "" {
		return errors.New(msg)
	}
	return errors.New("chain failed")
}

// fail marks the chain failed. Only the first failure is kept.
func (r *Result) fail(msg string, err error) {
	r.Success = false
	if r.err == nil && r.Error == "" {
		r.Error = msg
		r.err = err
	}
}

// FirstError returns the chain error, or the error of the first failed
// command when the chain carries none.
func (r *Result) FirstError() string {
	if r.Error != "" {
		return r.Error
	}
	for _, cr := range r.Results {
		if cr != nil && !cr.Success && cr.Error != "" {
			return cr.Error
		}
	}
	return ""
}

// UnitName is the name of the index-th (0-based) command of an event.
func UnitName(deployment, event string, index int) string {
	return fmt.Sprintf("%s_%s_cmd_%d", deployment, event, index+1)
}

// ChainName is the name of the chain built for an event.
func ChainName(deployment, event string) string {
	return fmt.Sprintf("%s_%s_chain", deployment, event)
}
