// Package shell runs command lines through the system shell.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"
)

const waitDelay = 2 * time.Second

// Request describes one command invocation.
type Request struct {
	// Name identifies the command in logs and results.
	Name       string
	Command    string
	WorkingDir string
	// Env is applied on top of the process environment of the runner.
	Env     map[string]string
	Timeout time.Duration
}

// Result is the outcome of a single invocation.
type Result struct {
	Name      string
	Success   bool
	Output    string
	Error     string
	ExitCode  *int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Runner executes command requests. Implementations must be safe for
// concurrent use.
type Runner interface {
	Run(ctx context.Context, req Request) *Result
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	shell []string
}

// NewRunner returns a runner using "sh -c", or "cmd /C" on Windows.
func NewRunner() *ExecRunner {
	if runtime.GOOS == "windows" {
		return &ExecRunner{shell: []string{"cmd", "/C"}}
	}
	return &ExecRunner{shell: []string{"sh", "-c"}}
}

// Run executes req and blocks until it exits, its timeout elapses or ctx is
// cancelled. Stdout and stderr are captured together.
func (r *ExecRunner) Run(ctx context.Context, req Request) *Result {
	res := &Result{Name: req.Name, StartTime: time.Now()}
	defer func() {
		res.EndTime = time.Now()
		res.Duration = res.EndTime.Sub(res.StartTime)
	}()

	if strings.TrimSpace(req.Command) == "" {
		res.Error = "command is empty"
		return res
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, r.shell[1:]...), req.Command)
	cmd := exec.CommandContext(ctx, r.shell[0], args...)
	cmd.Dir = req.WorkingDir
	cmd.Env = Environ(req.Env)
	// Children of the shell may keep the output pipe open after it is killed.
	cmd.WaitDelay = waitDelay

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	res.Output = out.String()

	if cmd.ProcessState != nil {
		code := cmd.ProcessState.ExitCode()
		if code >= 0 {
			res.ExitCode = &code
		}
	}

	switch {
	case err == nil:
		res.Success = true
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Error = fmt.Sprintf("command timed out after %s", req.Timeout)
	case ctx.Err() != nil:
		res.Error = fmt.Sprintf("command cancelled: %v", ctx.Err())
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.Error = fmt.Sprintf("exit status %d", exitErr.ExitCode())
			if msg := lastLine(res.Output); msg != "" {
				res.Error += ": " + msg
			}
		} else {
			res.Error = err.Error()
		}
	}
	return res
}

// Environ returns the process environment with env applied on top, in a
// stable order.
func Environ(env map[string]string) []string {
	base := os.Environ()
	if len(env) == 0 {
		return base
	}

	out := make([]string, 0, len(base)+len(env))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, overridden := env[k]; !overridden {
			out = append(out, kv)
		}
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
