package shell

import (
	"context"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestExecRunner_Success(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()

	res := NewRunner().Run(context.Background(), Request{
		Name:       "pwd",
		Command:    "echo \"$GREETING\" && pwd",
		WorkingDir: dir,
		Env:        map[string]string{"GREETING": "hello"},
	})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "pwd", res.Name)
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 0, *res.ExitCode)
	assert.Contains(t, res.Output, "hello")
	assert.Contains(t, res.Output, dir)
	assert.False(t, res.EndTime.Before(res.StartTime))
	assert.Equal(t, res.EndTime.Sub(res.StartTime), res.Duration)
}

func TestExecRunner_Failure(t *testing.T) {
	skipOnWindows(t)

	res := NewRunner().Run(context.Background(), Request{
		Command: "echo first; echo 'boom' >&2; exit 3",
	})

	assert.False(t, res.Success)
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 3, *res.ExitCode)
	assert.Equal(t, "exit status 3: boom", res.Error)
	assert.Contains(t, res.Output, "first")
}

func TestExecRunner_Timeout(t *testing.T) {
	skipOnWindows(t)

	start := time.Now()
	res := NewRunner().Run(context.Background(), Request{
		Command: "sleep 5",
		Timeout: 100 * time.Millisecond,
	})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "timed out")
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestExecRunner_EmptyCommand(t *testing.T) {
	res := NewRunner().Run(context.Background(), Request{Command: "  "})
	assert.False(t, res.Success)
	assert.Equal(t, "command is empty", res.Error)
	assert.Nil(t, res.ExitCode)
}

func TestEnviron(t *testing.T) {
	t.Setenv("SHELL_TEST_KEEP", "keep")
	t.Setenv("SHELL_TEST_OVERRIDE", "old")

	env := Environ(map[string]string{"SHELL_TEST_OVERRIDE": "new", "SHELL_TEST_ADDED": "added"})

	joined := "\n" + strings.Join(env, "\n") + "\n"
	assert.Contains(t, joined, "\nSHELL_TEST_KEEP=keep\n")
	assert.Contains(t, joined, "\nSHELL_TEST_OVERRIDE=new\n")
	assert.Contains(t, joined, "\nSHELL_TEST_ADDED=added\n")
	assert.NotContains(t, joined, "SHELL_TEST_OVERRIDE=old")

	assert.Equal(t, os.Environ(), Environ(nil))
}
