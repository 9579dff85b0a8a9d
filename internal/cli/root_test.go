package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nikolaikolya/deploy-commander/pkg/config"
	"github.com/Nikolaikolya/deploy-commander/pkg/errors"
	"github.com/Nikolaikolya/deploy-commander/pkg/history"
)

type testEnv struct {
	dir      string
	config   string
	settings string
}

func newTestEnv(t *testing.T, deployments string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:      dir,
		config:   filepath.Join(dir, "deployments.yaml"),
		settings: filepath.Join(dir, "settings.json"),
	}

	s := map[string]interface{}{
		"log_file":               filepath.Join(dir, "deploy-commander.log"),
		"history_file":           filepath.Join(dir, "deploy-history.json"),
		"variables_file":         filepath.Join(dir, "variables.json"),
		"logs_dir":               filepath.Join(dir, "logs"),
		"history_limit":          100,
		"history_backend":        "local",
		"history_backend_config": map[string]string{},
	}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(env.settings, data, 0644))

	if deployments != "" {
		deployments = strings.ReplaceAll(deployments, "$DIR", dir)
		require.NoError(t, os.WriteFile(env.config, []byte(deployments), 0644))
	}
	return env
}

func (e *testEnv) execute(args ...string) (string, error) {
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", e.config, "--settings", e.settings}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e *testEnv) history(t *testing.T) map[string][]history.Record {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(e.dir, "deploy-history.json"))
	require.NoError(t, err)
	var doc struct {
		Records map[string][]history.Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc.Records
}

const testDeployments = `
deployments:
  - name: app
    working_dir: $DIR/app
    environment:
      - GREETING=hello
    events:
      - name: deploy
        commands:
          - command: echo {#VERSION} > version.txt
          - command: echo {$GREETING} > greeting.txt
      - name: broken
        commands:
          - command: exit 3
            rollback_command: touch rolled-back
  - name: other
    working_dir: $DIR/other
    events:
      - name: deploy
        commands:
          - command: echo other
`

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()

	if cmd.Use != "deploy-commander" {
		t.Errorf("expected use 'deploy-commander', got '%s'", cmd.Use)
	}

	for _, flagName := range []string{"config", "verbose", "log-file", "parallel", "settings", "variables-file"} {
		if cmd.PersistentFlags().Lookup(flagName) == nil {
			t.Errorf("expected --%s flag", flagName)
		}
	}
	for _, short := range []string{"c", "v", "p"} {
		if cmd.PersistentFlags().ShorthandLookup(short) == nil {
			t.Errorf("expected -%s shorthand", short)
		}
	}

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}
	for _, expected := range []string{"run", "list", "create", "verify", "history", "clear-history"} {
		if !subcommands[expected] {
			t.Errorf("expected subcommand '%s' not found", expected)
		}
	}
}

func TestRunCmd_Flags(t *testing.T) {
	cmd := newRunCmd(&app{})

	for _, flagName := range []string{"deployment", "event", "max-parallel", "timeout", "no-git"} {
		if cmd.Flags().Lookup(flagName) == nil {
			t.Errorf("expected --%s flag", flagName)
		}
	}
	if cmd.Flags().ShorthandLookup("d") == nil {
		t.Error("expected -d shorthand for --deployment")
	}
	if cmd.Flags().ShorthandLookup("e") == nil {
		t.Error("expected -e shorthand for --event")
	}
}

func TestRun_Event(t *testing.T) {
	env := newTestEnv(t, testDeployments)
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "variables.json"), []byte(`{"VERSION": "1.2.3"}`), 0644))

	out, err := env.execute("run", "-d", "app", "-e", "deploy", "--no-git")
	require.NoError(t, err)
	assert.Contains(t, out, "Event deploy of app succeeded")
	assert.Contains(t, out, "app_deploy_cmd_1")

	version, err := os.ReadFile(filepath.Join(env.dir, "app", "version.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1.2.3\n", string(version))

	greeting, err := os.ReadFile(filepath.Join(env.dir, "app", "greeting.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(greeting))

	records := env.history(t)["app"]
	require.Len(t, records, 1)
	assert.Equal(t, "deploy", records[0].Event)
	assert.True(t, records[0].Success)
	assert.Equal(t, "executed 2 commands", records[0].Details)

	entries, err := os.ReadDir(filepath.Join(env.dir, "logs"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRun_FailedEventRollsBack(t *testing.T) {
	env := newTestEnv(t, testDeployments)

	out, err := env.execute("run", "-d", "app", "-e", "broken", "--no-git")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeChainFailed))
	assert.Contains(t, out, "Event broken of app failed")
	assert.FileExists(t, filepath.Join(env.dir, "app", "rolled-back"))

	records := env.history(t)["app"]
	require.Len(t, records, 1)
	assert.False(t, records[0].Success)
}

func TestRun_UnknownDeployment(t *testing.T) {
	env := newTestEnv(t, testDeployments)

	_, err := env.execute("run", "-d", "missing", "-e", "deploy", "--no-git")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
	assert.NoFileExists(t, filepath.Join(env.dir, "deploy-history.json"))
}

func TestRun_AllDeploymentsParallel(t *testing.T) {
	env := newTestEnv(t, testDeployments)

	out, err := env.execute("run", "-d", "all", "-e", "deploy", "-p", "--no-git")
	require.NoError(t, err)
	assert.Contains(t, out, "Succeeded (2)")

	records := env.history(t)
	assert.Len(t, records["app"], 1)
	assert.Len(t, records["other"], 1)
	assert.NotEmpty(t, records["all-deployments"])
}

func TestList(t *testing.T) {
	env := newTestEnv(t, testDeployments)

	out, err := env.execute("list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "deploy,broken")

	out, err = env.execute("list", "-o", "json")
	require.NoError(t, err)
	var summaries []deploymentSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summaries))
	require.Len(t, summaries, 2)
	assert.Equal(t, "other", summaries[1].Name)
	assert.Equal(t, []string{"deploy"}, summaries[1].Events)
}

func TestList_Empty(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.execute("list")
	require.NoError(t, err)
	assert.Contains(t, out, "No deployments found")
}

func TestCreateAndVerify(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.execute("create", "-d", "web")
	require.NoError(t, err)
	assert.Contains(t, out, `Created deployment "web"`)

	cfg, err := config.Load(env.config)
	require.NoError(t, err)
	_, err = cfg.FindDeployment("web")
	require.NoError(t, err)

	_, err = env.execute("create", "-d", "web")
	assert.True(t, errors.Is(err, errors.ErrCodeConflict))

	out, err = env.execute("verify", "-d", "web")
	require.NoError(t, err)
	assert.Contains(t, out, `Deployment "web" is valid`)

	_, err = env.execute("verify", "-d", "nope")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestHistoryAndClear(t *testing.T) {
	env := newTestEnv(t, testDeployments)

	for i := 0; i < 3; i++ {
		_, err := env.execute("run", "-d", "other", "-e", "deploy", "--no-git")
		require.NoError(t, err, fmt.Sprintf("run %d", i))
	}

	out, err := env.execute("history", "-d", "other", "-n", "2", "-o", "json")
	require.NoError(t, err)
	var records []history.Record
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	assert.Len(t, records, 2)

	out, err = env.execute("history", "-d", "other")
	require.NoError(t, err)
	assert.Contains(t, out, "STATUS")

	_, err = env.execute("clear-history", "-d", "other")
	require.NoError(t, err)

	out, err = env.execute("history", "-d", "other")
	require.NoError(t, err)
	assert.Contains(t, out, `No history for deployment "other"`)
}

func TestHistory_ListsDeploymentsAndClearsAll(t *testing.T) {
	env := newTestEnv(t, testDeployments)

	out, err := env.execute("history")
	require.NoError(t, err)
	assert.Contains(t, out, "No history recorded.")

	out, err = env.execute("clear-history")
	require.NoError(t, err)
	assert.Contains(t, out, "No history to clear")

	_, err = env.execute("run", "-d", "all", "-e", "deploy", "--no-git")
	require.NoError(t, err)

	out, err = env.execute("history", "-o", "json")
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	assert.Equal(t, []string{"all-deployments", "app", "other"}, names)

	out, err = env.execute("clear-history")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared history of all deployments")
	assert.NoFileExists(t, filepath.Join(env.dir, "deploy-history.json"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncateString("abcdef", 2))
}

func TestCompletion(t *testing.T) {
	env := newTestEnv(t, testDeployments)
	a := &app{v: viper.New()}
	a.v.Set(flagConfig, env.config)

	cfg := a.completionConfig()
	assert.Equal(t, []string{"app"}, completeDeploymentNames(cfg, "a"))
	assert.Equal(t, []string{"deploy", "broken"}, completeEventNames(cfg, "app", ""))
	assert.Equal(t, []string{"deploy"}, completeEventNames(cfg, "all", "de"))

	a.v.Set(flagConfig, filepath.Join(env.dir, "missing.yaml"))
	assert.Empty(t, a.completionConfig().Deployments)

	out, err := env.execute("completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "deploy-commander")
}
