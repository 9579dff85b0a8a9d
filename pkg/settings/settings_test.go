package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readRaw(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	raw := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(data, &raw))
	return raw
}

func TestLoad_CreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), s)

	raw := readRaw(t, path)
	assert.Equal(t, DefaultHistoryFile, raw[KeyHistoryFile])
	assert.Equal(t, DefaultLogsDir, raw[KeyLogsDir])
}

func TestLoad_BackfillsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log_file": "custom.log", "history_file": "h.json"}`), 0644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom.log", s.LogFile)
	assert.Equal(t, "h.json", s.HistoryFile)
	assert.Equal(t, DefaultVariablesFile, s.VariablesFile)
	assert.Equal(t, DefaultLogsDir, s.LogsDir)
	assert.Equal(t, DefaultHistoryLimit, s.HistoryLimit)

	raw := readRaw(t, path)
	assert.Equal(t, "custom.log", raw[KeyLogFile], "existing values are preserved")
	assert.Equal(t, DefaultVariablesFile, raw[KeyVariablesFile], "missing fields are written back")
	assert.Contains(t, raw, KeyLogsDir)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := Default()
	s.HistoryBackend = "s3"
	s.HistoryBackendConfig = map[string]string{"bucket": "deploys"}

	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3", loaded.HistoryBackend)
	assert.Equal(t, "deploys", loaded.HistoryBackendConfig["bucket"])
}
