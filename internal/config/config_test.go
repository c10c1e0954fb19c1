package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoFileOrEnv(t *testing.T) {
	t.Setenv("LOOMWORK_CONFIG", "")
	t.Setenv("LOOMWORK_LOG_LEVEL", "")
	t.Setenv("LOOMWORK_SNAPSHOT_PATH", "")
	t.Setenv("LOOMWORK_ROOT_QUESTION", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.toml"))
	require.NoError(t, err)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "loomwork.snapshot.yaml", cfg.Snapshot.Path)
}

func TestLoadReadsTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loomwork.toml")
	contents := `
[log]
level = "debug"

[snapshot]
path = "custom.yaml"

[store]
root_question = "what should I build next"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "custom.yaml", cfg.Snapshot.Path)
	require.Equal(t, "what should I build next", cfg.Store.RootQuestion)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loomwork.toml")
	require.NoError(t, os.WriteFile(path, []byte(`[log]
level = "debug"
`), 0o644))

	t.Setenv("LOOMWORK_LOG_LEVEL", "error")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "error", cfg.Log.Level)
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := &Config{Log: LogConfig{Level: "verbose"}, Snapshot: SnapshotConfig{Path: "x.yaml"}}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptySnapshotPath(t *testing.T) {
	cfg := &Config{Log: LogConfig{Level: "info"}, Snapshot: SnapshotConfig{Path: ""}}
	require.Error(t, cfg.Validate())
}
