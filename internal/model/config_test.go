package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "master", cfg.Remote.Branch)
	assert.Equal(t, "data/database.sqlite", cfg.Remote.Path)
	assert.Equal(t, "https://api.github.com", cfg.Remote.BaseURL)
	assert.Equal(t, 3, cfg.Remote.DebounceSeconds)
	assert.Equal(t, BackupKeep, cfg.Backup.Keep)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NotEmpty(t, cfg.DataDir)
	assert.False(t, cfg.Remote.Configured())
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
data_dir: /tmp/dash
remote:
  owner: nhle
  repo: dashboard-data
  branch: main
  debounce_seconds: 10
backup:
  keep: 5
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/dash", cfg.DataDir)
	assert.Equal(t, "nhle", cfg.Remote.Owner)
	assert.Equal(t, "main", cfg.Remote.Branch)
	assert.Equal(t, 10, cfg.Remote.DebounceSeconds)
	assert.Equal(t, 5, cfg.Backup.Keep)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Unset keys keep their defaults.
	assert.Equal(t, "data/database.sqlite", cfg.Remote.Path)
	assert.True(t, cfg.Remote.Configured())
}

func TestRemoteConfiguredNeedsCoordinates(t *testing.T) {
	r := RemoteConfig{Owner: "nhle", Repo: "repo", Path: "db.sqlite"}
	assert.True(t, r.Configured())

	r.Disabled = true
	assert.False(t, r.Configured())

	assert.False(t, RemoteConfig{Repo: "repo", Path: "p"}.Configured())
	assert.False(t, RemoteConfig{Owner: "o", Repo: "r"}.Configured())
}
