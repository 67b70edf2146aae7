package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"berth/internal/api"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0o644))
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, GetDefaultConfig(dir), cfg)
	assert.Equal(t, filepath.Join(dir, "services"), cfg.Workspace.Root)
	assert.Equal(t, filepath.Join(dir, ".cache", "temp"), cfg.TempDir())
	assert.Equal(t, DefaultPort, cfg.Server.Port)
}

func TestLoadConfig_OverridesKeepUnsetDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
server:
  port: 7000
lifecycle:
  startTimeout: 90s
  guardTTL: 10m
workspace:
  excludeDirs: [vendor]
logging:
  level: debug
  format: json
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, DefaultHost, cfg.Server.Host)
	assert.Equal(t, 90*time.Second, cfg.Lifecycle.StartTimeout)
	assert.Equal(t, DefaultStopTimeout, cfg.Lifecycle.StopTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Lifecycle.GuardTTL)
	assert.Equal(t, []string{"vendor"}, cfg.Workspace.ExcludeDirs)
	assert.Equal(t, DefaultSettingsFile, cfg.Workspace.SettingsFile)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfig_HomeMovesWorkspaceRoot(t *testing.T) {
	dir := t.TempDir()
	home := filepath.Join(dir, "home")
	writeConfig(t, dir, "home: "+home+"\n")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, home, cfg.Home)
	assert.Equal(t, filepath.Join(home, "services"), cfg.Workspace.Root)
}

func TestLoadConfig_ExplicitRootWins(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "home: /srv/berth\nworkspace:\n  root: /opt/apps\n")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "/opt/apps", cfg.Workspace.Root)
}

func TestLoadConfig_Malformed(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "server: [not, a, map\n")

	_, err := LoadConfig(dir)
	require.Error(t, err)
	assert.True(t, api.IsConfiguration(err))
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "workers:\n  size: -2\nlogging:\n  level: loud\n")

	_, err := LoadConfig(dir)
	require.Error(t, err)
	assert.True(t, api.IsConfiguration(err))
	assert.Contains(t, err.Error(), "workers.size")
	assert.Contains(t, err.Error(), "logging.level")
}
