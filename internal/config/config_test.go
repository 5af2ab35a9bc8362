package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, DefaultFileName))
	require.NoError(t, err)

	assert.Equal(t, `C:\BBSV10`, cfg.Paths.BBSPath)
	assert.Equal(t, "wgserver", cfg.ServerProcessName())
	assert.Equal(t, `C:\BBSV10\wgsappgo.exe`, cfg.ServerPath())
	assert.False(t, cfg.Settings.AutoStartBBS)
	assert.Equal(t, 5, cfg.Settings.AutoStartDelay)
	assert.Equal(t, 2*time.Second, cfg.Monitor.PollInterval)
	assert.Equal(t, 30, cfg.History.RetentionDays)
	assert.Equal(t, filepath.Join(dir, "launch_history.db"), cfg.HistoryPath())
	assert.False(t, cfg.NATS.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NotEmpty(t, cfg.LockPath())
}

func TestLoad_FileValues(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, `
[Paths]
BBSPath=/srv/bbs

[Server]
Executable=start.sh
ProcessName=bbsd

[Settings]
AutoStartBBS=true
AutoStartDelay=10
MinimizeToTray=true

[Monitor]
PollInterval=500ms

[History]
Path=/var/lib/mbbs/history.db
RetentionDays=7

[NATS]
Enabled=true
SubjectPrefix=bbs

[AutoLaunch]
Version=2.0
AutoLaunch1Name=Ghost3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/bbs", cfg.Paths.BBSPath)
	assert.Equal(t, filepath.Join("/srv/bbs", "start.sh"), cfg.ServerPath())
	assert.Equal(t, "bbsd", cfg.ServerProcessName())
	assert.True(t, cfg.Settings.AutoStartBBS)
	assert.Equal(t, 10, cfg.Settings.AutoStartDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Monitor.PollInterval)
	assert.Equal(t, "/var/lib/mbbs/history.db", cfg.HistoryPath())
	assert.Equal(t, 7, cfg.History.RetentionDays)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "bbs", cfg.NATS.SubjectPrefix)

	server := cfg.ServerProgram()
	assert.Equal(t, ServerProgramID, server.ID)
	assert.Equal(t, 10, server.DelaySeconds)
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "[Settings]\nAutoStartDelay=10\n")

	t.Setenv("MBBS_SETTINGS_AUTOSTARTDELAY", "3")
	t.Setenv("MBBS_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Settings.AutoStartDelay)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "[Settings]\nAutoStartDelay=-1\n")

	_, err := Load(path)
	assert.Error(t, err)
}
