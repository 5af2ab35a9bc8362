package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const legacyConfig = `[Paths]
BBSPath=D:\WG32

[Window]
Width=960
Height=540

[Settings]
AutoStartBBS=true
AutoStartDelay=5
Ghost3Enabled=true
Ghost3Path=D:\Ghost3\Ghost3.exe
Ghost3Delay=45

[Programs]
Option1=D:\WG32\WGSCNF.exe -L1
Option1Name=Hardware Setup
`

func TestNeedsMigration(t *testing.T) {
	dir := t.TempDir()

	needs, err := NeedsMigration(filepath.Join(dir, "missing.ini"))
	require.NoError(t, err)
	assert.False(t, needs, "first run needs no migration")

	legacy := writeFile(t, dir, legacyConfig)
	needs, err = NeedsMigration(legacy)
	require.NoError(t, err)
	assert.True(t, needs)

	current := filepath.Join(dir, "current.ini")
	require.NoError(t, os.WriteFile(current, []byte("[AutoLaunch]\nVersion=2.0\n"), 0o644))
	needs, err = NeedsMigration(current)
	require.NoError(t, err)
	assert.False(t, needs)
}

func TestMigrate_ConvertsGhost3(t *testing.T) {
	path := writeFile(t, t.TempDir(), legacyConfig)

	result, err := Migrate(path)
	require.NoError(t, err)
	assert.Equal(t, path+".v120.backup", result.BackupPath)
	assert.Contains(t, result.Migrated, `Paths.BBSPath = D:\WG32`)
	assert.Contains(t, result.Migrated, "Ghost3 -> AutoLaunch1 (delay: 45s)")
	assert.Contains(t, result.Migrated, "Settings.AutoStartBBS = true")

	backup, err := os.ReadFile(result.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, legacyConfig, string(backup))

	needs, err := NeedsMigration(path)
	require.NoError(t, err)
	assert.False(t, needs)

	programs, err := NewProgramStore(path, zap.NewNop()).Load()
	require.NoError(t, err)
	require.Len(t, programs, 1)
	assert.Equal(t, "slot1", programs[0].ID)
	assert.Equal(t, "Ghost3", programs[0].Name)
	assert.Equal(t, `D:\Ghost3\Ghost3.exe`, programs[0].Path)
	assert.Equal(t, 45, programs[0].DelaySeconds)
	assert.True(t, programs[0].Enabled)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Settings.AutoStartBBS)
	assert.Equal(t, `D:\WG32`, cfg.Paths.BBSPath)
}

func TestMigrate_Ghost3Disabled(t *testing.T) {
	path := writeFile(t, t.TempDir(), "[Settings]\nGhost3Enabled=false\n")

	result, err := Migrate(path)
	require.NoError(t, err)
	assert.Contains(t, result.Migrated, "Ghost3 was disabled (not migrated)")

	programs, err := NewProgramStore(path, zap.NewNop()).Load()
	require.NoError(t, err)
	assert.Empty(t, programs)
}

func TestMigrate_RotatesBackup(t *testing.T) {
	path := writeFile(t, t.TempDir(), legacyConfig)
	require.NoError(t, os.WriteFile(path+".v120.backup", []byte("previous"), 0o644))
	require.NoError(t, os.WriteFile(path+".v120.backup.old", []byte("ancient"), 0o644))

	_, err := Migrate(path)
	require.NoError(t, err)

	old, err := os.ReadFile(path + ".v120.backup.old")
	require.NoError(t, err)
	assert.Equal(t, "previous", string(old))

	backup, err := os.ReadFile(path + ".v120.backup")
	require.NoError(t, err)
	assert.Equal(t, legacyConfig, string(backup))
}
