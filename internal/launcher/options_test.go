package launcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/laudenbachm/mbbs-launcher/internal/config"
	"github.com/laudenbachm/mbbs-launcher/internal/model"
	"github.com/laudenbachm/mbbs-launcher/internal/testutil"
)

func TestRunOption_LaunchesWithArguments(t *testing.T) {
	cfg := testConfig(t)
	query := testutil.NewFakeQuery()
	exe := filepath.Join(t.TempDir(), "cnf.exe")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))

	opt := config.MenuOption{Number: 1, Name: "Hardware Setup", Command: exe + " -L1"}
	result, err := RunOption(context.Background(), query, cfg, opt, true, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, OptionLaunched, result.Action)
	assert.Equal(t, "cnf", result.Process)
	require.NotNil(t, result.Launch)
	assert.Equal(t, model.LaunchOutcomeLaunched, result.Launch.Outcome)

	spawns := query.Spawns()
	require.Len(t, spawns, 1)
	assert.Equal(t, exe, spawns[0].Path)
	assert.Equal(t, "-L1", spawns[0].Arguments)
	assert.Equal(t, filepath.Dir(exe), spawns[0].WorkingDir)
}

func TestRunOption_AlreadyRunning(t *testing.T) {
	cfg := testConfig(t)
	query := testutil.NewFakeQuery()
	exe := filepath.Join(t.TempDir(), "rpt.exe")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))
	query.SetRunning("rpt", true)
	opt := config.MenuOption{Number: 8, Name: "Reports", Command: exe}

	result, err := RunOption(context.Background(), query, cfg, opt, true, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, OptionFocused, result.Action)
	assert.Nil(t, result.Launch)

	result, err = RunOption(context.Background(), query, cfg, opt, false, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, OptionAlreadyRunning, result.Action)

	assert.Empty(t, query.Spawns())
}

func TestRunOption_ServerExecutableWatchesServerProcess(t *testing.T) {
	cfg := testConfig(t)
	query := testutil.NewFakeQuery()
	opt := config.MenuOption{Number: 5, Name: "Go!", Command: filepath.Join(cfg.Paths.BBSPath, "wgsappgo")}

	assert.Equal(t, "wgserver", OptionProcessName(cfg, `C:\BBSV10\WGSAPPGO.EXE`))
	assert.Equal(t, "wgsrunmt", OptionProcessName(cfg, `C:\BBSV10\wgsrunmt.exe`))

	query.SetRunning("wgserver", true)
	result, err := RunOption(context.Background(), query, cfg, opt, true, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, OptionFocused, result.Action)
	assert.Equal(t, "wgserver", result.Process)
	assert.Empty(t, query.Spawns())

	query.SetRunning("wgserver", false)
	result, err = RunOption(context.Background(), query, cfg, opt, true, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, OptionLaunched, result.Action)
	require.Len(t, query.Spawns(), 1)
	assert.Equal(t, "wgsappgo", filepath.Base(query.Spawns()[0].Path))
}

func TestRunOption_Errors(t *testing.T) {
	cfg := testConfig(t)
	query := testutil.NewFakeQuery()
	ctx := context.Background()

	_, err := RunOption(ctx, query, cfg, config.MenuOption{Number: 9, Name: "Option 9"}, true, zap.NewNop())
	assert.ErrorIs(t, err, config.ErrOptionNotConfigured)

	missing := config.MenuOption{Number: 7, Name: "Basic Utilities", Command: filepath.Join(t.TempDir(), "WGSUMENU.exe")}
	result, err := RunOption(ctx, query, cfg, missing, true, zap.NewNop())
	assert.ErrorIs(t, err, ErrOptionLaunchFailed)
	require.NotNil(t, result.Launch)
	assert.Equal(t, model.LaunchOutcomeFileNotFound, result.Launch.Outcome)
	assert.Empty(t, query.Spawns())
}
