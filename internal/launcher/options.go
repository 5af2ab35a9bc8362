package launcher

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/laudenbachm/mbbs-launcher/internal/config"
	"github.com/laudenbachm/mbbs-launcher/internal/model"
	"github.com/laudenbachm/mbbs-launcher/internal/process"
	"github.com/laudenbachm/mbbs-launcher/internal/scheduler"
)

// ErrOptionLaunchFailed is returned when a menu option could not be started
var ErrOptionLaunchFailed = errors.New("failed to launch menu option")

// OptionAction says what RunOption did
type OptionAction string

const (
	OptionLaunched       OptionAction = "launched"
	OptionFocused        OptionAction = "focused"
	OptionAlreadyRunning OptionAction = "already_running"
)

// OptionResult describes one RunOption call
type OptionResult struct {
	Option  config.MenuOption
	Action  OptionAction
	Process string
	Launch  *model.LaunchResult
}

// OptionProcessName returns the process to watch for an option's executable.
// The server executable only bootstraps the server, so its watched name is
// the server process instead.
func OptionProcessName(cfg *config.Config, path string) string {
	name := process.ProcessNameFromPath(path)
	if process.SameName(name, process.ProcessNameFromPath(cfg.Server.Executable)) {
		return cfg.ServerProcessName()
	}
	return name
}

// RunOption starts a menu option. When its process already runs nothing is
// started; with focus set its window is brought to the foreground.
func RunOption(ctx context.Context, query process.Query, cfg *config.Config, opt config.MenuOption, focus bool, logger *zap.Logger) (OptionResult, error) {
	logger = logger.Named("menu")
	out := OptionResult{Option: opt}
	if !opt.Configured() {
		return out, fmt.Errorf("%w: %s", config.ErrOptionNotConfigured, opt.Name)
	}

	program := opt.Program()
	out.Process = OptionProcessName(cfg, program.Path)

	running, err := query.IsRunning(ctx, out.Process)
	if err != nil {
		logger.Warn("Failed to check menu option process",
			zap.String("process", out.Process),
			zap.Error(err))
	}
	if running {
		out.Action = OptionAlreadyRunning
		if !focus {
			return out, nil
		}
		h, err := query.FindFirst(ctx, out.Process)
		if err != nil {
			return out, fmt.Errorf("failed to find %s: %w", out.Process, err)
		}
		if h != nil && query.BringToForeground(h) {
			out.Action = OptionFocused
		}
		logger.Info("Menu option already running",
			zap.Int("option", opt.Number),
			zap.String("process", out.Process),
			zap.String("action", string(out.Action)))
		return out, nil
	}

	result := scheduler.Attempt(ctx, query, program)
	out.Launch = &result
	if !result.Success {
		return out, fmt.Errorf("%w: %s: %s", ErrOptionLaunchFailed, opt.Name, result.Reason)
	}

	out.Action = OptionLaunched
	logger.Info("Launched menu option",
		zap.Int("option", opt.Number),
		zap.String("name", opt.Name),
		zap.String("outcome", string(result.Outcome)),
		zap.Int32("pid", result.PID))
	return out, nil
}
