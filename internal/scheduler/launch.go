package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/laudenbachm/mbbs-launcher/internal/model"
	"github.com/laudenbachm/mbbs-launcher/internal/process"
)

// launch performs one launch attempt and emits exactly one LaunchResult
func (s *AutoLaunch) launch(p model.LaunchProgram) {
	ctx, cancel := context.WithTimeout(s.baseCtx, launchTimeout)
	defer cancel()

	result := Attempt(ctx, s.query, p)

	fields := []zap.Field{
		zap.String("program_id", p.ID),
		zap.String("name", p.Name),
		zap.String("path", p.Path),
		zap.String("outcome", string(result.Outcome)),
	}
	if result.Success {
		s.logger.Info("Auto-launch finished", append(fields, zap.String("reason", result.Reason))...)
	} else {
		s.logger.Error("Auto-launch failed", append(fields, zap.String("reason", result.Reason))...)
	}

	s.emitter.Emit(result)
}

// Attempt launches a program unless its executable is missing or it is
// already running. It never panics and never returns an error; every
// outcome is described by the returned LaunchResult.
func Attempt(ctx context.Context, query process.Query, p model.LaunchProgram) (result model.LaunchResult) {
	result = model.LaunchResult{
		ProgramID: p.ID,
		Name:      p.Name,
		Path:      p.Path,
	}

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Outcome = model.LaunchOutcomeError
			result.Reason = fmt.Sprintf("%v: %v", ErrLaunchPanic, r)
		}
		result.Timestamp = time.Now()
	}()

	if err := checkExecutable(p.Path); err != nil {
		result.Outcome = model.LaunchOutcomeFileNotFound
		if !errors.Is(err, ErrFileNotFound) {
			result.Outcome = model.LaunchOutcomeError
		}
		result.Reason = err.Error()
		return result
	}

	name := process.ProcessNameFromPath(p.Path)
	if name != "" {
		running, err := query.IsRunning(ctx, name)
		if err != nil {
			result.Outcome = model.LaunchOutcomeError
			result.Reason = fmt.Sprintf("failed to check process %q: %v", name, err)
			return result
		}
		if running {
			result.Success = true
			result.Outcome = model.LaunchOutcomeSkipped
			result.Reason = ReasonAlreadyRunning
			return result
		}
	}

	h, err := query.Spawn(ctx, process.SpawnRequest{
		Path:       p.Path,
		WorkingDir: filepath.Dir(p.Path),
		Arguments:  p.Arguments,
		Minimized:  p.LaunchMinimized,
	})
	if err != nil {
		result.Outcome = model.LaunchOutcomeSpawnFailed
		result.Reason = err.Error()
		return result
	}
	if h == nil {
		result.Outcome = model.LaunchOutcomeSpawnFailed
		result.Reason = ErrSpawnFailed.Error()
		return result
	}

	result.Success = true
	result.Outcome = model.LaunchOutcomeLaunched
	result.PID = h.PID
	return result
}

// checkExecutable returns ErrFileNotFound when path does not name a regular
// file. Other stat failures are returned wrapped.
func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrFileNotFound
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return ErrFileNotFound
	}
	return nil
}
