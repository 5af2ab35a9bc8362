package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// System implements Query on top of gopsutil and os/exec
type System struct {
	logger *zap.Logger
}

// NewSystem creates a new OS-backed process query
func NewSystem(logger *zap.Logger) *System {
	return &System{
		logger: logger.Named("process"),
	}
}

// IsRunning implements Query.IsRunning
func (s *System) IsRunning(ctx context.Context, name string) (bool, error) {
	h, err := s.FindFirst(ctx, name)
	if err != nil {
		return false, err
	}
	return h != nil, nil
}

// FindFirst implements Query.FindFirst
func (s *System) FindFirst(ctx context.Context, name string) (*Handle, error) {
	matches, err := s.find(ctx, name, true)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

// find enumerates processes whose base name matches. Processes that exit
// while being inspected are skipped.
func (s *System) find(ctx context.Context, name string, firstOnly bool) ([]*Handle, error) {
	if NormalizeName(name) == "" {
		return nil, ErrEmptyName
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	var matches []*Handle
	for _, p := range procs {
		pname, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if !SameName(pname, name) {
			continue
		}
		matches = append(matches, &Handle{PID: p.Pid, Name: pname})
		if firstOnly {
			break
		}
	}
	return matches, nil
}

// Spawn implements Query.Spawn
func (s *System) Spawn(ctx context.Context, req SpawnRequest) (*Handle, error) {
	if req.Path == "" {
		return nil, ErrEmptyPath
	}

	cmd, err := buildCommand(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build command: %w", err)
	}
	if req.WorkingDir != "" {
		cmd.Dir = req.WorkingDir
	}
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start process: %w", err)
	}

	pid := int32(cmd.Process.Pid)
	go s.reap(cmd, req.Path)

	s.logger.Info("Process started",
		zap.String("path", req.Path),
		zap.Int32("pid", pid),
		zap.Bool("minimized", req.Minimized))

	return &Handle{PID: pid, Name: ProcessNameFromPath(req.Path)}, nil
}

// reap waits on the child so it does not linger as a zombie; the launcher
// tracks liveness by name, not through this handle.
func (s *System) reap(cmd *exec.Cmd, path string) {
	err := cmd.Wait()
	if err != nil {
		s.logger.Debug("Process exited with error",
			zap.String("path", path),
			zap.Error(err))
		return
	}
	s.logger.Debug("Process exited", zap.String("path", path))
}

// BringToForeground implements Query.BringToForeground
func (s *System) BringToForeground(h *Handle) bool {
	if h == nil || h.PID <= 0 {
		return false
	}
	return bringToForeground(h.PID)
}

// KillByName implements Query.KillByName
func (s *System) KillByName(ctx context.Context, name string) (int, error) {
	matches, err := s.find(ctx, name, false)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, nil
	}

	killed := 0
	for _, h := range matches {
		p, err := process.NewProcessWithContext(ctx, h.PID)
		if err != nil {
			// Already gone.
			continue
		}
		if err := p.KillWithContext(ctx); err != nil {
			s.logger.Warn("Failed to kill process",
				zap.String("name", h.Name),
				zap.Int32("pid", h.PID),
				zap.Error(err))
			continue
		}
		killed++
	}

	s.logger.Info("Killed processes by name",
		zap.String("name", name),
		zap.Int("matched", len(matches)),
		zap.Int("killed", killed))

	return killed, nil
}

// Stats implements StatsProvider
func (s *System) Stats(ctx context.Context, pid int32) (*Stats, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, fmt.Errorf("failed to open process %d: %w", pid, err)
	}

	stats := &Stats{PID: pid}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		stats.MemoryRSS = mem.RSS
	}
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		stats.CPUPercent = cpu
	}
	return stats, nil
}
