// Package process is the launcher's only OS-facing boundary: finding processes
// by name, spawning executables and terminating them.
package process

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyPath is returned when a spawn request carries no executable path
	ErrEmptyPath = errors.New("empty executable path")

	// ErrEmptyName is returned when a lookup is made without a process name
	ErrEmptyName = errors.New("empty process name")
)

// Handle references a running OS process
type Handle struct {
	PID  int32
	Name string
}

// SpawnRequest describes a process to start
type SpawnRequest struct {
	Path       string
	WorkingDir string
	Arguments  string
	Minimized  bool
}

// Stats holds resource usage of a process
type Stats struct {
	PID        int32
	MemoryRSS  uint64
	CPUPercent float64
}

// Query is the capability the scheduler and the monitor consume
type Query interface {
	// IsRunning reports whether at least one process with the base name exists
	IsRunning(ctx context.Context, name string) (bool, error)

	// FindFirst returns one process with the base name, or nil if none exists
	FindFirst(ctx context.Context, name string) (*Handle, error)

	// Spawn starts a new process
	Spawn(ctx context.Context, req SpawnRequest) (*Handle, error)

	// BringToForeground raises the main window of the process. Best effort.
	BringToForeground(h *Handle) bool

	// KillByName force-terminates every process with the base name and
	// returns how many were killed
	KillByName(ctx context.Context, name string) (int, error)
}

// StatsProvider is implemented by queries that can report resource usage
type StatsProvider interface {
	Stats(ctx context.Context, pid int32) (*Stats, error)
}

// ProcessNameFromPath strips directory and extension from an executable path
func ProcessNameFromPath(path string) string {
	// Windows paths are configured with backslashes regardless of host OS.
	base := filepath.Base(strings.ReplaceAll(path, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// NormalizeName reduces a process name to its comparable form: no extension,
// lower case.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	return strings.ToLower(name)
}

// SameName reports whether two process names refer to the same executable
func SameName(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}
