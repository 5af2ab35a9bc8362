package model

import "fmt"

// ProgramStatus represents the observed state of a monitored program
type ProgramStatus string

const (
	ProgramStatusStopped ProgramStatus = "stopped"
	ProgramStatusRunning ProgramStatus = "running"
	ProgramStatusPending ProgramStatus = "pending"
	ProgramStatusCrashed ProgramStatus = "crashed"
)

// LaunchOutcome classifies a single launch attempt
type LaunchOutcome string

const (
	LaunchOutcomeLaunched     LaunchOutcome = "launched"
	LaunchOutcomeSkipped      LaunchOutcome = "skipped"
	LaunchOutcomeFileNotFound LaunchOutcome = "file_not_found"
	LaunchOutcomeSpawnFailed  LaunchOutcome = "spawn_failed"
	LaunchOutcomeError        LaunchOutcome = "error"
)

// ProgramState is a point-in-time view of one monitored program
type ProgramState struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Path             string        `json:"path"`
	ProcessName      string        `json:"process_name"`
	Status           ProgramStatus `json:"status"`
	SecondsRemaining int           `json:"seconds_remaining,omitempty"`
	Primary          bool          `json:"primary"`
	PID              int32         `json:"pid,omitempty"`
	MemoryRSS        uint64        `json:"memory_rss,omitempty"`
	CPUPercent       float64       `json:"cpu_percent,omitempty"`
}

// StatusText renders the state the way the launcher displays it
func (s ProgramState) StatusText() string {
	switch s.Status {
	case ProgramStatusRunning:
		return "Running"
	case ProgramStatusStopped:
		return "Stopped"
	case ProgramStatusCrashed:
		return "CRASHED"
	case ProgramStatusPending:
		return "Launch: " + FormatCountdown(s.SecondsRemaining)
	default:
		return "Unknown"
	}
}

// FormatCountdown renders seconds as m:ss
func FormatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
