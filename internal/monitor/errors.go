package monitor

import "errors"

var (
	// ErrProgramNotFound is returned for an ID the monitor does not track
	ErrProgramNotFound = errors.New("program not found")

	// ErrInvalidState is returned when a manual operation is not allowed in
	// the program's current status
	ErrInvalidState = errors.New("operation not allowed in current state")

	// ErrPrimaryProtected is returned when stopping the primary server program
	ErrPrimaryProtected = errors.New("primary program cannot be stopped")

	// ErrLaunchFailed wraps the reason of an unsuccessful manual launch
	ErrLaunchFailed = errors.New("launch failed")
)
