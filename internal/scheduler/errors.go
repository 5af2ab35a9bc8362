package scheduler

import "errors"

var (
	// ErrFileNotFound is reported when a program's executable is missing at launch time
	ErrFileNotFound = errors.New("file not found")

	// ErrSpawnFailed wraps OS-level failures to create the process
	ErrSpawnFailed = errors.New("failed to start process")

	// ErrLaunchPanic is reported when a launch attempt panics
	ErrLaunchPanic = errors.New("launch attempt panicked")

	// ErrDuplicateProgram is returned when two programs share an ID
	ErrDuplicateProgram = errors.New("duplicate program id")

	// ErrSchedulerClosed is returned after Close
	ErrSchedulerClosed = errors.New("scheduler closed")
)
