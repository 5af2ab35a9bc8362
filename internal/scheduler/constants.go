package scheduler

import "time"

const (
	// DefaultTick is the countdown resolution
	DefaultTick = time.Second

	// ReasonFileNotFound is the LaunchResult reason for a missing executable
	ReasonFileNotFound = "file not found"

	// ReasonAlreadyRunning is the LaunchResult reason when the launch was
	// skipped because the process already exists. Such a result counts as
	// success.
	ReasonAlreadyRunning = "already running - skipped"

	launchTimeout = 30 * time.Second
)
