package scheduler

import "github.com/laudenbachm/mbbs-launcher/internal/model"

// Scheduler defines the interface for auto-launch schedulers
type Scheduler interface {
	// LoadSpecs replaces the working set of programs. In-flight countdowns
	// keep running with the copy they were started with.
	LoadSpecs(programs []model.LaunchProgram)

	// StartAllLaunches starts one countdown per enabled program, cancelling
	// any countdowns that are still active
	StartAllLaunches()

	// CancelOne cancels the countdown of a single program. Idempotent.
	CancelOne(programID string)

	// CancelAll cancels every active countdown and emits AllCancelled
	CancelAll()

	// ActiveIDs lists the programs currently counting down
	ActiveIDs() []string

	// IsCounting reports whether programID has an active countdown
	IsCounting(programID string) bool

	// IsActive reports whether any countdown is running
	IsActive() bool

	// Close cancels everything and waits for countdown goroutines to exit
	Close()
}

// Canceller is the narrow view the status monitor needs
type Canceller interface {
	CancelOne(programID string)
	IsCounting(programID string) bool
}
