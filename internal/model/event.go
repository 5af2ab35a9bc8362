package model

import "time"

// EventType identifies the kind of notification
type EventType string

const (
	EventCountdownProgress EventType = "countdown_progress"
	EventLaunchResult      EventType = "launch_result"
	EventAllCancelled      EventType = "all_cancelled"
	EventStatusChanged     EventType = "status_changed"
	EventProgramCrashed    EventType = "program_crashed"
	EventPrimaryCrashed    EventType = "primary_crashed"
)

// Event is a notification emitted by the scheduler or the status monitor
type Event interface {
	Type() EventType
}

// CountdownProgress is emitted once per tick while a program counts down
type CountdownProgress struct {
	ProgramID        string    `json:"program_id"`
	Name             string    `json:"name"`
	SecondsRemaining int       `json:"seconds_remaining"`
	TotalSeconds     int       `json:"total_seconds"`
	Timestamp        time.Time `json:"timestamp"`
}

func (CountdownProgress) Type() EventType { return EventCountdownProgress }

// LaunchResult is emitted exactly once per launch attempt
type LaunchResult struct {
	ProgramID string        `json:"program_id"`
	Name      string        `json:"name"`
	Path      string        `json:"path"`
	Success   bool          `json:"success"`
	Outcome   LaunchOutcome `json:"outcome"`
	Reason    string        `json:"reason,omitempty"`
	PID       int32         `json:"pid,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

func (LaunchResult) Type() EventType { return EventLaunchResult }

// AllCancelled is emitted when every pending countdown was cancelled at once
type AllCancelled struct {
	Cancelled []string  `json:"cancelled,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (AllCancelled) Type() EventType { return EventAllCancelled }

// StatusChanged is emitted by the monitor on every state transition
type StatusChanged struct {
	ProgramID string        `json:"program_id"`
	Name      string        `json:"name"`
	From      ProgramStatus `json:"from"`
	To        ProgramStatus `json:"to"`
	Timestamp time.Time     `json:"timestamp"`
}

func (StatusChanged) Type() EventType { return EventStatusChanged }

// ProgramCrashed is emitted when a program observed running is gone
type ProgramCrashed struct {
	ProgramID   string    `json:"program_id"`
	Name        string    `json:"name"`
	ProcessName string    `json:"process_name"`
	Primary     bool      `json:"primary"`
	Timestamp   time.Time `json:"timestamp"`
}

func (ProgramCrashed) Type() EventType { return EventProgramCrashed }

// PrimaryCrashed is emitted in addition to ProgramCrashed when the primary
// server program crashes
type PrimaryCrashed struct {
	ProgramID   string    `json:"program_id"`
	Name        string    `json:"name"`
	ProcessName string    `json:"process_name"`
	Timestamp   time.Time `json:"timestamp"`
}

func (PrimaryCrashed) Type() EventType { return EventPrimaryCrashed }

// Emitter receives notifications
type Emitter interface {
	Emit(event Event)
}

// EmitterFunc adapts a function to Emitter
type EmitterFunc func(event Event)

// Emit implements Emitter
func (f EmitterFunc) Emit(event Event) { f(event) }
