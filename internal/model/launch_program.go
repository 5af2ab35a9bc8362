package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultDelaySeconds is used when a configured delay is missing or unparseable
	DefaultDelaySeconds = 30

	// MaxLaunchPrograms is the number of auto-launch slots the configuration supports
	MaxLaunchPrograms = 20

	slotPrefix = "slot"
)

// LaunchProgram describes one auto-launch entry
type LaunchProgram struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Path            string `json:"path"`
	Arguments       string `json:"arguments,omitempty"`
	DelaySeconds    int    `json:"delay_seconds"`
	Enabled         bool   `json:"enabled"`
	LaunchMinimized bool   `json:"launch_minimized"`
}

// Validate checks the fields that must hold before a program can be scheduled.
// Path existence is deliberately not checked here; that happens at launch time.
func (p LaunchProgram) Validate() error {
	if p.Enabled && strings.TrimSpace(p.Name) == "" {
		return errors.New("name is required for an enabled program")
	}
	if strings.TrimSpace(p.Path) == "" {
		return errors.New("path is required")
	}
	if p.DelaySeconds < 0 {
		return fmt.Errorf("delay must be >= 0, got %d", p.DelaySeconds)
	}
	return nil
}

// FullCommand returns the path followed by its arguments, for display
func (p LaunchProgram) FullCommand() string {
	if strings.TrimSpace(p.Arguments) == "" {
		return p.Path
	}
	return p.Path + " " + p.Arguments
}

// SlotID returns the program ID for a 1-based slot number
func SlotID(slot int) string {
	return slotPrefix + strconv.Itoa(slot)
}

// SlotNumber parses a program ID produced by SlotID
func SlotNumber(id string) (int, bool) {
	if !strings.HasPrefix(id, slotPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, slotPrefix))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// NextSlotID returns the lowest slot ID not used by programs, or false if all
// MaxLaunchPrograms slots are taken.
func NextSlotID(programs []LaunchProgram) (string, bool) {
	used := make(map[string]bool, len(programs))
	for _, p := range programs {
		used[p.ID] = true
	}
	for i := 1; i <= MaxLaunchPrograms; i++ {
		if id := SlotID(i); !used[id] {
			return id, true
		}
	}
	return "", false
}

// EnabledPrograms filters programs down to the enabled ones, preserving order
func EnabledPrograms(programs []LaunchProgram) []LaunchProgram {
	var enabled []LaunchProgram
	for _, p := range programs {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	return enabled
}
