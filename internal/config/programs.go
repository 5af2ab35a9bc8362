package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/ini.v1"

	"github.com/laudenbachm/mbbs-launcher/internal/model"
)

const (
	autoLaunchSection = "AutoLaunch"
	versionKey        = "Version"

	// ConfigVersion is written to [AutoLaunch] Version on every save
	ConfigVersion = "2.0"
)

var (
	// ErrProgramNotFound is returned for an unknown program ID
	ErrProgramNotFound = errors.New("program not found")

	// ErrNoFreeSlot is returned when all auto-launch slots are in use
	ErrNoFreeSlot = errors.New("no free auto-launch slot")
)

var loadOptions = ini.LoadOptions{
	Loose:               true,
	IgnoreInlineComment: true,
	IgnoreContinuation:  true,
}

func loadINI(path string) (*ini.File, error) {
	f, err := ini.LoadSources(loadOptions, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return f, nil
}

// saveINI writes f next to path and renames it into place
func saveINI(f *ini.File, path string) error {
	tmp := path + ".tmp"
	if err := f.SaveTo(tmp); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func slotKey(slot int, field string) string {
	return "AutoLaunch" + strconv.Itoa(slot) + field
}

var slotFields = []string{"Name", "Path", "Args", "Delay", "Enabled", "Minimized"}

// ProgramStore reads and writes the auto-launch slots of the [AutoLaunch]
// section. Other sections and unknown keys are preserved on save.
type ProgramStore struct {
	logger *zap.Logger
	path   string
	mu     sync.Mutex
}

// NewProgramStore creates a store for the configuration file at path
func NewProgramStore(path string, logger *zap.Logger) *ProgramStore {
	return &ProgramStore{
		logger: logger.Named("program-store"),
		path:   path,
	}
}

// Load returns the configured programs in slot order. Slots without a name
// or a path are skipped.
func (s *ProgramStore) Load() ([]model.LaunchProgram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := loadINI(s.path)
	if err != nil {
		return nil, err
	}
	return s.readPrograms(f), nil
}

func (s *ProgramStore) readPrograms(f *ini.File) []model.LaunchProgram {
	section := f.Section(autoLaunchSection)
	var programs []model.LaunchProgram

	for slot := 1; slot <= model.MaxLaunchPrograms; slot++ {
		name := strings.TrimSpace(section.Key(slotKey(slot, "Name")).String())
		path := strings.TrimSpace(section.Key(slotKey(slot, "Path")).String())
		if name == "" || path == "" {
			continue
		}

		delay, err := strconv.Atoi(strings.TrimSpace(section.Key(slotKey(slot, "Delay")).String()))
		if err != nil {
			delay = model.DefaultDelaySeconds
		}

		programs = append(programs, model.LaunchProgram{
			ID:              model.SlotID(slot),
			Name:            name,
			Path:            path,
			Arguments:       section.Key(slotKey(slot, "Args")).String(),
			DelaySeconds:    delay,
			Enabled:         parseBool(section.Key(slotKey(slot, "Enabled")).String(), false),
			LaunchMinimized: parseBool(section.Key(slotKey(slot, "Minimized")).String(), true),
		})
	}

	return programs
}

func parseBool(value string, def bool) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	return strings.EqualFold(value, "true")
}

// Save replaces every auto-launch slot with programs and writes the version
// marker
func (s *ProgramStore) Save(programs []model.LaunchProgram) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(programs)
}

func (s *ProgramStore) save(programs []model.LaunchProgram) error {
	f, err := loadINI(s.path)
	if err != nil {
		return err
	}
	section := f.Section(autoLaunchSection)

	for slot := 1; slot <= model.MaxLaunchPrograms; slot++ {
		for _, field := range slotFields {
			section.DeleteKey(slotKey(slot, field))
		}
	}

	for _, p := range programs {
		slot, ok := model.SlotNumber(p.ID)
		if !ok || slot > model.MaxLaunchPrograms {
			return fmt.Errorf("invalid program id %q", p.ID)
		}
		section.Key(slotKey(slot, "Name")).SetValue(p.Name)
		section.Key(slotKey(slot, "Path")).SetValue(p.Path)
		section.Key(slotKey(slot, "Args")).SetValue(p.Arguments)
		section.Key(slotKey(slot, "Delay")).SetValue(strconv.Itoa(p.DelaySeconds))
		section.Key(slotKey(slot, "Enabled")).SetValue(strconv.FormatBool(p.Enabled))
		section.Key(slotKey(slot, "Minimized")).SetValue(strconv.FormatBool(p.LaunchMinimized))
	}
	section.Key(versionKey).SetValue(ConfigVersion)

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := saveINI(f, s.path); err != nil {
		return err
	}

	s.logger.Info("Saved auto-launch programs", zap.Int("count", len(programs)))
	return nil
}

// modify loads the programs, applies fn and saves the result
func (s *ProgramStore) modify(fn func([]model.LaunchProgram) ([]model.LaunchProgram, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := loadINI(s.path)
	if err != nil {
		return err
	}
	programs, err := fn(s.readPrograms(f))
	if err != nil {
		return err
	}
	return s.save(programs)
}

// Get returns one program by ID
func (s *ProgramStore) Get(id string) (model.LaunchProgram, error) {
	programs, err := s.Load()
	if err != nil {
		return model.LaunchProgram{}, err
	}
	for _, p := range programs {
		if p.ID == id {
			return p, nil
		}
	}
	return model.LaunchProgram{}, fmt.Errorf("%w: %s", ErrProgramNotFound, id)
}

// Add stores p in the lowest free slot and returns it with its ID assigned
func (s *ProgramStore) Add(p model.LaunchProgram) (model.LaunchProgram, error) {
	err := s.modify(func(programs []model.LaunchProgram) ([]model.LaunchProgram, error) {
		id, ok := model.NextSlotID(programs)
		if !ok {
			return nil, ErrNoFreeSlot
		}
		p.ID = id
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("invalid program: %w", err)
		}
		if strings.TrimSpace(p.Name) == "" {
			return nil, errors.New("invalid program: name is required")
		}
		return append(programs, p), nil
	})
	if err != nil {
		return model.LaunchProgram{}, err
	}
	return p, nil
}

// Update replaces the program with the same ID
func (s *ProgramStore) Update(p model.LaunchProgram) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid program: %w", err)
	}
	return s.modify(func(programs []model.LaunchProgram) ([]model.LaunchProgram, error) {
		for i := range programs {
			if programs[i].ID == p.ID {
				programs[i] = p
				return programs, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrProgramNotFound, p.ID)
	})
}

// Remove deletes a program. Other programs keep their slots.
func (s *ProgramStore) Remove(id string) error {
	return s.modify(func(programs []model.LaunchProgram) ([]model.LaunchProgram, error) {
		for i := range programs {
			if programs[i].ID == id {
				return append(programs[:i], programs[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrProgramNotFound, id)
	})
}

// SetEnabled enables or disables a program
func (s *ProgramStore) SetEnabled(id string, enabled bool) error {
	return s.modify(func(programs []model.LaunchProgram) ([]model.LaunchProgram, error) {
		for i := range programs {
			if programs[i].ID == id {
				programs[i].Enabled = enabled
				return programs, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrProgramNotFound, id)
	})
}
