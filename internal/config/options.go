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

	"github.com/laudenbachm/mbbs-launcher/internal/model"
)

const programsSection = "Programs"

// MenuNumbers are the option numbers the [Programs] section can hold, in menu
// order
var MenuNumbers = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 99}

var (
	// ErrUnknownOption is returned for a number outside MenuNumbers
	ErrUnknownOption = errors.New("unknown menu option")

	// ErrOptionNotConfigured is returned for an option without a command
	ErrOptionNotConfigured = errors.New("menu option is not configured")
)

// MenuOption is one numbered program of the [Programs] section. Command holds
// the executable followed by its arguments.
type MenuOption struct {
	Number  int    `json:"number"`
	Name    string `json:"name"`
	Command string `json:"command"`
}

// Configured reports whether the option has a command
func (o MenuOption) Configured() bool {
	return strings.TrimSpace(o.Command) != ""
}

// Program returns the option as a launchable program
func (o MenuOption) Program() model.LaunchProgram {
	path, args := SplitCommand(o.Command)
	return model.LaunchProgram{
		ID:        "option" + strconv.Itoa(o.Number),
		Name:      o.Name,
		Path:      path,
		Arguments: args,
		Enabled:   true,
	}
}

// SplitCommand splits a command line after the first ".exe" into the
// executable path and its arguments. Commands without ".exe" are a bare path.
func SplitCommand(command string) (path, args string) {
	i := strings.Index(strings.ToLower(command), ".exe")
	if i > 0 && i+4 < len(command) {
		return strings.TrimSpace(command[:i+4]), strings.TrimSpace(command[i+4:])
	}
	return strings.TrimSpace(command), ""
}

// ValidOption reports whether n is one of MenuNumbers
func ValidOption(n int) bool {
	for _, m := range MenuNumbers {
		if m == n {
			return true
		}
	}
	return false
}

func optionKey(n int) string {
	return "Option" + strconv.Itoa(n)
}

func optionName(n int) string {
	return "Option " + strconv.Itoa(n)
}

// DefaultMenuOptions returns the stock Worldgroup menu for a BBS installed at
// bbsPath
func DefaultMenuOptions(bbsPath string) []MenuOption {
	exe := func(name string) string {
		if strings.Contains(bbsPath, `\`) {
			return strings.TrimRight(bbsPath, `\`) + `\` + name
		}
		return filepath.Join(bbsPath, name)
	}
	return []MenuOption{
		{1, "Hardware Setup", exe("WGSCNF.exe") + " -L1"},
		{2, "Design Menu Tree", exe("wgsrunmt.exe")},
		{3, "Security & Accounting", exe("WGSCNF.exe") + " -L3"},
		{4, "Configuration Options", exe("WGSCNF.exe") + " -L4"},
		{5, "Go!", exe("wgsappgo.exe")},
		{6, "Edit Text Blocks", exe("WGSCNF.exe") + " -L6"},
		{7, "Basic Utilities", exe("WGSUMENU.exe")},
		{8, "Reports", exe("WGSRPT.exe")},
		{9, "", ""},
		{99, "CNF 99", exe("WGSCNF.exe") + " -L99"},
	}
}

// OptionStore reads and writes the numbered menu options of the [Programs]
// section
type OptionStore struct {
	logger *zap.Logger
	path   string
	mu     sync.Mutex
}

// NewOptionStore creates a store for the configuration file at path
func NewOptionStore(path string, logger *zap.Logger) *OptionStore {
	return &OptionStore{
		logger: logger.Named("option-store"),
		path:   path,
	}
}

// Load returns every menu number in order. Options without a name are named
// "Option N".
func (s *OptionStore) Load() ([]MenuOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := loadINI(s.path)
	if err != nil {
		return nil, err
	}
	section := f.Section(programsSection)

	options := make([]MenuOption, 0, len(MenuNumbers))
	for _, n := range MenuNumbers {
		name := strings.TrimSpace(section.Key(optionKey(n) + "Name").String())
		if name == "" {
			name = optionName(n)
		}
		options = append(options, MenuOption{
			Number:  n,
			Name:    name,
			Command: strings.TrimSpace(section.Key(optionKey(n)).String()),
		})
	}
	return options, nil
}

// Get returns a configured option
func (s *OptionStore) Get(n int) (MenuOption, error) {
	if !ValidOption(n) {
		return MenuOption{}, fmt.Errorf("%w: %d", ErrUnknownOption, n)
	}
	options, err := s.Load()
	if err != nil {
		return MenuOption{}, err
	}
	for _, o := range options {
		if o.Number != n {
			continue
		}
		if !o.Configured() {
			return o, fmt.Errorf("%w: %s", ErrOptionNotConfigured, o.Name)
		}
		return o, nil
	}
	return MenuOption{}, fmt.Errorf("%w: %d", ErrUnknownOption, n)
}

// Set stores one option. An empty command clears it.
func (s *OptionStore) Set(o MenuOption) error {
	if !ValidOption(o.Number) {
		return fmt.Errorf("%w: %d", ErrUnknownOption, o.Number)
	}
	return s.write(func(set func(MenuOption)) { set(o) })
}

// WriteDefaults fills the [Programs] section with DefaultMenuOptions when the
// file has none yet. It reports whether anything was written.
func (s *OptionStore) WriteDefaults(bbsPath string) (bool, error) {
	s.mu.Lock()
	f, err := loadINI(s.path)
	s.mu.Unlock()
	if err != nil {
		return false, err
	}
	if f.HasSection(programsSection) && len(f.Section(programsSection).Keys()) > 0 {
		return false, nil
	}

	err = s.write(func(set func(MenuOption)) {
		for _, o := range DefaultMenuOptions(bbsPath) {
			set(o)
		}
	})
	return err == nil, err
}

func (s *OptionStore) write(fn func(set func(MenuOption))) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := loadINI(s.path)
	if err != nil {
		return err
	}
	section := f.Section(programsSection)

	fn(func(o MenuOption) {
		section.Key(optionKey(o.Number)).SetValue(strings.TrimSpace(o.Command))
		section.Key(optionKey(o.Number) + "Name").SetValue(strings.TrimSpace(o.Name))
	})

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := saveINI(f, s.path); err != nil {
		return err
	}

	s.logger.Info("Saved menu options")
	return nil
}
