// Package config loads the launcher's MBBSLauncher.ini.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/laudenbachm/mbbs-launcher/internal/model"
)

const (
	// DefaultFileName is the configuration file looked up by default
	DefaultFileName = "MBBSLauncher.ini"

	// ServerProgramID identifies the primary BBS server program
	ServerProgramID = "server"

	envPrefix = "MBBS"
)

// PathsConfig holds the BBS installation location
type PathsConfig struct {
	BBSPath string `mapstructure:"bbspath"`
}

// ServerConfig describes how the BBS server is started and recognised.
// Executable is started; ProcessName is watched, since the starter may hand
// off to another process.
type ServerConfig struct {
	Name        string `mapstructure:"name"`
	Executable  string `mapstructure:"executable"`
	ProcessName string `mapstructure:"processname"`
	Arguments   string `mapstructure:"arguments"`
}

// SettingsConfig holds start-up behaviour
type SettingsConfig struct {
	AutoStartBBS    bool `mapstructure:"autostartbbs"`
	AutoStartDelay  int  `mapstructure:"autostartdelay"`
	LaunchMinimized bool `mapstructure:"launchminimized"`
}

// MonitorConfig configures the status monitor
type MonitorConfig struct {
	PollInterval time.Duration `mapstructure:"pollinterval"`
}

// HistoryConfig configures the launch history database
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retentiondays"`
	PruneSchedule string `mapstructure:"pruneschedule"`
}

// NATSConfig configures event export and the control channel
type NATSConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	Name          string        `mapstructure:"name"`
	SubjectPrefix string        `mapstructure:"subjectprefix"`
	MaxReconnects int           `mapstructure:"maxreconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnectwait"`
}

// LogConfig configures zap
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// InstanceConfig configures single-instance enforcement
type InstanceConfig struct {
	LockPath string `mapstructure:"lockpath"`
}

// Config is the runtime configuration
type Config struct {
	Paths    PathsConfig    `mapstructure:"paths"`
	Server   ServerConfig   `mapstructure:"server"`
	Settings SettingsConfig `mapstructure:"settings"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	History  HistoryConfig  `mapstructure:"history"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Log      LogConfig      `mapstructure:"log"`
	Instance InstanceConfig `mapstructure:"instance"`

	// File is the path the configuration was loaded from
	File string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.bbspath", `C:\BBSV10`)

	v.SetDefault("server.name", "BBS Server")
	v.SetDefault("server.executable", "wgsappgo.exe")
	v.SetDefault("server.processname", "wgserver")
	v.SetDefault("server.arguments", "")

	v.SetDefault("settings.autostartbbs", false)
	v.SetDefault("settings.autostartdelay", 5)
	v.SetDefault("settings.launchminimized", false)

	v.SetDefault("monitor.pollinterval", "2s")

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "launch_history.db")
	v.SetDefault("history.retentiondays", 30)
	v.SetDefault("history.pruneschedule", "@daily")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.name", "mbbs-launcher")
	v.SetDefault("nats.subjectprefix", "mbbs")
	v.SetDefault("nats.maxreconnects", 10)
	v.SetDefault("nats.reconnectwait", "2s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("instance.lockpath", "")
}

// Load reads the configuration file at path. A missing file yields the
// defaults. Every key can be overridden from the environment as
// MBBS_<SECTION>_<KEY>, e.g. MBBS_SETTINGS_AUTOSTARTBBS=true.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later at run time
func (c *Config) Validate() error {
	if c.Settings.AutoStartDelay < 0 {
		return fmt.Errorf("invalid Settings.AutoStartDelay %d: must be >= 0", c.Settings.AutoStartDelay)
	}
	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("invalid Monitor.PollInterval %s: must be positive", c.Monitor.PollInterval)
	}
	if c.History.RetentionDays < 0 {
		return fmt.Errorf("invalid History.RetentionDays %d: must be >= 0", c.History.RetentionDays)
	}
	return nil
}

// ResolvePath makes p absolute relative to the configuration file's directory
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(c.File), p)
}

// HistoryPath returns the resolved launch history database path
func (c *Config) HistoryPath() string {
	return c.ResolvePath(c.History.Path)
}

// LockPath returns the resolved single-instance lock file path
func (c *Config) LockPath() string {
	if c.Instance.LockPath == "" {
		return filepath.Join(os.TempDir(), "mbbs-launcher.lock")
	}
	return c.ResolvePath(c.Instance.LockPath)
}

// ServerPath returns the full path of the server executable
func (c *Config) ServerPath() string {
	exe := c.Server.Executable
	if filepath.IsAbs(exe) || strings.Contains(exe, `:\`) {
		return exe
	}
	bbs := c.Paths.BBSPath
	if strings.Contains(bbs, `\`) {
		return strings.TrimRight(bbs, `\`) + `\` + exe
	}
	return filepath.Join(bbs, exe)
}

// ServerProcessName returns the process watched for the server
func (c *Config) ServerProcessName() string {
	if c.Server.ProcessName != "" {
		return c.Server.ProcessName
	}
	return filepath.Base(c.Server.Executable)
}

// ServerProgram describes the primary server as a launchable program
func (c *Config) ServerProgram() model.LaunchProgram {
	return model.LaunchProgram{
		ID:              ServerProgramID,
		Name:            c.Server.Name,
		Path:            c.ServerPath(),
		Arguments:       c.Server.Arguments,
		DelaySeconds:    c.Settings.AutoStartDelay,
		Enabled:         true,
		LaunchMinimized: c.Settings.LaunchMinimized,
	}
}
