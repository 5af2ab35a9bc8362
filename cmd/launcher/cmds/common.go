package cmds

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/laudenbachm/mbbs-launcher/internal/config"
	"github.com/laudenbachm/mbbs-launcher/internal/launcher"
	"github.com/laudenbachm/mbbs-launcher/internal/model"
	"github.com/laudenbachm/mbbs-launcher/internal/monitor"
	"github.com/laudenbachm/mbbs-launcher/internal/process"
)

// AddRootFlags registers the flags shared by every command
func AddRootFlags(root *cobra.Command) {
	root.PersistentFlags().String("config", config.DefaultFileName, "Path to the launcher INI file")
	root.PersistentFlags().String("log-level", "", "Override the configured log level")
}

type rootOptions struct {
	Config *config.Config
	Logger *zap.Logger
}

// getRootOptions loads the configuration named by --config and builds the
// logger it describes
func getRootOptions(cmd *cobra.Command) (rootOptions, error) {
	cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return rootOptions{}, err
	}
	cfgPath, err = filepath.Abs(cfgPath)
	if err != nil {
		return rootOptions{}, err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return rootOptions{}, err
	}

	level, err := cmd.Root().PersistentFlags().GetString("log-level")
	if err != nil {
		return rootOptions{}, err
	}
	if level != "" {
		cfg.Log.Level = level
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return rootOptions{}, err
	}
	return rootOptions{Config: cfg, Logger: logger}, nil
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// loadPrograms reads the auto-launch slots from the configuration file
func loadPrograms(opts rootOptions) (*config.ProgramStore, []model.LaunchProgram, error) {
	store := config.NewProgramStore(opts.Config.File, opts.Logger)
	programs, err := store.Load()
	if err != nil {
		return nil, nil, err
	}
	return store, programs, nil
}

// newStandaloneMonitor builds a monitor for one-shot commands that run
// without a launcher, so nothing can be pending
func newStandaloneMonitor(opts rootOptions, programs []model.LaunchProgram) *monitor.StatusMonitor {
	system := process.NewSystem(opts.Logger)
	m := monitor.NewStatusMonitor(system, nil, nil, monitor.Options{Stats: system}, opts.Logger)
	m.SetPrimary(opts.Config.ServerProgram(), opts.Config.ServerProcessName())
	m.SetPrograms(programs)
	return m
}

// errNoDaemon means no running launcher could be reached
var errNoDaemon = errors.New("no running launcher answered (NATS must be enabled for both)")

const (
	daemonConnectTimeout = 2 * time.Second
	daemonReplyTimeout   = 15 * time.Second
)

// sendToDaemon forwards a control action to the running launcher. errNoDaemon
// is returned when NATS is disabled, unreachable or nobody serves commands.
func sendToDaemon(opts rootOptions, action, programID string) (*launcher.CommandReply, error) {
	cfg := opts.Config.NATS
	if !cfg.Enabled {
		return nil, errNoDaemon
	}

	nc, err := nats.Connect(cfg.URL, nats.Name(cfg.Name+"-cli"), nats.Timeout(daemonConnectTimeout))
	if err != nil {
		opts.Logger.Debug("NATS unavailable", zap.String("url", cfg.URL), zap.Error(err))
		return nil, errNoDaemon
	}
	defer nc.Close()

	reply, err := launcher.SendCommand(nc, cfg.SubjectPrefix, action, programID, daemonReplyTimeout)
	if errors.Is(err, nats.ErrNoResponders) {
		return nil, errNoDaemon
	}
	return reply, err
}
