package cmds

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/laudenbachm/mbbs-launcher/internal/config"
	"github.com/laudenbachm/mbbs-launcher/internal/instance"
	"github.com/laudenbachm/mbbs-launcher/internal/launcher"
	"github.com/laudenbachm/mbbs-launcher/internal/notify"
	"github.com/laudenbachm/mbbs-launcher/internal/process"
	"github.com/laudenbachm/mbbs-launcher/internal/storage"
)

func newRunCmd() *cobra.Command {
	var noAutoStart bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the launcher until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			defer opts.Logger.Sync()

			if noAutoStart {
				opts.Config.Settings.AutoStartBBS = false
			}
			return runLauncher(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&noAutoStart, "no-auto-start", false, "Do not start the BBS server automatically")
	return cmd
}

func runLauncher(parent context.Context, opts rootOptions) error {
	logger := opts.Logger
	cfg := opts.Config

	lock, err := instance.Acquire(cfg.LockPath())
	if err != nil {
		if errors.Is(err, instance.ErrAlreadyRunning) {
			return fmt.Errorf("MBBS Launcher is already running: %w", err)
		}
		return err
	}
	defer lock.Release()

	needs, err := config.NeedsMigration(cfg.File)
	if err != nil {
		return err
	}
	if needs {
		result, err := config.Migrate(cfg.File)
		if err != nil {
			return fmt.Errorf("failed to migrate configuration: %w", err)
		}
		logger.Info("Configuration migrated",
			zap.String("backup", result.BackupPath),
			zap.Strings("migrated", result.Migrated))
	}

	_, programs, err := loadPrograms(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	appOpts := launcher.Options{
		Config:   cfg,
		Programs: programs,
		Query:    process.NewSystem(logger),
	}

	if cfg.History.Enabled {
		history, err := storage.NewSQLiteLaunchHistory(logger, cfg.HistoryPath())
		if err != nil {
			return fmt.Errorf("failed to create launch history storage: %w", err)
		}
		defer history.Close()
		appOpts.History = history
	}

	var nc *nats.Conn
	if cfg.NATS.Enabled {
		nc, err = launcher.ConnectNATS(cfg.NATS, logger)
		if err != nil {
			return err
		}
		defer nc.Close()

		js, err := nc.JetStream()
		if err != nil {
			return fmt.Errorf("failed to create JetStream context: %w", err)
		}
		publisher, err := notify.NewNATSPublisher(ctx, js, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			return err
		}
		appOpts.Exporter = publisher
	}

	app, err := launcher.New(appOpts, logger)
	if err != nil {
		return err
	}
	if nc != nil {
		if err := app.ServeCommands(nc, cfg.NATS.SubjectPrefix); err != nil {
			app.Close()
			return err
		}
	}
	return app.Run(ctx)
}
