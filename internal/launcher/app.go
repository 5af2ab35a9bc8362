// Package launcher wires the scheduler, the status monitor, launch history and
// event export into the running launcher.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/laudenbachm/mbbs-launcher/internal/config"
	"github.com/laudenbachm/mbbs-launcher/internal/model"
	"github.com/laudenbachm/mbbs-launcher/internal/monitor"
	"github.com/laudenbachm/mbbs-launcher/internal/notify"
	"github.com/laudenbachm/mbbs-launcher/internal/process"
	"github.com/laudenbachm/mbbs-launcher/internal/scheduler"
	"github.com/laudenbachm/mbbs-launcher/internal/storage"
)

// ErrServerStartFailed is returned when the BBS server could not be started
var ErrServerStartFailed = errors.New("failed to start BBS server")

const recordTimeout = 5 * time.Second

// Options configures an App
type Options struct {
	Config   *config.Config
	Programs []model.LaunchProgram
	Query    process.Query

	// History records every launch result when set
	History storage.LaunchHistoryStorage

	// Exporter receives every event when set, e.g. a notify.NATSPublisher
	Exporter model.Emitter

	// Tick overrides the countdown resolution
	Tick time.Duration
}

// App is a running launcher
type App struct {
	logger    *zap.Logger
	cfg       *config.Config
	query     process.Query
	bus       *notify.Bus
	scheduler *scheduler.AutoLaunch
	monitor   *monitor.StatusMonitor
	history   storage.LaunchHistoryStorage
	maint     *Maintenance

	unsubscribe []func()
	commandSubs []*nats.Subscription
	wg          sync.WaitGroup
	closeOnce   sync.Once

	waveActive atomic.Bool
	settled    chan struct{}
}

// New builds the launcher. Nothing runs until Run is called.
func New(opts Options, logger *zap.Logger) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Query == nil {
		return nil, errors.New("process query is required")
	}

	a := &App{
		logger:  logger.Named("launcher"),
		cfg:     opts.Config,
		query:   opts.Query,
		history: opts.History,
		settled: make(chan struct{}, 1),
	}

	a.bus = notify.NewBus(logger)
	a.scheduler = scheduler.NewAutoLaunch(opts.Query, a.bus, scheduler.Options{Tick: opts.Tick}, logger)
	a.scheduler.LoadSpecs(opts.Programs)

	monOpts := monitor.Options{Interval: opts.Config.Monitor.PollInterval}
	if stats, ok := opts.Query.(process.StatsProvider); ok {
		monOpts.Stats = stats
	}
	a.monitor = monitor.NewStatusMonitor(opts.Query, a.scheduler, a.bus, monOpts, logger)
	a.monitor.SetPrimary(opts.Config.ServerProgram(), opts.Config.ServerProcessName())
	a.monitor.SetPrograms(opts.Programs)

	// The monitor must see an event before the watchers that read its state.
	a.unsubscribe = append(a.unsubscribe, a.bus.Subscribe(a.monitor))
	if a.history != nil {
		a.unsubscribe = append(a.unsubscribe, a.bus.Subscribe(model.EmitterFunc(a.record)))

		maint, err := NewMaintenance(a.history, opts.Config.History.PruneSchedule,
			time.Duration(opts.Config.History.RetentionDays)*24*time.Hour, logger)
		if err != nil {
			a.bus.Close()
			return nil, err
		}
		a.maint = maint
	}
	if opts.Exporter != nil {
		a.unsubscribe = append(a.unsubscribe, a.bus.Subscribe(opts.Exporter))
	}
	a.unsubscribe = append(a.unsubscribe, a.bus.Subscribe(model.EmitterFunc(a.observe)))

	return a, nil
}

// Scheduler returns the auto-launch scheduler
func (a *App) Scheduler() *scheduler.AutoLaunch {
	return a.scheduler
}

// Monitor returns the status monitor
func (a *App) Monitor() *monitor.StatusMonitor {
	return a.monitor
}

// Bus returns the event bus every component emits to
func (a *App) Bus() *notify.Bus {
	return a.bus
}

// Settled receives a value each time a wave of auto-launches has finished,
// that is when no countdown is left after StartAutoLaunches
func (a *App) Settled() <-chan struct{} {
	return a.settled
}

// Run starts monitoring and, when configured, the delayed server auto-start.
// It blocks until ctx is done and then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting launcher",
		zap.String("server", a.cfg.ServerPath()),
		zap.Int("programs", len(a.scheduler.Programs())))

	a.monitor.Start(ctx)
	if a.maint != nil {
		a.maint.Start()
	}

	if a.cfg.Settings.AutoStartBBS {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.autoStart(ctx)
		}()
	}

	<-ctx.Done()
	a.Close()
	return nil
}

// autoStart waits the configured delay, then starts the server
func (a *App) autoStart(ctx context.Context) {
	delay := time.Duration(a.cfg.Settings.AutoStartDelay) * time.Second
	if delay > 0 {
		a.logger.Info("Auto-starting BBS", zap.Duration("delay", delay))

		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			a.logger.Info("BBS auto-start cancelled")
			return
		case <-timer.C:
		}
	}

	if _, err := a.StartServer(ctx); err != nil {
		a.logger.Error("BBS auto-start failed", zap.Error(err))
	}
}

// StartServer starts the BBS server unless it already runs. Either way the
// auto-launch programs are started afterwards; nothing is auto-launched when
// the server could not be started.
func (a *App) StartServer(ctx context.Context) (model.LaunchResult, error) {
	server := a.cfg.ServerProgram()

	running, err := a.query.IsRunning(ctx, a.cfg.ServerProcessName())
	if err != nil {
		a.logger.Warn("Failed to check for a running server", zap.Error(err))
	}

	var result model.LaunchResult
	if running {
		result = model.LaunchResult{
			ProgramID: server.ID,
			Name:      server.Name,
			Path:      server.Path,
			Success:   true,
			Outcome:   model.LaunchOutcomeSkipped,
			Reason:    scheduler.ReasonAlreadyRunning,
			Timestamp: time.Now(),
		}
		a.logger.Info("BBS server already running", zap.String("process", a.cfg.ServerProcessName()))
	} else {
		result = scheduler.Attempt(ctx, a.query, server)
	}
	a.bus.Emit(result)

	if !result.Success {
		return result, fmt.Errorf("%w: %s", ErrServerStartFailed, result.Reason)
	}

	a.logger.Info("BBS server started",
		zap.String("outcome", string(result.Outcome)),
		zap.Int32("pid", result.PID))
	a.StartAutoLaunches()
	return result, nil
}

// StartAutoLaunches starts a new wave of countdowns
func (a *App) StartAutoLaunches() {
	a.scheduler.StartAllLaunches()
	// Results dispatched before the flag is set are covered by the check below.
	a.waveActive.Store(true)
	if !a.scheduler.IsActive() {
		a.settle()
	}
}

// observe watches for the end of a launch wave and for server crashes
func (a *App) observe(event model.Event) {
	switch e := event.(type) {
	case model.LaunchResult, model.AllCancelled:
		if !a.scheduler.IsActive() {
			a.settle()
		}
	case model.PrimaryCrashed:
		a.logger.Warn("BBS server crashed",
			zap.String("process", e.ProcessName))
	}
}

func (a *App) settle() {
	if !a.waveActive.CompareAndSwap(true, false) {
		return
	}
	a.logger.Info("All auto-launches settled")
	select {
	case a.settled <- struct{}{}:
	default:
	}
}

// record stores launch results in the history database
func (a *App) record(event model.Event) {
	result, ok := event.(model.LaunchResult)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := a.history.Store(ctx, storage.RecordFromResult(result)); err != nil {
		a.logger.Error("Failed to record launch",
			zap.String("program_id", result.ProgramID),
			zap.Error(err))
	}
}

// Close stops every component. Queued events are delivered before it returns.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.logger.Info("Shutting down launcher")

		for _, sub := range a.commandSubs {
			if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
				a.logger.Warn("Failed to drop command subscription",
					zap.String("subject", sub.Subject),
					zap.Error(err))
			}
		}
		a.scheduler.Close()
		a.wg.Wait()
		a.monitor.Stop()
		if a.maint != nil {
			a.maint.Stop()
		}
		a.bus.Close()
		for _, unsubscribe := range a.unsubscribe {
			unsubscribe()
		}
	})
}
