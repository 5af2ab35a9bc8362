package launcher

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/laudenbachm/mbbs-launcher/internal/storage"
)

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err))
}

// Maintenance runs periodic housekeeping: pruning old launch history
type Maintenance struct {
	logger    *zap.Logger
	cron      *cron.Cron
	history   storage.LaunchHistoryStorage
	retention time.Duration
}

// NewMaintenance schedules a history prune with the given cron expression.
// Standard five-field expressions and descriptors such as "@daily" are
// accepted. A zero retention keeps history forever and schedules nothing.
func NewMaintenance(history storage.LaunchHistoryStorage, schedule string, retention time.Duration, logger *zap.Logger) (*Maintenance, error) {
	cl := &cronLogger{logger: logger.Named("cron")}
	m := &Maintenance{
		logger: logger.Named("maintenance"),
		cron: cron.New(
			cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
			cron.WithChain(cron.Recover(cl)),
			cron.WithLogger(cl),
		),
		history:   history,
		retention: retention,
	}

	if history == nil || retention <= 0 {
		return m, nil
	}

	if _, err := m.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := m.Prune(ctx); err != nil {
			m.logger.Error("Failed to prune launch history", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}

	m.logger.Info("Scheduled launch history pruning",
		zap.String("schedule", schedule),
		zap.Duration("retention", retention))
	return m, nil
}

// Prune deletes history older than the retention period
func (m *Maintenance) Prune(ctx context.Context) (int64, error) {
	if m.history == nil || m.retention <= 0 {
		return 0, nil
	}
	return m.history.DeleteBefore(ctx, time.Now().Add(-m.retention))
}

// Start starts the cron scheduler
func (m *Maintenance) Start() {
	m.cron.Start()
}

// Stop stops the cron scheduler and waits for a running job
func (m *Maintenance) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

// Entries returns the number of scheduled jobs
func (m *Maintenance) Entries() int {
	return len(m.cron.Entries())
}
