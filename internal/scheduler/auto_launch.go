package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/laudenbachm/mbbs-launcher/internal/model"
	"github.com/laudenbachm/mbbs-launcher/internal/process"
)

// Options tunes the auto-launch scheduler
type Options struct {
	// Tick is the countdown resolution. Defaults to one second.
	Tick time.Duration
}

// countdown is one program's pending launch. mu is held while a progress
// notification is emitted so that a cancel returning guarantees silence.
type countdown struct {
	program   model.LaunchProgram
	remaining int
	ctx       context.Context
	cancel    context.CancelFunc

	mu        sync.Mutex
	cancelled bool
}

// stop marks the countdown cancelled and waits for an in-flight emission
func (c *countdown) stop() {
	c.cancel()
	c.mu.Lock()
	c.cancelled = true
	c.mu.Unlock()
}

// AutoLaunch runs independent per-program countdowns and launches each
// program when its countdown reaches zero.
//
// Notifications are delivered to the emitter on the countdown goroutines.
// Progress is emitted with the countdown lock held, so an emitter must not
// call CancelOne or CancelAll synchronously; notify.Bus queues events and is
// safe to use.
type AutoLaunch struct {
	logger  *zap.Logger
	query   process.Query
	emitter model.Emitter
	tick    time.Duration

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu       sync.Mutex
	programs []model.LaunchProgram
	active   map[string]*countdown
	closed   bool
}

// NewAutoLaunch creates a new auto-launch scheduler
func NewAutoLaunch(query process.Query, emitter model.Emitter, opts Options, logger *zap.Logger) *AutoLaunch {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if emitter == nil {
		emitter = model.EmitterFunc(func(model.Event) {})
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &AutoLaunch{
		logger:     logger.Named("auto-launch"),
		query:      query,
		emitter:    emitter,
		tick:       opts.Tick,
		baseCtx:    ctx,
		baseCancel: cancel,
		active:     make(map[string]*countdown),
	}
}

// LoadSpecs implements Scheduler.LoadSpecs. Invalid and duplicate programs are
// dropped with a warning.
func (s *AutoLaunch) LoadSpecs(programs []model.LaunchProgram) {
	seen := make(map[string]bool, len(programs))
	working := make([]model.LaunchProgram, 0, len(programs))

	for _, p := range programs {
		if err := p.Validate(); err != nil {
			s.logger.Warn("Skipping invalid auto-launch program",
				zap.String("program_id", p.ID),
				zap.Error(err))
			continue
		}
		if seen[p.ID] {
			s.logger.Warn("Skipping auto-launch program",
				zap.String("program_id", p.ID),
				zap.Error(ErrDuplicateProgram))
			continue
		}
		seen[p.ID] = true
		working = append(working, p)
	}

	s.mu.Lock()
	s.programs = working
	s.mu.Unlock()

	s.logger.Info("Loaded auto-launch programs", zap.Int("count", len(working)))
}

// Programs returns a copy of the working set
func (s *AutoLaunch) Programs() []model.LaunchProgram {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.LaunchProgram(nil), s.programs...)
}

// StartAllLaunches implements Scheduler.StartAllLaunches
func (s *AutoLaunch) StartAllLaunches() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("Ignoring start request", zap.Error(ErrSchedulerClosed))
		return
	}

	previous := s.drainLocked()

	enabled := model.EnabledPrograms(s.programs)
	var immediate []model.LaunchProgram
	var started []*countdown
	for _, p := range enabled {
		if p.DelaySeconds == 0 {
			immediate = append(immediate, p)
			continue
		}
		ctx, cancel := context.WithCancel(s.baseCtx)
		c := &countdown{
			program:   p,
			remaining: p.DelaySeconds,
			ctx:       ctx,
			cancel:    cancel,
		}
		s.active[p.ID] = c
		started = append(started, c)
	}
	s.mu.Unlock()

	if len(previous) > 0 {
		s.logger.Info("Auto-launch already active - restarting",
			zap.Int("cancelled", len(previous)))
		s.stopAll(previous)
		s.emitter.Emit(model.AllCancelled{Cancelled: ids(previous), Timestamp: time.Now()})
	}

	s.logger.Info("Starting auto-launch",
		zap.Int("programs", len(enabled)),
		zap.Int("countdowns", len(started)))

	for _, c := range started {
		s.wg.Add(1)
		go s.run(c)
	}

	for _, p := range immediate {
		s.launch(p)
	}
}

// run drives a single countdown
func (s *AutoLaunch) run(c *countdown) {
	defer s.wg.Done()
	defer c.cancel()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			s.logger.Debug("Countdown cancelled", zap.String("program_id", c.program.ID))
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if c.cancelled {
			c.mu.Unlock()
			return
		}
		if c.remaining > 0 {
			s.emitter.Emit(model.CountdownProgress{
				ProgramID:        c.program.ID,
				Name:             c.program.Name,
				SecondsRemaining: c.remaining,
				TotalSeconds:     c.program.DelaySeconds,
				Timestamp:        time.Now(),
			})
			c.remaining--
			c.mu.Unlock()
			continue
		}
		c.mu.Unlock()

		// Whoever removes the entry owns it: a concurrent CancelOne that got
		// there first wins and the launch is skipped.
		if !s.remove(c) {
			return
		}
		s.launch(c.program)
		return
	}
}

// remove deletes c from the active set if it is still registered
func (s *AutoLaunch) remove(c *countdown) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[c.program.ID] != c {
		return false
	}
	delete(s.active, c.program.ID)
	return true
}

// CancelOne implements Scheduler.CancelOne
func (s *AutoLaunch) CancelOne(programID string) {
	s.mu.Lock()
	c, ok := s.active[programID]
	if ok {
		delete(s.active, programID)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	c.stop()

	s.logger.Info("Cancelled launch",
		zap.String("program_id", programID),
		zap.String("name", c.program.Name))
}

// CancelAll implements Scheduler.CancelAll
func (s *AutoLaunch) CancelAll() {
	s.mu.Lock()
	cancelled := s.drainLocked()
	s.mu.Unlock()

	s.stopAll(cancelled)

	s.logger.Info("Stopping all auto-launches", zap.Int("active", len(cancelled)))
	s.emitter.Emit(model.AllCancelled{Cancelled: ids(cancelled), Timestamp: time.Now()})
}

// ActiveIDs implements Scheduler.ActiveIDs
func (s *AutoLaunch) ActiveIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.active))
	for id := range s.active {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// IsCounting implements Scheduler.IsCounting. A countdown stops counting as
// soon as it is cancelled or its launch begins.
func (s *AutoLaunch) IsCounting(programID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[programID]
	return ok
}

// IsActive implements Scheduler.IsActive
func (s *AutoLaunch) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active) > 0
}

// Close implements Scheduler.Close
func (s *AutoLaunch) Close() {
	s.mu.Lock()
	s.closed = true
	remaining := s.drainLocked()
	s.mu.Unlock()

	s.stopAll(remaining)
	s.baseCancel()
	s.wg.Wait()
}

// drainLocked empties the active set and returns what it held
func (s *AutoLaunch) drainLocked() []*countdown {
	drained := make([]*countdown, 0, len(s.active))
	for id, c := range s.active {
		drained = append(drained, c)
		delete(s.active, id)
	}
	return drained
}

func (s *AutoLaunch) stopAll(countdowns []*countdown) {
	for _, c := range countdowns {
		c.stop()
	}
}

func ids(countdowns []*countdown) []string {
	out := make([]string, 0, len(countdowns))
	for _, c := range countdowns {
		out = append(out, c.program.ID)
	}
	sort.Strings(out)
	return out
}
