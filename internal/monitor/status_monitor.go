package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/laudenbachm/mbbs-launcher/internal/model"
	"github.com/laudenbachm/mbbs-launcher/internal/process"
	"github.com/laudenbachm/mbbs-launcher/internal/scheduler"
)

// DefaultInterval is the poll interval used when Options.Interval is unset
const DefaultInterval = 2 * time.Second

// Options configures a StatusMonitor
type Options struct {
	Interval time.Duration

	// Stats, when set, adds PID and resource usage to snapshots of running
	// programs
	Stats process.StatsProvider
}

type entry struct {
	program          model.LaunchProgram
	processName      string
	primary          bool
	status           model.ProgramStatus
	secondsRemaining int

	// gen counts status changes so a poll can tell its observation is stale
	gen uint64
}

func (e *entry) state() model.ProgramState {
	return model.ProgramState{
		ID:               e.program.ID,
		Name:             e.program.Name,
		Path:             e.program.Path,
		ProcessName:      e.processName,
		Status:           e.status,
		SecondsRemaining: e.secondsRemaining,
		Primary:          e.primary,
	}
}

// StatusMonitor tracks the observed status of the primary server program and
// every enabled auto-launch program.
//
// Programs in Pending are owned by the scheduler and skipped by polls; the
// monitor learns about them only through HandleEvent.
type StatusMonitor struct {
	logger    *zap.Logger
	query     process.Query
	canceller scheduler.Canceller
	emitter   model.Emitter
	stats     process.StatsProvider
	interval  time.Duration

	mu        sync.Mutex
	entries   map[string]*entry
	primaryID string

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewStatusMonitor creates a new status monitor
func NewStatusMonitor(query process.Query, canceller scheduler.Canceller, emitter model.Emitter, opts Options, logger *zap.Logger) *StatusMonitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if emitter == nil {
		emitter = model.EmitterFunc(func(model.Event) {})
	}
	return &StatusMonitor{
		logger:    logger.Named("status-monitor"),
		query:     query,
		canceller: canceller,
		emitter:   emitter,
		stats:     opts.Stats,
		interval:  opts.Interval,
		entries:   make(map[string]*entry),
		stop:      make(chan struct{}),
	}
}

// SetPrimary tracks p as the primary server program. processName is the
// process to watch when it differs from the executable that is started; empty
// means the name derived from p.Path. A previous primary is replaced.
func (m *StatusMonitor) SetPrimary(p model.LaunchProgram, processName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.primaryID != "" && m.primaryID != p.ID {
		delete(m.entries, m.primaryID)
	}
	m.primaryID = p.ID
	m.track(p, processName, true)
}

// SetPrograms replaces the tracked auto-launch programs with the enabled
// entries of programs. Programs already tracked keep their status.
func (m *StatusMonitor) SetPrograms(programs []model.LaunchProgram) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keep := make(map[string]bool)
	for _, p := range model.EnabledPrograms(programs) {
		if p.ID == m.primaryID {
			continue
		}
		keep[p.ID] = true
		m.track(p, "", false)
	}
	for id, e := range m.entries {
		if !e.primary && !keep[id] {
			delete(m.entries, id)
		}
	}
}

func (m *StatusMonitor) track(p model.LaunchProgram, processName string, primary bool) {
	if processName == "" {
		processName = process.ProcessNameFromPath(p.Path)
	}
	if e, ok := m.entries[p.ID]; ok {
		e.program = p
		e.processName = processName
		e.primary = primary
		return
	}
	m.entries[p.ID] = &entry{
		program:     p,
		processName: processName,
		primary:     primary,
		status:      model.ProgramStatusStopped,
	}
}

// Start polls once and then keeps polling every interval until ctx is done
// or Stop is called
func (m *StatusMonitor) Start(ctx context.Context) {
	m.logger.Info("Starting status monitor", zap.Duration("interval", m.interval))

	m.Poll(ctx)

	m.wg.Add(1)
	go m.pollLoop(ctx)
}

// Stop stops the poll loop and waits for it to exit
func (m *StatusMonitor) Stop() {
	m.stopOnce.Do(func() {
		m.logger.Info("Stopping status monitor")
		close(m.stop)
	})
	m.wg.Wait()
}

func (m *StatusMonitor) pollLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.Poll(ctx)
		}
	}
}

// Poll queries the process table once for every tracked program that is not
// Pending and applies the resulting transitions
func (m *StatusMonitor) Poll(ctx context.Context) {
	type check struct {
		id      string
		name    string
		gen     uint64
		running bool
	}

	m.mu.Lock()
	checks := make([]check, 0, len(m.entries))
	for id, e := range m.entries {
		if e.status == model.ProgramStatusPending {
			continue
		}
		checks = append(checks, check{id: id, name: e.processName, gen: e.gen})
	}
	m.mu.Unlock()

	for i := range checks {
		checks[i].running = m.isRunning(ctx, checks[i].name)
	}

	var events []model.Event
	m.mu.Lock()
	for _, c := range checks {
		e, ok := m.entries[c.id]
		if !ok || e.status == model.ProgramStatusPending {
			continue
		}
		// The status moved while the query ran; the observation predates it.
		if e.gen != c.gen {
			continue
		}
		events = append(events, m.observeLocked(e, c.running)...)
	}
	m.mu.Unlock()

	m.emitAll(events)
}

// isRunning treats query failures as "not running"
func (m *StatusMonitor) isRunning(ctx context.Context, name string) bool {
	if name == "" {
		return false
	}
	running, err := m.query.IsRunning(ctx, name)
	if err != nil {
		m.logger.Debug("Process query failed",
			zap.String("process", name),
			zap.Error(err))
		return false
	}
	return running
}

// observeLocked applies one poll observation
func (m *StatusMonitor) observeLocked(e *entry, running bool) []model.Event {
	next := e.status
	switch e.status {
	case model.ProgramStatusRunning:
		if !running {
			next = model.ProgramStatusCrashed
		}
	case model.ProgramStatusStopped, model.ProgramStatusCrashed:
		if running {
			next = model.ProgramStatusRunning
		}
	}
	if next == e.status {
		return nil
	}

	events := m.setStatusLocked(e, next)
	if next != model.ProgramStatusCrashed {
		return events
	}

	now := time.Now()
	m.logger.Warn("Program crashed",
		zap.String("program_id", e.program.ID),
		zap.String("process", e.processName),
		zap.Bool("primary", e.primary))
	events = append(events, model.ProgramCrashed{
		ProgramID:   e.program.ID,
		Name:        e.program.Name,
		ProcessName: e.processName,
		Primary:     e.primary,
		Timestamp:   now,
	})
	if e.primary {
		events = append(events, model.PrimaryCrashed{
			ProgramID:   e.program.ID,
			Name:        e.program.Name,
			ProcessName: e.processName,
			Timestamp:   now,
		})
	}
	return events
}

// setStatusLocked moves e to status and returns the StatusChanged event, or
// nothing when the status did not change
func (m *StatusMonitor) setStatusLocked(e *entry, status model.ProgramStatus) []model.Event {
	if status != model.ProgramStatusPending {
		e.secondsRemaining = 0
	}
	if e.status == status {
		return nil
	}
	from := e.status
	e.status = status
	e.gen++

	m.logger.Debug("Status changed",
		zap.String("program_id", e.program.ID),
		zap.String("from", string(from)),
		zap.String("to", string(status)))

	return []model.Event{model.StatusChanged{
		ProgramID: e.program.ID,
		Name:      e.program.Name,
		From:      from,
		To:        status,
		Timestamp: time.Now(),
	}}
}

// HandleEvent consumes scheduler notifications. It implements model.Emitter
// so it can be subscribed to the event bus directly.
//
// Progress is applied only while the canceller still reports the countdown,
// which is checked with the monitor lock held; a Canceller must not call back
// into the monitor.
func (m *StatusMonitor) HandleEvent(event model.Event) {
	var events []model.Event

	m.mu.Lock()
	switch ev := event.(type) {
	case model.CountdownProgress:
		e, ok := m.entries[ev.ProgramID]
		if !ok {
			break
		}
		// Progress queued before a cancel must not revive the countdown.
		if m.canceller != nil && !m.canceller.IsCounting(ev.ProgramID) {
			m.logger.Debug("Ignoring progress for inactive countdown",
				zap.String("program_id", ev.ProgramID))
			break
		}
		events = m.setStatusLocked(e, model.ProgramStatusPending)
		e.secondsRemaining = ev.SecondsRemaining
	case model.LaunchResult:
		e, ok := m.entries[ev.ProgramID]
		switch {
		case !ok:
		case ev.Success:
			events = m.setStatusLocked(e, model.ProgramStatusRunning)
		case e.status == model.ProgramStatusPending:
			// A failed manual launch leaves Crashed untouched.
			events = m.setStatusLocked(e, model.ProgramStatusStopped)
		}
	case model.AllCancelled:
		for _, e := range m.entries {
			if e.status == model.ProgramStatusPending {
				events = append(events, m.setStatusLocked(e, model.ProgramStatusStopped)...)
			}
		}
	}
	m.mu.Unlock()

	m.emitAll(events)
}

// Emit implements model.Emitter
func (m *StatusMonitor) Emit(event model.Event) {
	m.HandleEvent(event)
}

// LaunchNow starts a Stopped or Crashed program immediately. The attempt
// follows the same rules as an automatic launch and its result is emitted.
func (m *StatusMonitor) LaunchNow(ctx context.Context, programID string) (model.LaunchResult, error) {
	m.mu.Lock()
	e, ok := m.entries[programID]
	if !ok {
		m.mu.Unlock()
		return model.LaunchResult{}, ErrProgramNotFound
	}
	if e.status != model.ProgramStatusStopped && e.status != model.ProgramStatusCrashed {
		status := e.status
		m.mu.Unlock()
		return model.LaunchResult{}, fmt.Errorf("%w: cannot launch %s while %s", ErrInvalidState, programID, status)
	}
	program := e.program
	m.mu.Unlock()

	m.logger.Info("Manual launch", zap.String("program_id", programID))
	result := scheduler.Attempt(ctx, m.query, program)

	var events []model.Event
	if result.Success {
		m.mu.Lock()
		if e, ok := m.entries[programID]; ok && e.status != model.ProgramStatusPending {
			events = m.setStatusLocked(e, model.ProgramStatusRunning)
		}
		m.mu.Unlock()
	}
	m.emitter.Emit(result)
	m.emitAll(events)

	if !result.Success {
		return result, fmt.Errorf("%w: %s", ErrLaunchFailed, result.Reason)
	}
	return result, nil
}

// CancelPendingLaunch cancels the countdown of a Pending program
func (m *StatusMonitor) CancelPendingLaunch(programID string) error {
	m.mu.Lock()
	e, ok := m.entries[programID]
	if !ok {
		m.mu.Unlock()
		return ErrProgramNotFound
	}
	if e.status != model.ProgramStatusPending {
		status := e.status
		m.mu.Unlock()
		return fmt.Errorf("%w: %s is %s, not pending", ErrInvalidState, programID, status)
	}
	m.mu.Unlock()

	if m.canceller != nil {
		m.canceller.CancelOne(programID)
	}

	m.mu.Lock()
	var events []model.Event
	if e, ok := m.entries[programID]; ok && e.status == model.ProgramStatusPending {
		events = m.setStatusLocked(e, model.ProgramStatusStopped)
	}
	m.mu.Unlock()

	m.logger.Info("Cancelled pending launch", zap.String("program_id", programID))
	m.emitAll(events)
	return nil
}

// StopNow force-terminates every process sharing the name of a Running
// program. The primary server program cannot be stopped here.
func (m *StatusMonitor) StopNow(ctx context.Context, programID string) (int, error) {
	m.mu.Lock()
	e, ok := m.entries[programID]
	if !ok {
		m.mu.Unlock()
		return 0, ErrProgramNotFound
	}
	if e.primary {
		m.mu.Unlock()
		return 0, ErrPrimaryProtected
	}
	if e.status != model.ProgramStatusRunning {
		status := e.status
		m.mu.Unlock()
		return 0, fmt.Errorf("%w: %s is %s, not running", ErrInvalidState, programID, status)
	}
	name := e.processName
	m.mu.Unlock()

	killed, err := m.query.KillByName(ctx, name)
	if err != nil {
		return killed, fmt.Errorf("failed to stop %s: %w", programID, err)
	}

	// A deliberate stop is not a crash.
	m.mu.Lock()
	var events []model.Event
	if e, ok := m.entries[programID]; ok && e.status == model.ProgramStatusRunning {
		events = m.setStatusLocked(e, model.ProgramStatusStopped)
	}
	m.mu.Unlock()

	m.logger.Info("Stopped program",
		zap.String("program_id", programID),
		zap.String("process", name),
		zap.Int("killed", killed))
	m.emitAll(events)
	return killed, nil
}

// Focus brings the main window of a Running program to the foreground
func (m *StatusMonitor) Focus(ctx context.Context, programID string) (bool, error) {
	m.mu.Lock()
	e, ok := m.entries[programID]
	if !ok {
		m.mu.Unlock()
		return false, ErrProgramNotFound
	}
	name := e.processName
	m.mu.Unlock()

	h, err := m.query.FindFirst(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to find %s: %w", name, err)
	}
	if h == nil {
		return false, nil
	}
	return m.query.BringToForeground(h), nil
}

// State returns the current state of one program
func (m *StatusMonitor) State(programID string) (model.ProgramState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[programID]
	if !ok {
		return model.ProgramState{}, false
	}
	return e.state(), true
}

// PendingCount returns how many programs are counting down
func (m *StatusMonitor) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.entries {
		if e.status == model.ProgramStatusPending {
			n++
		}
	}
	return n
}

// Snapshot returns every tracked program, primary first and then by slot.
// Running programs carry PID and resource usage when a StatsProvider is set.
func (m *StatusMonitor) Snapshot(ctx context.Context) []model.ProgramState {
	m.mu.Lock()
	states := make([]model.ProgramState, 0, len(m.entries))
	for _, e := range m.entries {
		states = append(states, e.state())
	}
	m.mu.Unlock()

	sort.Slice(states, func(i, j int) bool {
		if states[i].Primary != states[j].Primary {
			return states[i].Primary
		}
		si, iok := model.SlotNumber(states[i].ID)
		sj, jok := model.SlotNumber(states[j].ID)
		if iok && jok && si != sj {
			return si < sj
		}
		return states[i].ID < states[j].ID
	})

	if m.stats == nil {
		return states
	}
	for i := range states {
		if states[i].Status == model.ProgramStatusRunning {
			m.fillStats(ctx, &states[i])
		}
	}
	return states
}

func (m *StatusMonitor) fillStats(ctx context.Context, state *model.ProgramState) {
	h, err := m.query.FindFirst(ctx, state.ProcessName)
	if err != nil || h == nil {
		return
	}
	state.PID = h.PID

	stats, err := m.stats.Stats(ctx, h.PID)
	if err != nil {
		m.logger.Debug("Failed to read process stats",
			zap.String("program_id", state.ID),
			zap.Int32("pid", h.PID),
			zap.Error(err))
		return
	}
	state.MemoryRSS = stats.MemoryRSS
	state.CPUPercent = stats.CPUPercent
}

func (m *StatusMonitor) emitAll(events []model.Event) {
	for _, e := range events {
		m.emitter.Emit(e)
	}
}
