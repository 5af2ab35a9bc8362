package monitor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/laudenbachm/mbbs-launcher/internal/model"
	"github.com/laudenbachm/mbbs-launcher/internal/process"
	"github.com/laudenbachm/mbbs-launcher/internal/testutil"
)

type recordingCanceller struct {
	mu  sync.Mutex
	ids []string
}

func (c *recordingCanceller) CancelOne(programID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, programID)
}

// IsCounting reports every program as counting until it is cancelled
func (c *recordingCanceller) IsCounting(programID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range c.ids {
		if id == programID {
			return false
		}
	}
	return true
}

func (c *recordingCanceller) Cancelled() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ids...)
}

type fixedStats struct{}

func (fixedStats) Stats(ctx context.Context, pid int32) (*process.Stats, error) {
	return &process.Stats{PID: pid, MemoryRSS: 4096, CPUPercent: 1.5}, nil
}

func newTestMonitor(t *testing.T) (*StatusMonitor, *testutil.FakeQuery, *recordingCanceller, *testutil.EventRecorder) {
	t.Helper()
	query := testutil.NewFakeQuery()
	canceller := &recordingCanceller{}
	rec := &testutil.EventRecorder{}
	m := NewStatusMonitor(query, canceller, rec, Options{Interval: 10 * time.Millisecond}, zap.NewNop())

	m.SetPrimary(model.LaunchProgram{ID: "server", Name: "Worldgroup", Path: `C:\BBSV10\wgsappgo.exe`, Enabled: true}, "wgserver")
	m.SetPrograms([]model.LaunchProgram{
		{ID: "slot1", Name: "Ghost", Path: `C:\BBSV10\ghost3.exe`, DelaySeconds: 30, Enabled: true},
		{ID: "slot2", Name: "Mailer", Path: "/opt/mail/mailer", DelaySeconds: 5, Enabled: true},
		{ID: "slot3", Name: "Disabled", Path: "/opt/off/off", Enabled: false},
	})
	return m, query, canceller, rec
}

func (m *StatusMonitor) forceStatus(id string, status model.ProgramStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id].status = status
}

func status(t *testing.T, m *StatusMonitor, id string) model.ProgramStatus {
	t.Helper()
	s, ok := m.State(id)
	require.True(t, ok, "program %s not tracked", id)
	return s.Status
}

func TestStatusMonitor_TracksEnabledPrograms(t *testing.T) {
	m, _, _, _ := newTestMonitor(t)

	_, ok := m.State("slot3")
	assert.False(t, ok)

	states := m.Snapshot(context.Background())
	require.Len(t, states, 3)
	assert.Equal(t, "server", states[0].ID)
	assert.True(t, states[0].Primary)
	assert.Equal(t, "slot1", states[1].ID)
	assert.Equal(t, "ghost3", states[1].ProcessName)
	assert.Equal(t, "slot2", states[2].ID)
	for _, s := range states {
		assert.Equal(t, model.ProgramStatusStopped, s.Status)
	}
}

func TestStatusMonitor_TransitionTable(t *testing.T) {
	tests := []struct {
		name    string
		from    model.ProgramStatus
		running bool
		want    model.ProgramStatus
	}{
		{"pending running", model.ProgramStatusPending, true, model.ProgramStatusPending},
		{"pending absent", model.ProgramStatusPending, false, model.ProgramStatusPending},
		{"running running", model.ProgramStatusRunning, true, model.ProgramStatusRunning},
		{"running absent", model.ProgramStatusRunning, false, model.ProgramStatusCrashed},
		{"stopped running", model.ProgramStatusStopped, true, model.ProgramStatusRunning},
		{"stopped absent", model.ProgramStatusStopped, false, model.ProgramStatusStopped},
		{"crashed running", model.ProgramStatusCrashed, true, model.ProgramStatusRunning},
		{"crashed absent", model.ProgramStatusCrashed, false, model.ProgramStatusCrashed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, query, _, _ := newTestMonitor(t)
			m.forceStatus("slot1", tt.from)
			query.SetRunning("ghost3", tt.running)

			m.Poll(context.Background())

			assert.Equal(t, tt.want, status(t, m, "slot1"))
		})
	}
}

func TestStatusMonitor_CrashIsSticky(t *testing.T) {
	m, query, _, rec := newTestMonitor(t)
	ctx := context.Background()

	query.SetRunning("ghost3", true)
	m.Poll(ctx)
	require.Equal(t, model.ProgramStatusRunning, status(t, m, "slot1"))

	query.SetRunning("ghost3", false)
	for i := 0; i < 5; i++ {
		m.Poll(ctx)
		assert.Equal(t, model.ProgramStatusCrashed, status(t, m, "slot1"))
	}
	assert.Equal(t, 1, rec.Count(model.EventProgramCrashed))
	assert.Zero(t, rec.Count(model.EventPrimaryCrashed))

	state, _ := m.State("slot1")
	assert.Equal(t, "CRASHED", state.StatusText())

	query.SetRunning("ghost3", true)
	m.Poll(ctx)
	assert.Equal(t, model.ProgramStatusRunning, status(t, m, "slot1"))
}

func TestStatusMonitor_PrimaryCrash(t *testing.T) {
	m, query, _, rec := newTestMonitor(t)
	ctx := context.Background()

	query.SetRunning("wgserver", true)
	m.Poll(ctx)
	query.SetRunning("wgserver", false)
	m.Poll(ctx)

	assert.Equal(t, model.ProgramStatusCrashed, status(t, m, "server"))
	require.Equal(t, 1, rec.Count(model.EventPrimaryCrashed))

	var crashed model.ProgramCrashed
	for _, e := range rec.Events() {
		if c, ok := e.(model.ProgramCrashed); ok {
			crashed = c
		}
	}
	assert.True(t, crashed.Primary)
	assert.Equal(t, "wgserver", crashed.ProcessName)
}

func TestStatusMonitor_QueryErrorMeansNotRunning(t *testing.T) {
	m, query, _, _ := newTestMonitor(t)
	ctx := context.Background()

	query.SetRunning("mailer", true)
	m.Poll(ctx)
	require.Equal(t, model.ProgramStatusRunning, status(t, m, "slot2"))

	query.FailQueries(testutil.ErrFake)
	m.Poll(ctx)
	assert.Equal(t, model.ProgramStatusCrashed, status(t, m, "slot2"))
}

func TestStatusMonitor_StatusChangedEvents(t *testing.T) {
	m, query, _, rec := newTestMonitor(t)

	query.SetRunning("mailer", true)
	m.Poll(context.Background())
	m.Poll(context.Background())

	var changes []model.StatusChanged
	for _, e := range rec.Events() {
		if c, ok := e.(model.StatusChanged); ok {
			changes = append(changes, c)
		}
	}
	require.Len(t, changes, 1)
	assert.Equal(t, "slot2", changes[0].ProgramID)
	assert.Equal(t, model.ProgramStatusStopped, changes[0].From)
	assert.Equal(t, model.ProgramStatusRunning, changes[0].To)
}

func TestStatusMonitor_SchedulerHandOff(t *testing.T) {
	m, query, _, _ := newTestMonitor(t)

	m.HandleEvent(model.CountdownProgress{ProgramID: "slot1", SecondsRemaining: 65, TotalSeconds: 70})
	state, _ := m.State("slot1")
	assert.Equal(t, model.ProgramStatusPending, state.Status)
	assert.Equal(t, 65, state.SecondsRemaining)
	assert.Equal(t, "Launch: 1:05", state.StatusText())

	// Polls leave pending programs alone even when the process exists.
	query.SetRunning("ghost3", true)
	m.Poll(context.Background())
	assert.Equal(t, model.ProgramStatusPending, status(t, m, "slot1"))
	assert.Equal(t, 1, m.PendingCount())

	m.HandleEvent(model.LaunchResult{ProgramID: "slot1", Success: true})
	state, _ = m.State("slot1")
	assert.Equal(t, model.ProgramStatusRunning, state.Status)
	assert.Zero(t, state.SecondsRemaining)

	m.HandleEvent(model.CountdownProgress{ProgramID: "slot2", SecondsRemaining: 3})
	m.HandleEvent(model.LaunchResult{ProgramID: "slot2", Success: false, Reason: "file not found"})
	assert.Equal(t, model.ProgramStatusStopped, status(t, m, "slot2"))

	m.HandleEvent(model.CountdownProgress{ProgramID: "slot2", SecondsRemaining: 3})
	m.HandleEvent(model.AllCancelled{})
	assert.Equal(t, model.ProgramStatusStopped, status(t, m, "slot2"))
	assert.Equal(t, model.ProgramStatusRunning, status(t, m, "slot1"))
	assert.Zero(t, m.PendingCount())

	// Unknown programs are ignored.
	m.HandleEvent(model.CountdownProgress{ProgramID: "slot9", SecondsRemaining: 3})
	_, ok := m.State("slot9")
	assert.False(t, ok)
}

func TestStatusMonitor_FailedLaunchKeepsCrashed(t *testing.T) {
	m, _, _, _ := newTestMonitor(t)
	m.forceStatus("slot1", model.ProgramStatusCrashed)

	m.HandleEvent(model.LaunchResult{ProgramID: "slot1", Success: false})
	assert.Equal(t, model.ProgramStatusCrashed, status(t, m, "slot1"))
}

func TestStatusMonitor_LaunchNow(t *testing.T) {
	query := testutil.NewFakeQuery()
	rec := &testutil.EventRecorder{}
	m := NewStatusMonitor(query, nil, rec, Options{}, zap.NewNop())

	path := filepath.Join(t.TempDir(), "tool")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	m.SetPrograms([]model.LaunchProgram{{ID: "slot1", Name: "Tool", Path: path, Enabled: true}})
	ctx := context.Background()

	result, err := m.LaunchNow(ctx, "slot1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, model.ProgramStatusRunning, status(t, m, "slot1"))
	require.Len(t, query.Spawns(), 1)
	require.Len(t, rec.Results("slot1"), 1)

	_, err = m.LaunchNow(ctx, "slot1")
	assert.ErrorIs(t, err, ErrInvalidState)

	// Launching a crashed program is allowed.
	m.forceStatus("slot1", model.ProgramStatusCrashed)
	query.SetRunning("tool", false)
	_, err = m.LaunchNow(ctx, "slot1")
	require.NoError(t, err)
	assert.Len(t, query.Spawns(), 2)

	m.forceStatus("slot1", model.ProgramStatusPending)
	_, err = m.LaunchNow(ctx, "slot1")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = m.LaunchNow(ctx, "missing")
	assert.ErrorIs(t, err, ErrProgramNotFound)
}

func TestStatusMonitor_LaunchNowMissingFile(t *testing.T) {
	m, query, _, _ := newTestMonitor(t)

	result, err := m.LaunchNow(context.Background(), "slot2")
	assert.ErrorIs(t, err, ErrLaunchFailed)
	assert.False(t, result.Success)
	assert.Equal(t, model.LaunchOutcomeFileNotFound, result.Outcome)
	assert.Equal(t, model.ProgramStatusStopped, status(t, m, "slot2"))
	assert.Empty(t, query.Spawns())
}

func TestStatusMonitor_CancelPendingLaunch(t *testing.T) {
	m, _, canceller, _ := newTestMonitor(t)

	err := m.CancelPendingLaunch("slot1")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Empty(t, canceller.Cancelled())

	m.HandleEvent(model.CountdownProgress{ProgramID: "slot1", SecondsRemaining: 10})
	require.NoError(t, m.CancelPendingLaunch("slot1"))
	assert.Equal(t, []string{"slot1"}, canceller.Cancelled())
	assert.Equal(t, model.ProgramStatusStopped, status(t, m, "slot1"))

	assert.ErrorIs(t, m.CancelPendingLaunch("nope"), ErrProgramNotFound)
}

func TestStatusMonitor_LateProgressAfterCancel(t *testing.T) {
	m, _, _, rec := newTestMonitor(t)

	m.HandleEvent(model.CountdownProgress{ProgramID: "slot1", SecondsRemaining: 10})
	require.NoError(t, m.CancelPendingLaunch("slot1"))
	require.Equal(t, model.ProgramStatusStopped, status(t, m, "slot1"))

	// Progress emitted before the cancel but delivered after it.
	m.HandleEvent(model.CountdownProgress{ProgramID: "slot1", SecondsRemaining: 9})
	m.HandleEvent(model.CountdownProgress{ProgramID: "slot1", SecondsRemaining: 8})

	state, _ := m.State("slot1")
	assert.Equal(t, model.ProgramStatusStopped, state.Status)
	assert.Zero(t, state.SecondsRemaining)
	assert.Zero(t, m.PendingCount())

	changes := 0
	for _, e := range rec.Events() {
		if sc, ok := e.(model.StatusChanged); ok && sc.ProgramID == "slot1" {
			changes++
		}
	}
	assert.Equal(t, 2, changes, "pending then stopped, nothing after")

	assert.ErrorIs(t, m.CancelPendingLaunch("slot1"), ErrInvalidState)
}

// slowQuery blocks the first IsRunning call for name until release is closed
type slowQuery struct {
	*testutil.FakeQuery
	name    string
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newSlowQuery(name string) *slowQuery {
	return &slowQuery{
		FakeQuery: testutil.NewFakeQuery(),
		name:      name,
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (q *slowQuery) IsRunning(ctx context.Context, name string) (bool, error) {
	running, err := q.FakeQuery.IsRunning(ctx, name)
	if name == q.name {
		q.once.Do(func() {
			close(q.entered)
			<-q.release
		})
	}
	return running, err
}

func TestStatusMonitor_PollDropsObservationOlderThanLaunch(t *testing.T) {
	query := newSlowQuery("tool")
	rec := &testutil.EventRecorder{}
	m := NewStatusMonitor(query, nil, rec, Options{}, zap.NewNop())

	path := filepath.Join(t.TempDir(), "tool")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	m.SetPrograms([]model.LaunchProgram{{ID: "slot1", Name: "Tool", Path: path, Enabled: true}})
	ctx := context.Background()

	polled := make(chan struct{})
	go func() {
		defer close(polled)
		m.Poll(ctx)
	}()

	// The poll has seen "not running" and is parked before applying it.
	select {
	case <-query.entered:
	case <-time.After(time.Second):
		t.Fatal("poll never queried the process table")
	}

	_, err := m.LaunchNow(ctx, "slot1")
	require.NoError(t, err)
	require.Equal(t, model.ProgramStatusRunning, status(t, m, "slot1"))

	close(query.release)
	select {
	case <-polled:
	case <-time.After(time.Second):
		t.Fatal("poll did not finish")
	}

	assert.Equal(t, model.ProgramStatusRunning, status(t, m, "slot1"))
	assert.Zero(t, rec.Count(model.EventProgramCrashed))

	// The next poll sees the live process.
	m.Poll(ctx)
	assert.Equal(t, model.ProgramStatusRunning, status(t, m, "slot1"))
}

func TestStatusMonitor_PollDropsObservationOlderThanServerLaunch(t *testing.T) {
	query := newSlowQuery("wgserver")
	rec := &testutil.EventRecorder{}
	m := NewStatusMonitor(query, nil, rec, Options{}, zap.NewNop())
	m.SetPrimary(model.LaunchProgram{ID: "server", Name: "Worldgroup", Path: `C:\BBSV10\wgsappgo.exe`, Enabled: true}, "wgserver")
	ctx := context.Background()

	polled := make(chan struct{})
	go func() {
		defer close(polled)
		m.Poll(ctx)
	}()
	<-query.entered

	query.SetRunning("wgserver", true)
	m.HandleEvent(model.LaunchResult{ProgramID: "server", Success: true})

	close(query.release)
	<-polled

	assert.Equal(t, model.ProgramStatusRunning, status(t, m, "server"))
	assert.Zero(t, rec.Count(model.EventProgramCrashed))
	assert.Zero(t, rec.Count(model.EventPrimaryCrashed))
}

func TestStatusMonitor_StopNow(t *testing.T) {
	m, query, _, rec := newTestMonitor(t)
	ctx := context.Background()

	_, err := m.StopNow(ctx, "slot2")
	assert.ErrorIs(t, err, ErrInvalidState)

	query.SetInstances("mailer", 2)
	query.SetRunning("wgserver", true)
	m.Poll(ctx)

	killed, err := m.StopNow(ctx, "slot2")
	require.NoError(t, err)
	assert.Equal(t, 2, killed)
	assert.Equal(t, []string{"mailer"}, query.Kills())
	assert.Equal(t, model.ProgramStatusStopped, status(t, m, "slot2"))

	// The next poll must not report a crash for a deliberate stop.
	m.Poll(ctx)
	assert.Equal(t, model.ProgramStatusStopped, status(t, m, "slot2"))
	assert.Zero(t, rec.Count(model.EventProgramCrashed))

	_, err = m.StopNow(ctx, "server")
	assert.ErrorIs(t, err, ErrPrimaryProtected)
	assert.Equal(t, model.ProgramStatusRunning, status(t, m, "server"))
}

func TestStatusMonitor_Focus(t *testing.T) {
	m, query, _, _ := newTestMonitor(t)
	ctx := context.Background()

	ok, err := m.Focus(ctx, "slot1")
	require.NoError(t, err)
	assert.False(t, ok)

	query.SetRunning("ghost3", true)
	ok, err = m.Focus(ctx, "slot1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStatusMonitor_SnapshotStats(t *testing.T) {
	query := testutil.NewFakeQuery()
	m := NewStatusMonitor(query, nil, nil, Options{Stats: fixedStats{}}, zap.NewNop())
	m.SetPrograms([]model.LaunchProgram{
		{ID: "slot10", Name: "Ten", Path: "/opt/ten", Enabled: true},
		{ID: "slot2", Name: "Two", Path: "/opt/two", Enabled: true},
	})
	query.SetRunning("two", true)
	ctx := context.Background()
	m.Poll(ctx)

	states := m.Snapshot(ctx)
	require.Len(t, states, 2)
	assert.Equal(t, "slot2", states[0].ID)
	assert.Equal(t, "slot10", states[1].ID)
	assert.Equal(t, int32(1), states[0].PID)
	assert.Equal(t, uint64(4096), states[0].MemoryRSS)
	assert.Zero(t, states[1].PID)
}

func TestStatusMonitor_StartPollsUntilStopped(t *testing.T) {
	m, query, _, _ := newTestMonitor(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx)
	defer m.Stop()

	query.SetRunning("wgserver", true)
	require.Eventually(t, func() bool {
		return status(t, m, "server") == model.ProgramStatusRunning
	}, time.Second, 5*time.Millisecond)

	m.Stop()
	m.Stop()
}
