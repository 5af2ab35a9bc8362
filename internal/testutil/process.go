package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/laudenbachm/mbbs-launcher/internal/model"
	"github.com/laudenbachm/mbbs-launcher/internal/process"
)

// FakeQuery is an in-memory process.Query for tests. Running processes are
// tracked by normalized name.
type FakeQuery struct {
	mu        sync.Mutex
	running   map[string]int
	nextPID   int32
	spawns    []process.SpawnRequest
	kills     []string
	spawnErr  error
	queryErr  error
	onSpawn   func(req process.SpawnRequest)
	keepAlive bool
}

// NewFakeQuery creates a fake where spawned processes stay running
func NewFakeQuery() *FakeQuery {
	return &FakeQuery{
		running:   make(map[string]int),
		nextPID:   1000,
		keepAlive: true,
	}
}

// SetRunning marks a process name as running (count 1) or absent
func (f *FakeQuery) SetRunning(name string, running bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := process.NormalizeName(name)
	if running {
		if f.running[key] == 0 {
			f.running[key] = 1
		}
		return
	}
	delete(f.running, key)
}

// SetInstances sets how many processes share a name
func (f *FakeQuery) SetInstances(name string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := process.NormalizeName(name)
	if n <= 0 {
		delete(f.running, key)
		return
	}
	f.running[key] = n
}

// FailSpawn makes every Spawn call return err
func (f *FakeQuery) FailSpawn(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spawnErr = err
}

// FailQueries makes IsRunning and FindFirst return err
func (f *FakeQuery) FailQueries(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryErr = err
}

// SpawnExits makes spawned processes not appear as running
func (f *FakeQuery) SpawnExits() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keepAlive = false
}

// OnSpawn registers a hook invoked for every Spawn call
func (f *FakeQuery) OnSpawn(fn func(req process.SpawnRequest)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSpawn = fn
}

// Spawns returns the recorded spawn requests
func (f *FakeQuery) Spawns() []process.SpawnRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]process.SpawnRequest(nil), f.spawns...)
}

// Kills returns the names passed to KillByName
func (f *FakeQuery) Kills() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.kills...)
}

// IsRunning implements process.Query
func (f *FakeQuery) IsRunning(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return false, f.queryErr
	}
	return f.running[process.NormalizeName(name)] > 0, nil
}

// FindFirst implements process.Query
func (f *FakeQuery) FindFirst(ctx context.Context, name string) (*process.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.running[process.NormalizeName(name)] == 0 {
		return nil, nil
	}
	return &process.Handle{PID: 1, Name: name}, nil
}

// Spawn implements process.Query
func (f *FakeQuery) Spawn(ctx context.Context, req process.SpawnRequest) (*process.Handle, error) {
	f.mu.Lock()
	f.spawns = append(f.spawns, req)
	hook := f.onSpawn
	err := f.spawnErr
	var h *process.Handle
	if err == nil {
		f.nextPID++
		name := process.ProcessNameFromPath(req.Path)
		if f.keepAlive {
			f.running[process.NormalizeName(name)]++
		}
		h = &process.Handle{PID: f.nextPID, Name: name}
	}
	f.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// BringToForeground implements process.Query
func (f *FakeQuery) BringToForeground(h *process.Handle) bool {
	return h != nil
}

// KillByName implements process.Query
func (f *FakeQuery) KillByName(ctx context.Context, name string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kills = append(f.kills, name)
	key := process.NormalizeName(name)
	n := f.running[key]
	delete(f.running, key)
	return n, nil
}

// ErrFake is a generic error for injecting failures
var ErrFake = errors.New("fake failure")

// EventRecorder collects emitted events in order. It implements model.Emitter.
type EventRecorder struct {
	mu     sync.Mutex
	events []model.Event
}

// Emit implements model.Emitter
func (r *EventRecorder) Emit(event model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of everything recorded so far
func (r *EventRecorder) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

// Progress returns the recorded countdown ticks for one program
func (r *EventRecorder) Progress(programID string) []model.CountdownProgress {
	var out []model.CountdownProgress
	for _, e := range r.Events() {
		if p, ok := e.(model.CountdownProgress); ok && p.ProgramID == programID {
			out = append(out, p)
		}
	}
	return out
}

// Results returns the recorded launch results, optionally for one program
func (r *EventRecorder) Results(programID string) []model.LaunchResult {
	var out []model.LaunchResult
	for _, e := range r.Events() {
		if res, ok := e.(model.LaunchResult); ok && (programID == "" || res.ProgramID == programID) {
			out = append(out, res)
		}
	}
	return out
}

// Count returns how many events of a type were recorded
func (r *EventRecorder) Count(t model.EventType) int {
	n := 0
	for _, e := range r.Events() {
		if e.Type() == t {
			n++
		}
	}
	return n
}
