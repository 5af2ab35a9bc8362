// Package notify fans launcher events out to subscribers and exports them.
package notify

import (
	"sync"

	"go.uber.org/zap"

	"github.com/laudenbachm/mbbs-launcher/internal/model"
)

type subscription struct {
	id      int
	emitter model.Emitter
}

// Bus delivers events to subscribers on a single dispatch goroutine, in the
// order they were emitted. Emit never blocks, so subscribers may call back
// into the scheduler or the monitor.
type Bus struct {
	logger *zap.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []model.Event
	subs   []subscription
	nextID int
	busy   bool
	closed bool

	done chan struct{}
}

// NewBus creates a bus and starts its dispatcher
func NewBus(logger *zap.Logger) *Bus {
	b := &Bus{
		logger: logger.Named("event-bus"),
		done:   make(chan struct{}),
	}
	b.cond = sync.NewCond(&b.mu)
	go b.dispatch()
	return b
}

// Emit implements model.Emitter. Events emitted after Close are dropped.
func (b *Bus) Emit(event model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.queue = append(b.queue, event)
	b.cond.Broadcast()
}

// Subscribe registers an emitter and returns a function that removes it
func (b *Bus) Subscribe(emitter model.Emitter) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, emitter: emitter})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Flush blocks until every event emitted so far has been delivered
func (b *Bus) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for (len(b.queue) > 0 || b.busy) && !b.closed {
		b.cond.Wait()
	}
}

// Close delivers the queued events and stops the dispatcher
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()

	<-b.done
}

func (b *Bus) dispatch() {
	defer close(b.done)

	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		event := b.queue[0]
		b.queue[0] = nil
		b.queue = b.queue[1:]
		subs := append([]subscription(nil), b.subs...)
		b.busy = true
		b.mu.Unlock()

		for _, s := range subs {
			b.deliver(s, event)
		}

		b.mu.Lock()
		b.busy = false
		b.cond.Broadcast()
		b.mu.Unlock()
	}
}

func (b *Bus) deliver(s subscription, event model.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event subscriber panicked",
				zap.String("event", string(event.Type())),
				zap.Int("subscriber", s.id),
				zap.Any("panic", r))
		}
	}()
	s.emitter.Emit(event)
}
