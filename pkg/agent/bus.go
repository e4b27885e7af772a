package agent

import (
	"context"
	"log/slog"
	"sync"

	"github.com/codeready-toolchain/workbench/pkg/models"
)

// EventKind identifies the agent bus event types.
type EventKind string

const (
	KindMessageAdded   EventKind = "message.added"
	KindMessageUpdated EventKind = "message.updated"
	KindSessionLoaded  EventKind = "session.loaded"
)

// EventOrigin marks an event copy a consumer has already handled
// through another delivery path. Consumers wired to both the runtime
// listener and the bus use it to process each event exactly once.
type EventOrigin string

const (
	// OriginListener tags a bus copy of an event that was already
	// handed synchronously to the runtime's registered listener.
	OriginListener EventOrigin = "listener"
	// OriginTimeline tags the timeline service's echo of a client
	// message it has already persisted and broadcast.
	OriginTimeline EventOrigin = "timeline"
)

// Event is one agent bus notification. Message is set for the message
// kinds; SessionLoaded carries only the session id.
type Event struct {
	Kind      EventKind
	SessionID string
	Message   *models.StoredMessage
	Origin    EventOrigin
}

// Handler receives bus events. Handlers run on the bus dispatch
// goroutine and must not block for long.
type Handler func(Event)

const busBuffer = 256

// Bus is the in-process agent event bus. Publish enqueues without
// blocking; a single dispatch goroutine delivers events to handlers in
// publish order, so handlers never run inside the publisher's critical
// section.
type Bus struct {
	events chan Event

	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler

	cancel context.CancelFunc
	done   chan struct{}
}

// NewBus creates an agent event bus. Call Start before relying on
// delivery; events published earlier are buffered.
func NewBus() *Bus {
	return &Bus{
		events:   make(chan Event, busBuffer),
		handlers: make(map[int]Handler),
		done:     make(chan struct{}),
	}
}

// Start launches the dispatch goroutine.
func (b *Bus) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)
	go b.run(ctx)
	slog.Info("Agent event bus started")
}

// Stop terminates dispatch and waits for the goroutine to exit.
// Buffered events that were not yet delivered are discarded.
func (b *Bus) Stop() {
	if b.cancel == nil {
		return
	}
	b.cancel()
	<-b.done
	slog.Info("Agent event bus stopped")
}

// Publish enqueues an event. When the buffer is saturated the event is
// dropped with a warning; timeline consumers reconcile via the read
// path.
func (b *Bus) Publish(ev Event) {
	select {
	case b.events <- ev:
	default:
		slog.Warn("Agent event bus full, dropping event",
			"kind", ev.Kind, "session_id", ev.SessionID)
	}
}

// Subscribe registers a handler for all event kinds and returns an
// unsubscribe function.
func (b *Bus) Subscribe(fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

func (b *Bus) run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.events:
			b.dispatch(ev)
		}
	}
}

func (b *Bus) dispatch(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, fn := range b.handlers {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Agent event handler panicked",
						"kind", ev.Kind, "session_id", ev.SessionID, "panic", r)
				}
			}()
			fn(ev)
		}()
	}
}
