package toolexec

import (
	"log/slog"
	"sync"

	"github.com/codeready-toolchain/workbench/pkg/models"
)

// EventKind identifies a lifecycle event emitted by the Manager.
type EventKind string

const (
	EventCreated             EventKind = "created"
	EventUpdated             EventKind = "updated"
	EventCompleted           EventKind = "completed"
	EventError               EventKind = "error"
	EventAborted             EventKind = "aborted"
	EventPermissionRequested EventKind = "permission_requested"
	EventPermissionResolved  EventKind = "permission_resolved"
	EventPreviewGenerated    EventKind = "preview_generated"
)

// Event carries the post-mutation record(s) of the operation that
// produced it. Execution is set for every kind; Permission is set for
// the two permission kinds; Preview is set on PreviewGenerated, and on
// Completed when a preview exists at emission time.
type Event struct {
	Kind       EventKind
	Execution  *models.ToolExecution
	Permission *models.PermissionRequest
	Preview    *models.Preview
}

// Handler receives manager events. Handlers run synchronously on the
// emitting goroutine and must not call mutating manager operations;
// a handler that needs to mutate schedules its own work.
type Handler func(Event)

// subscribers holds per-kind handler registrations for the Manager.
type subscribers struct {
	mu     sync.RWMutex
	nextID int
	byKind map[EventKind]map[int]Handler
}

func newSubscribers() *subscribers {
	return &subscribers{byKind: make(map[EventKind]map[int]Handler)}
}

// add registers a handler for one event kind and returns an
// unsubscribe function. Unsubscribing twice is a no-op.
func (s *subscribers) add(kind EventKind, fn Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	if s.byKind[kind] == nil {
		s.byKind[kind] = make(map[int]Handler)
	}
	s.byKind[kind][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.byKind[kind], id)
	}
}

// dispatch invokes all handlers registered for the event's kind.
// Handler panics are recovered and logged so one misbehaving
// subscriber cannot take down the emitting operation.
func (s *subscribers) dispatch(ev Event) {
	s.mu.RLock()
	handlers := make([]Handler, 0, len(s.byKind[ev.Kind]))
	for _, fn := range s.byKind[ev.Kind] {
		handlers = append(handlers, fn)
	}
	s.mu.RUnlock()

	for _, fn := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Tool event handler panicked",
						"kind", ev.Kind, "panic", r)
				}
			}()
			fn(ev)
		}()
	}
}
