package agent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/workbench/pkg/models"
	"github.com/codeready-toolchain/workbench/pkg/toolexec"
)

// Runtime composes the session manager, the agent event bus, and the
// tool execution manager into the bridge surface the timeline service
// is wired against. It also mirrors bus message events into session
// conversation history so GetSession always reflects the conversation.
type Runtime struct {
	sessions   *Manager
	executions *toolexec.Manager
	bus        *Bus

	listenerMu sync.RWMutex
	listener   Handler

	unsubscribe func()
}

// NewRuntime creates the agent runtime bridge.
func NewRuntime(sessions *Manager, executions *toolexec.Manager, bus *Bus) *Runtime {
	return &Runtime{sessions: sessions, executions: executions, bus: bus}
}

// Start begins bus dispatch and history mirroring.
func (r *Runtime) Start(ctx context.Context) {
	r.unsubscribe = r.bus.Subscribe(r.mirrorHistory)
	r.bus.Start(ctx)
}

// Stop ends history mirroring and bus dispatch.
func (r *Runtime) Stop() {
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
	r.bus.Stop()
}

// Sessions returns the session manager.
func (r *Runtime) Sessions() *Manager {
	return r.sessions
}

// Bus returns the agent event bus.
func (r *Runtime) Bus() *Bus {
	return r.bus
}

// GetSession returns a snapshot of the session, or nil when unknown.
func (r *Runtime) GetSession(sessionID string) *Session {
	session, err := r.sessions.Get(sessionID)
	if err != nil {
		return nil
	}
	return session.Clone()
}

// GetToolExecution returns the live view of an execution, or nil when
// unknown.
func (r *Runtime) GetToolExecution(executionID string) *models.ToolExecution {
	exec, err := r.executions.GetExecution(executionID)
	if err != nil {
		return nil
	}
	return exec
}

// GetPermissionRequests returns the session's permission requests.
func (r *Runtime) GetPermissionRequests(sessionID string) []*models.PermissionRequest {
	return r.executions.GetPermissionRequestsForSession(sessionID)
}

// SubscribeAgentEvents registers a handler on the agent event bus and
// returns an unsubscribe function.
func (r *Runtime) SubscribeAgentEvents(fn Handler) func() {
	return r.bus.Subscribe(fn)
}

// SetListener registers the primary event consumer, notified
// synchronously when the runtime itself produces an event. The bus copy
// of a listener-delivered event carries OriginListener so a consumer
// wired to both paths handles it once.
func (r *Runtime) SetListener(fn Handler) {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()
	r.listener = fn
}

// notify hands the event to the registered listener and reports whether
// one consumed it.
func (r *Runtime) notify(ev Event) bool {
	r.listenerMu.RLock()
	fn := r.listener
	r.listenerMu.RUnlock()
	if fn == nil {
		return false
	}
	fn(ev)
	return true
}

// announce delivers an event through the listener first and then the
// bus. The bus copy is tagged when the listener consumed it, so
// secondary bus subscribers still see every event while the primary
// consumer never sees it twice.
func (r *Runtime) announce(ev Event) {
	if r.notify(ev) {
		ev.Origin = OriginListener
	}
	r.bus.Publish(ev)
}

// AddAssistantMessage records an assistant turn in the session history
// and announces it on the bus. toolCalls may be nil for plain text
// replies.
func (r *Runtime) AddAssistantMessage(sessionID, text string, toolCalls []models.ToolCallRef) (*models.StoredMessage, error) {
	session, err := r.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	msg := models.StoredMessage{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Timestamp: time.Now().UTC(),
		Content:   models.TextContent(text),
		ToolCalls: toolCalls,
	}
	session.UpsertMessage(msg)

	r.announce(Event{Kind: KindMessageAdded, SessionID: sessionID, Message: msg.Clone()})
	return &msg, nil
}

// LoadSession registers a rehydrated session and announces it. The
// timeline service deliberately ignores the announcement; clients pull
// history through the read path instead.
func (r *Runtime) LoadSession(session *Session) {
	r.sessions.Put(session)

	r.announce(Event{Kind: KindSessionLoaded, SessionID: session.ID})
}

// mirrorHistory keeps conversation history in sync with message events
// published by other components.
func (r *Runtime) mirrorHistory(ev Event) {
	if ev.Message == nil {
		return
	}
	switch ev.Kind {
	case KindMessageAdded, KindMessageUpdated:
		session, err := r.sessions.Get(ev.SessionID)
		if err != nil {
			return
		}
		session.UpsertMessage(*ev.Message)
	}
}
