// Package toolexec tracks the lifecycle of tool executions and their
// permission handshakes. The Manager is the in-memory owner of the
// mutable ToolExecution and PermissionRequest records; everything it
// hands out or emits is a deep copy. Durable timeline state lives in
// the timeline store, fed by subscribers of the Manager's events.
package toolexec

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/workbench/pkg/masking"
	"github.com/codeready-toolchain/workbench/pkg/models"
)

// Manager is the tool execution registry. All state maps are guarded by
// one mutex; events are queued under the lock and delivered after it is
// released, so subscribers observe events in the order the operations
// completed without ever running under the lock.
type Manager struct {
	mu                   sync.RWMutex
	executions           map[string]*models.ToolExecution
	sessionExecutions    map[string][]string
	permissions          map[string]*models.PermissionRequest
	sessionPermissions   map[string][]string
	executionPermissions map[string]string // execution id -> latest permission id
	pending              []Event

	emitMu sync.Mutex
	subs   *subscribers

	previews *PreviewRegistry
	masker   *masking.Service // nil disables redaction
}

// NewManager creates a tool execution manager. masker may be nil to
// disable secret redaction of args and results.
func NewManager(previews *PreviewRegistry, masker *masking.Service) *Manager {
	return &Manager{
		executions:           make(map[string]*models.ToolExecution),
		sessionExecutions:    make(map[string][]string),
		permissions:          make(map[string]*models.PermissionRequest),
		sessionPermissions:   make(map[string][]string),
		executionPermissions: make(map[string]string),
		subs:                 newSubscribers(),
		previews:             previews,
		masker:               masker,
	}
}

// Previews returns the preview registry the manager was built with.
func (m *Manager) Previews() *PreviewRegistry {
	return m.previews
}

// Subscribe registers a handler for one event kind and returns an
// unsubscribe function.
func (m *Manager) Subscribe(kind EventKind, fn Handler) func() {
	return m.subs.add(kind, fn)
}

// CreateExecution registers a new execution in Pending status and
// emits Created.
func (m *Manager) CreateExecution(sessionID, toolID, toolName, toolUseID string, args map[string]any) (*models.ToolExecution, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: sessionId is required", ErrInvalidInput)
	}
	if toolID == "" {
		return nil, fmt.Errorf("%w: toolId is required", ErrInvalidInput)
	}
	if toolName == "" {
		toolName = toolID
	}
	if m.masker != nil {
		args = m.masker.MaskArgs(args)
	}

	exec := &models.ToolExecution{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		ToolID:    toolID,
		ToolName:  toolName,
		ToolUseID: toolUseID,
		Args:      args,
		Status:    models.StatusPending,
		StartTime: time.Now().UTC(),
	}

	m.mu.Lock()
	m.executions[exec.ID] = exec
	m.sessionExecutions[sessionID] = append(m.sessionExecutions[sessionID], exec.ID)
	out := exec.Clone()
	m.queue(Event{Kind: EventCreated, Execution: out})
	m.mu.Unlock()
	m.flush()

	return out, nil
}

// StartExecution moves a Pending execution to Running and emits Updated.
func (m *Manager) StartExecution(id string) (*models.ToolExecution, error) {
	m.mu.Lock()
	exec, ok := m.executions[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("execution %s: %w", id, ErrNotFound)
	}
	if exec.Status != models.StatusPending {
		err := &IllegalTransitionError{ExecutionID: id, From: exec.Status, To: models.StatusRunning}
		m.mu.Unlock()
		return nil, err
	}

	exec.Status = models.StatusRunning
	out := exec.Clone()
	m.queue(Event{Kind: EventUpdated, Execution: out})
	m.mu.Unlock()
	m.flush()

	return out, nil
}

// CompleteExecution moves a Running execution to Completed, records the
// result, and emits Completed. The event carries the execution's
// preview when the registry holds one at emission time; when none
// exists yet, a later PreviewGenerated event follows the registration.
// executionTimeMs, when positive, is taken as authoritative and the end
// time is derived from it; otherwise both are computed from wall time.
func (m *Manager) CompleteExecution(id string, result any, executionTimeMs int64) (*models.ToolExecution, error) {
	if m.masker != nil {
		result = m.masker.MaskValue(result)
	}
	now := time.Now().UTC()

	m.mu.Lock()
	exec, ok := m.executions[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("execution %s: %w", id, ErrNotFound)
	}
	if exec.Status != models.StatusRunning {
		err := &IllegalTransitionError{ExecutionID: id, From: exec.Status, To: models.StatusCompleted}
		m.mu.Unlock()
		return nil, err
	}

	exec.Result = result
	finishExecution(exec, models.StatusCompleted, executionTimeMs, now)
	out := exec.Clone()
	m.queue(Event{Kind: EventCompleted, Execution: out, Preview: m.previews.GetByExecution(id)})
	m.mu.Unlock()
	m.flush()

	return out, nil
}

// FailExecution moves an execution to Error and emits Error. Legal from
// Pending, Running, and AwaitingPermission.
func (m *Manager) FailExecution(id string, execErr *models.ExecutionError) (*models.ToolExecution, error) {
	if execErr == nil || execErr.Message == "" {
		return nil, fmt.Errorf("%w: error message is required", ErrInvalidInput)
	}
	now := time.Now().UTC()

	m.mu.Lock()
	exec, ok := m.executions[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("execution %s: %w", id, ErrNotFound)
	}
	if exec.Status.IsTerminal() {
		err := &IllegalTransitionError{ExecutionID: id, From: exec.Status, To: models.StatusError}
		m.mu.Unlock()
		return nil, err
	}

	errCopy := *execErr
	exec.Error = &errCopy
	finishExecution(exec, models.StatusError, 0, now)
	out := exec.Clone()
	m.queue(Event{Kind: EventError, Execution: out})
	m.mu.Unlock()
	m.flush()

	return out, nil
}

// AbortExecution moves a Pending or Running execution to Aborted and
// emits Aborted. An execution awaiting permission is aborted by denying
// its permission request, not through this path.
func (m *Manager) AbortExecution(id string) (*models.ToolExecution, error) {
	now := time.Now().UTC()

	m.mu.Lock()
	exec, ok := m.executions[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("execution %s: %w", id, ErrNotFound)
	}
	if exec.Status != models.StatusPending && exec.Status != models.StatusRunning {
		err := &IllegalTransitionError{ExecutionID: id, From: exec.Status, To: models.StatusAborted}
		m.mu.Unlock()
		return nil, err
	}

	finishExecution(exec, models.StatusAborted, 0, now)
	out := exec.Clone()
	m.queue(Event{Kind: EventAborted, Execution: out})
	m.mu.Unlock()
	m.flush()

	return out, nil
}

// RequestPermission gates a Pending execution behind a permission
// request: the execution moves to AwaitingPermission, the request is
// linked 1:1 to it, and PermissionRequested is emitted.
func (m *Manager) RequestPermission(executionID string, args map[string]any) (*models.PermissionRequest, error) {
	if m.masker != nil {
		args = m.masker.MaskArgs(args)
	}
	now := time.Now().UTC()

	m.mu.Lock()
	exec, ok := m.executions[executionID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("execution %s: %w", executionID, ErrNotFound)
	}
	if exec.Status != models.StatusPending {
		err := &IllegalTransitionError{ExecutionID: executionID, From: exec.Status, To: models.StatusAwaitingPermission}
		m.mu.Unlock()
		return nil, err
	}

	perm := &models.PermissionRequest{
		ID:          uuid.New().String(),
		SessionID:   exec.SessionID,
		ExecutionID: executionID,
		ToolID:      exec.ToolID,
		ToolName:    exec.ToolName,
		Args:        args,
		RequestTime: now,
	}
	exec.Status = models.StatusAwaitingPermission
	exec.PermissionID = perm.ID
	m.permissions[perm.ID] = perm
	m.sessionPermissions[perm.SessionID] = append(m.sessionPermissions[perm.SessionID], perm.ID)
	m.executionPermissions[executionID] = perm.ID
	out := perm.Clone()
	m.queue(Event{Kind: EventPermissionRequested, Permission: out, Execution: exec.Clone()})
	m.mu.Unlock()
	m.flush()

	return out, nil
}

// ResolvePermission records the user's grant or deny decision and
// emits PermissionResolved. The owning execution moves to Running on
// grant, or to Error ("Permission denied") on deny. A resolved request
// is immutable; resolving twice fails with ErrAlreadyResolved. If the
// execution no longer awaits permission its status is left unchanged.
func (m *Manager) ResolvePermission(permissionID string, granted bool) (*models.PermissionRequest, error) {
	now := time.Now().UTC()

	m.mu.Lock()
	perm, ok := m.permissions[permissionID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("permission %s: %w", permissionID, ErrNotFound)
	}
	if perm.ResolvedTime != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("permission %s: %w", permissionID, ErrAlreadyResolved)
	}

	resolved := now
	perm.ResolvedTime = &resolved
	g := granted
	perm.Granted = &g

	exec := m.executions[perm.ExecutionID]
	switch {
	case exec == nil:
		slog.Warn("Permission resolved for unknown execution",
			"permission_id", permissionID, "execution_id", perm.ExecutionID)
	case exec.Status == models.StatusAwaitingPermission:
		if granted {
			exec.Status = models.StatusRunning
		} else {
			exec.Error = &models.ExecutionError{Message: "Permission denied"}
			finishExecution(exec, models.StatusError, 0, now)
		}
	default:
		slog.Warn("Permission resolved for execution no longer awaiting permission",
			"permission_id", permissionID,
			"execution_id", perm.ExecutionID,
			"status", exec.Status)
	}

	out := perm.Clone()
	ev := Event{Kind: EventPermissionResolved, Permission: out}
	if exec != nil {
		ev.Execution = exec.Clone()
	}
	m.queue(ev)
	m.mu.Unlock()
	m.flush()

	return out, nil
}

// AssociatePreview attaches a registered preview to an execution and
// emits PreviewGenerated. Permitted in any status: preview attachment
// races freely with completion. When the preview references a
// permission request, that request's previewId is stamped as well.
func (m *Manager) AssociatePreview(executionID, previewID string) (*models.ToolExecution, error) {
	preview, err := m.previews.Get(previewID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	exec, ok := m.executions[executionID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("execution %s: %w", executionID, ErrNotFound)
	}

	exec.PreviewID = previewID
	if preview.PermissionID != "" {
		if perm := m.permissions[preview.PermissionID]; perm != nil {
			perm.PreviewID = previewID
		}
	}
	out := exec.Clone()
	m.queue(Event{Kind: EventPreviewGenerated, Execution: out, Preview: preview})
	m.mu.Unlock()
	m.flush()

	return out, nil
}

// FailPreview records a preview generator failure. The execution keeps
// its terminal state without a preview; nothing is emitted.
func (m *Manager) FailPreview(executionID string, cause error) error {
	m.mu.RLock()
	exec, ok := m.executions[executionID]
	var sessionID string
	if ok {
		sessionID = exec.SessionID
	}
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("execution %s: %w", executionID, ErrNotFound)
	}
	slog.Warn("Preview generation failed",
		"execution_id", executionID, "session_id", sessionID, "error", cause)
	return nil
}

// GetExecution returns a copy of the execution with the given id.
func (m *Manager) GetExecution(id string) (*models.ToolExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exec, ok := m.executions[id]
	if !ok {
		return nil, fmt.Errorf("execution %s: %w", id, ErrNotFound)
	}
	return exec.Clone(), nil
}

// GetExecutionsForSession returns copies of the session's executions in
// creation order.
func (m *Manager) GetExecutionsForSession(sessionID string) []*models.ToolExecution {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.sessionExecutions[sessionID]
	out := make([]*models.ToolExecution, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.executions[id].Clone())
	}
	return out
}

// GetPermissionRequest returns a copy of the permission request with
// the given id.
func (m *Manager) GetPermissionRequest(id string) (*models.PermissionRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	perm, ok := m.permissions[id]
	if !ok {
		return nil, fmt.Errorf("permission %s: %w", id, ErrNotFound)
	}
	return perm.Clone(), nil
}

// GetPermissionRequestsForSession returns copies of the session's
// permission requests in creation order.
func (m *Manager) GetPermissionRequestsForSession(sessionID string) []*models.PermissionRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.sessionPermissions[sessionID]
	out := make([]*models.PermissionRequest, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.permissions[id].Clone())
	}
	return out
}

// GetPermissionForExecution returns a copy of the execution's latest
// permission request.
func (m *Manager) GetPermissionForExecution(executionID string) (*models.PermissionRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.executionPermissions[executionID]
	if !ok {
		return nil, fmt.Errorf("permission for execution %s: %w", executionID, ErrNotFound)
	}
	return m.permissions[id].Clone(), nil
}

// queue appends an event while m.mu is held, preserving the order in
// which operations completed.
func (m *Manager) queue(ev Event) {
	m.pending = append(m.pending, ev)
}

// flush delivers queued events outside the state lock. emitMu keeps
// delivery single-file: a flush racing with another drains both
// batches in completion order.
func (m *Manager) flush() {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()
	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.mu.Unlock()
			return
		}
		batch := m.pending
		m.pending = nil
		m.mu.Unlock()

		for _, ev := range batch {
			m.subs.dispatch(ev)
		}
	}
}

// finishExecution applies a terminal status. When executionTimeMs is
// positive it is authoritative and endTime is derived from it so that
// executionTimeMs == endTime - startTime always holds.
func finishExecution(exec *models.ToolExecution, status models.ExecutionStatus, executionTimeMs int64, now time.Time) {
	var end time.Time
	var ms int64
	if executionTimeMs > 0 {
		ms = executionTimeMs
		end = exec.StartTime.Add(time.Duration(ms) * time.Millisecond)
	} else {
		end = now
		ms = end.Sub(exec.StartTime).Milliseconds()
	}
	exec.Status = status
	exec.EndTime = &end
	exec.ExecutionTimeMs = &ms
}
