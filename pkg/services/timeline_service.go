// Package services contains business logic service layer implementations.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/workbench/pkg/agent"
	"github.com/codeready-toolchain/workbench/pkg/events"
	"github.com/codeready-toolchain/workbench/pkg/models"
	"github.com/codeready-toolchain/workbench/pkg/timeline"
	"github.com/codeready-toolchain/workbench/pkg/toolexec"
)

// Debounce windows and key TTLs for the two ingest paths.
const (
	toolDebounceWindow = time.Second
	toolDebounceTTL    = 5 * time.Second
	permDebounceWindow = time.Second
	permDebounceTTL    = 2 * time.Second
)

// messageOrigin tells the ingest path where a message came from, which
// decides the wire event and whether the message echoes onto the
// agent bus.
type messageOrigin int

const (
	originClient       messageOrigin = iota // public API; echoes to the agent bus
	originAgentAdded                        // agent MessageAdded; no bus echo
	originAgentUpdated                      // agent MessageUpdated; no bus echo
)

// ItemEventKind identifies local timeline stream notifications.
type ItemEventKind string

const (
	ItemAdded   ItemEventKind = "item.added"
	ItemUpdated ItemEventKind = "item.updated"
)

// ItemEvent is one local timeline stream notification, delivered to
// in-process subscribers after the item has been persisted.
type ItemEvent struct {
	Kind ItemEventKind
	Item models.TimelineItem
}

// ItemHandler receives local timeline stream events.
type ItemHandler func(ItemEvent)

// EventSink receives the wire events the service emits toward session
// subscribers. Implemented by events.Broadcaster. Publishing must be a
// non-blocking enqueue: it runs while the session lock is held so that
// clients observe a session's events in persist order.
type EventSink interface {
	PublishMessageReceived(sessionID string, msg *models.StoredMessage) error
	PublishMessageUpdated(sessionID, messageID string, content []models.ContentPart, isComplete bool) error
	PublishToolExecutionReceived(sessionID string, exec events.WireToolExecution) error
	PublishToolExecutionUpdated(sessionID string, exec events.WireToolExecution) error
	PublishPermissionRequest(sessionID string, perm *models.PermissionRequest) error
}

// AgentBridge is the slice of the agent runtime the timeline service
// consumes. Implemented by agent.Runtime.
type AgentBridge interface {
	GetSession(sessionID string) *agent.Session
	SetListener(fn agent.Handler)
}

// TimelineService is the hub between the tool execution manager, the
// agent runtime, the persisted timeline, and connected clients. All
// writes for one session are serialized through a per-session lock.
type TimelineService struct {
	store    *timeline.Store
	tem      *toolexec.Manager
	previews *toolexec.PreviewRegistry
	bridge   AgentBridge
	bus      *agent.Bus
	sink     EventSink

	toolDebounce *DebounceCoordinator
	permDebounce *DebounceCoordinator

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	subsMu sync.RWMutex
	nextID int
	subs   map[int]ItemHandler

	unsubscribes []func()
}

// NewTimelineService creates a TimelineService. Call Start to begin
// consuming manager and agent events.
func NewTimelineService(store *timeline.Store, tem *toolexec.Manager, bridge AgentBridge, bus *agent.Bus, sink EventSink) *TimelineService {
	return &TimelineService{
		store:        store,
		tem:          tem,
		previews:     tem.Previews(),
		bridge:       bridge,
		bus:          bus,
		sink:         sink,
		toolDebounce: NewDebounceCoordinator(toolDebounceWindow, toolDebounceTTL),
		permDebounce: NewDebounceCoordinator(permDebounceWindow, permDebounceTTL),
		locks:        make(map[string]*sync.Mutex),
		subs:         make(map[int]ItemHandler),
	}
}

// Start subscribes to tool execution events and to agent message
// events from both the runtime listener and the bus. Execution
// creation is deliberately not consumed: a Pending execution reaches
// the timeline with its first observable update.
func (s *TimelineService) Start(ctx context.Context) {
	s.unsubscribes = []func(){
		s.tem.Subscribe(toolexec.EventUpdated, s.onToolEvent),
		s.tem.Subscribe(toolexec.EventCompleted, s.onToolEvent),
		s.tem.Subscribe(toolexec.EventError, s.onToolEvent),
		s.tem.Subscribe(toolexec.EventAborted, s.onToolEvent),
		s.tem.Subscribe(toolexec.EventPermissionRequested, s.onPermissionEvent),
		s.tem.Subscribe(toolexec.EventPermissionResolved, s.onPermissionEvent),
		s.tem.Subscribe(toolexec.EventPreviewGenerated, s.onPreviewEvent),
		s.bus.Subscribe(s.onBusEvent),
	}
	s.bridge.SetListener(s.onAgentEvent)
	slog.Info("Timeline service started")
}

// Stop unsubscribes from all event sources and stops debounce timers.
func (s *TimelineService) Stop() {
	for _, unsubscribe := range s.unsubscribes {
		unsubscribe()
	}
	s.unsubscribes = nil
	s.bridge.SetListener(nil)
	s.toolDebounce.Stop()
	s.permDebounce.Stop()
	slog.Info("Timeline service stopped")
}

// SubscribeItems registers an in-process consumer of timeline item
// events and returns an unsubscribe function.
func (s *TimelineService) SubscribeItems(fn ItemHandler) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	s.nextID++
	id := s.nextID
	s.subs[id] = fn

	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

// AddMessageToTimeline records a client-originated message, broadcasts
// message_received, and echoes the enriched message onto the agent bus
// so conversation history stays in sync. Returns the persisted item.
func (s *TimelineService) AddMessageToTimeline(ctx context.Context, sessionID string, msg *models.StoredMessage) (*models.TimelineItem, error) {
	if sessionID == "" {
		return nil, NewValidationError("sessionId", "required")
	}
	if msg == nil {
		return nil, NewValidationError("message", "required")
	}
	return s.ingestMessage(sessionID, msg, originClient)
}

// GetTimelineItems returns one canonically ordered page of the
// session's timeline.
func (s *TimelineService) GetTimelineItems(ctx context.Context, sessionID string, opts models.TimelineQuery) (*models.TimelinePage, error) {
	if sessionID == "" {
		return nil, NewValidationError("sessionId", "required")
	}
	if opts.Limit < 0 {
		return nil, NewValidationError("limit", "must not be negative")
	}
	if opts.Limit > models.MaxTimelineLimit {
		return nil, NewValidationError("limit", fmt.Sprintf("must be at most %d", models.MaxTimelineLimit))
	}
	for _, t := range opts.Types {
		if !models.ValidItemType(t) {
			return nil, NewValidationError("types", fmt.Sprintf("unknown item type %q", t))
		}
	}

	items, err := s.store.Load(sessionID)
	if err != nil {
		if !errors.Is(err, timeline.ErrSessionNotFound) {
			return nil, fmt.Errorf("failed to load timeline: %w", err)
		}
		// Nothing persisted yet. The session may still exist in the
		// agent runtime, in which case it simply has an empty timeline.
		if s.bridge.GetSession(sessionID) == nil {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
		}
		items = nil
	}

	timeline.SortItems(items)
	warnOnOrphanedAssistants(sessionID, items)

	filtered := filterByType(items, opts.Types)

	start := parsePageToken(opts.PageToken)
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + opts.Limit
	if end > len(filtered) {
		end = len(filtered)
	}

	page := make([]models.TimelineItem, end-start)
	copy(page, filtered[start:end])

	if opts.IncludeRelated {
		s.resolvePreviews(page)
	}

	var next *string
	if end < len(filtered) {
		token := strconv.Itoa(end)
		next = &token
	}

	return &models.TimelinePage{
		Items:         page,
		NextPageToken: next,
		TotalCount:    len(filtered),
	}, nil
}

// ---- message ingest ----

// onBusEvent feeds bus traffic into the agent event path, skipping
// copies the service has already handled: its own client-message
// echoes, and runtime events that arrived through the listener.
func (s *TimelineService) onBusEvent(ev agent.Event) {
	if ev.Origin != "" {
		return
	}
	s.onAgentEvent(ev)
}

func (s *TimelineService) onAgentEvent(ev agent.Event) {
	switch ev.Kind {
	case agent.KindMessageAdded, agent.KindMessageUpdated:
		if ev.Message == nil {
			slog.Warn("Dropping agent message event without message",
				"kind", ev.Kind, "session_id", ev.SessionID)
			return
		}
		sessionID := ev.SessionID
		if sessionID == "" {
			sessionID = ev.Message.SessionID
		}
		if sessionID == "" {
			slog.Warn("Dropping agent message event without session", "message_id", ev.Message.ID)
			return
		}
		origin := originAgentAdded
		if ev.Kind == agent.KindMessageUpdated {
			origin = originAgentUpdated
		}
		if _, err := s.ingestMessage(sessionID, ev.Message, origin); err != nil {
			slog.Error("Failed to ingest agent message",
				"session_id", sessionID, "message_id", ev.Message.ID, "error", err)
		}

	case agent.KindSessionLoaded:
		// Rehydration is client-driven through the read path; reacting
		// here would re-broadcast every loaded message.
		slog.Debug("Ignoring session loaded event", "session_id", ev.SessionID)
	}
}

func (s *TimelineService) ingestMessage(sessionID string, msg *models.StoredMessage, origin messageOrigin) (*models.TimelineItem, error) {
	m := msg.Clone()
	m.SessionID = sessionID
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	item, kind, err := s.lockedIngestMessage(sessionID, m, origin)
	lock.Unlock()
	if err != nil {
		return nil, err
	}

	if origin == originClient {
		s.bus.Publish(agent.Event{
			Kind:      agent.KindMessageAdded,
			SessionID: sessionID,
			Message:   m.Clone(),
			Origin:    agent.OriginTimeline,
		})
	}
	s.emitItem(kind, *item)
	return item, nil
}

// lockedIngestMessage runs under the session lock: it assigns the
// sequence, persists the item, and enqueues the wire event before the
// lock is released.
func (s *TimelineService) lockedIngestMessage(sessionID string, m *models.StoredMessage, origin messageOrigin) (*models.TimelineItem, ItemEventKind, error) {
	existing, err := s.loadForWrite(sessionID)
	if err != nil {
		return nil, "", err
	}

	if m.Sequence == nil {
		seq := nextSequence(existing, m)
		m.Sequence = &seq
	}

	item := models.NewMessageItem(m)
	if err := s.store.Append(sessionID, &item); err != nil {
		return nil, "", fmt.Errorf("failed to persist message item: %w", err)
	}

	kind := ItemAdded
	if hasItem(existing, models.ItemTypeMessage, m.ID) {
		kind = ItemUpdated
	}

	var sinkErr error
	if origin == originAgentUpdated {
		sinkErr = s.sink.PublishMessageUpdated(sessionID, m.ID, m.Content, true)
	} else {
		sinkErr = s.sink.PublishMessageReceived(sessionID, m)
	}
	if sinkErr != nil {
		slog.Warn("Failed to enqueue message event",
			"session_id", sessionID, "message_id", m.ID, "error", sinkErr)
	}

	return &item, kind, nil
}

// ---- tool execution ingest ----

func (s *TimelineService) onToolEvent(ev toolexec.Event) {
	if ev.Execution == nil {
		slog.Warn("Dropping tool event without execution payload", "kind", ev.Kind)
		return
	}
	if _, err := s.ingestExecutionAt(ev.Execution, ev.Preview, time.Now().UTC()); err != nil {
		slog.Error("Failed to ingest tool execution",
			"session_id", ev.Execution.SessionID, "execution_id", ev.Execution.ID, "error", err)
	}
}

// ingestExecutionAt records the execution's current state on the
// timeline. Repeat deliveries of the same status within the debounce
// window are dropped: the same transition is observed through more
// than one channel (manager event, permission re-ingest), and only
// the first occurrence persists and broadcasts.
func (s *TimelineService) ingestExecutionAt(exec *models.ToolExecution, preview *models.Preview, now time.Time) (*models.TimelineItem, error) {
	key := fmt.Sprintf("%s:%s", exec.ID, exec.Status)
	if !s.toolDebounce.ShouldProcess(key, now) {
		slog.Warn("Dropping duplicate tool execution update",
			"session_id", exec.SessionID, "execution_id", exec.ID, "status", exec.Status)
		item := models.NewExecutionItem(exec, "", preview)
		return &item, nil
	}

	if preview == nil {
		preview = s.previews.GetByExecution(exec.ID)
	}

	lock := s.sessionLock(exec.SessionID)
	lock.Lock()
	item, kind, err := s.lockedIngestExecution(exec, preview, now)
	lock.Unlock()
	if err != nil {
		return nil, err
	}

	s.emitItem(kind, *item)
	return item, nil
}

func (s *TimelineService) lockedIngestExecution(exec *models.ToolExecution, preview *models.Preview, now time.Time) (*models.TimelineItem, ItemEventKind, error) {
	sessionID := exec.SessionID
	existing, err := s.loadForWrite(sessionID)
	if err != nil {
		return nil, "", err
	}

	parentID := findParentMessage(existing, exec.ID)
	item := models.NewExecutionItem(exec, parentID, preview)
	// The item carries the ingest time, not the execution start time,
	// so later lifecycle states sort after the permission items that
	// preceded them.
	item.Timestamp = now

	if err := s.store.Append(sessionID, &item); err != nil {
		return nil, "", fmt.Errorf("failed to persist execution item: %w", err)
	}

	kind := ItemAdded
	if hasItem(existing, models.ItemTypeToolExecution, exec.ID) {
		kind = ItemUpdated
	}

	wire := events.NewWireToolExecution(exec, parentID, preview)
	var sinkErr error
	if exec.Status.IsTerminal() {
		sinkErr = s.sink.PublishToolExecutionUpdated(sessionID, wire)
	} else {
		sinkErr = s.sink.PublishToolExecutionReceived(sessionID, wire)
	}
	if sinkErr != nil {
		slog.Warn("Failed to enqueue tool execution event",
			"session_id", sessionID, "execution_id", exec.ID, "error", sinkErr)
	}

	return &item, kind, nil
}

// ---- permission ingest ----

func (s *TimelineService) onPermissionEvent(ev toolexec.Event) {
	if ev.Permission == nil {
		slog.Warn("Dropping permission event without request payload", "kind", ev.Kind)
		return
	}
	if _, err := s.ingestPermissionAt(ev.Permission, time.Now().UTC()); err != nil {
		slog.Error("Failed to ingest permission request",
			"session_id", ev.Permission.SessionID, "permission_id", ev.Permission.ID, "error", err)
	}
}

// ingestPermissionAt upserts the permission item, broadcasts it, and
// re-ingests the owning execution so its current state (awaiting,
// running after a grant, failed after a denial) lands next to the
// request.
func (s *TimelineService) ingestPermissionAt(perm *models.PermissionRequest, now time.Time) (*models.TimelineItem, error) {
	state := "pending"
	if perm.Resolved() {
		state = "resolved"
	}
	if !s.permDebounce.ShouldProcess(perm.ID+":"+state, now) {
		slog.Warn("Dropping duplicate permission update",
			"session_id", perm.SessionID, "permission_id", perm.ID)
		item := models.NewPermissionItem(perm)
		return &item, nil
	}

	lock := s.sessionLock(perm.SessionID)
	lock.Lock()
	item, kind, err := s.lockedIngestPermission(perm)
	lock.Unlock()
	if err != nil {
		return nil, err
	}
	s.emitItem(kind, *item)

	if perm.ExecutionID != "" {
		exec, execErr := s.tem.GetExecution(perm.ExecutionID)
		if execErr != nil {
			slog.Warn("Permission references unknown execution",
				"permission_id", perm.ID, "execution_id", perm.ExecutionID, "error", execErr)
			return item, nil
		}
		if _, execErr := s.ingestExecutionAt(exec, nil, now); execErr != nil {
			slog.Error("Failed to ingest execution for permission",
				"permission_id", perm.ID, "execution_id", perm.ExecutionID, "error", execErr)
		}
	}
	return item, nil
}

func (s *TimelineService) lockedIngestPermission(perm *models.PermissionRequest) (*models.TimelineItem, ItemEventKind, error) {
	sessionID := perm.SessionID
	existing, err := s.loadForWrite(sessionID)
	if err != nil {
		return nil, "", err
	}

	item := models.NewPermissionItem(perm)
	if err := s.store.Append(sessionID, &item); err != nil {
		return nil, "", fmt.Errorf("failed to persist permission item: %w", err)
	}

	kind := ItemAdded
	if hasItem(existing, models.ItemTypePermissionRequest, perm.ID) {
		kind = ItemUpdated
	}

	if err := s.sink.PublishPermissionRequest(sessionID, perm.Clone()); err != nil {
		slog.Warn("Failed to enqueue permission event",
			"session_id", sessionID, "permission_id", perm.ID, "error", err)
	}
	return &item, kind, nil
}

// ---- preview attachment ----

func (s *TimelineService) onPreviewEvent(ev toolexec.Event) {
	if ev.Execution == nil || ev.Preview == nil {
		slog.Warn("Dropping preview event with missing payload", "kind", ev.Kind)
		return
	}
	if _, err := s.attachPreview(ev.Execution, ev.Preview); err != nil {
		slog.Error("Failed to attach preview",
			"session_id", ev.Execution.SessionID, "execution_id", ev.Execution.ID, "error", err)
	}
}

// attachPreview patches the persisted execution item with a preview
// generated after the fact. The item keeps its recorded timestamp so a
// late preview does not reorder the timeline. When no item exists yet
// the execution goes through the regular ingest path instead.
func (s *TimelineService) attachPreview(exec *models.ToolExecution, preview *models.Preview) (*models.TimelineItem, error) {
	lock := s.sessionLock(exec.SessionID)
	lock.Lock()
	item, found, err := s.lockedAttachPreview(exec, preview)
	lock.Unlock()
	if err != nil {
		return nil, err
	}
	if !found {
		return s.ingestExecutionAt(exec, preview, time.Now().UTC())
	}

	s.emitItem(ItemUpdated, *item)
	return item, nil
}

func (s *TimelineService) lockedAttachPreview(exec *models.ToolExecution, preview *models.Preview) (*models.TimelineItem, bool, error) {
	sessionID := exec.SessionID
	existing, err := s.loadForWrite(sessionID)
	if err != nil {
		return nil, false, err
	}

	var item *models.TimelineItem
	for i := range existing {
		if existing[i].Type == models.ItemTypeToolExecution && existing[i].ID == exec.ID {
			item = &existing[i]
			break
		}
	}
	if item == nil || item.ToolExecution == nil {
		return nil, false, nil
	}

	item.ToolExecution.Preview = preview.Clone()
	if err := s.store.Append(sessionID, item); err != nil {
		return nil, false, fmt.Errorf("failed to persist preview patch: %w", err)
	}

	wire := events.NewWireToolExecution(exec, item.ToolExecution.ParentMessageID, preview)
	if err := s.sink.PublishToolExecutionUpdated(sessionID, wire); err != nil {
		slog.Warn("Failed to enqueue preview update",
			"session_id", sessionID, "execution_id", exec.ID, "error", err)
	}
	return item, true, nil
}

// ---- helpers ----

func (s *TimelineService) sessionLock(sessionID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

// loadForWrite loads the session's current items, treating a session
// with no persisted data as empty so first writes create it.
func (s *TimelineService) loadForWrite(sessionID string) ([]models.TimelineItem, error) {
	items, err := s.store.Load(sessionID)
	if err != nil {
		if errors.Is(err, timeline.ErrSessionNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load timeline: %w", err)
	}
	return items, nil
}

// emitItem delivers a local item event. Callers must not hold the
// session lock; handler panics are logged and swallowed.
func (s *TimelineService) emitItem(kind ItemEventKind, item models.TimelineItem) {
	s.subsMu.RLock()
	handlers := make([]ItemHandler, 0, len(s.subs))
	for _, fn := range s.subs {
		handlers = append(handlers, fn)
	}
	s.subsMu.RUnlock()

	for _, fn := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Timeline item handler panicked",
						"session_id", item.SessionID, "item_id", item.ID, "panic", r)
				}
			}()
			fn(ItemEvent{Kind: kind, Item: item})
		}()
	}
}

// resolvePreviews fills in previews for execution items persisted
// before their preview was generated.
func (s *TimelineService) resolvePreviews(items []models.TimelineItem) {
	for i := range items {
		it := &items[i]
		if it.Type != models.ItemTypeToolExecution || it.ToolExecution == nil || it.ToolExecution.Preview != nil {
			continue
		}
		if preview := s.previews.GetByExecution(it.ID); preview != nil {
			it.ToolExecution.Preview = preview
		}
	}
}

// nextSequence returns the sequence for a message that arrived without
// one: the next integer of the role's parity strictly greater than the
// session's current maximum message sequence. A message re-ingested
// through a second delivery path keeps its already assigned sequence.
func nextSequence(existing []models.TimelineItem, m *models.StoredMessage) int {
	maxSeq := -1
	for i := range existing {
		it := &existing[i]
		if it.Type != models.ItemTypeMessage || it.Message == nil || it.Message.Sequence == nil {
			continue
		}
		if it.ID == m.ID {
			return *it.Message.Sequence
		}
		if *it.Message.Sequence > maxSeq {
			maxSeq = *it.Message.Sequence
		}
	}

	next := maxSeq + 1
	if next%2 != m.Role.SequenceParity() {
		next++
	}
	return next
}

// findParentMessage returns the id of the message whose toolCalls
// reference the execution, or empty when none does yet.
func findParentMessage(items []models.TimelineItem, executionID string) string {
	for i := range items {
		it := &items[i]
		if it.Type != models.ItemTypeMessage || it.Message == nil {
			continue
		}
		for _, execID := range it.Message.ToolExecutions {
			if execID == executionID {
				return it.ID
			}
		}
	}
	return ""
}

func hasItem(items []models.TimelineItem, t models.TimelineItemType, id string) bool {
	for i := range items {
		if items[i].Type == t && items[i].ID == id {
			return true
		}
	}
	return false
}

func filterByType(items []models.TimelineItem, types []models.TimelineItemType) []models.TimelineItem {
	if len(types) == 0 {
		return items
	}
	keep := make(map[models.TimelineItemType]bool, len(types))
	for _, t := range types {
		keep[t] = true
	}
	filtered := make([]models.TimelineItem, 0, len(items))
	for _, it := range items {
		if keep[it.Type] {
			filtered = append(filtered, it)
		}
	}
	return filtered
}

// parsePageToken decodes the offset cursor; anything unparseable
// means the first page.
func parsePageToken(token string) int {
	if token == "" {
		return 0
	}
	n, err := strconv.Atoi(token)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// warnOnOrphanedAssistants flags a timeline with assistant messages
// but no user messages, which usually means ingest dropped the user
// side of the conversation.
func warnOnOrphanedAssistants(sessionID string, items []models.TimelineItem) {
	var hasUser, hasAssistant bool
	for i := range items {
		it := &items[i]
		if it.Type != models.ItemTypeMessage || it.Message == nil {
			continue
		}
		switch it.Message.Role {
		case models.RoleUser:
			hasUser = true
		case models.RoleAssistant:
			hasAssistant = true
		}
	}
	if hasAssistant && !hasUser {
		slog.Warn("Timeline contains assistant messages but no user messages", "session_id", sessionID)
	}
}
