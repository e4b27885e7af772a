package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/codeready-toolchain/workbench/pkg/models"
)

// ReplayQuerier serves timeline pages for client-initiated replay.
// Implemented by the timeline service.
type ReplayQuerier interface {
	GetTimelineItems(ctx context.Context, sessionID string, opts models.TimelineQuery) (*models.TimelinePage, error)
}

// ConnectionManager tracks WebSocket clients and their channel
// subscriptions, and fans broadcast payloads out to subscribers. One
// instance per process.
type ConnectionManager struct {
	mu          sync.RWMutex
	connections map[string]*Connection

	channelMu sync.RWMutex
	channels  map[string]map[string]bool // channel -> subscriber connection ids

	replayMu sync.RWMutex
	replay   ReplayQuerier // set after construction, once the timeline service exists

	writeTimeout time.Duration
}

// Connection is one WebSocket client.
//
// subscriptions is touched only from the goroutine running
// HandleConnection (the read loop and its deferred cleanup), so it
// carries no lock. Any future cross-goroutine mutation of a Connection
// would need to add one.
type Connection struct {
	ID            string
	Conn          *websocket.Conn
	subscriptions map[string]bool
	ctx           context.Context
	cancel        context.CancelFunc
}

func NewConnectionManager(writeTimeout time.Duration) *ConnectionManager {
	return &ConnectionManager{
		connections:  make(map[string]*Connection),
		channels:     make(map[string]map[string]bool),
		writeTimeout: writeTimeout,
	}
}

// SetReplayQuerier wires in the replay source. Called once at startup.
func (m *ConnectionManager) SetReplayQuerier(q ReplayQuerier) {
	m.replayMu.Lock()
	defer m.replayMu.Unlock()
	m.replay = q
}

// HandleConnection owns one WebSocket from upgrade to close. It
// registers the client, announces the connection id, then loops reading
// client messages until the socket errors out. Blocks for the life of
// the connection.
func (m *ConnectionManager) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &Connection{
		ID:            uuid.New().String(),
		Conn:          conn,
		subscriptions: make(map[string]bool),
		ctx:           ctx,
		cancel:        cancel,
	}

	m.mu.Lock()
	m.connections[c.ID] = c
	m.mu.Unlock()
	defer m.dropConnection(c)

	m.sendJSON(c, map[string]string{
		"type":         "connection.established",
		"connectionId": c.ID,
	})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Invalid WebSocket message",
				"connection_id", c.ID, "error", err)
			continue
		}
		m.handleClientMessage(ctx, c, &msg)
	}
}

// Broadcast delivers an encoded event to every subscriber of channel.
// Subscriber ids and connection pointers are snapshotted first so no
// lock is held across socket writes, which can stall for up to
// writeTimeout each.
func (m *ConnectionManager) Broadcast(channel string, event []byte) {
	m.channelMu.RLock()
	ids := make([]string, 0, len(m.channels[channel]))
	for id := range m.channels[channel] {
		ids = append(ids, id)
	}
	m.channelMu.RUnlock()
	if len(ids) == 0 {
		return
	}

	m.mu.RLock()
	targets := make([]*Connection, 0, len(ids))
	for _, id := range ids {
		if c, ok := m.connections[id]; ok {
			targets = append(targets, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range targets {
		if err := m.sendRaw(c, event); err != nil {
			slog.Warn("Failed to send to WebSocket client",
				"connection_id", c.ID, "error", err)
		}
	}
}

// ActiveConnections reports how many clients are currently connected.
func (m *ConnectionManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// subscriberCount lets tests poll channel membership instead of sleeping.
func (m *ConnectionManager) subscriberCount(channel string) int {
	m.channelMu.RLock()
	defer m.channelMu.RUnlock()
	return len(m.channels[channel])
}

func (m *ConnectionManager) handleClientMessage(ctx context.Context, c *Connection, msg *ClientMessage) {
	if msg.Action == "ping" {
		m.sendJSON(c, map[string]string{"type": "pong"})
		return
	}

	// Everything else operates on a channel.
	switch msg.Action {
	case "subscribe", "unsubscribe", "replay":
		if msg.Channel == "" {
			m.sendJSON(c, map[string]string{
				"type":    "error",
				"message": "channel is required for " + msg.Action,
			})
			return
		}
	default:
		return
	}

	switch msg.Action {
	case "subscribe":
		m.subscribe(c, msg.Channel)
		m.sendJSON(c, map[string]string{
			"type":    "subscription.confirmed",
			"channel": msg.Channel,
		})
	case "unsubscribe":
		m.unsubscribe(c, msg.Channel)
	case "replay":
		m.handleReplay(ctx, c, msg)
	}
}

// subscribe adds the connection to a channel. It pushes no history;
// late joiners ask for it explicitly with a replay action.
func (m *ConnectionManager) subscribe(c *Connection, channel string) {
	m.channelMu.Lock()
	subs := m.channels[channel]
	if subs == nil {
		subs = make(map[string]bool)
		m.channels[channel] = subs
	}
	subs[c.ID] = true
	m.channelMu.Unlock()

	c.subscriptions[channel] = true
}

func (m *ConnectionManager) unsubscribe(c *Connection, channel string) {
	m.channelMu.Lock()
	if subs := m.channels[channel]; subs != nil {
		delete(subs, c.ID)
		if len(subs) == 0 {
			delete(m.channels, channel)
		}
	}
	m.channelMu.Unlock()

	delete(c.subscriptions, channel)
}

// handleReplay answers a replay action with one timeline_history page
// for the session encoded in the channel name.
func (m *ConnectionManager) handleReplay(ctx context.Context, c *Connection, msg *ClientMessage) {
	m.replayMu.RLock()
	q := m.replay
	m.replayMu.RUnlock()
	if q == nil {
		return
	}

	sessionID := strings.TrimPrefix(msg.Channel, "session:")
	if sessionID == msg.Channel || sessionID == "" {
		m.sendJSON(c, map[string]string{"type": "error", "message": "replay requires a session channel"})
		return
	}

	limit := models.DefaultTimelineLimit
	if msg.Limit != nil {
		limit = *msg.Limit
	}

	page, err := q.GetTimelineItems(ctx, sessionID, models.TimelineQuery{
		Limit:          limit,
		PageToken:      msg.PageToken,
		IncludeRelated: true,
	})
	if err != nil {
		slog.Error("Replay query failed",
			"connection_id", c.ID, "session_id", sessionID, "error", err)
		return
	}

	m.sendJSON(c, TimelineHistoryPayload{
		Type:          EventTypeTimelineHistory,
		SessionID:     sessionID,
		Items:         page.Items,
		TotalCount:    page.TotalCount,
		NextPageToken: page.NextPageToken,
	})
}

// dropConnection tears down a closing connection: leaves every channel,
// forgets the connection, cancels its context, and closes the socket.
func (m *ConnectionManager) dropConnection(c *Connection) {
	for ch := range c.subscriptions {
		m.unsubscribe(c, ch)
	}

	m.mu.Lock()
	delete(m.connections, c.ID)
	m.mu.Unlock()

	c.cancel()
	_ = c.Conn.Close(websocket.StatusNormalClosure, "")
}

func (m *ConnectionManager) sendJSON(c *Connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Failed to marshal WebSocket message",
			"connection_id", c.ID, "error", err)
		return
	}
	if err := m.sendRaw(c, data); err != nil {
		slog.Warn("Failed to send WebSocket message",
			"connection_id", c.ID, "error", err)
	}
}

func (m *ConnectionManager) sendRaw(c *Connection, data []byte) error {
	writeCtx, cancel := context.WithTimeout(c.ctx, m.writeTimeout)
	defer cancel()
	return c.Conn.Write(writeCtx, websocket.MessageText, data)
}
