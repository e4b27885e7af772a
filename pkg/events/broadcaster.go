package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/workbench/pkg/models"
)

// broadcastBuffer is the queue depth for outbound events. When the
// queue is full new events are dropped; clients recover via replay.
const broadcastBuffer = 1024

type outboundEvent struct {
	channel string
	payload []byte
}

// Broadcaster fans session events out to WebSocket subscribers. Events
// are serialized once, queued, and dispatched by a single goroutine so
// slow clients never block the ingest path.
type Broadcaster struct {
	manager *ConnectionManager
	queue   chan outboundEvent
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewBroadcaster creates a Broadcaster on top of a ConnectionManager.
func NewBroadcaster(manager *ConnectionManager) *Broadcaster {
	return &Broadcaster{
		manager: manager,
		queue:   make(chan outboundEvent, broadcastBuffer),
	}
}

// Start launches the dispatch goroutine.
func (b *Broadcaster) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.run(runCtx)
	slog.Info("Event broadcaster started")
}

// Stop terminates the dispatch goroutine and waits for it to exit.
func (b *Broadcaster) Stop() {
	if b.cancel == nil {
		return
	}
	b.cancel()
	<-b.done
	slog.Info("Event broadcaster stopped")
}

func (b *Broadcaster) run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.queue:
			b.manager.Broadcast(ev.channel, ev.payload)
		}
	}
}

// PublishMessageReceived announces a newly persisted message.
func (b *Broadcaster) PublishMessageReceived(sessionID string, msg *models.StoredMessage) error {
	return b.enqueue(sessionID, MessageReceivedPayload{
		Type:      EventTypeMessageReceived,
		SessionID: sessionID,
		Message:   msg,
	})
}

// PublishMessageUpdated announces new content for an existing message.
func (b *Broadcaster) PublishMessageUpdated(sessionID, messageID string, content []models.ContentPart, isComplete bool) error {
	return b.enqueue(sessionID, MessageUpdatedPayload{
		Type:       EventTypeMessageUpdated,
		SessionID:  sessionID,
		MessageID:  messageID,
		Content:    content,
		IsComplete: isComplete,
	})
}

// PublishToolExecutionReceived announces an in-flight execution update.
func (b *Broadcaster) PublishToolExecutionReceived(sessionID string, exec WireToolExecution) error {
	return b.enqueue(sessionID, ToolExecutionReceivedPayload{
		Type:          EventTypeToolExecutionReceived,
		SessionID:     sessionID,
		ToolExecution: exec,
	})
}

// PublishToolExecutionUpdated announces a terminal execution state.
func (b *Broadcaster) PublishToolExecutionUpdated(sessionID string, exec WireToolExecution) error {
	return b.enqueue(sessionID, ToolExecutionUpdatedPayload{
		Type:          EventTypeToolExecutionUpdated,
		SessionID:     sessionID,
		ToolExecution: exec,
	})
}

// PublishPermissionRequest announces a pending permission request.
func (b *Broadcaster) PublishPermissionRequest(sessionID string, perm *models.PermissionRequest) error {
	return b.enqueue(sessionID, PermissionRequestPayload{
		Type:              EventTypePermissionRequest,
		SessionID:         sessionID,
		PermissionRequest: perm,
	})
}

func (b *Broadcaster) enqueue(sessionID string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	select {
	case b.queue <- outboundEvent{channel: SessionChannel(sessionID), payload: data}:
	default:
		slog.Warn("Broadcast queue full, dropping event", "session_id", sessionID)
	}
	return nil
}
