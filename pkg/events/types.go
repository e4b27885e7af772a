// Package events provides real-time event delivery to WebSocket
// clients subscribed to per-session channels.
//
// Tool execution events follow one of two delivery patterns. Clients
// differentiate them by the event name, not by inspecting status:
//
// Pattern 1 — IN FLIGHT (tool_execution_received):
//
//	tool_execution_received {toolExecution: {status: "pending" | "running" | "awaiting_permission", ...}}
//
//	Published every time a non-terminal execution changes. The payload
//	is the full execution, so clients replace rather than merge.
//
// Pattern 2 — TERMINAL (tool_execution_updated):
//
//	tool_execution_updated {toolExecution: {status: "completed" | "error" | "aborted",
//	                                        executionTime, preview?, hasPreview, ...}}
//
//	Published when an execution reaches a terminal status, and again
//	when a preview is attached afterwards. hasPreview and
//	previewContentType are redundant flags so clients can detect a
//	preview without walking the object.
//
// Messages use the same split: message_received carries a complete new
// message, message_updated carries a content replacement for an
// existing one.
//
// Replay is client-initiated: a "replay" action returns one
// timeline_history page; nothing is pushed automatically on subscribe.
package events

// Event names delivered to clients (part of the external contract).
const (
	EventTypeMessageReceived       = "message_received"
	EventTypeMessageUpdated        = "message_updated"
	EventTypeToolExecutionReceived = "tool_execution_received"
	EventTypeToolExecutionUpdated  = "tool_execution_updated"
	EventTypePermissionRequest     = "permission_request"
	EventTypeTimelineHistory       = "timeline_history"
)

// SessionChannel returns the channel name for a specific session's events.
// Format: "session:{session_id}"
func SessionChannel(sessionID string) string {
	return "session:" + sessionID
}

// ClientMessage is the JSON structure for client → server WebSocket messages.
type ClientMessage struct {
	Action    string `json:"action"`              // "subscribe", "unsubscribe", "replay", "ping"
	Channel   string `json:"channel,omitempty"`   // Channel name (e.g., "session:abc-123")
	Limit     *int   `json:"limit,omitempty"`     // For replay: page size
	PageToken string `json:"pageToken,omitempty"` // For replay: continuation token
}
