package models

import (
	"time"
)

// MessageRole identifies the author side of a conversation message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ContentPart is one structured segment of a message body.
type ContentPart struct {
	Type string `json:"type"`           // "text" for now; clients ignore unknown types
	Text string `json:"text,omitempty"` // set when Type == "text"
}

// TextContent builds a single-part content list from plain text.
func TextContent(text string) []ContentPart {
	return []ContentPart{{Type: "text", Text: text}}
}

// ToolCallRef links a message to a tool execution it initiated.
type ToolCallRef struct {
	ExecutionID string `json:"executionId"`
	ToolName    string `json:"toolName,omitempty"`
	Index       int    `json:"index"`
	IsBatched   bool   `json:"isBatched,omitempty"`
}

// StoredMessage is a user or assistant chat message as recorded on a
// session timeline.
//
// Sequence interleaves turns independently of wall-clock timestamps:
// user messages carry even sequences (0, 2, 4, …), assistant messages odd
// (1, 3, 5, …). A nil Sequence means "not yet assigned" — the timeline
// service assigns the next value of the role's parity at ingest.
type StoredMessage struct {
	ID              string        `json:"id"`
	SessionID       string        `json:"sessionId"`
	Role            MessageRole   `json:"role"`
	Timestamp       time.Time     `json:"timestamp"`
	Content         []ContentPart `json:"content"`
	Sequence        *int          `json:"sequence,omitempty"`
	ToolCalls       []ToolCallRef `json:"toolCalls,omitempty"`
	ParentMessageID string        `json:"parentMessageId,omitempty"`
}

// Clone creates a deep copy safe to hand to other goroutines.
func (m *StoredMessage) Clone() *StoredMessage {
	if m == nil {
		return nil
	}
	out := *m
	if m.Sequence != nil {
		seq := *m.Sequence
		out.Sequence = &seq
	}
	if m.Content != nil {
		out.Content = make([]ContentPart, len(m.Content))
		copy(out.Content, m.Content)
	}
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCallRef, len(m.ToolCalls))
		copy(out.ToolCalls, m.ToolCalls)
	}
	return &out
}

// SequenceParity returns the sequence parity required for the role:
// 0 for user messages, 1 for assistant messages.
func (r MessageRole) SequenceParity() int {
	if r == RoleAssistant {
		return 1
	}
	return 0
}
