package models

import "time"

// TimelineItemType discriminates the timeline item union.
type TimelineItemType string

const (
	ItemTypeMessage           TimelineItemType = "message"
	ItemTypeToolExecution     TimelineItemType = "tool_execution"
	ItemTypePermissionRequest TimelineItemType = "permission_request"
)

// ValidItemType reports whether t is one of the known item types.
func ValidItemType(t TimelineItemType) bool {
	switch t {
	case ItemTypeMessage, ItemTypeToolExecution, ItemTypePermissionRequest:
		return true
	}
	return false
}

// TimelineItem is one persisted entry in a session's chronological log:
// a tagged union of message, tool execution, and permission request.
// Exactly one of the three branch pointers is non-nil, matching Type.
// The uniqueness key within a session timeline is (Type, ID); appending
// an item whose key already exists replaces it.
type TimelineItem struct {
	ID        string           `json:"id"`
	Type      TimelineItemType `json:"type"`
	SessionID string           `json:"sessionId"`
	Timestamp time.Time        `json:"timestamp"`

	Message           *MessageItem    `json:"message,omitempty"`
	ToolExecution     *ExecutionItem  `json:"toolExecution,omitempty"`
	PermissionRequest *PermissionItem `json:"permissionRequest,omitempty"`
}

// MessageItem is the message branch of a timeline item. ToolExecutions
// holds the execution ids copied from ToolCalls for cheap lookup when
// linking tool items to their parent message.
type MessageItem struct {
	Role            MessageRole   `json:"role"`
	Content         []ContentPart `json:"content"`
	Sequence        *int          `json:"sequence,omitempty"`
	ToolCalls       []ToolCallRef `json:"toolCalls,omitempty"`
	ToolExecutions  []string      `json:"toolExecutions,omitempty"`
	ParentMessageID string        `json:"parentMessageId,omitempty"`
}

// ExecutionItem is the tool-execution branch of a timeline item. It
// carries the resolved preview by value (not id) for wire delivery, and
// ParentMessageID links it to the message whose toolCalls produced it.
type ExecutionItem struct {
	ToolID          string          `json:"toolId"`
	ToolName        string          `json:"toolName"`
	ToolUseID       string          `json:"toolUseId,omitempty"`
	Args            map[string]any  `json:"args,omitempty"`
	Status          ExecutionStatus `json:"status"`
	StartTime       time.Time       `json:"startTime"`
	EndTime         *time.Time      `json:"endTime,omitempty"`
	ExecutionTimeMs *int64          `json:"executionTimeMs,omitempty"`
	Result          any             `json:"result,omitempty"`
	Error           *ExecutionError `json:"error,omitempty"`
	PermissionID    string          `json:"permissionId,omitempty"`
	ParentMessageID string          `json:"parentMessageId,omitempty"`
	Preview         *Preview        `json:"preview,omitempty"`
	Summary         string          `json:"summary,omitempty"`
}

// PermissionItem is the permission-request branch of a timeline item.
type PermissionItem struct {
	ExecutionID  string         `json:"executionId"`
	ToolID       string         `json:"toolId"`
	ToolName     string         `json:"toolName"`
	Args         map[string]any `json:"args,omitempty"`
	RequestTime  time.Time      `json:"requestTime"`
	ResolvedTime *time.Time     `json:"resolvedTime,omitempty"`
	Granted      *bool          `json:"granted,omitempty"`
	PreviewID    string         `json:"previewId,omitempty"`
}

// NewMessageItem builds the timeline item for a stored message,
// copying toolCalls execution ids into the item's ToolExecutions field.
func NewMessageItem(msg *StoredMessage) TimelineItem {
	m := msg.Clone()
	var executions []string
	for _, tc := range m.ToolCalls {
		if tc.ExecutionID != "" {
			executions = append(executions, tc.ExecutionID)
		}
	}
	return TimelineItem{
		ID:        m.ID,
		Type:      ItemTypeMessage,
		SessionID: m.SessionID,
		Timestamp: m.Timestamp,
		Message: &MessageItem{
			Role:            m.Role,
			Content:         m.Content,
			Sequence:        m.Sequence,
			ToolCalls:       m.ToolCalls,
			ToolExecutions:  executions,
			ParentMessageID: m.ParentMessageID,
		},
	}
}

// NewExecutionItem builds the timeline item for a tool execution.
// parentMessageID may be empty when no message references the execution
// yet; preview may be nil when none has been generated.
func NewExecutionItem(exec *ToolExecution, parentMessageID string, preview *Preview) TimelineItem {
	e := exec.Clone()
	return TimelineItem{
		ID:        e.ID,
		Type:      ItemTypeToolExecution,
		SessionID: e.SessionID,
		Timestamp: e.StartTime,
		ToolExecution: &ExecutionItem{
			ToolID:          e.ToolID,
			ToolName:        e.ToolName,
			ToolUseID:       e.ToolUseID,
			Args:            e.Args,
			Status:          e.Status,
			StartTime:       e.StartTime,
			EndTime:         e.EndTime,
			ExecutionTimeMs: e.ExecutionTimeMs,
			Result:          e.Result,
			Error:           e.Error,
			PermissionID:    e.PermissionID,
			ParentMessageID: parentMessageID,
			Preview:         preview.Clone(),
			Summary:         e.Summary,
		},
	}
}

// NewPermissionItem builds the timeline item for a permission request.
func NewPermissionItem(perm *PermissionRequest) TimelineItem {
	p := perm.Clone()
	return TimelineItem{
		ID:        p.ID,
		Type:      ItemTypePermissionRequest,
		SessionID: p.SessionID,
		Timestamp: p.RequestTime,
		PermissionRequest: &PermissionItem{
			ExecutionID:  p.ExecutionID,
			ToolID:       p.ToolID,
			ToolName:     p.ToolName,
			Args:         p.Args,
			RequestTime:  p.RequestTime,
			ResolvedTime: p.ResolvedTime,
			Granted:      p.Granted,
			PreviewID:    p.PreviewID,
		},
	}
}

// Timeline read-path limits.
const (
	DefaultTimelineLimit = 50
	MaxTimelineLimit     = 500
)

// TimelineQuery contains the read-path options. Limit is the exact page
// size (0 yields an empty page); an unknown PageToken means offset 0;
// an empty Types list means all types.
type TimelineQuery struct {
	Limit          int
	PageToken      string
	Types          []TimelineItemType
	IncludeRelated bool
}

// TimelinePage is one page of canonically ordered timeline items.
// NextPageToken is nil when the page reaches the end of the timeline.
type TimelinePage struct {
	Items         []TimelineItem `json:"items"`
	NextPageToken *string        `json:"nextPageToken,omitempty"`
	TotalCount    int            `json:"totalCount"`
}
