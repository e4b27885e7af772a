package events

import (
	"time"

	"github.com/codeready-toolchain/workbench/pkg/models"
)

// MessageReceivedPayload is the payload for message_received events.
// Published when a message enters the timeline.
type MessageReceivedPayload struct {
	Type      string                `json:"type"` // always EventTypeMessageReceived
	SessionID string                `json:"sessionId"`
	Message   *models.StoredMessage `json:"message"`
}

// MessageUpdatedPayload is the payload for message_updated events.
// Content is a full replacement, not a delta.
type MessageUpdatedPayload struct {
	Type       string               `json:"type"` // always EventTypeMessageUpdated
	SessionID  string               `json:"sessionId"`
	MessageID  string               `json:"messageId"`
	Content    []models.ContentPart `json:"content"`
	IsComplete bool                 `json:"isComplete"`
}

// ToolExecutionReceivedPayload is the payload for tool_execution_received
// events (non-terminal statuses).
type ToolExecutionReceivedPayload struct {
	Type          string            `json:"type"` // always EventTypeToolExecutionReceived
	SessionID     string            `json:"sessionId"`
	ToolExecution WireToolExecution `json:"toolExecution"`
}

// ToolExecutionUpdatedPayload is the payload for tool_execution_updated
// events (terminal statuses and later preview attachments).
type ToolExecutionUpdatedPayload struct {
	Type          string            `json:"type"` // always EventTypeToolExecutionUpdated
	SessionID     string            `json:"sessionId"`
	ToolExecution WireToolExecution `json:"toolExecution"`
}

// PermissionRequestPayload is the payload for permission_request events.
// Published both when a request is raised and when it is resolved.
type PermissionRequestPayload struct {
	Type              string                    `json:"type"` // always EventTypePermissionRequest
	SessionID         string                    `json:"sessionId"`
	PermissionRequest *models.PermissionRequest `json:"permissionRequest"`
}

// TimelineHistoryPayload is the payload for timeline_history events,
// sent in response to a client replay action.
type TimelineHistoryPayload struct {
	Type          string                `json:"type"` // always EventTypeTimelineHistory
	SessionID     string                `json:"sessionId"`
	Items         []models.TimelineItem `json:"items"`
	TotalCount    int                   `json:"totalCount"`
	NextPageToken *string               `json:"nextPageToken,omitempty"`
}

// WireToolExecution is the client-facing execution shape. The duration
// field is named executionTime on the wire, and the preview travels as
// an embedded copy with redundant hasPreview / previewContentType
// flags.
type WireToolExecution struct {
	ID                 string                 `json:"id"`
	ToolID             string                 `json:"toolId"`
	ToolName           string                 `json:"toolName"`
	ToolUseID          string                 `json:"toolUseId,omitempty"`
	Status             models.ExecutionStatus `json:"status"`
	Args               map[string]any         `json:"args,omitempty"`
	StartTime          time.Time              `json:"startTime"`
	EndTime            *time.Time             `json:"endTime,omitempty"`
	ExecutionTime      *int64                 `json:"executionTime,omitempty"`
	Result             any                    `json:"result,omitempty"`
	Error              *models.ExecutionError `json:"error,omitempty"`
	PermissionID       string                 `json:"permissionId,omitempty"`
	ParentMessageID    string                 `json:"parentMessageId,omitempty"`
	Preview            *WirePreview           `json:"preview,omitempty"`
	HasPreview         bool                   `json:"hasPreview"`
	PreviewContentType string                 `json:"previewContentType,omitempty"`
	Summary            string                 `json:"summary,omitempty"`
}

// WirePreview is the client-facing preview copy. hasActualContent is
// always true for server-built payloads; clients use it to tell a real
// preview from a placeholder they synthesized while waiting.
type WirePreview struct {
	ID               string                    `json:"id"`
	ExecutionID      string                    `json:"executionId"`
	PermissionID     string                    `json:"permissionId,omitempty"`
	ContentType      models.PreviewContentType `json:"contentType"`
	BriefContent     string                    `json:"briefContent"`
	FullContent      string                    `json:"fullContent,omitempty"`
	Metadata         map[string]any            `json:"metadata,omitempty"`
	HasActualContent bool                      `json:"hasActualContent"`
}

// NewWirePreview copies a preview into its wire shape. Returns nil for
// a nil preview.
func NewWirePreview(preview *models.Preview) *WirePreview {
	if preview == nil {
		return nil
	}
	p := preview.Clone()
	return &WirePreview{
		ID:               p.ID,
		ExecutionID:      p.ExecutionID,
		PermissionID:     p.PermissionID,
		ContentType:      p.ContentType,
		BriefContent:     p.BriefContent,
		FullContent:      p.FullContent,
		Metadata:         p.Metadata,
		HasActualContent: true,
	}
}

// NewWireToolExecution builds the wire shape for an execution, with its
// parent message linkage and preview copy.
func NewWireToolExecution(exec *models.ToolExecution, parentMessageID string, preview *models.Preview) WireToolExecution {
	e := exec.Clone()
	w := WireToolExecution{
		ID:              e.ID,
		ToolID:          e.ToolID,
		ToolName:        e.ToolName,
		ToolUseID:       e.ToolUseID,
		Status:          e.Status,
		Args:            e.Args,
		StartTime:       e.StartTime,
		EndTime:         e.EndTime,
		ExecutionTime:   e.ExecutionTimeMs,
		Result:          e.Result,
		Error:           e.Error,
		PermissionID:    e.PermissionID,
		ParentMessageID: parentMessageID,
		Preview:         NewWirePreview(preview),
		Summary:         e.Summary,
	}
	if w.Preview != nil {
		w.HasPreview = true
		w.PreviewContentType = string(w.Preview.ContentType)
	}
	return w
}
