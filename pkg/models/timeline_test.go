package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidItemType(t *testing.T) {
	assert.True(t, ValidItemType(ItemTypeMessage))
	assert.True(t, ValidItemType(ItemTypeToolExecution))
	assert.True(t, ValidItemType(ItemTypePermissionRequest))
	assert.False(t, ValidItemType("note"))
	assert.False(t, ValidItemType(""))
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.False(t, StatusAwaitingPermission.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusError.IsTerminal())
	assert.True(t, StatusAborted.IsTerminal())
}

func TestNewMessageItem(t *testing.T) {
	seq := 1
	msg := &StoredMessage{
		ID:        "m1",
		SessionID: "s1",
		Role:      RoleAssistant,
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Content:   TextContent("running checks"),
		Sequence:  &seq,
		ToolCalls: []ToolCallRef{
			{ExecutionID: "e1", ToolName: "bash", Index: 0},
			{ExecutionID: "", ToolName: "phantom", Index: 1},
			{ExecutionID: "e2", ToolName: "read_file", Index: 2},
		},
	}

	item := NewMessageItem(msg)

	assert.Equal(t, "m1", item.ID)
	assert.Equal(t, ItemTypeMessage, item.Type)
	assert.Equal(t, "s1", item.SessionID)
	assert.Equal(t, msg.Timestamp, item.Timestamp)
	require.NotNil(t, item.Message)
	assert.Equal(t, RoleAssistant, item.Message.Role)
	assert.Equal(t, []string{"e1", "e2"}, item.Message.ToolExecutions,
		"Execution ids are copied from toolCalls, skipping empty ones")
	require.NotNil(t, item.Message.Sequence)
	assert.Equal(t, 1, *item.Message.Sequence)
}

func TestNewExecutionItem(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)
	exec := &ToolExecution{
		ID:        "e1",
		SessionID: "s1",
		ToolID:    "bash",
		ToolName:  "bash",
		Status:    StatusRunning,
		StartTime: start,
		Args:      map[string]any{"command": "ls"},
	}

	item := NewExecutionItem(exec, "m1", nil)

	assert.Equal(t, "e1", item.ID)
	assert.Equal(t, ItemTypeToolExecution, item.Type)
	assert.Equal(t, start, item.Timestamp, "Item timestamp defaults to the execution start time")
	require.NotNil(t, item.ToolExecution)
	assert.Equal(t, "m1", item.ToolExecution.ParentMessageID)
	assert.Nil(t, item.ToolExecution.Preview)
	assert.Equal(t, StatusRunning, item.ToolExecution.Status)
}

func TestNewExecutionItem_WithPreview(t *testing.T) {
	exec := &ToolExecution{
		ID:        "e1",
		SessionID: "s1",
		ToolID:    "bash",
		Status:    StatusCompleted,
		StartTime: time.Now().UTC(),
	}
	preview := &Preview{ID: "p1", SessionID: "s1", ExecutionID: "e1", ContentType: PreviewText, BriefContent: "3 files"}

	item := NewExecutionItem(exec, "", preview)

	require.NotNil(t, item.ToolExecution.Preview)
	assert.Equal(t, "p1", item.ToolExecution.Preview.ID)

	// The item holds its own copy.
	preview.BriefContent = "mutated"
	assert.Equal(t, "3 files", item.ToolExecution.Preview.BriefContent)
}

func TestNewPermissionItem(t *testing.T) {
	requestTime := time.Date(2026, 3, 1, 10, 0, 7, 0, time.UTC)
	perm := &PermissionRequest{
		ID:          "perm1",
		SessionID:   "s1",
		ExecutionID: "e1",
		ToolID:      "bash",
		ToolName:    "bash",
		RequestTime: requestTime,
	}

	item := NewPermissionItem(perm)

	assert.Equal(t, "perm1", item.ID)
	assert.Equal(t, ItemTypePermissionRequest, item.Type)
	assert.Equal(t, requestTime, item.Timestamp)
	require.NotNil(t, item.PermissionRequest)
	assert.Equal(t, "e1", item.PermissionRequest.ExecutionID)
	assert.Nil(t, item.PermissionRequest.Granted)
}

func TestToolExecution_Clone(t *testing.T) {
	end := time.Now().UTC()
	ms := int64(1200)
	exec := &ToolExecution{
		ID:              "e1",
		Args:            map[string]any{"command": "ls"},
		EndTime:         &end,
		ExecutionTimeMs: &ms,
		Error:           &ExecutionError{Message: "boom"},
	}

	clone := exec.Clone()
	clone.Args["command"] = "rm"
	*clone.ExecutionTimeMs = 9
	clone.Error.Message = "mutated"

	assert.Equal(t, "ls", exec.Args["command"])
	assert.Equal(t, int64(1200), *exec.ExecutionTimeMs)
	assert.Equal(t, "boom", exec.Error.Message)
}

func TestPermissionRequest_Resolved(t *testing.T) {
	perm := &PermissionRequest{ID: "perm1"}
	assert.False(t, perm.Resolved())

	now := time.Now().UTC()
	perm.ResolvedTime = &now
	assert.True(t, perm.Resolved())
}
