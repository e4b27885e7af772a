package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/workbench/pkg/models"
)

var sortBase = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func seqMessage(id string, role models.MessageRole, seq int, ts time.Time) models.TimelineItem {
	s := seq
	item := unseqMessage(id, role, ts)
	item.Message.Sequence = &s
	return item
}

func unseqMessage(id string, role models.MessageRole, ts time.Time) models.TimelineItem {
	return models.TimelineItem{
		ID:        id,
		Type:      models.ItemTypeMessage,
		SessionID: "s1",
		Timestamp: ts,
		Message:   &models.MessageItem{Role: role, Content: models.TextContent(id)},
	}
}

func toolItem(id, parent string, ts time.Time) models.TimelineItem {
	return models.TimelineItem{
		ID:        id,
		Type:      models.ItemTypeToolExecution,
		SessionID: "s1",
		Timestamp: ts,
		ToolExecution: &models.ExecutionItem{
			ToolID:          "bash",
			ToolName:        "bash",
			Status:          models.StatusCompleted,
			StartTime:       ts,
			ParentMessageID: parent,
		},
	}
}

func permissionItem(id, execID string, ts time.Time) models.TimelineItem {
	return models.TimelineItem{
		ID:        id,
		Type:      models.ItemTypePermissionRequest,
		SessionID: "s1",
		Timestamp: ts,
		PermissionRequest: &models.PermissionItem{
			ExecutionID: execID,
			ToolID:      "bash",
			ToolName:    "bash",
			RequestTime: ts,
		},
	}
}

func idsOf(items []models.TimelineItem) []string {
	out := make([]string, len(items))
	for i := range items {
		out[i] = items[i].ID
	}
	return out
}

func TestSortItems_SequenceBeatsTimestamps(t *testing.T) {
	// The user message was persisted after the assistant's reply started
	// streaming, so its wall clock is later. Sequence still wins.
	items := []models.TimelineItem{
		seqMessage("assistant", models.RoleAssistant, 1, sortBase),
		seqMessage("user", models.RoleUser, 0, sortBase.Add(2*time.Second)),
	}

	SortItems(items)

	assert.Equal(t, []string{"user", "assistant"}, idsOf(items))
}

func TestSortItems_SequenceOutranksRolePriority(t *testing.T) {
	// Alternating turns interleave by sequence; the user's second turn
	// (seq 2) must not jump ahead of the assistant's first reply (seq 1).
	items := []models.TimelineItem{
		seqMessage("u2", models.RoleUser, 2, sortBase.Add(2*time.Second)),
		seqMessage("a1", models.RoleAssistant, 1, sortBase.Add(time.Second)),
		seqMessage("u1", models.RoleUser, 0, sortBase),
	}

	SortItems(items)

	assert.Equal(t, []string{"u1", "a1", "u2"}, idsOf(items))
}

func TestSortItems_SequencedPrecedesUnsequenced(t *testing.T) {
	items := []models.TimelineItem{
		unseqMessage("draft", models.RoleAssistant, sortBase),
		seqMessage("settled", models.RoleUser, 2, sortBase.Add(time.Minute)),
	}

	SortItems(items)

	assert.Equal(t, []string{"settled", "draft"}, idsOf(items))
}

func TestSortItems_UnsequencedUserPrecedesAssistant(t *testing.T) {
	items := []models.TimelineItem{
		unseqMessage("reply", models.RoleAssistant, sortBase),
		unseqMessage("prompt", models.RoleUser, sortBase),
	}

	SortItems(items)

	assert.Equal(t, []string{"prompt", "reply"}, idsOf(items))
}

func TestSortItems_ToolFollowsParentMessage(t *testing.T) {
	// The execution started before its parent message was persisted;
	// parent linkage overrides the earlier timestamp.
	items := []models.TimelineItem{
		toolItem("e1", "m2", sortBase.Add(-2*time.Second)),
		seqMessage("m1", models.RoleUser, 0, sortBase.Add(-5*time.Second)),
		seqMessage("m2", models.RoleAssistant, 1, sortBase),
	}

	SortItems(items)

	assert.Equal(t, []string{"m1", "m2", "e1"}, idsOf(items))
}

func TestSortItems_UserRootedToolPrecedesAssistantReply(t *testing.T) {
	// A tool invoked directly off a user message lands before the
	// assistant message that summarizes it, whatever the clocks say.
	items := []models.TimelineItem{
		seqMessage("reply", models.RoleAssistant, 1, sortBase.Add(time.Second)),
		toolItem("e1", "prompt", sortBase.Add(3*time.Second)),
		seqMessage("prompt", models.RoleUser, 0, sortBase),
	}

	SortItems(items)

	assert.Equal(t, []string{"prompt", "e1", "reply"}, idsOf(items))
}

func TestSortItems_SiblingToolsKeepTimestampOrder(t *testing.T) {
	items := []models.TimelineItem{
		seqMessage("m1", models.RoleAssistant, 1, sortBase),
		toolItem("e2", "m1", sortBase.Add(2*time.Second)),
		toolItem("e1", "m1", sortBase.Add(time.Second)),
	}

	SortItems(items)

	assert.Equal(t, []string{"m1", "e1", "e2"}, idsOf(items))
}

func TestSortItems_PermissionBetweenMessageAndResult(t *testing.T) {
	// Request time predates the execution's ingest, so the permission
	// renders between the prompting message and the tool record.
	items := []models.TimelineItem{
		toolItem("e1", "m1", sortBase.Add(2*time.Second)),
		permissionItem("perm1", "e1", sortBase.Add(time.Second)),
		seqMessage("m1", models.RoleUser, 0, sortBase),
	}

	SortItems(items)

	assert.Equal(t, []string{"m1", "perm1", "e1"}, idsOf(items))
}

func TestSortItems_TimestampFallback(t *testing.T) {
	items := []models.TimelineItem{
		toolItem("late", "", sortBase.Add(2*time.Second)),
		toolItem("early", "", sortBase),
		toolItem("mid", "", sortBase.Add(time.Second)),
	}

	SortItems(items)

	assert.Equal(t, []string{"early", "mid", "late"}, idsOf(items))
}

func TestSortItems_TypeRankBreaksTimestampTies(t *testing.T) {
	items := []models.TimelineItem{
		permissionItem("perm1", "e1", sortBase),
		toolItem("e1", "", sortBase),
		unseqMessage("m1", models.RoleUser, sortBase),
	}

	SortItems(items)

	assert.Equal(t, []string{"m1", "e1", "perm1"}, idsOf(items))
}

func TestSortItems_StableForUndecidedPairs(t *testing.T) {
	items := []models.TimelineItem{
		toolItem("first", "", sortBase),
		toolItem("second", "", sortBase),
	}

	SortItems(items)

	assert.Equal(t, []string{"first", "second"}, idsOf(items), "Fully tied items keep insertion order")
}

func TestSortItems_Idempotent(t *testing.T) {
	items := []models.TimelineItem{
		seqMessage("m2", models.RoleAssistant, 1, sortBase.Add(time.Second)),
		toolItem("e1", "m2", sortBase.Add(500*time.Millisecond)),
		seqMessage("m1", models.RoleUser, 0, sortBase),
		permissionItem("perm1", "e1", sortBase.Add(250*time.Millisecond)),
	}

	SortItems(items)
	first := idsOf(items)
	SortItems(items)

	assert.Equal(t, first, idsOf(items), "Re-sorting a sorted timeline must not reshuffle it")
	assert.Equal(t, []string{"m1", "perm1", "m2", "e1"}, first)
}
