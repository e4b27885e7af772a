package timeline

import (
	"sort"

	"github.com/codeready-toolchain/workbench/pkg/models"
)

// SortItems orders a session's items canonically, in place. Sequence
// numbers are authoritative for messages; tool executions follow the
// message that invoked them; timestamps only break the remaining ties.
// The sort is stable, so undecided pairs keep insertion order.
func SortItems(items []models.TimelineItem) {
	roles := make(map[string]models.MessageRole)
	for i := range items {
		if items[i].Type == models.ItemTypeMessage && items[i].Message != nil {
			roles[items[i].ID] = items[i].Message.Role
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return compareItems(&items[i], &items[j], roles) < 0
	})
}

// compareItems returns a negative value when a sorts before b, a
// positive value when after, and zero when the pair is left to
// insertion order.
func compareItems(a, b *models.TimelineItem, roles map[string]models.MessageRole) int {
	aMsg := a.Type == models.ItemTypeMessage && a.Message != nil
	bMsg := b.Type == models.ItemTypeMessage && b.Message != nil

	switch {
	case aMsg && bMsg:
		if c := compareMessages(a, b); c != 0 {
			return c
		}
	case aMsg:
		if c := toolAgainstMessage(b, a, roles); c != 0 {
			return -c
		}
	case bMsg:
		if c := toolAgainstMessage(a, b, roles); c != 0 {
			return c
		}
	}

	// Sibling tools and everything else fall through to timestamps.
	if !a.Timestamp.Equal(b.Timestamp) {
		if a.Timestamp.Before(b.Timestamp) {
			return -1
		}
		return 1
	}
	if ra, rb := typeRank(a.Type), typeRank(b.Type); ra != rb {
		return ra - rb
	}
	return 0
}

// compareMessages orders two message items. When both carry a sequence
// the sequence decides; a sequenced message precedes an unsequenced
// one; among unsequenced pairs user precedes assistant.
func compareMessages(a, b *models.TimelineItem) int {
	sa, sb := a.Message.Sequence, b.Message.Sequence
	switch {
	case sa != nil && sb != nil:
		if *sa != *sb {
			if *sa < *sb {
				return -1
			}
			return 1
		}
	case sa != nil:
		return -1
	case sb != nil:
		return 1
	}

	if ra, rb := a.Message.Role, b.Message.Role; ra != rb {
		if ra == models.RoleUser {
			return -1
		}
		return 1
	}
	return 0
}

// toolAgainstMessage orders a tool-execution item t against a message
// item m: t follows its own parent message, and a tool rooted in a user
// message precedes an assistant reply that does not share that parent.
func toolAgainstMessage(t, m *models.TimelineItem, roles map[string]models.MessageRole) int {
	if t.Type != models.ItemTypeToolExecution || t.ToolExecution == nil {
		return 0
	}
	parent := t.ToolExecution.ParentMessageID
	if parent == "" {
		return 0
	}
	if parent == m.ID {
		return 1
	}
	if roles[parent] == models.RoleUser &&
		m.Message.Role == models.RoleAssistant &&
		m.Message.ParentMessageID != parent {
		return -1
	}
	return 0
}

func typeRank(t models.TimelineItemType) int {
	switch t {
	case models.ItemTypeMessage:
		return 0
	case models.ItemTypeToolExecution:
		return 1
	default:
		return 2
	}
}
