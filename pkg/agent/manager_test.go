package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/workbench/pkg/models"
)

func TestManager_Create(t *testing.T) {
	m := NewManager()

	session := m.Create("fix the build")

	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "fix the build", session.Title)
	assert.Equal(t, StatusActive, session.Status)
	assert.False(t, session.CreatedAt.IsZero())

	got, err := m.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
}

func TestManager_GetUnknown(t *testing.T) {
	m := NewManager()
	_, err := m.Get("missing")
	assert.Error(t, err)
}

func TestManager_List(t *testing.T) {
	m := NewManager()
	m.Create("first")
	m.Create("second")

	sessions := m.List()
	require.Len(t, sessions, 2)

	// List hands out snapshots.
	sessions[0].Title = "mutated"
	fresh := m.List()
	for _, s := range fresh {
		assert.NotEqual(t, "mutated", s.Title)
	}
}

func TestManager_Delete(t *testing.T) {
	m := NewManager()
	session := m.Create("ephemeral")

	require.NoError(t, m.Delete(session.ID))
	_, err := m.Get(session.ID)
	assert.Error(t, err)

	assert.Error(t, m.Delete(session.ID), "Deleting twice fails")
}

func TestManager_PutReplaces(t *testing.T) {
	m := NewManager()
	session := m.Create("original")

	replacement := &Session{ID: session.ID, Title: "rehydrated", Status: StatusActive}
	m.Put(replacement)

	got, err := m.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, "rehydrated", got.Title)
}

func TestSession_UpsertMessage(t *testing.T) {
	m := NewManager()
	session := m.Create("chat")
	before := session.UpdatedAt

	session.UpsertMessage(models.StoredMessage{
		ID:      "m1",
		Role:    models.RoleUser,
		Content: models.TextContent("hello"),
	})
	session.UpsertMessage(models.StoredMessage{
		ID:      "m2",
		Role:    models.RoleAssistant,
		Content: models.TextContent("hi"),
	})
	session.UpsertMessage(models.StoredMessage{
		ID:      "m1",
		Role:    models.RoleUser,
		Content: models.TextContent("hello, edited"),
	})

	snapshot := session.Clone()
	require.Len(t, snapshot.State.ConversationHistory, 2, "Upserting an existing id replaces in place")
	assert.Equal(t, "hello, edited", snapshot.State.ConversationHistory[0].Content[0].Text)
	assert.Equal(t, "m2", snapshot.State.ConversationHistory[1].ID)
	assert.True(t, snapshot.UpdatedAt.After(before) || snapshot.UpdatedAt.Equal(before))
}

func TestSession_Clone(t *testing.T) {
	m := NewManager()
	session := m.Create("chat")
	session.UpsertMessage(models.StoredMessage{
		ID:        "m1",
		Role:      models.RoleUser,
		Timestamp: time.Now().UTC(),
		Content:   models.TextContent("original"),
	})

	clone := session.Clone()
	clone.State.ConversationHistory[0].Content[0].Text = "mutated"

	fresh := session.Clone()
	assert.Equal(t, "original", fresh.State.ConversationHistory[0].Content[0].Text)
}
