package timeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/workbench/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func messageItem(sessionID, id, text string, ts time.Time) *models.TimelineItem {
	item := models.NewMessageItem(&models.StoredMessage{
		ID:        id,
		SessionID: sessionID,
		Role:      models.RoleUser,
		Timestamp: ts,
		Content:   models.TextContent(text),
	})
	return &item
}

func appendRawLine(t *testing.T, store *Store, sessionID, line string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(store.SessionDir(sessionID), 0o755))
	path := filepath.Join(store.SessionDir(sessionID), "timeline.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(line + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()
	_, err := NewStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "sessions"))
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "Sessions directory is created eagerly")

	_, err = NewStore("")
	assert.Error(t, err)
}

func TestAppendAndLoad(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append("s1", messageItem("s1", "m1", "hello", ts)))
	require.NoError(t, store.Append("s1", messageItem("s1", "m2", "world", ts.Add(time.Second))))

	items, err := store.Load("s1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "m1", items[0].ID)
	assert.Equal(t, "m2", items[1].ID)
	require.NotNil(t, items[0].Message)
	assert.Equal(t, "hello", items[0].Message.Content[0].Text)
}

func TestLoad_UnknownSession(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLoad_UpsertReduction(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append("s1", messageItem("s1", "m1", "draft", ts)))
	require.NoError(t, store.Append("s1", messageItem("s1", "m2", "other", ts.Add(time.Second))))
	require.NoError(t, store.Append("s1", messageItem("s1", "m1", "final", ts)))

	items, err := store.Load("s1")
	require.NoError(t, err)
	require.Len(t, items, 2, "Re-appending a key replaces, not duplicates")
	assert.Equal(t, "m1", items[0].ID, "Replaced item keeps its original position")
	assert.Equal(t, "final", items[0].Message.Content[0].Text, "Replaced item carries the last value")
	assert.Equal(t, "m2", items[1].ID)
}

func TestAppend_Validation(t *testing.T) {
	store := newTestStore(t)
	ts := time.Now().UTC()

	assert.Error(t, store.Append("", messageItem("s1", "m1", "x", ts)))
	assert.Error(t, store.Append("s1", nil))
	assert.Error(t, store.Append("s1", &models.TimelineItem{Type: models.ItemTypeMessage}))
	assert.Error(t, store.Append("s1", &models.TimelineItem{ID: "m1", Type: "note"}))
}

func TestAppend_SubstitutesMissingTimestamp(t *testing.T) {
	store := newTestStore(t)
	item := messageItem("s1", "m1", "no clock", time.Time{})

	require.NoError(t, store.Append("s1", item))

	items, err := store.Load("s1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].Timestamp.IsZero())
	assert.WithinDuration(t, time.Now().UTC(), items[0].Timestamp, time.Second)
	assert.True(t, item.Timestamp.IsZero(), "Caller's item is not mutated")
}

func TestLoad_SkipsCorruptLines(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append("s1", messageItem("s1", "m1", "first", ts)))

	appendRawLine(t, store, "s1", "{not json")
	appendRawLine(t, store, "s1", `{"key":{"type":"message","id":""},"item":{"id":"x"}}`)
	appendRawLine(t, store, "s1", `{"key":{"type":"note","id":"n1"},"item":{"id":"n1"}}`)

	require.NoError(t, store.Append("s1", messageItem("s1", "m2", "second", ts.Add(time.Second))))

	items, err := store.Load("s1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "m1", items[0].ID)
	assert.Equal(t, "m2", items[1].ID)
}

func TestLoad_KeyOverridesItemIdentity(t *testing.T) {
	store := newTestStore(t)
	appendRawLine(t, store, "s1",
		`{"key":{"type":"message","id":"m1"},"item":{"id":"other","type":"tool_execution","sessionId":"s1","timestamp":"2026-03-01T10:00:00Z","message":{"role":"user","content":[{"type":"text","text":"hi"}]}}}`)

	items, err := store.Load("s1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "m1", items[0].ID)
	assert.Equal(t, models.ItemTypeMessage, items[0].Type)
}

func TestLoad_LegacyMessagesMergedWhenLogHasNone(t *testing.T) {
	store := newTestStore(t)
	dir := store.SessionDir("legacy")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	msgs := []models.StoredMessage{
		{ID: "m1", Role: models.RoleUser, Timestamp: time.Now().UTC(), Content: models.TextContent("from before")},
		{ID: "", Role: models.RoleUser},
	}
	data, err := json.Marshal(msgs)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "messages.json"), data, 0o644))

	items, err := store.Load("legacy")
	require.NoError(t, err)
	require.Len(t, items, 1, "Messages without an id are dropped")
	assert.Equal(t, "m1", items[0].ID)
	assert.Equal(t, "legacy", items[0].SessionID, "Missing session id is backfilled")
}

func TestLoad_LegacyMessagesIgnoredWhenLogHasMessages(t *testing.T) {
	store := newTestStore(t)
	ts := time.Now().UTC()
	require.NoError(t, store.Append("s1", messageItem("s1", "m2", "from log", ts)))

	msgs := []models.StoredMessage{{ID: "m1", Role: models.RoleUser, Timestamp: ts, Content: models.TextContent("stale")}}
	data, err := json.Marshal(msgs)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.SessionDir("s1"), "messages.json"), data, 0o644))

	items, err := store.Load("s1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "m2", items[0].ID, "The log is authoritative once it holds messages")
}

func TestHasSessionAndListSessions(t *testing.T) {
	store := newTestStore(t)
	assert.False(t, store.HasSession("s1"))

	ids, err := store.ListSessions()
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, store.Append("s1", messageItem("s1", "m1", "x", time.Now().UTC())))
	require.NoError(t, store.Append("s2", messageItem("s2", "m1", "y", time.Now().UTC())))

	assert.True(t, store.HasSession("s1"))
	ids, err = store.ListSessions()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids)
}

func TestCompactSession(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Three records, two live items.
	require.NoError(t, store.Append("s1", messageItem("s1", "m1", "draft", ts)))
	require.NoError(t, store.Append("s1", messageItem("s1", "m2", "other", ts.Add(time.Second))))
	require.NoError(t, store.Append("s1", messageItem("s1", "m1", "final", ts)))

	done, err := store.CompactSession("s1", 5)
	require.NoError(t, err)
	assert.False(t, done, "Below the record threshold nothing is rewritten")

	done, err = store.CompactSession("s1", 3)
	require.NoError(t, err)
	assert.True(t, done)

	items, err := store.Load("s1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "final", items[0].Message.Content[0].Text, "Compaction preserves the reduced state")

	// Already one line per item: nothing left to reclaim.
	done, err = store.CompactSession("s1", 2)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestCompactSession_UnknownSession(t *testing.T) {
	store := newTestStore(t)
	done, err := store.CompactSession("missing", 1)
	require.NoError(t, err)
	assert.False(t, done)
}
