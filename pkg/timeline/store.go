// Package timeline persists per-session timelines as append-only JSONL
// logs with upsert semantics: each line records a full item under its
// (type, id) key, and loading reduces the log to one item per key.
package timeline

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codeready-toolchain/workbench/pkg/models"
)

// ErrSessionNotFound indicates no persisted state exists for a session.
var ErrSessionNotFound = errors.New("session not found")

const (
	timelineFile = "timeline.jsonl"
	messagesFile = "messages.json"
)

// recordKey identifies a timeline item within a session log.
type recordKey struct {
	Type models.TimelineItemType `json:"type"`
	ID   string                  `json:"id"`
}

// record is one JSONL line: an upsert of the item under its key. A key
// appearing on multiple lines keeps the position of its first
// occurrence and the value of its last.
type record struct {
	Key  recordKey            `json:"key"`
	Item *models.TimelineItem `json:"item"`
}

// Store persists session timelines under dataDir/sessions/<id>/. Each
// write opens the log, appends one line and closes it; durability is
// the OS page cache, not fsync. Writes and compactions for the same
// session serialize on a per-session lock.
type Store struct {
	dataDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a timeline store rooted at dataDir. The sessions
// directory is created eagerly so a bad data dir fails at startup
// rather than on first write.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, errors.New("data dir is required")
	}
	if err := os.MkdirAll(filepath.Join(dataDir, "sessions"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &Store{
		dataDir: dataDir,
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// SessionDir returns the directory holding a session's persisted state.
func (s *Store) SessionDir(sessionID string) string {
	return filepath.Join(s.dataDir, "sessions", sessionID)
}

// HasSession reports whether any persisted state exists for the session.
func (s *Store) HasSession(sessionID string) bool {
	_, err := os.Stat(s.SessionDir(sessionID))
	return err == nil
}

func (s *Store) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

// Append upserts one item into the session log. The write itself is
// always an append of a full record line; replacement happens at load
// time by key reduction. An item without a timestamp gets the current
// time.
func (s *Store) Append(sessionID string, item *models.TimelineItem) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}
	if item == nil {
		return errors.New("timeline item is required")
	}
	if item.ID == "" || !models.ValidItemType(item.Type) {
		return fmt.Errorf("invalid timeline item: type %q id %q", item.Type, item.ID)
	}
	if item.Timestamp.IsZero() {
		patched := *item
		patched.Timestamp = time.Now().UTC()
		slog.Warn("Timeline item has no timestamp, substituting current time",
			"session_id", sessionID, "type", item.Type, "item_id", item.ID)
		item = &patched
	}

	line, err := json.Marshal(record{Key: recordKey{Type: item.Type, ID: item.ID}, Item: item})
	if err != nil {
		return fmt.Errorf("failed to marshal timeline record: %w", err)
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	dir := s.SessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, timelineFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open timeline log: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("failed to append timeline record: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close timeline log: %w", err)
	}
	return nil
}

// Load replays a session's log into its current item set: one item per
// (type, id) key, value from the last record, position from the first.
// Corrupt lines are logged and skipped. Sessions written by agents that
// keep messages in a separate messages.json are merged in when the log
// itself holds no message items. Returns ErrSessionNotFound when the
// session has no directory at all.
func (s *Store) Load(sessionID string) ([]models.TimelineItem, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	dir := s.SessionDir(sessionID)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("failed to stat session directory: %w", err)
	}

	items, err := s.readLog(sessionID, filepath.Join(dir, timelineFile))
	if err != nil {
		return nil, err
	}

	hasMessages := false
	for i := range items {
		if items[i].Type == models.ItemTypeMessage {
			hasMessages = true
			break
		}
	}
	if !hasMessages {
		legacy, err := s.readLegacyMessages(sessionID, filepath.Join(dir, messagesFile))
		if err != nil {
			return nil, err
		}
		items = append(items, legacy...)
	}
	return items, nil
}

// readLog reads and reduces one JSONL log. Uses a bufio.Reader rather
// than a Scanner: tool results can exceed any fixed line limit.
func (s *Store) readLog(sessionID, path string) ([]models.TimelineItem, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open timeline log: %w", err)
	}
	defer f.Close()

	var items []models.TimelineItem
	positions := make(map[recordKey]int)
	reader := bufio.NewReader(f)
	lineNo := 0

	for {
		line, err := reader.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			lineNo++
			items = s.applyRecord(sessionID, lineNo, trimmed, positions, items)
		}
		if errors.Is(err, io.EOF) {
			return items, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read timeline log: %w", err)
		}
	}
}

// applyRecord reduces one log line into the item set.
func (s *Store) applyRecord(sessionID string, lineNo int, line []byte, positions map[recordKey]int, items []models.TimelineItem) []models.TimelineItem {
	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		slog.Warn("Skipping corrupt timeline record",
			"session_id", sessionID, "line", lineNo, "error", err)
		return items
	}
	if rec.Item == nil || rec.Key.ID == "" || !models.ValidItemType(rec.Key.Type) {
		slog.Warn("Skipping timeline record with invalid key",
			"session_id", sessionID, "line", lineNo,
			"type", rec.Key.Type, "item_id", rec.Key.ID)
		return items
	}

	// The key is authoritative for identity.
	rec.Item.ID = rec.Key.ID
	rec.Item.Type = rec.Key.Type

	if idx, ok := positions[rec.Key]; ok {
		items[idx] = *rec.Item
		return items
	}
	positions[rec.Key] = len(items)
	return append(items, *rec.Item)
}

// readLegacyMessages reads a messages.json blob written next to the
// log by the agent runtime and converts it to message items.
func (s *Store) readLegacyMessages(sessionID, path string) ([]models.TimelineItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read messages file: %w", err)
	}

	var msgs []models.StoredMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		slog.Warn("Skipping unparseable messages file",
			"session_id", sessionID, "error", err)
		return nil, nil
	}

	items := make([]models.TimelineItem, 0, len(msgs))
	for i := range msgs {
		msg := msgs[i]
		if msg.ID == "" {
			continue
		}
		if msg.SessionID == "" {
			msg.SessionID = sessionID
		}
		items = append(items, models.NewMessageItem(&msg))
	}
	return items, nil
}

// ListSessions returns the ids of all sessions with persisted state.
func (s *Store) ListSessions() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dataDir, "sessions"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// CompactSession rewrites a session log to one record per key once the
// log has accumulated at least minRecords lines. Returns whether a
// rewrite happened. The rewrite is atomic: a temp file in the session
// directory replaces the log via rename.
func (s *Store) CompactSession(sessionID string, minRecords int) (bool, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	path := filepath.Join(s.SessionDir(sessionID), timelineFile)
	lines, err := countLines(path)
	if err != nil {
		return false, err
	}
	if lines < minRecords {
		return false, nil
	}

	items, err := s.readLog(sessionID, path)
	if err != nil {
		return false, err
	}
	if len(items) >= lines {
		return false, nil
	}

	tmp, err := os.CreateTemp(s.SessionDir(sessionID), timelineFile+".compact-*")
	if err != nil {
		return false, fmt.Errorf("failed to create compaction file: %w", err)
	}
	w := bufio.NewWriter(tmp)
	for i := range items {
		item := items[i]
		line, err := json.Marshal(record{Key: recordKey{Type: item.Type, ID: item.ID}, Item: &item})
		if err == nil {
			_, err = w.Write(append(line, '\n'))
		}
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return false, fmt.Errorf("failed to write compacted record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return false, fmt.Errorf("failed to flush compacted log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return false, fmt.Errorf("failed to close compacted log: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return false, fmt.Errorf("failed to replace timeline log: %w", err)
	}

	slog.Info("Compacted session timeline",
		"session_id", sessionID, "records_before", lines, "records_after", len(items))
	return true, nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to open timeline log: %w", err)
	}
	defer f.Close()

	count := 0
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			count++
		}
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read timeline log: %w", err)
		}
	}
}
