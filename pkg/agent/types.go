// Package agent holds the in-process agent runtime surface the
// timeline service consumes: session state with conversation history,
// the agent event bus, and the bridge that ties them to the tool
// execution manager.
package agent

import (
	"sync"
	"time"

	"github.com/codeready-toolchain/workbench/pkg/models"
)

// Status represents the current state of a session
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// State is the agent-visible mutable state of a session.
type State struct {
	ConversationHistory []models.StoredMessage `json:"conversationHistory"`
}

// Session represents a conversation session
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	State     State     `json:"state"`

	mu sync.RWMutex // Protects concurrent access to session fields
}

// UpsertMessage adds a message to the conversation history, replacing
// any existing entry with the same id (thread-safe).
func (s *Session) UpsertMessage(msg models.StoredMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.State.ConversationHistory {
		if s.State.ConversationHistory[i].ID == msg.ID {
			s.State.ConversationHistory[i] = msg
			s.UpdatedAt = time.Now()
			return
		}
	}
	s.State.ConversationHistory = append(s.State.ConversationHistory, msg)
	s.UpdatedAt = time.Now()
}

// SetStatus updates the session status (thread-safe)
func (s *Session) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Status = status
	s.UpdatedAt = time.Now()
}

// Clone creates a safe copy of the session for reading
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]models.StoredMessage, 0, len(s.State.ConversationHistory))
	for i := range s.State.ConversationHistory {
		history = append(history, *s.State.ConversationHistory[i].Clone())
	}

	return &Session{
		ID:        s.ID,
		Title:     s.Title,
		Status:    s.Status,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		State:     State{ConversationHistory: history},
	}
}
