package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager holds the in-memory session registry. Timeline data is
// persisted separately; the registry itself is rebuilt from LoadSession
// calls on restart.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Create registers a fresh active session with the given title.
func (m *Manager) Create(title string) *Session {
	now := time.Now()
	session := &Session{
		ID:        uuid.New().String(),
		Title:     title,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()
	return session
}

// Put installs an externally built session, replacing any existing one
// with the same id. Used when rehydrating sessions from disk.
func (m *Manager) Put(session *Session) {
	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()
}

// Get returns the live session for sessionID. The session is internally
// synchronized; callers wanting an isolated copy use Clone.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if session, ok := m.sessions[sessionID]; ok {
		return session, nil
	}
	return nil, fmt.Errorf("session not found: %s", sessionID)
}

// List returns a snapshot of every registered session.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	return out
}

// Delete removes a session from the registry.
func (m *Manager) Delete(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	delete(m.sessions, sessionID)
	return nil
}
