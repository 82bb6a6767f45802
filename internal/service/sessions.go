package service

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"estatechat/internal/history"
)

// HistoryFactory creates the history backend for a new session
type HistoryFactory func(sessionID string) (history.Store, error)

// SessionManager owns the live conversations, one per session ID. Sessions
// are created lazily on first use and live for the process lifetime.
type SessionManager struct {
	mu         sync.Mutex
	sessions   map[string]*Conversation
	newHistory HistoryFactory
	deps       ConversationDeps
	log        *zap.Logger
}

// NewSessionManager creates a manager. The deps' History field is ignored;
// each session gets its own store from the factory.
func NewSessionManager(deps ConversationDeps, newHistory HistoryFactory) *SessionManager {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionManager{
		sessions:   make(map[string]*Conversation),
		newHistory: newHistory,
		deps:       deps,
		log:        log,
	}
}

// Acquire returns the conversation for the session, creating it when
// absent. An empty ID mints a fresh session; the returned ID is the one
// the caller should carry forward.
func (m *SessionManager) Acquire(sessionID string) (string, *Conversation, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if conv, ok := m.sessions[sessionID]; ok {
		return sessionID, conv, nil
	}

	store, err := m.newHistory(sessionID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create session history: %w", err)
	}

	deps := m.deps
	deps.History = store
	conv := NewConversation(sessionID, deps)
	m.sessions[sessionID] = conv

	m.log.Info("session created", zap.String("session_id", sessionID))
	return sessionID, conv, nil
}

// Lookup returns an existing conversation without creating one
func (m *SessionManager) Lookup(sessionID string) (*Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.sessions[sessionID]
	return conv, ok
}

// Count returns the number of live sessions
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
