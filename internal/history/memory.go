package history

import (
	"context"
	"sync"
	"time"

	"estatechat/internal/model"
)

// MemoryStore keeps a session's history in process memory. Each session
// owns its own instance; there is no cross-session sharing.
type MemoryStore struct {
	mu    sync.RWMutex
	turns []model.Turn
}

// NewMemoryStore creates an empty in-memory history
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append adds a turn at the tail
func (s *MemoryStore) Append(_ context.Context, turn model.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	s.turns = append(s.turns, turn)
	return nil
}

// ReplaceLastOfRole rewrites the most recent turn of the given role in
// place, appending when none exists yet
func (s *MemoryStore) ReplaceLastOfRole(ctx context.Context, role model.Role, text string) error {
	s.mu.Lock()
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].Role == role {
			s.turns[i].Text = text
			s.mu.Unlock()
			return nil
		}
	}
	s.mu.Unlock()
	return s.Append(ctx, model.Turn{Role: role, Text: text})
}

// Snapshot returns a copy of the full history
func (s *MemoryStore) Snapshot(_ context.Context) ([]model.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Turn, len(s.turns))
	copy(out, s.turns)
	return out, nil
}
