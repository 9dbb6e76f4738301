package session

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL bounds how long an untouched session is kept.
const DefaultTTL = 24 * time.Hour

// Store keeps sessions between turns. Load returns a fresh idle session
// when none is stored.
type Store interface {
	Load(ctx context.Context, userID, chatID int64) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, userID int64) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]Session
	ttl      time.Duration
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]Session),
		ttl:      DefaultTTL,
		now:      time.Now,
	}
}

func (m *MemoryStore) Load(_ context.Context, userID, chatID int64) (Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[userID]
	m.mu.RUnlock()
	if !ok || (m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl) {
		return New(userID, chatID), nil
	}
	out := s.Clone()
	if chatID != 0 {
		out.ChatID = chatID
	}
	return out, nil
}

func (m *MemoryStore) Save(_ context.Context, s Session) error {
	s = s.Clone()
	s.UpdatedAt = m.now()
	m.mu.Lock()
	m.sessions[s.UserID] = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
