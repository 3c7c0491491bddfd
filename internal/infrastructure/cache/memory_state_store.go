package cache

import (
	"context"
	"sync"
	"time"

	"archie-core-integrations-layer/internal/domain"
)

// MemoryStateStore keeps pending OAuth sessions in process. Flows must start
// and complete on the same instance.
type MemoryStateStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	now      func() time.Time
}

type memoryEntry struct {
	session   domain.AuthorizationSession
	expiresAt time.Time
}

// NewMemoryStateStore creates an empty in-memory store
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		sessions: make(map[string]memoryEntry),
		now:      time.Now,
	}
}

func (s *MemoryStateStore) Save(_ context.Context, session *domain.AuthorizationSession, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.sessions {
		if now.After(e.expiresAt) {
			delete(s.sessions, k)
		}
	}
	s.sessions[session.State] = memoryEntry{session: *session, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryStateStore) Consume(_ context.Context, state string) (*domain.AuthorizationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[state]
	if !ok {
		return nil, nil
	}
	delete(s.sessions, state)
	if s.now().After(e.expiresAt) {
		return nil, nil
	}
	session := e.session
	return &session, nil
}
