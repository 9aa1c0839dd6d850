package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	username string
	expires  time.Time
}

// MemoryStore keeps sessions in process memory
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]memoryEntry
}

// NewMemoryStore creates an in-process store whose sessions live for ttl
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Create(_ context.Context, username string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	id := NewID()
	s.sessions[id] = memoryEntry{username: username, expires: s.now().Add(s.ttl)}
	return id, nil
}

func (s *MemoryStore) Lookup(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok {
		return "", ErrNoSession
	}
	if !s.now().Before(entry.expires) {
		delete(s.sessions, id)
		return "", ErrNoSession
	}
	return entry.username, nil
}

func (s *MemoryStore) Destroy(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// sweep drops expired sessions. Caller holds mu.
func (s *MemoryStore) sweep() {
	now := s.now()
	for id, entry := range s.sessions {
		if !now.Before(entry.expires) {
			delete(s.sessions, id)
		}
	}
}
