package selection

import (
	"context"
	"sync"
	"time"
)

// Store keeps open sessions until they expire.
type Store interface {
	Save(ctx context.Context, session *Session, ttl time.Duration) error
	// Load returns ErrSessionNotFound for unknown and expired sessions.
	Load(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		now:      time.Now,
	}
}

// Save stores a copy of the session.
func (s *MemoryStore) Save(_ context.Context, session *Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	stored := *session
	stored.Accepted = append([]string(nil), session.Accepted...)
	s.sessions[session.ID] = memoryEntry{session: stored, expiresAt: now.Add(ttl)}
	return nil
}

// Load returns a copy of the session.
func (s *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.sessions, id)
		return nil, ErrSessionNotFound
	}

	session := entry.session
	session.Accepted = append([]string(nil), entry.session.Accepted...)
	return &session, nil
}

// Delete forgets the session.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Len returns the number of stored sessions, expired ones included until
// the next sweep.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// sweep drops expired sessions. Must be called with s.mu held.
func (s *MemoryStore) sweep(now time.Time) {
	for id, entry := range s.sessions {
		if !now.Before(entry.expiresAt) {
			delete(s.sessions, id)
		}
	}
}
