package session

import (
	"context"
	"sync"
	"time"

	"github.com/szaher/meemo/internal/tutor"
)

// MemoryStore is an in-memory session store with expiry support. It
// stores deep copies, so callers never share state with the store.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memoryEntry
	expiry   time.Duration
}

type memoryEntry struct {
	state      *tutor.State
	lastActive time.Time
}

// NewMemoryStore creates an in-memory session store.
// expiry defines session idle timeout; 0 means no expiry.
func NewMemoryStore(expiry time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memoryEntry),
		expiry:   expiry,
	}
}

// Get retrieves the state for a session id.
func (s *MemoryStore) Get(_ context.Context, id string) (*tutor.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.expiry > 0 && time.Since(entry.lastActive) > s.expiry {
		delete(s.sessions, id)
		return nil, ErrNotFound
	}
	return entry.state.Clone(), nil
}

// Put stores the state snapshot for a session id.
func (s *MemoryStore) Put(_ context.Context, id string, st *tutor.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &memoryEntry{state: st.Clone(), lastActive: time.Now()}
	return nil
}

// Delete removes a session.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Len reports the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle longer than olderThan.
func (s *MemoryStore) Sweep(_ context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.sessions {
		if time.Since(entry.lastActive) > olderThan {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}
