package session

import (
	"context"
	"sync"

	"github.com/hupe1980/tunedesk/core"
)

// InMemoryStore is a volatile core.SessionStore keeping sessions in a
// process local map. It is safe for concurrent access and best suited for
// tests and single process demos. Reads return clones so callers can never
// mutate store internals; appends are applied to the canonical copy under
// the write lock.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

var _ core.SessionStore = (*InMemoryStore)(nil)

// Get returns a clone of the stored session, creating an empty one for ids
// the store has never seen.
func (s *InMemoryStore) Get(_ context.Context, id string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getOrCreateLocked(id).Clone(), nil
}

// AppendMessage adds one message to the session history.
func (s *InMemoryStore) AppendMessage(_ context.Context, sessionID string, msg core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getOrCreateLocked(sessionID).AddMessage(msg)

	return nil
}

// AppendHandoff adds one routing record to the session.
func (s *InMemoryStore) AppendHandoff(_ context.Context, sessionID string, rec core.HandoffRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getOrCreateLocked(sessionID).AddHandoff(rec)

	return nil
}

// ApplyDelta merges a key/value delta into the session state.
func (s *InMemoryStore) ApplyDelta(_ context.Context, sessionID string, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getOrCreateLocked(sessionID).ApplyStateDelta(delta)

	return nil
}

// getOrCreateLocked allocates and stores a new session when the id is
// unknown. The caller must hold the write lock.
func (s *InMemoryStore) getOrCreateLocked(id string) *core.Session {
	sess, ok := s.sessions[id]
	if !ok {
		sess = core.NewSession(id)
		s.sessions[id] = sess
	}

	return sess
}
