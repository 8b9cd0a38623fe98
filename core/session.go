package core

import (
	"context"
	"sync"
	"time"
)

// Session is a conversational container tracking mutable key/value state, an
// ordered message history and the routing decisions made for each turn. It is
// safe for concurrent access.
//
// Contract:
//   - State and history mutations update the Updated timestamp
//   - Messages and Handoffs return defensive copies to avoid external mutation
//   - History filters messages to user/assistant/tool roles and excludes
//     partial streaming fragments
//   - Clone performs deep copies of maps/slices for safe divergence.
type Session struct {
	ID       string            `json:"id"`
	State    map[string]any    `json:"state"`
	Messages []Message         `json:"messages"`
	Handoffs []HandoffRecord   `json:"handoffs"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Metadata map[string]string `json:"metadata"`
	mu       sync.RWMutex
}

// NewSession creates a new session with the given ID.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{ID: id, State: map[string]any{}, Messages: []Message{}, Handoffs: []HandoffRecord{}, Created: now, Updated: now, Metadata: map[string]string{}}
}

// GetState returns the value and existence flag for a state key.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.State[key]
	return v, ok
}

// SetState sets a key/value pair in session state updating the Updated timestamp.
func (s *Session) SetState(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State[key] = value
	s.Updated = time.Now()
}

// StateSnapshot returns a copy of the full state map.
func (s *Session) StateSnapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[string]any, len(s.State))
	for k, v := range s.State {
		snapshot[k] = v
	}
	return snapshot
}

// ApplyStateDelta merges the provided key/value pairs into State.
func (s *Session) ApplyStateDelta(delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range delta {
		s.State[k] = v
	}
	s.Updated = time.Now()
}

// AddMessage appends a message to the history updating the Updated timestamp.
func (s *Session) AddMessage(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, msg)
	s.Updated = time.Now()
}

// AddHandoff appends a routing record updating the Updated timestamp.
func (s *Session) AddHandoff(rec HandoffRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Handoffs = append(s.Handoffs, rec)
	s.Updated = time.Now()
}

// AllMessages returns a defensive copy of the full message slice.
func (s *Session) AllMessages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]Message, len(s.Messages))
	copy(msgs, s.Messages)
	return msgs
}

// AllHandoffs returns a defensive copy of the routing history.
func (s *Session) AllHandoffs() []HandoffRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]HandoffRecord, len(s.Handoffs))
	copy(recs, s.Handoffs)
	return recs
}

// History returns filtered messages suitable for providing conversational
// context to models (excludes partials and non-conversational roles).
func (s *Session) History() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	allowed := map[string]bool{RoleUser: true, RoleAssistant: true, RoleTool: true}
	res := make([]Message, 0, len(s.Messages))
	for _, msg := range s.Messages {
		if !allowed[msg.Role] || msg.Partial {
			continue
		}
		res = append(res, msg)
	}
	return res
}

// TurnMessages returns the messages recorded for a single turn, in order.
func (s *Session) TurnMessages(turn int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Message, 0, 8)
	for _, msg := range s.Messages {
		if msg.Turn == turn {
			res = append(res, msg)
		}
	}
	return res
}

// CurrentTurn returns the highest turn number recorded so far, or 0 for a
// fresh session.
func (s *Session) CurrentTurn() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turn := 0
	for _, msg := range s.Messages {
		if msg.Turn > turn {
			turn = msg.Turn
		}
	}
	return turn
}

// LastHandoff returns the most recent routing record, if any.
func (s *Session) LastHandoff() (HandoffRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.Handoffs) == 0 {
		return HandoffRecord{}, false
	}
	return s.Handoffs[len(s.Handoffs)-1], true
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{ID: s.ID, State: make(map[string]any, len(s.State)), Messages: make([]Message, len(s.Messages)), Handoffs: make([]HandoffRecord, len(s.Handoffs)), Created: s.Created, Updated: s.Updated, Metadata: make(map[string]string, len(s.Metadata))}
	for k, v := range s.State {
		clone.State[k] = v
	}
	copy(clone.Messages, s.Messages)
	copy(clone.Handoffs, s.Handoffs)
	for k, v := range s.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}

// SessionStore persists sessions and their evolving state, message history
// and routing records. Every append doubles as a checkpoint write: once it
// returns nil the data must survive a process restart (subject to the
// backend's durability).
//
// Get must return a fresh, empty session for IDs it has never seen rather
// than an error.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	AppendMessage(ctx context.Context, sessionID string, msg Message) error
	AppendHandoff(ctx context.Context, sessionID string, rec HandoffRecord) error
	ApplyDelta(ctx context.Context, sessionID string, delta map[string]any) error
}
