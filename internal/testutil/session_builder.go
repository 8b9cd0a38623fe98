package testutil

import (
	"github.com/hupe1980/tunedesk/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := testutil.NewSessionBuilder("sess-1").State("k", "v").Messages(m1, m2).Build()
type SessionBuilder struct {
	id       string
	state    map[string]any
	messages []core.Message
	handoffs []core.HandoffRecord
}

// NewSessionBuilder creates a new builder for a session with the given id.
// Use chainable methods (State, Message, Messages, Handoff) then call Build.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, state: map[string]any{}}
}

// State sets or overwrites a state key/value pair on the resulting session (chainable).
func (b *SessionBuilder) State(key string, val any) *SessionBuilder {
	b.state[key] = val
	return b
}

// Message appends a single message to the session history (chainable).
func (b *SessionBuilder) Message(msg core.Message) *SessionBuilder {
	b.messages = append(b.messages, msg)
	return b
}

// Messages appends multiple messages to the session history (chainable).
func (b *SessionBuilder) Messages(msgs ...core.Message) *SessionBuilder {
	b.messages = append(b.messages, msgs...)
	return b
}

// Handoff appends a routing record (chainable).
func (b *SessionBuilder) Handoff(rec core.HandoffRecord) *SessionBuilder {
	b.handoffs = append(b.handoffs, rec)
	return b
}

// Build returns a *core.Session with pre-populated state, history and
// routing records.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id)
	s.ApplyStateDelta(b.state)

	for _, msg := range b.messages {
		s.AddMessage(msg)
	}

	for _, rec := range b.handoffs {
		s.AddHandoff(rec)
	}

	return s
}
