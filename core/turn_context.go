package core

import (
	"context"
	"fmt"
	"maps"

	"github.com/hupe1980/tunedesk/logging"
)

// TurnContext carries execution state and helpers for a single handler turn.
// It encapsulates the mutable, per-turn execution scope passed to a Handler's
// Run method. It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (SessionID, TurnID, turn number, owning handler)
//   - The triggering user Message
//   - Emission / resumption coordination channels
//   - The backing SessionStore for persistence concerns
//   - A working Session snapshot and a pending StateDelta to commit
//
// State mutations performed via SetState accumulate in StateDelta until
// CommitStateDelta or EmitMessage flushes them to the store.
type TurnContext struct {
	Context     context.Context
	SessionID   string
	TurnID      string
	Turn        int
	Handler     string
	UserMessage Message
	Emit        chan<- Message
	Resume      <-chan struct{}
	Sessions    SessionStore
	Budget      *ToolBudget
	Session     *Session
	StateDelta  map[string]any

	*loggerAdapter
}

// NewTurnContext constructs a TurnContext with an empty state delta.
func NewTurnContext(
	ctx context.Context,
	sessionID, turnID string,
	turn int,
	handler string,
	userMessage Message,
	toolBudget int,
	emit chan<- Message,
	resume <-chan struct{},
	sess *Session,
	sessions SessionStore,
	logger logging.Logger,
) *TurnContext {
	return &TurnContext{
		Context:       ctx,
		SessionID:     sessionID,
		TurnID:        turnID,
		Turn:          turn,
		Handler:       handler,
		UserMessage:   userMessage,
		Emit:          emit,
		Resume:        resume,
		Session:       sess,
		Sessions:      sessions,
		Budget:        NewToolBudget(toolBudget),
		StateDelta:    map[string]any{},
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (tc *TurnContext) Done() <-chan struct{} { return tc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (tc *TurnContext) Err() error { return tc.Context.Err() }

// GetState returns a staged (delta) value if present, else the persisted session value.
func (tc *TurnContext) GetState(k string) (any, bool) {
	if v, ok := tc.StateDelta[k]; ok {
		return v, true
	}

	if tc.Session != nil {
		return tc.Session.GetState(k)
	}

	return nil, false
}

// SetState stages a state mutation in the in-memory delta buffer.
func (tc *TurnContext) SetState(k string, v any) { tc.StateDelta[k] = v }

// ApplyStateDelta merges all pairs from d into the staged StateDelta.
func (tc *TurnContext) ApplyStateDelta(d map[string]any) {
	maps.Copy(tc.StateDelta, d)
}

// CommitStateDelta persists the accumulated StateDelta then clears the buffer.
func (tc *TurnContext) CommitStateDelta() error {
	if len(tc.StateDelta) == 0 {
		return nil
	}

	if tc.Sessions == nil {
		return fmt.Errorf("session store not configured")
	}

	if err := tc.Sessions.ApplyDelta(tc.Context, tc.SessionID, tc.StateDelta); err != nil {
		return err
	}

	tc.StateDelta = map[string]any{}

	return nil
}

// RefreshSession reloads the session snapshot from the SessionStore.
func (tc *TurnContext) RefreshSession() error {
	if tc.Sessions == nil {
		return fmt.Errorf("session store not configured")
	}

	s, err := tc.Sessions.Get(tc.Context, tc.SessionID)
	if err != nil {
		return err
	}

	tc.Session = s

	return nil
}

// History returns the conversational message history from the current
// session snapshot.
func (tc *TurnContext) History() []Message {
	if tc.Session == nil {
		return []Message{}
	}

	return tc.Session.History()
}

// EmitMessage flushes any staged StateDelta to the store, then sends the
// message on the Emit channel. The flush happens first so a persisted message
// never outruns the state it was produced under.
func (tc *TurnContext) EmitMessage(msg Message) error {
	if err := tc.CommitStateDelta(); err != nil {
		return err
	}

	select {
	case <-tc.Context.Done():
		return tc.Context.Err()
	case tc.Emit <- msg:
	}

	return nil
}

// WaitForResume blocks until the engine signals that the last emitted message
// has been persisted, or until context cancellation.
func (tc *TurnContext) WaitForResume() error {
	if tc.Resume == nil {
		return nil
	}

	select {
	case <-tc.Resume:
		return nil
	case <-tc.Context.Done():
		return tc.Context.Err()
	}
}
