package core

import (
	"context"
	"fmt"

	"github.com/hupe1980/tunedesk/logging"
)

// ToolContext provides a constrained, auditable surface for tool
// implementations invoked by a handler. Tools see the session through it but
// never touch the store directly; state writes accumulate in the turn's delta
// buffer until the turn context flushes them.
type ToolContext struct {
	turnCtx *TurnContext
	callID  string
	valid   bool

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to a parent TurnContext and
// unique tool call ID.
func NewToolContext(turnCtx *TurnContext, callID string) *ToolContext {
	return &ToolContext{
		turnCtx:       turnCtx,
		callID:        callID,
		valid:         true,
		loggerAdapter: newLoggerAdapter(turnCtx.Logger()),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.turnCtx.Context }

// SessionID returns the session ID associated with the tool invocation.
func (tc *ToolContext) SessionID() string { return tc.turnCtx.SessionID }

// TurnID returns the turn ID associated with the tool invocation.
func (tc *ToolContext) TurnID() string { return tc.turnCtx.TurnID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// CallID returns the tool call ID associated with the tool invocation.
func (tc *ToolContext) CallID() string { return tc.callID }

// HandlerID returns the ID of the handler driving the tool invocation.
func (tc *ToolContext) HandlerID() string { return tc.turnCtx.Handler }

// GetState retrieves the state associated with the given key.
func (tc *ToolContext) GetState(k string) (any, bool) {
	return tc.turnCtx.GetState(k)
}

// SetState stages a state mutation on the underlying turn context.
func (tc *ToolContext) SetState(k string, v any) {
	tc.turnCtx.SetState(k, v)
}

// History returns the conversational message history from the turn's session
// snapshot.
func (tc *ToolContext) History() []Message {
	if tc.turnCtx.Session == nil {
		return nil
	}

	return tc.turnCtx.Session.History()
}

// RefreshSession reloads the underlying session from the SessionStore.
func (tc *ToolContext) RefreshSession() error {
	return tc.turnCtx.RefreshSession()
}

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if !tc.IsValid() {
		return fmt.Errorf("invalid ToolContext")
	}

	return nil
}

// IsValid reports whether Validate would succeed (fast path).
func (tc *ToolContext) IsValid() bool {
	return tc.valid && tc.turnCtx != nil && tc.turnCtx.SessionID != "" && tc.callID != ""
}
