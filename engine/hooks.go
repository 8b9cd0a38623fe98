package engine

import (
	"context"

	"github.com/hupe1980/tunedesk/core"
	"github.com/hupe1980/tunedesk/logging"
)

// HookType identifies a point in the turn lifecycle where hooks run.
type HookType string

const (
	// HookTurnDispatched fires after the routing decision has been
	// checkpointed and before the handler starts. An error returned from a
	// hook at this point aborts the turn.
	HookTurnDispatched HookType = "turn_dispatched"

	// HookMessagePersisted fires after a message has been checkpointed.
	// Errors are logged and do not affect the turn.
	HookMessagePersisted HookType = "message_persisted"

	// HookTurnCompleted fires after the aggregated reply has been
	// checkpointed and delivered. Errors are logged and do not affect the
	// turn.
	HookTurnCompleted HookType = "turn_completed"

	// HookTurnFailed fires when a turn terminates with an error. Errors are
	// logged and do not affect the turn.
	HookTurnFailed HookType = "turn_failed"
)

// HookContext carries the data a hook may inspect. Fields beyond the turn
// coordinates are populated per hook type.
type HookContext struct {
	SessionID string
	TurnID    string
	Turn      int
	Handler   string

	// Handoff is set for turn_dispatched.
	Handoff *core.HandoffRecord

	// Message is set for message_persisted and turn_completed.
	Message *core.Message

	// Err is set for turn_failed.
	Err error
}

// Hook observes turn lifecycle events. Hooks run synchronously on the turn's
// goroutine, so implementations should be fast and must not block on the
// engine's own channels. Only turn_dispatched hooks can veto a turn by
// returning an error; errors from the other hook points are logged and
// otherwise ignored.
type Hook interface {
	// Type returns the lifecycle point this hook subscribes to.
	Type() HookType

	// Execute runs the hook with the populated context.
	Execute(ctx context.Context, hc *HookContext) error
}

// HookFunc adapts a plain function to the Hook interface.
type HookFunc struct {
	hookType HookType
	fn       func(ctx context.Context, hc *HookContext) error
}

// NewHookFunc wraps fn as a hook for the given lifecycle point.
func NewHookFunc(hookType HookType, fn func(ctx context.Context, hc *HookContext) error) *HookFunc {
	return &HookFunc{hookType: hookType, fn: fn}
}

// Type returns the lifecycle point the function subscribes to.
func (h *HookFunc) Type() HookType { return h.hookType }

// Execute calls the wrapped function.
func (h *HookFunc) Execute(ctx context.Context, hc *HookContext) error {
	return h.fn(ctx, hc)
}

// NewLoggingHook returns a hook that writes one structured log line per
// event at the given lifecycle point. Register one per HookType of interest.
func NewLoggingHook(hookType HookType, logger logging.Logger) *HookFunc {
	return NewHookFunc(hookType, func(_ context.Context, hc *HookContext) error {
		logger.Info(string(hookType),
			"session_id", hc.SessionID,
			"turn_id", hc.TurnID,
			"turn", hc.Turn,
			"handler", hc.Handler,
		)

		return nil
	})
}

// hookSet routes lifecycle events to registered hooks in registration order.
type hookSet struct {
	hooks map[HookType][]Hook
}

func newHookSet() *hookSet {
	return &hookSet{hooks: make(map[HookType][]Hook)}
}

func (s *hookSet) register(h Hook) {
	s.hooks[h.Type()] = append(s.hooks[h.Type()], h)
}

// fire runs every hook registered for typ in order and returns the first
// error, skipping the remaining hooks.
func (s *hookSet) fire(ctx context.Context, typ HookType, hc *HookContext) error {
	for _, h := range s.hooks[typ] {
		if err := h.Execute(ctx, hc); err != nil {
			return err
		}
	}

	return nil
}
