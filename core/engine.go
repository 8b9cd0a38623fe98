package core

import "context"

// Engine coordinates turn execution: routing, handler runs, checkpointing and
// reply aggregation.
//
// A concrete implementation is responsible for:
//   - Registering available handlers (by ID) via Register
//   - Spawning asynchronous turns (ProcessTurn) returning message + error channels
//   - Synchronous convenience execution (HandleTurn) returning the reply text
//
// Implementations SHOULD:
//   - Guarantee ordering of messages per turn
//   - Propagate context cancellation to underlying handler Run calls
//   - Close returned channels when an async turn terminates
//   - Surface terminal errors via the error channel (async) or direct return (sync)
type Engine interface {
	// Register makes a handler available for routing.
	Register(h Handler)

	// ProcessTurn starts an asynchronous turn returning streaming message and
	// terminal error channels. Channels are closed when the turn completes or
	// the context is cancelled. This is the primary API; prefer it for
	// streaming / interactive consumption.
	//
	// Returns:
	//   - turnID: unique identifier for this turn (for cancellation / tracking)
	//   - messagesCh: streamed messages, ending with the aggregated reply
	//   - errorsCh: terminal error channel (buffered size 1)
	//   - err: immediate error starting the turn
	ProcessTurn(ctx context.Context, sessionID, userText string) (string, <-chan Message, <-chan error, error)

	// HandleTurn executes a turn to completion and returns the aggregated,
	// user-facing reply text. Convenience wrapper that drains ProcessTurn.
	HandleTurn(ctx context.Context, sessionID, userText string) (string, error)
}
