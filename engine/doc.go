// Package engine implements the turn orchestration layer for TuneDesk.
//
// The Engine owns the full lifecycle of a user turn: it serializes turns per
// session, routes each turn to exactly one handler, checkpoints every
// non-partial message before it travels further, and closes the turn with a
// single aggregated reply.
//
// # Turn Lifecycle
//
// Each session moves through a small state machine, one turn at a time:
//
//	Idle → Dispatching → HandlerActive → Aggregating → Idle
//
// Dispatching appends the user message, asks the Dispatcher for a routing
// decision and appends the resulting HandoffRecord. Both writes are
// checkpoints: a failure aborts the turn before the handler ever runs.
//
// HandlerActive runs the selected handler on its own goroutine while the
// pump goroutine drains its emit channel. For every non-partial message the
// pump persists first, forwards second and only then signals the handler to
// resume, so the handler never races ahead of the durable history. Partial
// streaming chunks are forwarded to the caller but never persisted and
// never acknowledged.
//
// Aggregating hands the turn's messages plus the handler's final answer to
// the Aggregator, which composes the one user-facing reply. The reply is
// checkpointed before it is delivered; if that write fails the caller gets
// an error instead of a reply the history never saw.
//
// # Channels
//
//	         emit                 out
//	handler ──────► pump goroutine ──────► caller
//	   ▲               │    │
//	   └── resume ─────┘    └── AppendMessage (checkpoint)
//
// The message channel returned by ProcessTurn carries every non-partial
// message in checkpoint order, interleaved with any streaming chunks, and
// ends with the aggregated reply. The error channel is buffered for the at
// most one terminal error of the turn. Both are closed when the turn ends.
//
// # Concurrency
//
// A capacity-one gate per session guarantees a single logical thread of
// control per session; separate sessions proceed concurrently. Cancelling
// the caller's context (or calling StopTurn) stops the handler at its next
// blocking point and fails the turn with the context error. Checkpoint
// writes already made stay in place, so a cancelled turn never leaves a
// torn history.
//
// # Hooks
//
// Hooks subscribe to lifecycle events (turn_dispatched, message_persisted,
// turn_completed, turn_failed). Only turn_dispatched hooks may veto a turn;
// the other hook points are observation only.
package engine
