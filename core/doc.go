// Package core provides the foundational domain types, interfaces and
// execution contexts used by TuneDesk. It defines the core abstractions for:
//
//   - Handlers (domain specialists that own a single user turn)
//   - Sessions (stateful conversational containers with message history)
//   - Messages and Parts (immutable conversation + tool interaction records)
//   - HandoffRecords (per-turn routing decisions)
//   - TurnContext / ToolContext (scoped execution & tool sandboxing)
//   - The SessionStore checkpoint contract
//
// The package intentionally keeps implementation concerns (persistence,
// engine orchestration, concrete handlers) out of scope, exposing small
// interfaces to enable custom backends and extensions.
package core
