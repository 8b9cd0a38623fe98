// Package dispatch routes user turns to handlers.
//
// The dispatcher is a pure decision component: it reads the session, scores
// the user text against declared capabilities and returns exactly one
// HandoffRecord. Persisting the record and running the selected handler is
// the engine's job. Continuation of an unfinished tool loop always beats
// fresh classification, and classification never fails thanks to the
// configured fallback handler.
package dispatch
