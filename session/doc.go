// Package session houses concrete implementations of core.SessionStore.
// The interface itself (and the Session struct) live in the core package
// to centralize domain contracts. Keeping only implementations here prevents
// higher level packages (handlers, engine) from depending on concrete
// storage.
//
// Two backends ship with the module: the InMemoryStore in this package and a
// Postgres backed store in the postgres sub-package. Additional backends
// (Redis, Firestore, etc.) belong in further sub-packages so only the wiring
// layer decides which implementation to instantiate.
package session
