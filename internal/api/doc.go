// Package api is the REST client of the flashcard backend. It loads decks,
// persists the learned flag, synthesizes speech and generates or deletes
// card images.
//
// Every request goes through a rate limiter and a circuit breaker. Failures
// are reported as *NetworkError, *ProtocolError or *BackendError so callers
// can tell them apart with errors.As.
package api
