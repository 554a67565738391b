// Package session implements the study session: navigation through the
// cards still to be learned, marking cards as learned, deleting and
// regenerating images behind a two-click confirmation, and resetting the
// deck.
//
// Controller operations are blocking and safe for concurrent use. Only one
// state-changing operation runs at a time; others fail fast with ErrBusy
// while it is in flight.
package session
