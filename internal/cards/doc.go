// Package cards holds the study card model and the repository that keeps
// the master collection together with its derived subset of cards that
// are still to be learned.
package cards
