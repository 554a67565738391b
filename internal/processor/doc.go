// Package processor wires the configured components together for each
// run mode: listing decks or models, exporting the deck to Anki and
// running the study session in the GUI.
package processor
