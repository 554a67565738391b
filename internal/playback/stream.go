package playback

import "context"

// EventKind identifies a stream event
type EventKind int

const (
	// EventDuration reports the total audio length in Seconds.
	EventDuration EventKind = iota
	// EventProgress reports the elapsed playback time in Seconds.
	EventProgress
	// EventEnded is sent once when the audio finished.
	EventEnded
	// EventError is sent once when playback failed.
	EventError
)

// Event is emitted by a Stream while it plays
type Event struct {
	Kind    EventKind
	Seconds float64
	Err     error
}

// Stream is one playing audio source.
type Stream interface {
	// Events delivers duration, progress and a final ended or error event.
	Events() <-chan Event
	// Stop halts the audio. It is safe to call more than once.
	Stop()
}

// Output is the audio device. Only one stream is driven at a time.
type Output interface {
	// Start begins playing source, a URL or a local file path.
	Start(ctx context.Context, source string) (Stream, error)
}

// Highlighter marks words of the text being spoken.
type Highlighter interface {
	Highlight(index int)
	Unhighlight(index int)
}

// Listener receives playback status changes. It is called with the
// player's lock held and must not call back into the Player.
type Listener interface {
	PlaybackLoading()
	PlaybackEnded()
	PlaybackFailed(err error)
}

type nopHighlighter struct{}

func (nopHighlighter) Highlight(int)   {}
func (nopHighlighter) Unhighlight(int) {}

type nopListener struct{}

func (nopListener) PlaybackLoading()     {}
func (nopListener) PlaybackEnded()       {}
func (nopListener) PlaybackFailed(error) {}
