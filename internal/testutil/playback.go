package testutil

import (
	"context"
	"fmt"
	"sync"

	"codeberg.org/snonux/studycards/internal/playback"
	"codeberg.org/snonux/studycards/internal/speech"
)

// FakeSynthesizer returns a fixed reference for every request
type FakeSynthesizer struct {
	Ref string
	Err error
	// Gate, when set, blocks every call until it is closed or receives.
	Gate chan struct{}

	mu    sync.Mutex
	Calls []speech.Request
}

// Synthesize records the request and returns Ref or Err
func (f *FakeSynthesizer) Synthesize(ctx context.Context, req speech.Request) (string, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, req)
	f.mu.Unlock()

	if f.Gate != nil {
		select {
		case <-f.Gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.Ref, f.Err
}

// Name returns the provider name
func (f *FakeSynthesizer) Name() string { return "fake" }

// CallCount returns the number of Synthesize calls
func (f *FakeSynthesizer) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// FakeOutput hands out FakeStreams and publishes them on Started.
type FakeOutput struct {
	Err     error
	Started chan *FakeStream

	mu      sync.Mutex
	Sources []string
}

// NewFakeOutput creates an output with a buffered Started channel
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{Started: make(chan *FakeStream, 16)}
}

// Start creates a stream for source
func (o *FakeOutput) Start(ctx context.Context, source string) (playback.Stream, error) {
	o.mu.Lock()
	o.Sources = append(o.Sources, source)
	o.mu.Unlock()

	if o.Err != nil {
		return nil, o.Err
	}
	s := &FakeStream{Source: source, events: make(chan playback.Event), done: make(chan struct{})}
	o.Started <- s
	return s, nil
}

// FakeStream is a stream whose events are pushed by the test.
type FakeStream struct {
	Source string

	events   chan playback.Event
	done     chan struct{}
	stopOnce sync.Once
}

// Events returns the event channel
func (s *FakeStream) Events() <-chan playback.Event { return s.events }

// Stop marks the stream stopped
func (s *FakeStream) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Stopped reports whether Stop was called
func (s *FakeStream) Stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Emit delivers an event. It returns false if the stream was stopped
// before the player received it.
func (s *FakeStream) Emit(ev playback.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// Duration emits a duration event
func (s *FakeStream) Duration(seconds float64) bool {
	return s.Emit(playback.Event{Kind: playback.EventDuration, Seconds: seconds})
}

// Progress emits a progress event
func (s *FakeStream) Progress(seconds float64) bool {
	return s.Emit(playback.Event{Kind: playback.EventProgress, Seconds: seconds})
}

// End emits the ended event
func (s *FakeStream) End() bool {
	return s.Emit(playback.Event{Kind: playback.EventEnded})
}

// Fail emits an error event
func (s *FakeStream) Fail(err error) bool {
	return s.Emit(playback.Event{Kind: playback.EventError, Err: err})
}

// RecordingHighlighter tracks which words are highlighted.
type RecordingHighlighter struct {
	mu     sync.Mutex
	lit    map[int]bool
	maxLit int
	Ops    []string
}

// NewRecordingHighlighter creates an empty highlighter
func NewRecordingHighlighter() *RecordingHighlighter {
	return &RecordingHighlighter{lit: make(map[int]bool)}
}

// Highlight marks word i
func (h *RecordingHighlighter) Highlight(i int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lit[i] = true
	if len(h.lit) > h.maxLit {
		h.maxLit = len(h.lit)
	}
	h.Ops = append(h.Ops, fmt.Sprintf("+%d", i))
}

// Unhighlight clears word i
func (h *RecordingHighlighter) Unhighlight(i int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lit, i)
	h.Ops = append(h.Ops, fmt.Sprintf("-%d", i))
}

// Lit returns the highlighted word indices count
func (h *RecordingHighlighter) Lit() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.lit)
}

// IsLit reports whether word i is highlighted
func (h *RecordingHighlighter) IsLit(i int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lit[i]
}

// MaxLit returns the largest number of words ever highlighted at once
func (h *RecordingHighlighter) MaxLit() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxLit
}

// Operations returns a copy of the recorded operations
func (h *RecordingHighlighter) Operations() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.Ops...)
}

// RecordingListener records playback status changes
type RecordingListener struct {
	mu     sync.Mutex
	Events []string
	Errors []error
}

// PlaybackLoading records a loading signal
func (l *RecordingListener) PlaybackLoading() { l.record("loading", nil) }

// PlaybackEnded records an ended signal
func (l *RecordingListener) PlaybackEnded() { l.record("ended", nil) }

// PlaybackFailed records a failure
func (l *RecordingListener) PlaybackFailed(err error) { l.record("failed", err) }

func (l *RecordingListener) record(ev string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Events = append(l.Events, ev)
	if err != nil {
		l.Errors = append(l.Errors, err)
	}
}

// Snapshot returns a copy of the recorded events
func (l *RecordingListener) Snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.Events...)
}
