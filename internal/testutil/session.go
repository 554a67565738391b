package testutil

import (
	"context"
	"fmt"
	stdimage "image"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"codeberg.org/snonux/studycards/internal/api"
	"codeberg.org/snonux/studycards/internal/cards"
	"codeberg.org/snonux/studycards/internal/playback"
)

// FakeBackend keeps a deck in memory and mirrors the learned flag the way
// the real backend persists it.
type FakeBackend struct {
	mu     sync.Mutex
	deck   []cards.Card
	Errors map[string]error
	Calls  []string

	// Block, when set for an operation, is waited on before it returns.
	Block map[string]chan struct{}
	// Uploads holds the contents of uploaded images.
	Uploads []string
}

// NewFakeBackend creates a backend serving the given cards
func NewFakeBackend(deck ...cards.Card) *FakeBackend {
	return &FakeBackend{
		deck:   append([]cards.Card(nil), deck...),
		Errors: make(map[string]error),
		Block:  make(map[string]chan struct{}),
	}
}

func (b *FakeBackend) enter(op string, args ...interface{}) error {
	b.mu.Lock()
	call := op
	if len(args) > 0 {
		call = fmt.Sprintf("%s %v", op, args)
	}
	b.Calls = append(b.Calls, call)
	block := b.Block[op]
	err := b.Errors[op]
	b.mu.Unlock()

	if block != nil {
		<-block
	}
	return err
}

// FetchCards returns a copy of the deck
func (b *FakeBackend) FetchCards(ctx context.Context) ([]cards.Card, error) {
	if err := b.enter("fetch"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]cards.Card, len(b.deck))
	copy(out, b.deck)
	return out, nil
}

// GenerateImage stores and returns /static/images/<id>.png
func (b *FakeBackend) GenerateImage(ctx context.Context, req api.ImageRequest) (string, error) {
	if err := b.enter("generate", req.CardID); err != nil {
		return "", err
	}
	path := fmt.Sprintf("/static/images/%d.png", req.CardID)
	b.mu.Lock()
	if req.CardID >= 0 && req.CardID < len(b.deck) {
		b.deck[req.CardID].ImagePath = path
	}
	b.mu.Unlock()
	return path, nil
}

// DeleteImage clears the stored image path
func (b *FakeBackend) DeleteImage(ctx context.Context, cardID int) error {
	if err := b.enter("delete", cardID); err != nil {
		return err
	}
	b.mu.Lock()
	if cardID >= 0 && cardID < len(b.deck) {
		b.deck[cardID].ImagePath = ""
	}
	b.mu.Unlock()
	return nil
}

// UploadImage stores /static/images/<id><ext> and keeps the uploaded bytes
func (b *FakeBackend) UploadImage(ctx context.Context, cardID int, filename string, r io.Reader) (string, error) {
	if err := b.enter("upload", cardID, filepath.Base(filename)); err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	path := fmt.Sprintf("/static/images/%d%s", cardID, strings.ToLower(filepath.Ext(filename)))
	b.mu.Lock()
	if cardID >= 0 && cardID < len(b.deck) {
		b.deck[cardID].ImagePath = path
	}
	b.Uploads = append(b.Uploads, string(data))
	b.mu.Unlock()
	return path, nil
}

// UpdateStatus sets the learned flag
func (b *FakeBackend) UpdateStatus(ctx context.Context, cardID int, learned bool) error {
	if err := b.enter("status", cardID, learned); err != nil {
		return err
	}
	b.mu.Lock()
	if cardID >= 0 && cardID < len(b.deck) {
		b.deck[cardID].Learned = learned
	}
	b.mu.Unlock()
	return nil
}

// ResetAll clears every learned flag and image path
func (b *FakeBackend) ResetAll(ctx context.Context) error {
	if err := b.enter("reset"); err != nil {
		return err
	}
	b.mu.Lock()
	for i := range b.deck {
		b.deck[i].Learned = false
		b.deck[i].ImagePath = ""
	}
	b.mu.Unlock()
	return nil
}

// SetError makes op fail with err
func (b *FakeBackend) SetError(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Errors[op] = err
}

// CallLog returns a copy of the recorded calls
func (b *FakeBackend) CallLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.Calls...)
}

// FakeImageLoader returns a 1x1 image for every path not listed in Fail.
type FakeImageLoader struct {
	mu    sync.Mutex
	Fail  map[string]error
	Calls []string
}

// NewFakeImageLoader creates a loader that succeeds for every path
func NewFakeImageLoader() *FakeImageLoader {
	return &FakeImageLoader{Fail: make(map[string]error)}
}

// Load records the path and returns an image or the configured error
func (l *FakeImageLoader) Load(ctx context.Context, path string) (stdimage.Image, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Calls = append(l.Calls, path)
	if err, ok := l.Fail[path]; ok {
		return nil, &api.ResourceLoadError{Resource: path, Err: err}
	}
	return stdimage.NewRGBA(stdimage.Rect(0, 0, 1, 1)), nil
}

// FakePlayer records play requests and returns immediately unless Block
// is set.
type FakePlayer struct {
	mu       sync.Mutex
	Requests []playback.Request
	Outcome  playback.Outcome
	Err      error

	// Block, when set, is waited on before Play returns. A cancelled
	// context returns Stopped.
	Block chan struct{}
}

// Play records the request
func (p *FakePlayer) Play(ctx context.Context, req playback.Request) (playback.Outcome, error) {
	p.mu.Lock()
	p.Requests = append(p.Requests, req)
	block, outcome, err := p.Block, p.Outcome, p.Err
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return playback.Stopped, ctx.Err()
		}
	}
	return outcome, err
}

// SetBlock replaces the channel Play waits on
func (p *FakePlayer) SetBlock(block chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Block = block
}

// Texts returns the texts of all play requests
func (p *FakePlayer) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, r := range p.Requests {
		out = append(out, r.Text)
	}
	return out
}

// RecordingView records every call of the session view.
type RecordingView struct {
	mu sync.Mutex

	Events        []string
	Card          *cards.Card
	Index, Total  int
	Completed     bool
	Fatal         error
	Locked        bool
	LockChanges   int
	DeletePending bool
	Notices       []string
	Errors        []error
	ImageErrors   []error
	highlighters  map[cards.Ref]*RecordingHighlighter
}

// NewRecordingView creates an empty view
func NewRecordingView() *RecordingView {
	return &RecordingView{highlighters: make(map[cards.Ref]*RecordingHighlighter)}
}

func (v *RecordingView) record(format string, args ...interface{}) {
	v.Events = append(v.Events, fmt.Sprintf(format, args...))
}

// ShowCard records the shown card
func (v *RecordingView) ShowCard(card cards.Card, index, total int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	c := card
	v.Card = &c
	v.Index, v.Total = index, total
	v.Completed = false
	v.record("card %s", card.Name)
}

// ShowImage records an image
func (v *RecordingView) ShowImage(cardID int, img stdimage.Image) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.record("image %d", cardID)
}

// ShowImageGenerating records the generating state
func (v *RecordingView) ShowImageGenerating(cardID int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.record("generating %d", cardID)
}

// ShowImageError records an image failure
func (v *RecordingView) ShowImageError(cardID int, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ImageErrors = append(v.ImageErrors, err)
	v.record("image-error %d", cardID)
}

// ShowCompleted records the completed state
func (v *RecordingView) ShowCompleted() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Completed = true
	v.Card = nil
	v.record("completed")
}

// ShowFatal records a fatal error
func (v *RecordingView) ShowFatal(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Fatal = err
	v.record("fatal")
}

// SetLocked records the lock state
func (v *RecordingView) SetLocked(locked bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Locked = locked
	v.LockChanges++
}

// SetDeletePending records the delete confirmation state
func (v *RecordingView) SetDeletePending(pending bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.DeletePending = pending
}

// Notify records a notice
func (v *RecordingView) Notify(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Notices = append(v.Notices, msg)
}

// ShowError records an error
func (v *RecordingView) ShowError(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Errors = append(v.Errors, err)
	v.record("error")
}

// Highlighter returns one recording highlighter per reference
func (v *RecordingView) Highlighter(ref cards.Ref) playback.Highlighter {
	v.mu.Lock()
	defer v.mu.Unlock()
	h, ok := v.highlighters[ref]
	if !ok {
		h = NewRecordingHighlighter()
		v.highlighters[ref] = h
	}
	return h
}

// CurrentName returns the name of the shown card or "" when none
func (v *RecordingView) CurrentName() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.Card == nil {
		return ""
	}
	return v.Card.Name
}

// IsLocked returns the last lock state
func (v *RecordingView) IsLocked() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.Locked
}

// IsDeletePending returns the last delete confirmation state
func (v *RecordingView) IsDeletePending() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.DeletePending
}

// EventLog returns a copy of the recorded events
func (v *RecordingView) EventLog() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.Events...)
}

// Reset clears the recorded events
func (v *RecordingView) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Events = nil
	v.Notices = nil
	v.Errors = nil
	v.ImageErrors = nil
}
