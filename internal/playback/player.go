package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"codeberg.org/snonux/studycards/internal/speech"
)

// Outcome is how a Play call ended
type Outcome int

const (
	// Ended means the audio played to completion.
	Ended Outcome = iota
	// Superseded means a newer Play call replaced this one.
	Superseded
	// Failed means synthesis or playback failed.
	Failed
	// Stopped means the caller's context was cancelled.
	Stopped
)

func (o Outcome) String() string {
	switch o {
	case Ended:
		return "ended"
	case Superseded:
		return "superseded"
	case Failed:
		return "failed"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ErrNoAudio is returned when synthesis yields no playable reference.
var ErrNoAudio = errors.New("no playable audio in response")

// Config holds the voice settings sent with every synthesis request
type Config struct {
	Voice string
	Model string
	Tone  string
}

// Request is one text to speak.
type Request struct {
	Text string
	// Words are highlighted in order. Nil splits Text on whitespace.
	Words    []string
	Name     string
	Category string
	Deck     string
	Target   Highlighter
}

// Player owns the audio output and at most one playback session.
type Player struct {
	synth    speech.Synthesizer
	output   Output
	listener Listener
	config   Config
	logger   *zap.Logger
	flight   singleflight.Group

	mu      sync.Mutex
	current *session
}

type session struct {
	id           string
	ctx          context.Context
	cancel       context.CancelFunc
	target       Highlighter
	stream       Stream
	wordCount    int
	wordDuration float64
	lastIndex    int
}

// NewPlayer creates a player. listener and logger may be nil.
func NewPlayer(synth speech.Synthesizer, output Output, listener Listener, config Config, logger *zap.Logger) *Player {
	if listener == nil {
		listener = nopListener{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Player{
		synth:    synth,
		output:   output,
		listener: listener,
		config:   config,
		logger:   logger,
	}
}

// Play speaks req and blocks until the session ends, fails, is superseded
// by another Play call or ctx is cancelled.
func (p *Player) Play(ctx context.Context, req Request) (Outcome, error) {
	s := p.begin(ctx, req)
	log := p.logger.With(zap.String("session", s.id), zap.String("card", req.Name))
	log.Debug("playback started", zap.Int("words", s.wordCount))

	sreq := speech.Request{
		Text:     req.Text,
		Voice:    p.config.Voice,
		Model:    p.config.Model,
		Tone:     p.config.Tone,
		Category: req.Category,
		Deck:     req.Deck,
		Name:     req.Name,
	}
	key := strings.Join([]string{sreq.Text, sreq.Voice, sreq.Model, sreq.Tone, sreq.Category, sreq.Deck}, "\x00")

	// The request outlives a superseded session; its result is discarded.
	reqCtx := context.WithoutCancel(ctx)
	results := p.flight.DoChan(key, func() (interface{}, error) {
		return p.synth.Synthesize(reqCtx, sreq)
	})

	var source string
	select {
	case <-s.ctx.Done():
		return p.interrupted(s)
	case res := <-results:
		if s.ctx.Err() != nil {
			return p.interrupted(s)
		}
		if res.Err != nil {
			log.Warn("speech synthesis failed", zap.Error(res.Err))
			return p.complete(s, Failed, fmt.Errorf("speech synthesis failed: %w", res.Err))
		}
		source, _ = res.Val.(string)
	}

	if strings.TrimSpace(source) == "" {
		return p.complete(s, Failed, ErrNoAudio)
	}

	stream, err := p.output.Start(s.ctx, source)
	if err != nil {
		if s.ctx.Err() != nil {
			return p.interrupted(s)
		}
		log.Warn("audio output failed", zap.Error(err))
		return p.complete(s, Failed, fmt.Errorf("audio playback failed: %w", err))
	}
	if !p.attach(s, stream) {
		stream.Stop()
		return p.interrupted(s)
	}

	for {
		select {
		case <-s.ctx.Done():
			return p.interrupted(s)
		case ev, ok := <-stream.Events():
			if !ok {
				return p.complete(s, Ended, nil)
			}
			switch ev.Kind {
			case EventDuration:
				p.setDuration(s, ev.Seconds)
			case EventProgress:
				p.progress(s, ev.Seconds)
			case EventEnded:
				log.Debug("playback ended")
				return p.complete(s, Ended, nil)
			case EventError:
				log.Warn("audio playback failed", zap.Error(ev.Err))
				return p.complete(s, Failed, fmt.Errorf("audio playback failed: %w", ev.Err))
			}
		}
	}
}

// begin tears down the current session and installs a new one.
func (p *Player) begin(ctx context.Context, req Request) *session {
	words := req.Words
	if words == nil {
		words = strings.Fields(req.Text)
	}
	target := req.Target
	if target == nil {
		target = nopHighlighter{}
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &session{
		id:        uuid.New().String(),
		ctx:       sctx,
		cancel:    cancel,
		target:    target,
		wordCount: len(words),
		lastIndex: -1,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if old := p.current; old != nil {
		p.logger.Debug("playback superseded", zap.String("session", old.id))
		p.teardownLocked(old)
	}
	p.current = s
	p.listener.PlaybackLoading()
	return s
}

// attach stores the stream on a session that is still current.
func (p *Player) attach(s *session, stream Stream) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != s || s.ctx.Err() != nil {
		return false
	}
	s.stream = stream
	return true
}

func (p *Player) setDuration(s *session, seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != s {
		return
	}
	s.wordDuration = WordDuration(seconds, s.wordCount)
}

func (p *Player) progress(s *session, elapsed float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != s || s.ctx.Err() != nil {
		return
	}

	idx := WordIndex(elapsed, s.wordDuration, s.wordCount)
	if idx < 0 || idx == s.lastIndex {
		return
	}
	if s.lastIndex >= 0 {
		s.target.Unhighlight(s.lastIndex)
	}
	s.target.Highlight(idx)
	s.lastIndex = idx
}

// complete finishes a session that ended or failed on its own.
func (p *Player) complete(s *session, outcome Outcome, err error) (Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != s {
		return Superseded, nil
	}
	p.teardownLocked(s)
	p.current = nil

	if outcome == Failed {
		p.listener.PlaybackFailed(err)
		return Failed, err
	}
	p.listener.PlaybackEnded()
	return outcome, nil
}

// interrupted handles a cancelled session token.
func (p *Player) interrupted(s *session) (Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != s {
		return Superseded, nil
	}
	p.teardownLocked(s)
	p.current = nil
	return Stopped, context.Cause(s.ctx)
}

// teardownLocked cancels the session token, stops its audio and clears
// its highlight.
func (p *Player) teardownLocked(s *session) {
	s.cancel()
	if s.stream != nil {
		s.stream.Stop()
	}
	if s.lastIndex >= 0 {
		s.target.Unhighlight(s.lastIndex)
		s.lastIndex = -1
	}
}
