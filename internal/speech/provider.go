// Package speech turns card text into playable audio. A Synthesizer
// returns a reference to the audio, either a URL or a local file path.
package speech

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	DefaultVoice = "Aoede"
	DefaultModel = "gemini-2.5-pro-tts"
	DefaultTone  = "Read this clearly and naturally, like a friendly English teacher"
)

// Request describes one piece of text to speak together with the deck
// metadata the backend uses to name its cached audio.
type Request struct {
	Text     string
	Voice    string
	Model    string
	Tone     string
	Category string
	Deck     string
	Name     string
}

// Synthesizer produces audio for a request
type Synthesizer interface {
	// Synthesize returns a URL or local file path of the generated audio
	Synthesize(ctx context.Context, req Request) (string, error)

	// Name returns the provider name
	Name() string
}

// ApplyTone prefixes text with the tone directive. An empty or "default"
// tone leaves the text unchanged.
func ApplyTone(text, tone string) string {
	tone = strings.TrimSpace(tone)
	if tone == "" || strings.EqualFold(tone, "default") {
		return text
	}
	return fmt.Sprintf("%s: %s", tone, text)
}

// withDefaults fills voice and model when the request leaves them empty.
func withDefaults(req Request) Request {
	if req.Voice == "" {
		req.Voice = DefaultVoice
	}
	if req.Model == "" {
		req.Model = DefaultModel
	}
	return req
}

// SynthesizerWithFallback wraps a primary synthesizer with a fallback option
type SynthesizerWithFallback struct {
	primary  Synthesizer
	fallback Synthesizer
	logger   *zap.Logger
}

// NewSynthesizerWithFallback creates a synthesizer that falls back to secondary if primary fails
func NewSynthesizerWithFallback(primary, fallback Synthesizer, logger *zap.Logger) Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SynthesizerWithFallback{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// Synthesize tries the primary synthesizer first, falls back to secondary on error
func (s *SynthesizerWithFallback) Synthesize(ctx context.Context, req Request) (string, error) {
	ref, err := s.primary.Synthesize(ctx, req)
	if err == nil {
		return ref, nil
	}
	if ctx.Err() != nil {
		return "", err
	}

	s.logger.Warn("primary speech provider failed, falling back",
		zap.String("primary", s.primary.Name()),
		zap.String("fallback", s.fallback.Name()),
		zap.Error(err))

	ref, fbErr := s.fallback.Synthesize(ctx, req)
	if fbErr != nil {
		return "", fmt.Errorf("%s: %w (primary %s: %v)", s.fallback.Name(), fbErr, s.primary.Name(), err)
	}
	return ref, nil
}

// Name returns the provider name
func (s *SynthesizerWithFallback) Name() string {
	return fmt.Sprintf("%s (fallback: %s)", s.primary.Name(), s.fallback.Name())
}
