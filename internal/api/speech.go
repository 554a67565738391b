package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/snonux/studycards/internal"
	"codeberg.org/snonux/studycards/internal/speech"
)

type synthesizeRequest struct {
	Text      string `json:"text"`
	VoiceName string `json:"voice_name"`
	ModelName string `json:"model_name,omitempty"`
	Category  string `json:"category"`
	Deck      string `json:"deck"`
	VerbName  string `json:"verb_name"`
	Tone      string `json:"tone"`
}

// Synthesize asks the backend to speak the request. The result is an
// absolute audio URL, or a spooled file when the backend answers with the
// audio itself. Spooled files live until Close.
func (c *Client) Synthesize(ctx context.Context, req speech.Request) (string, error) {
	const op = "synthesize speech"

	category, deck := req.Category, req.Deck
	if category == "" {
		category = c.config.Category
	}
	if deck == "" {
		deck = c.config.Deck
	}
	tone := req.Tone
	if strings.TrimSpace(tone) == "" {
		tone = "default"
	}

	body := synthesizeRequest{
		Text:      req.Text,
		VoiceName: req.Voice,
		ModelName: req.Model,
		Category:  category,
		Deck:      deck,
		VerbName:  req.Name,
		Tone:      tone,
	}

	r, err := c.do(ctx, op, http.MethodPost, "/api/synthesize-speech", nil, body)
	if err != nil {
		return "", err
	}

	mediaType, _, _ := mime.ParseMediaType(r.contentType)
	if strings.HasPrefix(mediaType, "audio/") {
		if len(r.body) == 0 {
			return "", &ProtocolError{Op: op, Message: "empty audio body"}
		}
		return c.spool(r.body, req, mediaType, category, deck, tone)
	}

	var payload struct {
		Success  *bool  `json:"success"`
		AudioURL string `json:"audio_url"`
		Detail   string `json:"detail"`
	}
	if err := json.Unmarshal(r.body, &payload); err != nil {
		return "", &ProtocolError{Op: op, Message: "invalid JSON", Err: err}
	}
	if payload.Success != nil && !*payload.Success {
		return "", &BackendError{Op: op, Status: r.status, Detail: payload.Detail}
	}
	if strings.TrimSpace(payload.AudioURL) == "" {
		return "", &ProtocolError{Op: op, Message: "missing audio_url"}
	}

	resolved, err := c.ResolveURL(payload.AudioURL)
	if err != nil {
		return "", &ProtocolError{Op: op, Message: "invalid audio_url", Err: err}
	}
	return resolved, nil
}

// Name returns the provider name
func (c *Client) Name() string {
	return "backend"
}

// spool writes an inline audio body to SpoolDir. The file name is derived
// from the request, so replaying the same text reuses one file.
func (c *Client) spool(data []byte, req speech.Request, mediaType string, category, deck, tone string) (string, error) {
	ext := ".mp3"
	if strings.Contains(mediaType, "wav") {
		ext = ".wav"
	}

	dir, err := c.spoolDir()
	if err != nil {
		return "", err
	}
	key := internal.CacheKey(category, deck, req.Text, req.Voice, req.Model, tone)
	path := filepath.Join(dir, internal.SanitizeFilename(req.Name)+"_"+key+ext)

	// Write next to the target and rename so a file being played is never
	// truncated.
	f, err := os.CreateTemp(dir, ".spool-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create audio file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}

	c.spoolMu.Lock()
	c.spooled[path] = struct{}{}
	c.spoolMu.Unlock()
	return path, nil
}

// spoolDir returns the configured SpoolDir, or a private temp directory
// created on first use.
func (c *Client) spoolDir() (string, error) {
	c.spoolMu.Lock()
	defer c.spoolMu.Unlock()

	if c.config.SpoolDir != "" {
		return c.config.SpoolDir, nil
	}
	if c.privateSpool == "" {
		dir, err := os.MkdirTemp("", "studycards-audio-*")
		if err != nil {
			return "", fmt.Errorf("failed to create spool directory: %w", err)
		}
		c.privateSpool = dir
	}
	return c.privateSpool, nil
}

// Close removes the audio files spooled by the client.
func (c *Client) Close() error {
	c.spoolMu.Lock()
	defer c.spoolMu.Unlock()

	var errs []error
	for path := range c.spooled {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	c.spooled = make(map[string]struct{})

	if c.privateSpool != "" {
		if err := os.RemoveAll(c.privateSpool); err != nil {
			errs = append(errs, err)
		}
		c.privateSpool = ""
	}
	return errors.Join(errs...)
}
