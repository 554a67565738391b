package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrNoAPIKey is returned when no OpenAI key is configured.
var ErrNoAPIKey = errors.New("OpenAI API key not found. Set OPENAI_API_KEY environment variable or configure speech.openai_key in .studycards.yaml")

// Lister handles listing available OpenAI models
type Lister struct {
	apiKey string
	client *openai.Client
}

// NewLister creates a new model lister. An empty baseURL uses the public API.
func NewLister(apiKey, baseURL string) *Lister {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Lister{
		apiKey: apiKey,
		client: openai.NewClientWithConfig(config),
	}
}

// SpeechModels returns the sorted IDs of the text-to-speech models
func (l *Lister) SpeechModels(ctx context.Context) ([]string, error) {
	if l.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	models, err := l.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	var ids []string
	for _, model := range models.Models {
		if isSpeechModel(model.ID) {
			ids = append(ids, model.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Print writes the speech models to w
func (l *Lister) Print(ctx context.Context, w io.Writer) error {
	ids, err := l.SpeechModels(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "Available OpenAI speech models:")
	if len(ids) == 0 {
		fmt.Fprintln(w, "  No TTS models found")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintf(w, "  %s\n", id)
	}
	return nil
}

func isSpeechModel(id string) bool {
	return strings.Contains(id, "tts")
}
