package speech

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIConfig configures the OpenAI speech provider
type OpenAIConfig struct {
	APIKey   string
	BaseURL  string  // empty uses the public API
	Model    string  // "tts-1", "tts-1-hd", or "gpt-4o-mini-tts"
	Voice    string  // "alloy", "ash", "coral", "echo", "fable", "nova", "onyx", "sage", "shimmer"
	Speed    float64 // 0.25 to 4.0
	CacheDir string
}

// DefaultOpenAIConfig returns default configuration
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:    "gpt-4o-mini-tts",
		Voice:    "alloy",
		Speed:    1.0,
		CacheDir: filepath.Join(os.TempDir(), "studycards", "openai"),
	}
}

// OpenAIProvider synthesizes speech with the OpenAI TTS API
type OpenAIProvider struct {
	client *openai.Client
	config OpenAIConfig
	cache  *fileCache
	logger *zap.Logger
}

// NewOpenAIProvider creates a new OpenAI TTS provider
func NewOpenAIProvider(config OpenAIConfig, logger *zap.Logger) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	defaults := DefaultOpenAIConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.Voice == "" {
		config.Voice = defaults.Voice
	}
	if config.Speed == 0 {
		config.Speed = defaults.Speed
	}
	if config.CacheDir == "" {
		config.CacheDir = defaults.CacheDir
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	cache, err := newFileCache(config.CacheDir, ".mp3")
	if err != nil {
		return nil, err
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		cache:  cache,
		logger: logger,
	}, nil
}

// supportsInstructions reports whether the model accepts voice instructions
func (p *OpenAIProvider) supportsInstructions() bool {
	return p.config.Model == "gpt-4o-mini-tts"
}

// Synthesize generates an mp3 file for the request and returns its path.
// The request voice and model name backend voices, so the provider uses
// its own configured ones.
func (p *OpenAIProvider) Synthesize(ctx context.Context, req Request) (string, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", fmt.Errorf("no text to synthesize")
	}

	req.Voice = p.config.Voice
	req.Model = p.config.Model

	input := text
	instructions := ""
	if p.supportsInstructions() {
		instructions = strings.TrimSpace(req.Tone)
		if strings.EqualFold(instructions, "default") {
			instructions = ""
		}
	} else {
		input = ApplyTone(text, req.Tone)
	}

	cacheText := input + "|" + instructions
	if path, ok := p.cache.lookup(req, cacheText); ok {
		p.logger.Debug("openai speech cache hit", zap.String("path", path))
		return path, nil
	}

	speechReq := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(p.config.Model),
		Input:          input,
		Voice:          openai.SpeechVoice(p.config.Voice),
		Speed:          p.config.Speed,
		Instructions:   instructions,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	}

	p.logger.Debug("openai speech request",
		zap.String("model", p.config.Model),
		zap.String("voice", p.config.Voice),
		zap.String("card", req.Name))

	response, err := p.client.CreateSpeech(ctx, speechReq)
	if err != nil {
		if strings.Contains(err.Error(), "does not have access to model") && p.supportsInstructions() {
			return "", fmt.Errorf("OpenAI TTS API error: %w\nNote: The %s model requires access. Try using --openai-model tts-1-hd instead", err, p.config.Model)
		}
		return "", fmt.Errorf("OpenAI TTS API error: %w", err)
	}
	defer response.Close()

	data, err := io.ReadAll(response)
	if err != nil {
		return "", fmt.Errorf("failed to read audio data: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no audio data received from OpenAI")
	}

	return p.cache.store(req, cacheText, data)
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}
