package speech

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Gemini speech output is raw 16-bit little endian mono PCM at 24 kHz.
const (
	geminiSampleRate = 24000
	geminiChannels   = 1
	geminiBitDepth   = 16
)

// GeminiConfig configures the Gemini speech provider
type GeminiConfig struct {
	APIKey   string
	Model    string
	CacheDir string
}

// DefaultGeminiConfig returns default configuration
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		Model:    "gemini-2.5-flash-preview-tts",
		CacheDir: filepath.Join(os.TempDir(), "studycards", "gemini"),
	}
}

type generateFunc func(ctx context.Context, model, text, voice string) (*genai.GenerateContentResponse, error)

// GeminiProvider synthesizes speech with the Gemini API
type GeminiProvider struct {
	generate generateFunc
	config   GeminiConfig
	cache    *fileCache
	logger   *zap.Logger
}

// NewGeminiProvider creates a Gemini speech provider
func NewGeminiProvider(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	generate := func(ctx context.Context, model, text, voice string) (*genai.GenerateContentResponse, error) {
		return client.Models.GenerateContent(ctx, model, genai.Text(text), &genai.GenerateContentConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &genai.SpeechConfig{
				VoiceConfig: &genai.VoiceConfig{
					PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
				},
			},
		})
	}

	return newGeminiProvider(config, generate, logger)
}

func newGeminiProvider(config GeminiConfig, generate generateFunc, logger *zap.Logger) (*GeminiProvider, error) {
	defaults := DefaultGeminiConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.CacheDir == "" {
		config.CacheDir = defaults.CacheDir
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cache, err := newFileCache(config.CacheDir, ".wav")
	if err != nil {
		return nil, err
	}

	return &GeminiProvider{
		generate: generate,
		config:   config,
		cache:    cache,
		logger:   logger,
	}, nil
}

// Synthesize generates a wav file for the request and returns its path.
func (p *GeminiProvider) Synthesize(ctx context.Context, req Request) (string, error) {
	req = withDefaults(req)
	req.Model = p.config.Model

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", fmt.Errorf("no text to synthesize")
	}
	prompt := ApplyTone(text, req.Tone)

	if path, ok := p.cache.lookup(req, prompt); ok {
		p.logger.Debug("gemini speech cache hit", zap.String("path", path))
		return path, nil
	}

	p.logger.Debug("gemini speech request",
		zap.String("model", req.Model),
		zap.String("voice", req.Voice),
		zap.String("card", req.Name))

	resp, err := p.generate(ctx, req.Model, prompt, req.Voice)
	if err != nil {
		return "", fmt.Errorf("Gemini TTS API error: %w", err)
	}

	pcm := audioData(resp)
	if len(pcm) == 0 {
		return "", fmt.Errorf("no audio data received from Gemini")
	}

	return p.cache.store(req, prompt, WrapPCM(pcm, geminiSampleRate, geminiChannels, geminiBitDepth))
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// audioData concatenates the inline audio parts of the first candidate.
func audioData(resp *genai.GenerateContentResponse) []byte {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}

	var data []byte
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil {
			continue
		}
		data = append(data, part.InlineData.Data...)
	}
	return data
}
