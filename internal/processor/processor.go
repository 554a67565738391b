package processor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"codeberg.org/snonux/studycards/internal"
	"codeberg.org/snonux/studycards/internal/anki"
	"codeberg.org/snonux/studycards/internal/api"
	"codeberg.org/snonux/studycards/internal/audio"
	"codeberg.org/snonux/studycards/internal/cards"
	"codeberg.org/snonux/studycards/internal/cli"
	"codeberg.org/snonux/studycards/internal/gui"
	"codeberg.org/snonux/studycards/internal/image"
	"codeberg.org/snonux/studycards/internal/models"
	"codeberg.org/snonux/studycards/internal/playback"
	"codeberg.org/snonux/studycards/internal/session"
	"codeberg.org/snonux/studycards/internal/speech"
)

// Processor builds the components for one run of the application
type Processor struct {
	settings cli.Settings
	logger   *zap.Logger
	out      io.Writer
	client   *api.Client
	http     *http.Client
}

// NewProcessor creates a processor for the given settings
func NewProcessor(settings cli.Settings, logger *zap.Logger) (*Processor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config := api.DefaultConfig()
	config.BaseURL = settings.BaseURL
	config.Category = settings.Category
	config.Deck = settings.Deck
	if settings.Timeout > 0 {
		config.Timeout = settings.Timeout
	}
	if settings.Rate > 0 {
		config.RequestsPerSecond = settings.Rate
	}

	client, err := api.New(config, logger.Named("api"))
	if err != nil {
		return nil, err
	}

	return &Processor{
		settings: settings,
		logger:   logger,
		out:      os.Stdout,
		client:   client,
		http:     &http.Client{Timeout: config.Timeout},
	}, nil
}

// Close releases the audio spooled during the run
func (p *Processor) Close() error {
	return p.client.Close()
}

// ListDecks prints every category with its deck files. The active deck
// of a category is marked with an asterisk.
func (p *Processor) ListDecks(ctx context.Context) error {
	categories, err := p.client.Categories(ctx)
	if err != nil {
		return fmt.Errorf("failed to list categories: %w", err)
	}

	for _, category := range categories {
		fmt.Fprintf(p.out, "%s\n", category)
		decks, err := p.client.Decks(ctx, category)
		if err != nil {
			fmt.Fprintf(p.out, "  (failed to list decks: %v)\n", err)
			continue
		}
		for _, file := range decks.Files {
			marker := " "
			if file == decks.Active {
				marker = "*"
			}
			fmt.Fprintf(p.out, " %s %s\n", marker, file)
		}
	}
	return nil
}

// ListModels prints the OpenAI speech models available to the API key
func (p *Processor) ListModels(ctx context.Context) error {
	return models.NewLister(p.settings.OpenAIKey, "").Print(ctx, p.out)
}

// Synthesizer returns the configured speech provider. With SpeechFallback
// a failed direct provider call is retried through the backend.
func (p *Processor) Synthesizer(ctx context.Context) (speech.Synthesizer, error) {
	var primary speech.Synthesizer

	switch p.settings.SpeechProvider {
	case "", "backend":
		return p.client, nil
	case "openai":
		config := speech.DefaultOpenAIConfig()
		config.APIKey = p.settings.OpenAIKey
		if p.settings.OpenAIModel != "" {
			config.Model = p.settings.OpenAIModel
		}
		if p.settings.OpenAIVoice != "" {
			config.Voice = p.settings.OpenAIVoice
		}
		provider, err := speech.NewOpenAIProvider(config, p.logger.Named("openai"))
		if err != nil {
			return nil, err
		}
		primary = provider
	case "gemini":
		config := speech.DefaultGeminiConfig()
		config.APIKey = p.settings.GeminiKey
		provider, err := speech.NewGeminiProvider(ctx, config, p.logger.Named("gemini"))
		if err != nil {
			return nil, err
		}
		primary = provider
	default:
		return nil, fmt.Errorf("unknown speech provider %q (use backend, openai or gemini)", p.settings.SpeechProvider)
	}

	if !p.settings.SpeechFallback {
		return primary, nil
	}
	return speech.NewSynthesizerWithFallback(primary, p.client, p.logger), nil
}

// GenerateAnkiFile exports the deck with images and name pronunciations.
// Media that cannot be fetched is skipped with a warning.
func (p *Processor) GenerateAnkiFile(ctx context.Context, csv bool) (string, error) {
	deck, err := p.client.FetchCards(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch cards: %w", err)
	}

	outputDir := p.settings.OutputDir
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	mediaDir := outputDir
	if !csv {
		// APKG media is copied into the package
		mediaDir, err = os.MkdirTemp("", "studycards_media_*")
		if err != nil {
			return "", fmt.Errorf("failed to create media directory: %w", err)
		}
		defer os.RemoveAll(mediaDir)
	}

	synth, err := p.Synthesizer(ctx)
	if err != nil {
		return "", err
	}
	loader := image.NewLoader(p.client, image.DefaultLoaderConfig(), p.logger.Named("image"))

	notes := make([]anki.Note, 0, len(deck))
	for i, card := range deck {
		card.ID = i
		note := anki.NoteFromCard(card)
		note.ImageFile = p.exportImage(ctx, loader, card, mediaDir)
		note.AudioFile = p.exportAudio(ctx, synth, card, mediaDir)
		notes = append(notes, note)
	}

	name := p.deckName()
	base := internal.SanitizeFilename(name)

	var outputPath string
	if csv {
		outputPath = filepath.Join(outputDir, base+".csv")
		gen := anki.NewGenerator(&anki.GeneratorOptions{OutputPath: outputPath, IncludeHeaders: true})
		for _, note := range notes {
			gen.AddNote(note)
		}
		if err := gen.GenerateCSV(); err != nil {
			return "", fmt.Errorf("failed to generate CSV: %w", err)
		}
		total, withAudio, withImages := gen.Stats()
		fmt.Fprintf(p.out, "  Generated %d cards (%d with audio, %d with images)\n", total, withAudio, withImages)
		return outputPath, nil
	}

	outputPath = filepath.Join(outputDir, base+".apkg")
	gen := anki.NewAPKGGenerator(name)
	for _, note := range notes {
		gen.AddNote(note)
	}
	if err := gen.GenerateAPKG(outputPath); err != nil {
		return "", fmt.Errorf("failed to generate APKG: %w", err)
	}
	fmt.Fprintf(p.out, "  Generated %d cards\n", len(notes))
	return outputPath, nil
}

func (p *Processor) deckName() string {
	category, deck := p.client.Deck()
	deck = strings.TrimSuffix(deck, filepath.Ext(deck))
	switch {
	case category != "" && deck != "":
		return category + " " + deck
	case deck != "":
		return deck
	case category != "":
		return category
	default:
		return "studycards"
	}
}

func (p *Processor) exportImage(ctx context.Context, loader *image.Loader, card cards.Card, dir string) string {
	if card.ImagePath == "" {
		return ""
	}
	img, err := loader.Load(ctx, card.ImagePath)
	if err != nil {
		p.logger.Warn("skipping image", zap.String("card", card.Name), zap.Error(err))
		return ""
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%d.png", internal.SanitizeFilename(card.Name), card.ID))
	if err := imaging.Save(img, path); err != nil {
		p.logger.Warn("skipping image", zap.String("card", card.Name), zap.Error(err))
		return ""
	}
	return path
}

func (p *Processor) exportAudio(ctx context.Context, synth speech.Synthesizer, card cards.Card, dir string) string {
	ref, err := synth.Synthesize(ctx, speech.Request{
		Text:     card.Name,
		Voice:    p.settings.Voice,
		Model:    p.settings.TTSModel,
		Tone:     p.settings.Tone,
		Category: card.Category,
		Deck:     card.DeckName,
		Name:     card.Name,
	})
	if err != nil {
		p.logger.Warn("skipping audio", zap.String("card", card.Name), zap.Error(err))
		return ""
	}

	ext := filepath.Ext(strings.SplitN(ref, "?", 2)[0])
	if ext == "" {
		ext = ".mp3"
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%d%s", internal.SanitizeFilename(card.Name), card.ID, ext))
	if err := p.copyAudio(ctx, ref, path); err != nil {
		p.logger.Warn("skipping audio", zap.String("card", card.Name), zap.Error(err))
		return ""
	}
	return path
}

// copyAudio stores the audio behind ref, a URL or local path, at dst
func (p *Processor) copyAudio(ctx context.Context, ref, dst string) error {
	var src io.ReadCloser
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return err
		}
		resp, err := p.http.Do(req)
		if err != nil {
			return &api.NetworkError{Op: "download audio", Err: err}
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return &api.ResourceLoadError{Resource: ref, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
		}
		src = resp.Body
	} else {
		f, err := os.Open(ref)
		if err != nil {
			return &api.ResourceLoadError{Resource: ref, Err: err}
		}
		src = f
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

// RunGUIMode starts the study session in the GUI and blocks until the
// window is closed.
func (p *Processor) RunGUIMode(ctx context.Context) error {
	synth, err := p.Synthesizer(ctx)
	if err != nil {
		return err
	}

	category, deck := p.client.Deck()
	app := gui.New(gui.Config{DeckLabel: strings.Trim(category+" / "+deck, " /")}, p.logger.Named("gui"))

	// mirror the session log into the window
	logger := p.logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, app.LogCore())
	}))

	player := playback.NewPlayer(
		synth,
		audio.NewExecOutput(logger.Named("audio")),
		app,
		playback.Config{
			Voice: p.settings.Voice,
			Model: p.settings.TTSModel,
			Tone:  p.settings.Tone,
		},
		logger.Named("playback"),
	)

	ctrl := session.New(session.Deps{
		Repo:     cards.NewRepository(),
		Backend:  p.client,
		Loader:   image.NewLoader(p.client, image.DefaultLoaderConfig(), logger.Named("image")),
		Player:   player,
		View:     app,
		Logger:   logger.Named("session"),
		AutoPlay: p.settings.AutoPlay,
	})
	defer ctrl.Close()

	app.Bind(ctrl)
	app.Run()
	return nil
}
