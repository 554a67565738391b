package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"codeberg.org/snonux/studycards/internal"
)

// CreateRootCommand creates and configures the root cobra command
func CreateRootCommand(flags *Flags) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "studycards",
		Short: "Flashcard study client",
		Long: `studycards walks through a deck of vocabulary flashcards served by a
flashcard backend. Every card shows its image, definitions and usage
examples, and each text can be read aloud with word by word highlighting.

Examples:
  studycards                                   # Study the default deck in the GUI
  studycards --category verbs --deck b2.json   # Study a specific deck
  studycards --list-decks                      # List categories and their decks
  studycards --anki --output ./export          # Export the deck as an Anki package`,
		Args:    cobra.NoArgs,
		Version: internal.Version,
	}

	// Set up flags
	setupFlags(rootCmd, flags)

	return rootCmd
}

func setupFlags(cmd *cobra.Command, flags *Flags) {
	home, _ := os.UserHomeDir()
	defaultOutputDir := filepath.Join(home, ".local", "state", "studycards", "export")

	// Global flags
	cmd.PersistentFlags().StringVar(&flags.CfgFile, "config", "", "config file (default is $HOME/.studycards.yaml)")

	// Backend flags
	cmd.Flags().StringVar(&flags.BaseURL, "base-url", flags.BaseURL, "Flashcard backend base URL")
	cmd.Flags().StringVar(&flags.Category, "category", "", "Deck category (backend default when empty)")
	cmd.Flags().StringVar(&flags.Deck, "deck", "", "Deck file within the category (backend default when empty)")
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", flags.Timeout, "Backend request timeout")
	cmd.Flags().Float64Var(&flags.Rate, "rate", flags.Rate, "Maximum backend requests per second")

	// Speech flags
	cmd.Flags().StringVar(&flags.Voice, "voice", flags.Voice, "Voice name sent to the backend speech service")
	cmd.Flags().StringVar(&flags.TTSModel, "tts-model", flags.TTSModel, "Speech model sent to the backend speech service")
	cmd.Flags().StringVar(&flags.Tone, "tone", flags.Tone, `Tone directive prefixed to spoken text ("default" disables it)`)
	cmd.Flags().StringVar(&flags.SpeechProvider, "speech-provider", flags.SpeechProvider, "Speech provider: backend, openai or gemini (direct providers fall back to the backend)")
	cmd.Flags().StringVar(&flags.OpenAIVoice, "openai-voice", flags.OpenAIVoice, "OpenAI voice: alloy, ash, coral, echo, fable, nova, onyx, sage, shimmer")
	cmd.Flags().StringVar(&flags.OpenAIModel, "openai-model", flags.OpenAIModel, "OpenAI TTS model: tts-1, tts-1-hd, gpt-4o-mini-tts")
	cmd.Flags().BoolVar(&flags.SpeechFallback, "speech-fallback", false, "Retry failed openai/gemini speech through the backend")
	cmd.Flags().BoolVar(&flags.NoAutoPlay, "no-auto-play", false, "Disable automatic playback of the card name (auto-play is enabled by default)")

	// Modes
	cmd.Flags().BoolVar(&flags.ListDecks, "list-decks", false, "List categories and their deck files, then exit")
	cmd.Flags().BoolVar(&flags.ListModels, "list-models", false, "List available OpenAI speech models for the current API key")
	cmd.Flags().BoolVar(&flags.GenerateAnki, "anki", false, "Export the deck as an Anki package (APKG format by default, use --anki-csv for CSV)")
	cmd.Flags().BoolVar(&flags.AnkiCSV, "anki-csv", false, "Generate CSV instead of APKG when using --anki")
	cmd.Flags().StringVarP(&flags.OutputDir, "output", "o", defaultOutputDir, "Output directory for exports")

	// Logging
	cmd.Flags().StringVar(&flags.LogFile, "log-file", "", "Write JSON logs to this file (rotated)")
	cmd.Flags().BoolVar(&flags.Debug, "debug", false, "Enable debug logging")

	// Bind flags to viper
	bindFlagsToViper(cmd)
}

func bindFlagsToViper(cmd *cobra.Command) {
	viper.BindPFlag("backend.url", cmd.Flags().Lookup("base-url"))
	viper.BindPFlag("backend.category", cmd.Flags().Lookup("category"))
	viper.BindPFlag("backend.deck", cmd.Flags().Lookup("deck"))
	viper.BindPFlag("backend.timeout", cmd.Flags().Lookup("timeout"))
	viper.BindPFlag("backend.rate", cmd.Flags().Lookup("rate"))
	viper.BindPFlag("speech.voice", cmd.Flags().Lookup("voice"))
	viper.BindPFlag("speech.model", cmd.Flags().Lookup("tts-model"))
	viper.BindPFlag("speech.tone", cmd.Flags().Lookup("tone"))
	viper.BindPFlag("speech.provider", cmd.Flags().Lookup("speech-provider"))
	viper.BindPFlag("speech.openai_voice", cmd.Flags().Lookup("openai-voice"))
	viper.BindPFlag("speech.openai_model", cmd.Flags().Lookup("openai-model"))
	viper.BindPFlag("speech.fallback", cmd.Flags().Lookup("speech-fallback"))
	viper.BindPFlag("gui.no_auto_play", cmd.Flags().Lookup("no-auto-play"))
	viper.BindPFlag("output.directory", cmd.Flags().Lookup("output"))
	viper.BindPFlag("log.file", cmd.Flags().Lookup("log-file"))
	viper.BindPFlag("log.debug", cmd.Flags().Lookup("debug"))
}

// InitConfig initializes viper configuration
func InitConfig(cfgFile string) {
	// A missing .env file is fine
	_ = godotenv.Load()

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting home directory: %v\n", err)
			return
		}

		// Search config in home directory with name ".studycards" (without extension)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".studycards")
	}

	// Environment variables, STUDYCARDS_BACKEND_URL maps to backend.url
	viper.SetEnvPrefix("STUDYCARDS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// GetOpenAIKey retrieves the OpenAI API key from environment or config
func GetOpenAIKey() string {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}
	return viper.GetString("speech.openai_key")
}

// GetGeminiKey retrieves the Gemini API key from environment or config
func GetGeminiKey() string {
	for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if key := os.Getenv(name); key != "" {
			return key
		}
	}
	return viper.GetString("speech.gemini_key")
}

// Settings is the effective configuration after flags, environment and
// config file have been merged.
type Settings struct {
	BaseURL  string
	Category string
	Deck     string
	Timeout  time.Duration
	Rate     float64

	Voice          string
	TTSModel       string
	Tone           string
	SpeechProvider string
	OpenAIVoice    string
	OpenAIModel    string
	SpeechFallback bool
	OpenAIKey      string
	GeminiKey      string

	AutoPlay  bool
	OutputDir string
	LogFile   string
	Debug     bool
}

// ResolveSettings merges the viper-bound keys over the flag values. Keys
// that viper does not know keep the value from flags.
func ResolveSettings(flags *Flags) Settings {
	return Settings{
		BaseURL:  stringSetting("backend.url", flags.BaseURL),
		Category: stringSetting("backend.category", flags.Category),
		Deck:     stringSetting("backend.deck", flags.Deck),
		Timeout:  durationSetting("backend.timeout", flags.Timeout),
		Rate:     floatSetting("backend.rate", flags.Rate),

		Voice:          stringSetting("speech.voice", flags.Voice),
		TTSModel:       stringSetting("speech.model", flags.TTSModel),
		Tone:           stringSetting("speech.tone", flags.Tone),
		SpeechProvider: strings.ToLower(stringSetting("speech.provider", flags.SpeechProvider)),
		OpenAIVoice:    stringSetting("speech.openai_voice", flags.OpenAIVoice),
		OpenAIModel:    stringSetting("speech.openai_model", flags.OpenAIModel),
		SpeechFallback: boolSetting("speech.fallback", flags.SpeechFallback),
		OpenAIKey:      GetOpenAIKey(),
		GeminiKey:      GetGeminiKey(),

		AutoPlay:  !boolSetting("gui.no_auto_play", flags.NoAutoPlay),
		OutputDir: stringSetting("output.directory", flags.OutputDir),
		LogFile:   stringSetting("log.file", flags.LogFile),
		Debug:     boolSetting("log.debug", flags.Debug),
	}
}

func stringSetting(key, fallback string) string {
	if viper.IsSet(key) {
		if v := viper.GetString(key); v != "" {
			return v
		}
	}
	return fallback
}

func durationSetting(key string, fallback time.Duration) time.Duration {
	if viper.IsSet(key) {
		if v := viper.GetDuration(key); v > 0 {
			return v
		}
	}
	return fallback
}

func floatSetting(key string, fallback float64) float64 {
	if viper.IsSet(key) {
		if v := viper.GetFloat64(key); v > 0 {
			return v
		}
	}
	return fallback
}

func boolSetting(key string, fallback bool) bool {
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	return fallback
}
