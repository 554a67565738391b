package cli

import (
	"time"

	"codeberg.org/snonux/studycards/internal/speech"
)

// Flags holds all command-line flag values
type Flags struct {
	// General flags
	CfgFile    string
	OutputDir  string
	LogFile    string
	Debug      bool
	NoAutoPlay bool

	// Backend flags
	BaseURL  string
	Category string
	Deck     string
	Timeout  time.Duration
	Rate     float64

	// Speech flags
	Voice          string
	TTSModel       string
	Tone           string
	SpeechProvider string
	OpenAIVoice    string
	OpenAIModel    string
	SpeechFallback bool

	// Modes
	ListDecks    bool
	ListModels   bool
	GenerateAnki bool
	AnkiCSV      bool
}

// NewFlags creates a new Flags instance with default values
func NewFlags() *Flags {
	return &Flags{
		BaseURL:        "http://localhost:8000",
		Timeout:        60 * time.Second,
		Rate:           5,
		Voice:          speech.DefaultVoice,
		TTSModel:       speech.DefaultModel,
		Tone:           speech.DefaultTone,
		SpeechProvider: "backend",
		OpenAIVoice:    "alloy",
		OpenAIModel:    "gpt-4o-mini-tts",
	}
}
