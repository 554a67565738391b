package processor

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/snonux/studycards/internal/api"
	"codeberg.org/snonux/studycards/internal/cli"
	"codeberg.org/snonux/studycards/internal/speech"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// backend serves a two card deck. The second card has no image.
func backend(t *testing.T) *httptest.Server {
	t.Helper()
	imageData := pngBytes(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/flashcards-data", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "verbs", r.URL.Query().Get("category"))
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{
				"name":        "give up",
				"imagePath":   "/static/images/give_up.png",
				"definitions": []map[string]string{{"meaning": "stop trying", "usageExample": "Never give up."}},
			},
			{
				"name":        "run",
				"definitions": []map[string]string{{"meaning": "move fast"}},
			},
		})
	})
	mux.HandleFunc("/static/images/give_up.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(imageData)
	})
	mux.HandleFunc("/api/synthesize-speech", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3:" + body["text"]))
	})
	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"categories": []string{"nouns", "verbs"}})
	})
	mux.HandleFunc("/api/available-flashcards-files", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("category") == "nouns" {
			http.Error(w, `{"detail":"category not found"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"files": []string{"a1.json", "b2.json"}, "active_file": "b2.json"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestProcessor(t *testing.T, srv *httptest.Server) (*Processor, *bytes.Buffer) {
	t.Helper()
	p, err := NewProcessor(cli.Settings{
		BaseURL:        srv.URL,
		Category:       "verbs",
		Deck:           "b2.json",
		Timeout:        5 * time.Second,
		Rate:           100,
		SpeechProvider: "backend",
		OutputDir:      t.TempDir(),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	var out bytes.Buffer
	p.out = &out
	return p, &out
}

func TestNewProcessor_InvalidURL(t *testing.T) {
	_, err := NewProcessor(cli.Settings{BaseURL: "ftp://cards"}, nil)
	assert.Error(t, err)
}

func TestListDecks(t *testing.T) {
	p, out := newTestProcessor(t, backend(t))

	require.NoError(t, p.ListDecks(context.Background()))

	assert.Contains(t, out.String(), "nouns\n  (failed to list decks:")
	assert.Contains(t, out.String(), "verbs\n   a1.json\n * b2.json\n")
}

func TestSynthesizer(t *testing.T) {
	srv := backend(t)

	tests := []struct {
		name     string
		provider string
		fallback bool
		want     interface{}
		wantErr  bool
	}{
		{"backend", "backend", false, &api.Client{}, false},
		{"empty defaults to backend", "", false, &api.Client{}, false},
		{"openai alone", "openai", false, &speech.OpenAIProvider{}, false},
		{"openai falls back to backend", "openai", true, &speech.SynthesizerWithFallback{}, false},
		{"unknown", "espeak", false, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestProcessor(t, srv)
			p.settings.SpeechProvider = tt.provider
			p.settings.SpeechFallback = tt.fallback
			p.settings.OpenAIKey = "test-key"

			synth, err := p.Synthesizer(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, synth)
		})
	}
}

func TestGenerateAnkiFile_CSV(t *testing.T) {
	p, out := newTestProcessor(t, backend(t))

	path, err := p.GenerateAnkiFile(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.settings.OutputDir, "verbs_b2.csv"), path)
	assert.Contains(t, out.String(), "Generated 2 cards (2 with audio, 1 with images)")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "give up", records[1][0])
	assert.Equal(t, `<img src="give_up_0.png">`, records[1][3])
	assert.Equal(t, "[sound:give_up_0.mp3]", records[1][4])
	assert.Equal(t, "", records[2][3])

	audio, err := os.ReadFile(filepath.Join(p.settings.OutputDir, "give_up_0.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "mp3:give up", string(audio))

	_, err = os.Stat(filepath.Join(p.settings.OutputDir, "give_up_0.png"))
	assert.NoError(t, err)
}

func TestGenerateAnkiFile_APKG(t *testing.T) {
	p, _ := newTestProcessor(t, backend(t))

	path, err := p.GenerateAnkiFile(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.settings.OutputDir, "verbs_b2.apkg"), path)

	reader, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer reader.Close()

	names := map[string]bool{}
	for _, f := range reader.File {
		names[f.Name] = true
	}
	// one image and two name recordings
	for _, name := range []string{"collection.anki2", "media", "0", "1", "2"} {
		assert.True(t, names[name], "missing %s", name)
	}
}

func TestGenerateAnkiFile_FetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"deck missing"}`, http.StatusNotFound)
	}))
	defer srv.Close()
	p, _ := newTestProcessor(t, srv)

	_, err := p.GenerateAnkiFile(context.Background(), true)
	require.Error(t, err)
	var backendErr *api.BackendError
	assert.ErrorAs(t, err, &backendErr)
}

func TestDeckName(t *testing.T) {
	srv := backend(t)
	tests := []struct {
		category, deck, want string
	}{
		{"verbs", "b2.json", "verbs b2"},
		{"", "b2.json", "b2"},
		{"verbs", "", "verbs"},
		{"", "", "studycards"},
	}
	for _, tt := range tests {
		p, err := NewProcessor(cli.Settings{BaseURL: srv.URL, Category: tt.category, Deck: tt.deck}, nil)
		require.NoError(t, err)
		assert.Equal(t, tt.want, p.deckName())
	}
}
