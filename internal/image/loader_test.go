package image

import (
	"bytes"
	"context"
	"errors"
	stdimage "image"
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
	"codeberg.org/snonux/studycards/internal/cards"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type staticResolver struct{ base string }

func (r staticResolver) ResolveURL(ref string) (string, error) {
	return r.base + ref, nil
}

func TestLoadFromBackendAddsCacheBuster(t *testing.T) {
	var gotQuery string
	data := pngBytes(t, 20, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/static/images/1.png", r.URL.Path)
		gotQuery = r.URL.Query().Get("t")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	l := NewLoader(staticResolver{base: srv.URL}, LoaderConfig{}, nil)
	l.now = func() time.Time { return time.UnixMilli(1700000000123) }

	img, err := l.Load(context.Background(), "/static/images/1.png")
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
	assert.Equal(t, "1700000000123", gotQuery)
}

func TestLoadDownsizesLargeImages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t, 400, 200), 0644))

	l := NewLoader(nil, LoaderConfig{MaxWidth: 100, MaxHeight: 100, MediaDir: dir}, nil)
	img, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestLoadIgnoresLocalFilesOutsideMediaDir(t *testing.T) {
	// A local file at the same path as the backend image must not win.
	local := filepath.Join(t.TempDir(), "static", "images", "1.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(local), 0755))
	require.NoError(t, os.WriteFile(local, pngBytes(t, 400, 200), 0644))

	var requested string
	data := pngBytes(t, 20, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	tests := []struct {
		name     string
		mediaDir string
	}{
		{"no media dir", ""},
		{"other media dir", t.TempDir()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requested = ""
			l := NewLoader(staticResolver{base: srv.URL}, LoaderConfig{MediaDir: tt.mediaDir}, nil)
			img, err := l.Load(context.Background(), local)
			require.NoError(t, err)
			assert.Equal(t, 20, img.Bounds().Dx())
			assert.Equal(t, filepath.ToSlash(local), requested)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing.png":
			w.WriteHeader(http.StatusNotFound)
		default:
			_, _ = w.Write([]byte("<html>not an image</html>"))
		}
	}))
	defer srv.Close()

	l := NewLoader(staticResolver{base: srv.URL}, LoaderConfig{}, nil)

	tests := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"not found", "/missing.png"},
		{"not an image", "/broken.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Load(context.Background(), tt.path)
			var rle *api.ResourceLoadError
			assert.True(t, errors.As(err, &rle), "got %v", err)
		})
	}
}

func TestLoadRelativeWithoutResolver(t *testing.T) {
	l := NewLoader(nil, LoaderConfig{}, nil)
	_, err := l.Load(context.Background(), "/static/images/1.png")

	var rle *api.ResourceLoadError
	assert.True(t, errors.As(err, &rle), "got %v", err)
}

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name         string
		card         cards.Card
		wantContains []string
	}{
		{
			name: "phrasal verb",
			card: cards.Card{
				Name:          "give up",
				IsPhrasalVerb: true,
				Definitions:   []cards.Definition{{Meaning: "stop trying.", UsageExample: "She never gives up"}},
			},
			wantContains: []string{"phrasal verb", `"give up"`, "Meaning: stop trying.", "She never gives up.", "educational", "No text"},
		},
		{
			name:         "no definitions",
			card:         cards.Card{Name: "apple"},
			wantContains: []string{"word", `"apple"`, "flashcard"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt := BuildPrompt(tt.card)
			for _, want := range tt.wantContains {
				assert.Contains(t, prompt, want)
			}
			assert.NotContains(t, prompt, "..")
		})
	}
}
