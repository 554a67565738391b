package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/snonux/studycards/internal/speech"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:           srv.URL,
		Category:          "verbs",
		Deck:              "phrasal.json",
		RequestsPerSecond: 1000,
		Burst:             1000,
		SpoolDir:          t.TempDir(),
	}, nil)
	require.NoError(t, err)
	return c, srv
}

func decodeBody(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&m))
	return m
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "ftp://example.com"}, nil)
	assert.Error(t, err)
}

func TestFetchCards(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/flashcards-data", r.URL.Path)
		assert.Equal(t, "verbs", r.URL.Query().Get("category"))
		assert.Equal(t, "phrasal.json", r.URL.Query().Get("deck"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte(`[
			{"name":"give up","phonetic":"/gɪv ʌp/","isPhrasalVerb":true,"learned":false,
			 "definitions":[{"meaning":"stop trying","usageExample":"Never give up","imagePath":"/static/images/0.png"}]},
			{"name":"look after","learned":true,"imagePath":"/static/images/1.png","definitions":[]}
		]`))
	})

	got, err := c.FetchCards(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "give up", got[0].Name)
	assert.True(t, got[0].IsPhrasalVerb)
	assert.Equal(t, "/static/images/0.png", got[0].ImagePath)
	assert.Equal(t, "Never give up", got[0].Definitions[0].UsageExample)
	assert.Equal(t, "verbs", got[0].Category)
	assert.Equal(t, "phrasal.json", got[0].DeckName)

	assert.True(t, got[1].Learned)
	assert.Equal(t, "/static/images/1.png", got[1].ImagePath)
}

func TestBackendErrorDetail(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"string detail", `{"detail":"Deck no encontrado"}`, "Deck no encontrado"},
		{"structured detail", `{"detail":[{"loc":["body","index"]}]}`, `[{"loc":["body","index"]}]`},
		{"plain body", `oops`, "oops"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(tt.body))
			})

			err := c.UpdateStatus(context.Background(), 1, true)
			var be *BackendError
			require.True(t, errors.As(err, &be), "got %v", err)
			assert.Equal(t, http.StatusNotFound, be.Status)
			assert.Equal(t, tt.detail, be.Detail)
		})
	}
}

func TestNetworkError(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := c.FetchCards(context.Background())
	var ne *NetworkError
	assert.True(t, errors.As(err, &ne), "got %v", err)
}

func TestCircuitBreakerOpensOnServerErrors(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"boom"}`))
	})

	for i := 0; i < 5; i++ {
		err := c.ResetAll(context.Background())
		var be *BackendError
		require.True(t, errors.As(err, &be), "attempt %d: %v", i, err)
		assert.Equal(t, "boom", be.Detail)
	}

	err := c.ResetAll(context.Background())
	var ne *NetworkError
	require.True(t, errors.As(err, &ne), "got %v", err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.EqualValues(t, 5, atomic.LoadInt32(&calls))
}

func TestUpdateStatusAndResetBodies(t *testing.T) {
	var bodies []map[string]interface{}
	var paths []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		bodies = append(bodies, decodeBody(t, r))
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	require.NoError(t, c.UpdateStatus(context.Background(), 4, true))
	require.NoError(t, c.ResetAll(context.Background()))

	assert.Equal(t, []string{"POST /api/update-status", "POST /api/reset-all"}, paths)
	assert.Equal(t, map[string]interface{}{"index": 4.0, "learned": true, "category": "verbs", "deck": "phrasal.json"}, bodies[0])
	assert.Equal(t, map[string]interface{}{"category": "verbs", "deck": "phrasal.json", "confirm": true}, bodies[1])
}

func TestGenerateImage(t *testing.T) {
	var body map[string]interface{}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate-image", r.URL.Path)
		body = decodeBody(t, r)
		_, _ = w.Write([]byte(`{"success":true,"filename":"2.png","path":"/static/images/2.png"}`))
	})

	path, err := c.GenerateImage(context.Background(), ImageRequest{CardID: 2, Prompt: "a cat", Force: true})
	require.NoError(t, err)
	assert.Equal(t, "/static/images/2.png", path)
	assert.Equal(t, 2.0, body["index"])
	assert.Equal(t, 0.0, body["def_index"])
	assert.Equal(t, true, body["force_generation"])
	assert.Equal(t, "a cat", body["prompt"])
}

func TestGenerateImageMissingPath(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	_, err := c.GenerateImage(context.Background(), ImageRequest{CardID: 2})
	var pe *ProtocolError
	assert.True(t, errors.As(err, &pe), "got %v", err)
}

func TestDeleteImage(t *testing.T) {
	var method string
	var body map[string]interface{}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		body = decodeBody(t, r)
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	require.NoError(t, c.DeleteImage(context.Background(), 7))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, 7.0, body["index"])
	assert.Equal(t, "phrasal.json", body["deck"])
}

func TestUploadImage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/upload-image", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "verbs", r.FormValue("category"))
		assert.Equal(t, "phrasal.json", r.FormValue("deck"))
		assert.Equal(t, "3", r.FormValue("card_index"))
		assert.Equal(t, "0", r.FormValue("def_index"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "cat.JPG", header.Filename)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "jpeg-bytes", string(data))

		_, _ = w.Write([]byte(`{"success":true,"filename":"3.jpg","path":"/static/images/verbs/3.jpg"}`))
	})

	path, err := c.UploadImage(context.Background(), 3, "/home/me/Pictures/cat.JPG", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/static/images/verbs/3.jpg", path)
}

func TestUploadImageErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		target interface{}
	}{
		{"backend rejects", http.StatusInternalServerError, `{"detail":"disk full"}`, new(*BackendError)},
		{"missing path", http.StatusOK, `{"success":true}`, new(*ProtocolError)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.UploadImage(context.Background(), 1, "a.png", strings.NewReader("png"))
			assert.True(t, errors.As(err, tt.target), "got %v", err)
		})
	}
}

func TestSynthesizeJSON(t *testing.T) {
	var body map[string]interface{}
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body = decodeBody(t, r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"audio_url":"https://storage.example.com/bucket/card_audio/verbs/a.mp3"}`))
	})

	ref, err := c.Synthesize(context.Background(), speech.Request{
		Text:  "Never give up",
		Voice: "Aoede",
		Model: "gemini-2.5-pro-tts",
		Tone:  "Read slowly",
		Name:  "give up",
	})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/card_audio/verbs/a.mp3", ref)
	assert.Equal(t, "Never give up", body["text"])
	assert.Equal(t, "Aoede", body["voice_name"])
	assert.Equal(t, "give up", body["verb_name"])
	assert.Equal(t, "verbs", body["category"])
	assert.Equal(t, "Read slowly", body["tone"])
}

func TestSynthesizeInlineAudio(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio"))
	})

	ref, err := c.Synthesize(context.Background(), speech.Request{Text: "hi", Name: "look up"})
	require.NoError(t, err)

	data, err := os.ReadFile(ref)
	require.NoError(t, err)
	assert.Equal(t, "ID3-audio", string(data))
}

func TestSpooledAudioIsReusedAndRemovedOnClose(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3:" + body["text"].(string)))
	})
	ctx := context.Background()

	var refs []string
	for _, text := range []string{"look up", "look up", "look up", "Look it up."} {
		ref, err := c.Synthesize(ctx, speech.Request{Text: text, Name: "look up"})
		require.NoError(t, err)
		refs = append(refs, ref)
	}
	assert.Equal(t, refs[0], refs[1])
	assert.Equal(t, refs[0], refs[2])
	assert.NotEqual(t, refs[0], refs[3])

	entries, err := os.ReadDir(c.config.SpoolDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.NoError(t, c.Close())
	entries, err = os.ReadDir(c.config.SpoolDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPrivateSpoolDirRemovedOnClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFF"))
	}))
	defer srv.Close()
	c, err := New(Config{BaseURL: srv.URL, RequestsPerSecond: 1000, Burst: 1000}, nil)
	require.NoError(t, err)

	ref, err := c.Synthesize(context.Background(), speech.Request{Text: "hi", Name: "hi"})
	require.NoError(t, err)
	assert.Equal(t, ".wav", filepath.Ext(ref))

	require.NoError(t, c.Close())
	_, err = os.Stat(filepath.Dir(ref))
	assert.True(t, os.IsNotExist(err))
}

func TestSynthesizeProtocolErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing url", `{"success":true}`},
		{"not json", `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Synthesize(context.Background(), speech.Request{Text: "hi"})
			var pe *ProtocolError
			assert.True(t, errors.As(err, &pe), "got %v", err)
		})
	}
}

func TestSynthesizeUnsuccessful(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"detail":"quota exceeded"}`))
	})

	_, err := c.Synthesize(context.Background(), speech.Request{Text: "hi"})
	var be *BackendError
	require.True(t, errors.As(err, &be), "got %v", err)
	assert.Equal(t, "quota exceeded", be.Detail)
}

func TestResolveURL(t *testing.T) {
	c, err := New(Config{BaseURL: "http://localhost:8000/app"}, nil)
	require.NoError(t, err)

	tests := []struct {
		in   string
		want string
	}{
		{"/static/images/1.png", "http://localhost:8000/static/images/1.png"},
		{"static/images/1.png", "http://localhost:8000/app/static/images/1.png"},
		{"https://cdn.example.com/card_audio/x.mp3?sig=1", "http://localhost:8000/card_audio/x.mp3?sig=1"},
		{"https://cdn.example.com/other/x.png", "https://cdn.example.com/other/x.png"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := c.ResolveURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategoriesAndDecks(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/categories":
			_, _ = w.Write([]byte(`{"success":true,"categories":["verbs","nouns"]}`))
		case "/api/available-flashcards-files":
			assert.Equal(t, "verbs", r.URL.Query().Get("category"))
			_, _ = w.Write([]byte(`{"success":true,"files":["a.json","b.json"],"active_file":"a.json"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	cats, err := c.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"verbs", "nouns"}, cats)

	decks, err := c.Decks(context.Background(), "verbs")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json", "b.json"}, decks.Files)
	assert.Equal(t, "a.json", decks.Active)
}
