package anki

import (
	"archive/zip"
	"database/sql"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAPKGGenerator(t *testing.T) {
	gen := NewAPKGGenerator("Test Deck")

	require.NotNil(t, gen)
	assert.Equal(t, "Test Deck", gen.deckName)
	assert.NotEqual(t, gen.deckID, gen.modelID)
	assert.Empty(t, gen.notes)
	assert.Empty(t, gen.media)
}

func TestGenerateAPKG(t *testing.T) {
	tempDir := t.TempDir()
	audioFile := filepath.Join(tempDir, "apple.mp3")
	imageFile := filepath.Join(tempDir, "apple.png")
	require.NoError(t, os.WriteFile(audioFile, []byte("test audio data"), 0644))
	require.NoError(t, os.WriteFile(imageFile, []byte("test image data"), 0644))

	gen := NewAPKGGenerator("Test Deck")
	gen.AddNote(Note{Front: "apple", Back: "<div>fruit</div>", ImageFile: imageFile, AudioFile: audioFile, Tags: []string{"food"}})
	gen.AddNote(Note{Front: "pear", Back: "<div>fruit</div>", ImageFile: filepath.Join(tempDir, "missing.png")})

	outputPath := filepath.Join(tempDir, "test.apkg")
	require.NoError(t, gen.GenerateAPKG(outputPath))

	reader, err := zip.OpenReader(outputPath)
	require.NoError(t, err)
	defer reader.Close()

	entries := map[string]*zip.File{}
	for _, f := range reader.File {
		entries[f.Name] = f
	}
	for _, name := range []string{"collection.anki2", "media", "0", "1"} {
		assert.Contains(t, entries, name)
	}
	assert.NotContains(t, entries, "2", "missing media files are skipped")

	rc, err := entries["media"].Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)

	var index map[string]string
	require.NoError(t, json.Unmarshal(data, &index))
	assert.Equal(t, map[string]string{"0": "0_apple.png", "1": "1_apple.mp3"}, index)
}

func TestCreateDatabase(t *testing.T) {
	tempDir := t.TempDir()
	imageFile := filepath.Join(tempDir, "cat.png")
	require.NoError(t, os.WriteFile(imageFile, []byte("img"), 0644))

	gen := NewAPKGGenerator("Test Deck")
	gen.AddNote(Note{Front: "cat", Phonetic: "/kæt/", Back: "<div>an animal</div>", ImageFile: imageFile, Tags: []string{"studycards", "animals"}})
	require.NoError(t, gen.addMedia(tempDir, imageFile))

	dbPath := filepath.Join(tempDir, "test.anki2")
	require.NoError(t, gen.createDatabase(dbPath))

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var flds, sfld, tags string
	var csum int64
	require.NoError(t, db.QueryRow("SELECT flds, sfld, tags, csum FROM notes").Scan(&flds, &sfld, &tags, &csum))
	fields := strings.Split(flds, "\x1f")
	require.Len(t, fields, len(fieldNames))
	assert.Equal(t, "cat", fields[0])
	assert.Equal(t, "/kæt/", fields[1])
	assert.Equal(t, `<img src="0_cat.png">`, fields[3])
	assert.Equal(t, "", fields[4])
	assert.Equal(t, "cat", sfld)
	assert.Equal(t, " studycards animals ", tags)
	assert.Equal(t, checksum("cat"), csum)

	var cardCount int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM cards").Scan(&cardCount))
	assert.Equal(t, 2, cardCount)

	var decks string
	require.NoError(t, db.QueryRow("SELECT decks FROM col").Scan(&decks))
	assert.Contains(t, decks, `"name":"Test Deck"`)
}

func TestChecksum(t *testing.T) {
	// sha1("apple") = d0be2dc421be4fcd0172e5afceea3970e2f3d940
	assert.Equal(t, int64(0xd0be2dc4), checksum("apple"))
}
