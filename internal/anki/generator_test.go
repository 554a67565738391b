package anki

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/snonux/studycards/internal/cards"
)

func TestNoteFromCard(t *testing.T) {
	card := cards.Card{
		ID:            3,
		Name:          "give up",
		Phonetic:      "/ɡɪv ʌp/",
		IsPhrasalVerb: true,
		Category:      "phrasal verbs",
		DeckName:      "b2 list.json",
		Definitions: []cards.Definition{
			{Meaning: "to stop trying", UsageExample: "Don't give up <now>!", AlternativeExample: "She gave up."},
			{Meaning: "to quit a habit"},
		},
	}

	note := NoteFromCard(card)

	assert.Equal(t, "give up", note.Front)
	assert.Equal(t, "/ɡɪv ʌp/", note.Phonetic)
	assert.Contains(t, note.Back, `<div class="meaning">to stop trying</div>`)
	assert.Contains(t, note.Back, "Don&#39;t give up &lt;now&gt;!")
	assert.Contains(t, note.Back, "She gave up.")
	assert.Contains(t, note.Back, `<div class="meaning">to quit a habit</div>`)
	assert.Equal(t, []string{"studycards", "phrasal_verbs", "b2_list", "phrasal_verb"}, note.Tags)
	assert.Empty(t, note.ImageFile)
	assert.Empty(t, note.AudioFile)
}

func TestNewGenerator(t *testing.T) {
	gen := NewGenerator(nil)
	require.NotNil(t, gen)
	assert.Equal(t, "anki_import.csv", gen.options.OutputPath)
	assert.True(t, gen.options.IncludeHeaders)
	assert.Empty(t, gen.Notes())
}

func TestGenerateCSV(t *testing.T) {
	tests := []struct {
		name    string
		headers bool
		rows    int
	}{
		{"with headers", true, 3},
		{"without headers", false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "deck.csv")
			gen := NewGenerator(&GeneratorOptions{OutputPath: out, IncludeHeaders: tt.headers})
			gen.AddNote(Note{Front: "apple", Back: "<div>fruit</div>", ImageFile: "/tmp/x/apple_1.png", AudioFile: "/tmp/x/apple.mp3", Tags: []string{"studycards", "food"}})
			gen.AddNote(Note{Front: "run", Back: "<div>move fast</div>"})

			require.NoError(t, gen.GenerateCSV())

			f, err := os.Open(out)
			require.NoError(t, err)
			defer f.Close()
			records, err := csv.NewReader(f).ReadAll()
			require.NoError(t, err)
			require.Len(t, records, tt.rows)

			first := records[len(records)-2]
			assert.Equal(t, "apple", first[0])
			assert.Equal(t, `<img src="apple_1.png">`, first[3])
			assert.Equal(t, "[sound:apple.mp3]", first[4])
			assert.Equal(t, "studycards food", first[5])

			last := records[len(records)-1]
			assert.Equal(t, "", last[3])
			assert.Equal(t, "", last[4])
		})
	}
}

func TestGenerateCSV_BadPath(t *testing.T) {
	gen := NewGenerator(&GeneratorOptions{OutputPath: filepath.Join(t.TempDir(), "missing", "deck.csv")})
	assert.Error(t, gen.GenerateCSV())
}

func TestStats(t *testing.T) {
	gen := NewGenerator(nil)
	gen.AddNote(Note{Front: "a", AudioFile: "a.mp3", ImageFile: "a.png"})
	gen.AddNote(Note{Front: "b", AudioFile: "b.mp3"})
	gen.AddNote(Note{Front: "c"})

	total, withAudio, withImages := gen.Stats()
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, withAudio)
	assert.Equal(t, 1, withImages)
}
