package anki

import (
	"encoding/csv"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/snonux/studycards/internal/cards"
)

// Note is one exported flashcard
type Note struct {
	Front     string // card name
	Phonetic  string
	Back      string // HTML list of meanings and usage examples
	ImageFile string // local path, optional
	AudioFile string // local path, optional
	Tags      []string
}

// NoteFromCard builds the note for a deck card. Media files are attached
// by the caller.
func NoteFromCard(card cards.Card) Note {
	var back strings.Builder
	for _, def := range card.Definitions {
		back.WriteString(`<div class="definition">`)
		fmt.Fprintf(&back, `<div class="meaning">%s</div>`, html.EscapeString(def.Meaning))
		if def.UsageExample != "" {
			fmt.Fprintf(&back, `<div class="example">%s</div>`, html.EscapeString(def.UsageExample))
		}
		if def.AlternativeExample != "" {
			fmt.Fprintf(&back, `<div class="example">%s</div>`, html.EscapeString(def.AlternativeExample))
		}
		back.WriteString(`</div>`)
	}

	tags := []string{"studycards"}
	for _, t := range []string{card.Category, card.DeckName} {
		if t = tagName(t); t != "" {
			tags = append(tags, t)
		}
	}
	if card.IsPhrasalVerb {
		tags = append(tags, "phrasal_verb")
	}

	return Note{
		Front:    card.Name,
		Phonetic: card.Phonetic,
		Back:     back.String(),
		Tags:     tags,
	}
}

// tagName turns free text into an Anki tag. Anki separates tags by spaces.
func tagName(s string) string {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".json")
	return strings.Join(strings.Fields(s), "_")
}

// GeneratorOptions configures the CSV export
type GeneratorOptions struct {
	OutputPath     string // Output CSV file path
	IncludeHeaders bool   // Include CSV headers
}

// DefaultGeneratorOptions returns sensible defaults
func DefaultGeneratorOptions() *GeneratorOptions {
	return &GeneratorOptions{
		OutputPath:     "anki_import.csv",
		IncludeHeaders: true,
	}
}

// Generator creates Anki-compatible CSV import files. Media files are
// referenced by base name and must be copied into collection.media.
type Generator struct {
	options *GeneratorOptions
	notes   []Note
}

// NewGenerator creates a new Anki generator
func NewGenerator(options *GeneratorOptions) *Generator {
	if options == nil {
		options = DefaultGeneratorOptions()
	}
	return &Generator{options: options}
}

// AddNote adds a note to the collection
func (g *Generator) AddNote(note Note) {
	g.notes = append(g.notes, note)
}

// Notes returns the collected notes
func (g *Generator) Notes() []Note {
	return g.notes
}

// GenerateCSV creates a CSV file for Anki import
func (g *Generator) GenerateCSV() error {
	file, err := os.Create(g.options.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if g.options.IncludeHeaders {
		headers := []string{"Front", "Phonetic", "Back", "Image", "Audio", "Tags"}
		if err := writer.Write(headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for _, note := range g.notes {
		record := []string{
			note.Front,
			note.Phonetic,
			note.Back,
			imageField(filepath.Base(note.ImageFile), note.ImageFile != ""),
			audioField(filepath.Base(note.AudioFile), note.AudioFile != ""),
			strings.Join(note.Tags, " "),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write note: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return file.Close()
}

// Stats returns statistics about the note collection
func (g *Generator) Stats() (total, withAudio, withImages int) {
	total = len(g.notes)
	for _, note := range g.notes {
		if note.AudioFile != "" {
			withAudio++
		}
		if note.ImageFile != "" {
			withImages++
		}
	}
	return
}

func imageField(name string, ok bool) string {
	if !ok {
		return ""
	}
	return fmt.Sprintf(`<img src="%s">`, name)
}

func audioField(name string, ok bool) string {
	if !ok {
		return ""
	}
	return fmt.Sprintf("[sound:%s]", name)
}
