package cards

import (
	"strings"
)

// Definition is one meaning of a card with its usage examples.
type Definition struct {
	Meaning            string `json:"meaning"`
	UsageExample       string `json:"usageExample"`
	UsageExampleEs     string `json:"usageExampleEs,omitempty"`
	AlternativeExample string `json:"alternativeExample,omitempty"`
}

// Card is a single vocabulary item or phrasal verb.
type Card struct {
	ID            int          `json:"id"`
	Name          string       `json:"name"`
	Phonetic      string       `json:"phonetic,omitempty"`
	IsPhrasalVerb bool         `json:"isPhrasalVerb"`
	Learned       bool         `json:"learned"`
	ImagePath     string       `json:"imagePath,omitempty"`
	Category      string       `json:"category,omitempty"`
	DeckName      string       `json:"deckName,omitempty"`
	Definitions   []Definition `json:"definitions"`
}

// Ref addresses one speakable text on a card. Def -1 means the card name,
// otherwise the usage example (or the alternative example) of
// Definitions[Def].
type Ref struct {
	CardID      int
	Def         int
	Alternative bool
}

// NameRef returns the reference to the name of the card with the given id.
func NameRef(id int) Ref {
	return Ref{CardID: id, Def: -1}
}

// TextFor returns the text addressed by ref. The second result is false
// when ref points to another card or to a missing definition or example.
func (c Card) TextFor(ref Ref) (string, bool) {
	if ref.CardID != c.ID {
		return "", false
	}
	if ref.Def < 0 {
		return c.Name, c.Name != ""
	}
	if ref.Def >= len(c.Definitions) {
		return "", false
	}

	def := c.Definitions[ref.Def]
	text := def.UsageExample
	if ref.Alternative {
		text = def.AlternativeExample
	}
	return text, strings.TrimSpace(text) != ""
}

// Words splits a text into the words that are highlighted one by one
// during playback.
func Words(text string) []string {
	return strings.Fields(text)
}
