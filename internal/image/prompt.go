package image

import (
	"fmt"
	"strings"

	"codeberg.org/snonux/studycards/internal/cards"
)

// BuildPrompt creates the image generation prompt for a card from its name
// and first definition.
func BuildPrompt(card cards.Card) string {
	var b strings.Builder

	kind := "word"
	if card.IsPhrasalVerb {
		kind = "phrasal verb"
	}
	fmt.Fprintf(&b, "A simple, clear educational illustration for a language learning flashcard of the English %s %q.", kind, card.Name)

	if len(card.Definitions) > 0 {
		def := card.Definitions[0]
		if m := strings.TrimSpace(def.Meaning); m != "" {
			fmt.Fprintf(&b, " Meaning: %s.", strings.TrimSuffix(m, "."))
		}
		if ex := strings.TrimSpace(def.UsageExample); ex != "" {
			fmt.Fprintf(&b, " Show the scene: %s", ex)
			if !strings.HasSuffix(ex, ".") {
				b.WriteString(".")
			}
		}
	}

	b.WriteString(" No text or letters in the image.")
	return b.String()
}
