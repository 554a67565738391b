package api

import (
	"context"
	"net/http"
	"net/url"

	"codeberg.org/snonux/studycards/internal/cards"
)

type definitionRecord struct {
	Meaning            string  `json:"meaning"`
	UsageExample       string  `json:"usageExample"`
	UsageExampleEs     string  `json:"usageExampleEs"`
	AlternativeExample string  `json:"alternativeExample"`
	ImagePath          *string `json:"imagePath"`
}

type cardRecord struct {
	Name          string             `json:"name"`
	Phonetic      string             `json:"phonetic"`
	IsPhrasalVerb bool               `json:"isPhrasalVerb"`
	Learned       bool               `json:"learned"`
	ImagePath     *string            `json:"imagePath"`
	Definitions   []definitionRecord `json:"definitions"`
}

// toCard converts a wire record. The image path falls back to the first
// definition, where the backend stores it.
func (r cardRecord) toCard(category, deck string) cards.Card {
	c := cards.Card{
		Name:          r.Name,
		Phonetic:      r.Phonetic,
		IsPhrasalVerb: r.IsPhrasalVerb,
		Learned:       r.Learned,
		Category:      category,
		DeckName:      deck,
	}
	if r.ImagePath != nil {
		c.ImagePath = *r.ImagePath
	}

	for i, d := range r.Definitions {
		if c.ImagePath == "" && i == 0 && d.ImagePath != nil {
			c.ImagePath = *d.ImagePath
		}
		c.Definitions = append(c.Definitions, cards.Definition{
			Meaning:            d.Meaning,
			UsageExample:       d.UsageExample,
			UsageExampleEs:     d.UsageExampleEs,
			AlternativeExample: d.AlternativeExample,
		})
	}
	return c
}

// FetchCards loads the configured deck.
func (c *Client) FetchCards(ctx context.Context) ([]cards.Card, error) {
	var records []cardRecord
	if err := c.doJSON(ctx, "fetch cards", http.MethodGet, "/api/flashcards-data", c.deckQuery(), nil, &records); err != nil {
		return nil, err
	}

	out := make([]cards.Card, 0, len(records))
	for _, r := range records {
		out = append(out, r.toCard(c.config.Category, c.config.Deck))
	}
	return out, nil
}

// Categories lists the deck categories known to the backend.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var payload struct {
		Categories *[]string `json:"categories"`
	}
	if err := c.doJSON(ctx, "list categories", http.MethodGet, "/api/categories", nil, nil, &payload); err != nil {
		return nil, err
	}
	if payload.Categories == nil {
		return nil, &ProtocolError{Op: "list categories", Message: "missing categories"}
	}
	return *payload.Categories, nil
}

// DeckList is the set of decks of one category.
type DeckList struct {
	Files  []string
	Active string
}

// Decks lists the decks of a category.
func (c *Client) Decks(ctx context.Context, category string) (DeckList, error) {
	var payload struct {
		Files      *[]string `json:"files"`
		ActiveFile string    `json:"active_file"`
	}
	q := url.Values{}
	q.Set("category", category)
	if err := c.doJSON(ctx, "list decks", http.MethodGet, "/api/available-flashcards-files", q, nil, &payload); err != nil {
		return DeckList{}, err
	}
	if payload.Files == nil {
		return DeckList{}, &ProtocolError{Op: "list decks", Message: "missing files"}
	}
	return DeckList{Files: *payload.Files, Active: payload.ActiveFile}, nil
}

type statusRequest struct {
	Index    int    `json:"index"`
	Learned  bool   `json:"learned"`
	Category string `json:"category"`
	Deck     string `json:"deck"`
}

// UpdateStatus persists the learned flag of a card.
func (c *Client) UpdateStatus(ctx context.Context, cardID int, learned bool) error {
	req := statusRequest{Index: cardID, Learned: learned, Category: c.config.Category, Deck: c.config.Deck}
	return c.doJSON(ctx, "update status", http.MethodPost, "/api/update-status", nil, req, nil)
}

type resetRequest struct {
	Category string `json:"category"`
	Deck     string `json:"deck"`
	Confirm  bool   `json:"confirm"`
}

// ResetAll marks every card of the deck as not learned.
func (c *Client) ResetAll(ctx context.Context) error {
	req := resetRequest{Category: c.config.Category, Deck: c.config.Deck, Confirm: true}
	return c.doJSON(ctx, "reset all", http.MethodPost, "/api/reset-all", nil, req, nil)
}
