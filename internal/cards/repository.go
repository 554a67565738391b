package cards

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned for card ids outside the master collection.
var ErrNotFound = errors.New("card not found")

// Repository keeps the master collection and the active subset derived
// from it. Cards are never removed from master; the active subset is
// recomputed after every mutation.
type Repository struct {
	mu     sync.RWMutex
	master []*Card
	active []*Card
}

// NewRepository creates an empty repository
func NewRepository() *Repository {
	return &Repository{}
}

// Derive returns the cards of master that are not learned, in master order.
func Derive(master []*Card) []*Card {
	active := make([]*Card, 0, len(master))
	for _, c := range master {
		if !c.Learned {
			active = append(active, c)
		}
	}
	return active
}

// Load replaces the collection. Ids are assigned sequentially in input order.
func (r *Repository) Load(cards []Card) {
	master := make([]*Card, len(cards))
	for i := range cards {
		c := cards[i]
		c.ID = i
		c.Definitions = append([]Definition(nil), cards[i].Definitions...)
		master[i] = &c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.master = master
	r.active = Derive(master)
}

// MarkLearned flags a card as learned and drops it from the active subset.
func (r *Repository) MarkLearned(id int) error {
	return r.SetLearned(id, true)
}

// SetLearned sets the learned flag of a card.
func (r *Repository) SetLearned(id int, learned bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.lookup(id)
	if err != nil {
		return err
	}
	c.Learned = learned
	r.active = Derive(r.master)
	return nil
}

// SetImagePath stores the cached image path of a card. An empty path clears it.
func (r *Repository) SetImagePath(id int, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.lookup(id)
	if err != nil {
		return err
	}
	c.ImagePath = path
	return nil
}

// ResetAll marks every card as not learned.
func (r *Repository) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.master {
		c.Learned = false
	}
	r.active = Derive(r.master)
}

// Active returns copies of the cards that are still to be learned.
func (r *Repository) Active() []Card {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyCards(r.active)
}

// ActiveLen returns the size of the active subset.
func (r *Repository) ActiveLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// ActiveAt returns a copy of the active card at position i.
func (r *Repository) ActiveAt(i int) (Card, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i < 0 || i >= len(r.active) {
		return Card{}, false
	}
	return cloneCard(r.active[i]), true
}

// Get returns a copy of the card with the given id.
func (r *Repository) Get(id int) (Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, err := r.lookup(id)
	if err != nil {
		return Card{}, err
	}
	return cloneCard(c), nil
}

// Len returns the size of the master collection.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.master)
}

// Master returns copies of all cards in id order.
func (r *Repository) Master() []Card {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyCards(r.master)
}

func (r *Repository) lookup(id int) (*Card, error) {
	if id < 0 || id >= len(r.master) {
		return nil, fmt.Errorf("card %d: %w", id, ErrNotFound)
	}
	return r.master[id], nil
}

func cloneCard(c *Card) Card {
	out := *c
	out.Definitions = append([]Definition(nil), c.Definitions...)
	return out
}

func copyCards(in []*Card) []Card {
	out := make([]Card, len(in))
	for i, c := range in {
		out[i] = cloneCard(c)
	}
	return out
}
