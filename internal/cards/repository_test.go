package cards

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCards(names ...string) []Card {
	out := make([]Card, len(names))
	for i, n := range names {
		out[i] = Card{
			ID:   99,
			Name: n,
			Definitions: []Definition{
				{Meaning: "meaning of " + n, UsageExample: "I " + n + " every day"},
			},
		}
	}
	return out
}

func activeNames(r *Repository) []string {
	var names []string
	for _, c := range r.Active() {
		names = append(names, c.Name)
	}
	return names
}

func TestLoadAssignsSequentialIDs(t *testing.T) {
	r := NewRepository()
	r.Load(sampleCards("a", "b", "c"))

	require.Equal(t, 3, r.Len())
	for i, c := range r.Master() {
		assert.Equal(t, i, c.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, activeNames(r))
}

func TestLoadSkipsLearnedCards(t *testing.T) {
	in := sampleCards("a", "b", "c")
	in[1].Learned = true

	r := NewRepository()
	r.Load(in)

	assert.Equal(t, []string{"a", "c"}, activeNames(r))
	assert.Equal(t, 2, r.ActiveLen())
	assert.Equal(t, 3, r.Len())
}

func TestMarkLearned(t *testing.T) {
	r := NewRepository()
	r.Load(sampleCards("a", "b", "c"))

	require.NoError(t, r.MarkLearned(1))
	assert.Equal(t, []string{"a", "c"}, activeNames(r))

	c, err := r.Get(1)
	require.NoError(t, err)
	assert.True(t, c.Learned)

	// Marking twice is harmless.
	require.NoError(t, r.MarkLearned(1))
	assert.Equal(t, 2, r.ActiveLen())
}

func TestUnknownID(t *testing.T) {
	r := NewRepository()
	r.Load(sampleCards("a"))

	tests := []struct {
		name string
		fn   func() error
	}{
		{"mark learned", func() error { return r.MarkLearned(5) }},
		{"set learned", func() error { return r.SetLearned(-1, false) }},
		{"set image", func() error { return r.SetImagePath(1, "x.png") }},
		{"get", func() error { _, err := r.Get(7); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
		})
	}
}

func TestSetImagePath(t *testing.T) {
	r := NewRepository()
	r.Load(sampleCards("a", "b"))

	require.NoError(t, r.SetImagePath(0, "/images/a.png"))
	c, _ := r.ActiveAt(0)
	assert.Equal(t, "/images/a.png", c.ImagePath)

	require.NoError(t, r.SetImagePath(0, ""))
	c, _ = r.ActiveAt(0)
	assert.Empty(t, c.ImagePath)
}

func TestResetAll(t *testing.T) {
	r := NewRepository()
	r.Load(sampleCards("a", "b", "c"))
	require.NoError(t, r.MarkLearned(0))
	require.NoError(t, r.MarkLearned(2))

	r.ResetAll()

	assert.Equal(t, []string{"a", "b", "c"}, activeNames(r))
}

func TestReadsReturnCopies(t *testing.T) {
	r := NewRepository()
	r.Load(sampleCards("a"))

	c, ok := r.ActiveAt(0)
	require.True(t, ok)
	c.Name = "changed"
	c.Definitions[0].Meaning = "changed"

	again, _ := r.ActiveAt(0)
	assert.Equal(t, "a", again.Name)
	assert.Equal(t, "meaning of a", again.Definitions[0].Meaning)

	_, ok = r.ActiveAt(1)
	assert.False(t, ok)
}

func TestActiveMatchesFilterAfterRandomMutations(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r := NewRepository()
	r.Load(sampleCards("a", "b", "c", "d", "e", "f", "g"))

	for step := 0; step < 500; step++ {
		switch rng.Intn(4) {
		case 0:
			_ = r.MarkLearned(rng.Intn(r.Len()))
		case 1:
			_ = r.SetLearned(rng.Intn(r.Len()), false)
		case 2:
			_ = r.SetImagePath(rng.Intn(r.Len()), "p")
		case 3:
			if rng.Intn(10) == 0 {
				r.ResetAll()
			}
		}

		var want []string
		for _, c := range r.Master() {
			if !c.Learned {
				want = append(want, c.Name)
			}
		}
		require.Equal(t, want, activeNames(r), "step %d", step)
	}
}

func TestTextFor(t *testing.T) {
	c := Card{
		ID:   3,
		Name: "give up",
		Definitions: []Definition{
			{UsageExample: "Never give up", AlternativeExample: "She gave up smoking"},
			{UsageExample: "  "},
		},
	}

	tests := []struct {
		name   string
		ref    Ref
		want   string
		wantOK bool
	}{
		{"name", NameRef(3), "give up", true},
		{"usage", Ref{CardID: 3, Def: 0}, "Never give up", true},
		{"alternative", Ref{CardID: 3, Def: 0, Alternative: true}, "She gave up smoking", true},
		{"blank usage", Ref{CardID: 3, Def: 1}, "  ", false},
		{"missing definition", Ref{CardID: 3, Def: 4}, "", false},
		{"other card", Ref{CardID: 4, Def: -1}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.TextFor(tt.ref)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"Never", "give", "up"}, Words(" Never  give up "))
	assert.Empty(t, Words("   "))
}
