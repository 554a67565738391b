package gui

import (
	"testing"

	"fyne.io/fyne/v2/test"
	"fyne.io/fyne/v2/widget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWordText(t *testing.T) {
	test.NewTempApp(t)

	w := NewWordText("  give   up smoking ", false)
	require.Len(t, w.Segments, 5)

	var words []string
	for i := 0; w.word(i) != nil; i++ {
		words = append(words, w.word(i).Text)
	}
	assert.Equal(t, []string{"give", "up", "smoking"}, words)
	assert.Equal(t, " ", w.Segments[1].(*widget.TextSegment).Text)
	assert.Empty(t, w.Highlighted())
}

func TestWordTextStyles(t *testing.T) {
	test.NewTempApp(t)

	w := NewWordText("one two three", true)

	assert.True(t, w.setStyle(1, w.highlight))
	assert.False(t, w.setStyle(1, w.highlight), "unchanged style")
	assert.Equal(t, []int{1}, w.Highlighted())

	assert.True(t, w.setStyle(1, w.base))
	assert.Empty(t, w.Highlighted())

	assert.False(t, w.setStyle(-1, w.highlight))
	assert.False(t, w.setStyle(3, w.highlight))
	assert.NotEqual(t, w.base, w.highlight)
}

func TestWordTextEmpty(t *testing.T) {
	test.NewTempApp(t)

	w := NewWordText("", false)
	assert.Empty(t, w.Segments)
	assert.Nil(t, w.word(0))
}
