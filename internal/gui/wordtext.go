package gui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"codeberg.org/snonux/studycards/internal/cards"
)

// WordText renders a text as one segment per word so that playback can
// highlight the word being spoken. It implements playback.Highlighter and
// may be driven from any goroutine.
type WordText struct {
	*widget.RichText

	base      widget.RichTextStyle
	highlight widget.RichTextStyle
}

// NewWordText creates the widget. Heading text is rendered large and bold.
func NewWordText(text string, heading bool) *WordText {
	base := widget.RichTextStyleInline
	if heading {
		base.SizeName = theme.SizeNameHeadingText
		base.TextStyle = fyne.TextStyle{Bold: true}
	}
	highlight := base
	highlight.ColorName = theme.ColorNamePrimary
	highlight.TextStyle.Bold = true

	words := cards.Words(text)
	segments := make([]widget.RichTextSegment, 0, 2*len(words))
	for i, word := range words {
		if i > 0 {
			segments = append(segments, &widget.TextSegment{Style: base, Text: " "})
		}
		segments = append(segments, &widget.TextSegment{Style: base, Text: word})
	}

	rt := widget.NewRichText(segments...)
	rt.Wrapping = fyne.TextWrapWord
	return &WordText{RichText: rt, base: base, highlight: highlight}
}

// Highlight marks word i
func (w *WordText) Highlight(i int) {
	fyne.Do(func() {
		if w.setStyle(i, w.highlight) {
			w.Refresh()
		}
	})
}

// Unhighlight clears the mark of word i
func (w *WordText) Unhighlight(i int) {
	fyne.Do(func() {
		if w.setStyle(i, w.base) {
			w.Refresh()
		}
	})
}

// Highlighted returns the indexes of the marked words
func (w *WordText) Highlighted() []int {
	var lit []int
	for i := 0; w.word(i) != nil; i++ {
		if w.word(i).Style == w.highlight {
			lit = append(lit, i)
		}
	}
	return lit
}

// setStyle reports whether word i exists and changed.
func (w *WordText) setStyle(i int, style widget.RichTextStyle) bool {
	seg := w.word(i)
	if seg == nil || seg.Style == style {
		return false
	}
	seg.Style = style
	return true
}

// word returns the segment of word i. Words and spaces alternate.
func (w *WordText) word(i int) *widget.TextSegment {
	idx := 2 * i
	if i < 0 || idx >= len(w.Segments) {
		return nil
	}
	seg, _ := w.Segments[idx].(*widget.TextSegment)
	return seg
}
