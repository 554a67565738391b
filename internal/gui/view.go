package gui

import (
	"fmt"
	stdimage "image"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	ttwidget "github.com/dweymouth/fyne-tooltip/widget"

	"codeberg.org/snonux/studycards/internal/cards"
	"codeberg.org/snonux/studycards/internal/playback"
)

// The methods in this file implement session.View and playback.Listener.
// They are called from background goroutines and hand widget updates to
// the fyne goroutine.

// ShowCard renders the card at position index of total active cards
func (a *Application) ShowCard(card cards.Card, index, total int) {
	view, highlighters := a.buildCardView(card)

	a.mu.Lock()
	a.cardID = card.ID
	a.completed = false
	a.highlighters = highlighters
	a.mu.Unlock()

	fyne.Do(func() {
		a.positionLabel.SetText(fmt.Sprintf("Card %d of %d", index+1, total))
		a.cardArea.Objects = []fyne.CanvasObject{view}
		a.cardArea.Refresh()
		a.imageDisplay.Clear()
		a.showBody(a.studyView)
		a.updateButtons()
	})
}

// ShowImage shows img if cardID is still the displayed card
func (a *Application) ShowImage(cardID int, img stdimage.Image) {
	a.onCard(cardID, func() {
		a.imageDisplay.SetImage(img)
	})
}

// ShowImageGenerating shows the generating state
func (a *Application) ShowImageGenerating(cardID int) {
	a.onCard(cardID, a.imageDisplay.SetGenerating)
}

// ShowImageError shows why the image is missing
func (a *Application) ShowImageError(cardID int, err error) {
	a.onCard(cardID, func() {
		a.imageDisplay.SetError(err)
	})
}

// onCard runs f on the fyne goroutine unless another card is shown by then.
func (a *Application) onCard(cardID int, f func()) {
	fyne.Do(func() {
		a.mu.Lock()
		current := a.cardID
		a.mu.Unlock()
		if current == cardID {
			f()
		}
	})
}

// ShowCompleted shows the all-learned screen
func (a *Application) ShowCompleted() {
	a.mu.Lock()
	a.cardID = -1
	a.completed = true
	a.highlighters = make(map[cards.Ref]*WordText)
	a.mu.Unlock()

	fyne.Do(func() {
		a.positionLabel.SetText("No cards left")
		a.cardArea.Objects = nil
		a.cardArea.Refresh()
		a.showBody(a.completedView)
		a.updateButtons()
	})
}

// ShowFatal shows a start-up failure. The application stays
// non-interactive afterwards.
func (a *Application) ShowFatal(err error) {
	a.mu.Lock()
	a.fatal = true
	a.mu.Unlock()

	fyne.Do(func() {
		a.fatalLabel.SetText(err.Error())
		a.positionLabel.SetText("")
		a.showBody(a.fatalView)
		a.updateButtons()
	})
}

// SetLocked reflects the interaction lock
func (a *Application) SetLocked(locked bool) {
	a.mu.Lock()
	a.locked = locked
	a.mu.Unlock()
	fyne.Do(a.updateButtons)
}

// SetDeletePending reflects the delete confirmation state
func (a *Application) SetDeletePending(pending bool) {
	a.mu.Lock()
	a.deleteArmed = pending
	a.mu.Unlock()
	fyne.Do(a.updateButtons)
}

// Notify shows a transient message
func (a *Application) Notify(msg string) {
	a.setStatus(msg)
}

// ShowError reports a failed operation
func (a *Application) ShowError(err error) {
	fyne.Do(func() {
		a.statusLabel.SetText("Error: " + err.Error())
		dialog.ShowError(err, a.window)
	})
}

// Highlighter returns the text widget of ref on the displayed card
func (a *Application) Highlighter(ref cards.Ref) playback.Highlighter {
	a.mu.Lock()
	defer a.mu.Unlock()
	if w, ok := a.highlighters[ref]; ok {
		return w
	}
	return noHighlight{}
}

// PlaybackLoading implements playback.Listener
func (a *Application) PlaybackLoading() {
	a.setAudioStatus("Loading audio...")
}

// PlaybackEnded implements playback.Listener
func (a *Application) PlaybackEnded() {
	a.setAudioStatus("")
}

// PlaybackFailed implements playback.Listener
func (a *Application) PlaybackFailed(err error) {
	a.setAudioStatus("Audio error: " + err.Error())
}

func (a *Application) setAudioStatus(msg string) {
	fyne.Do(func() {
		a.audioLabel.SetText(msg)
	})
}

// buildCardView creates the widgets of card. Nothing is rendered yet, so
// this is safe off the fyne goroutine.
func (a *Application) buildCardView(card cards.Card) (fyne.CanvasObject, map[cards.Ref]*WordText) {
	highlighters := make(map[cards.Ref]*WordText)

	nameRef := cards.NameRef(card.ID)
	name := NewWordText(card.Name, true)
	highlighters[nameRef] = name

	header := container.NewBorder(nil, nil, nil, a.playButton(nameRef, "Play name (p)"), name)
	box := container.NewVBox(header)

	var details []string
	if card.Phonetic != "" {
		details = append(details, card.Phonetic)
	}
	if card.IsPhrasalVerb {
		details = append(details, "phrasal verb")
	}
	if deck := strings.Trim(card.Category+" / "+card.DeckName, " /"); deck != "" {
		details = append(details, deck)
	}
	if len(details) > 0 {
		box.Add(widget.NewLabelWithStyle(strings.Join(details, "  ·  "), fyne.TextAlignLeading, fyne.TextStyle{Italic: true}))
	}
	box.Add(widget.NewSeparator())

	for i, def := range card.Definitions {
		meaning := widget.NewLabelWithStyle(fmt.Sprintf("%d. %s", i+1, def.Meaning), fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
		meaning.Wrapping = fyne.TextWrapWord
		box.Add(meaning)

		for _, ref := range []cards.Ref{
			{CardID: card.ID, Def: i},
			{CardID: card.ID, Def: i, Alternative: true},
		} {
			text, ok := card.TextFor(ref)
			if !ok {
				continue
			}
			example := NewWordText(text, false)
			highlighters[ref] = example
			box.Add(container.NewBorder(nil, nil, nil, a.playButton(ref, "Play example"), example))
		}

		if def.UsageExampleEs != "" {
			translation := widget.NewLabelWithStyle(def.UsageExampleEs, fyne.TextAlignLeading, fyne.TextStyle{Italic: true})
			translation.Wrapping = fyne.TextWrapWord
			box.Add(translation)
		}
	}
	box.Add(layout.NewSpacer())

	return box, highlighters
}

// playButton closes over ref so that the button plays its own text even
// after the card view has been replaced.
func (a *Application) playButton(ref cards.Ref, tip string) *ttwidget.Button {
	btn := ttwidget.NewButtonWithIcon("", theme.MediaPlayIcon(), func() {
		a.play(ref)
	})
	btn.SetToolTip(tip)
	return btn
}

type noHighlight struct{}

func (noHighlight) Highlight(int)   {}
func (noHighlight) Unhighlight(int) {}
