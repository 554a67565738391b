package gui

import (
	"context"
	"errors"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"go.uber.org/zap"

	"codeberg.org/snonux/studycards/internal/cards"
	"codeberg.org/snonux/studycards/internal/playback"
	"codeberg.org/snonux/studycards/internal/session"
)

func (a *Application) onPrev() {
	a.run("previous card", a.ctrl.Prev)
}

func (a *Application) onNext() {
	a.run("next card", a.ctrl.Next)
}

func (a *Application) onLearned() {
	a.run("mark as learned", a.ctrl.MarkAsLearned)
}

func (a *Application) onDeleteImage() {
	a.run("delete image", a.ctrl.DeleteImage)
}

// onUploadImage lets the user pick an image file for the current card
func (a *Application) onUploadImage() {
	if a.ctrl == nil {
		return
	}
	picker := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			a.ShowError(err)
			return
		}
		if rc == nil {
			return // cancelled
		}
		a.run("upload image", func(ctx context.Context) error {
			defer rc.Close()
			return a.ctrl.UploadImage(ctx, rc.URI().Name(), rc)
		})
	}, a.window)
	picker.SetFilter(storage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".gif"}))
	picker.Show()
}

func (a *Application) onReload() {
	a.run("reload", a.ctrl.Reload)
}

// onResetAll asks before resetting, the reset cannot be undone
func (a *Application) onResetAll() {
	if a.ctrl == nil {
		return
	}
	dialog.ShowConfirm(
		"Reset all cards",
		"Mark every card of this deck as not learned?",
		func(ok bool) {
			if ok {
				a.run("reset all", a.ctrl.ResetAll)
			}
		},
		a.window,
	)
}

func (a *Application) onPlayName() {
	a.mu.Lock()
	id := a.cardID
	a.mu.Unlock()
	if id >= 0 {
		a.play(cards.NameRef(id))
	}
}

// run executes a controller operation in the background. The controller
// reports backend failures itself; only the local refusals are shown here.
func (a *Application) run(name string, op func(context.Context) error) {
	if a.ctrl == nil {
		return
	}
	go func() {
		err := op(a.ctx)
		switch {
		case err == nil:
		case errors.Is(err, session.ErrBusy):
			a.setStatus("Busy, please wait...")
		case errors.Is(err, session.ErrCompleted), errors.Is(err, session.ErrNotStarted):
			a.setStatus(err.Error())
		default:
			a.logger.Debug("action failed", zap.String("action", name), zap.Error(err))
		}
	}()
}

// play speaks ref in the background. Playback does not take the
// interaction lock.
func (a *Application) play(ref cards.Ref) {
	if a.ctrl == nil {
		return
	}
	go func() {
		outcome, err := a.ctrl.PlayTarget(a.ctx, ref)
		if err != nil && outcome == playback.Failed {
			a.logger.Debug("playback failed",
				zap.Int("card", ref.CardID),
				zap.Int("def", ref.Def),
				zap.Error(err))
			if errors.Is(err, session.ErrNothingToPlay) {
				a.setStatus(err.Error())
			}
		}
	}()
}

func (a *Application) setupKeyboardShortcuts() {
	a.window.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		a.handleShortcutKey(ev.Name)
	})
}

// handleShortcutKey handles the actual shortcut action
func (a *Application) handleShortcutKey(key fyne.KeyName) {
	switch key {
	case fyne.KeyLeft:
		if !a.prevBtn.Disabled() {
			a.onPrev()
		}
	case fyne.KeyRight:
		if !a.nextBtn.Disabled() {
			a.onNext()
		}
	case fyne.KeyL:
		if !a.learnedBtn.Disabled() {
			a.onLearned()
		}
	case fyne.KeyD:
		if !a.deleteBtn.Disabled() {
			a.onDeleteImage()
		}
	case fyne.KeyU:
		if !a.uploadBtn.Disabled() {
			a.onUploadImage()
		}
	case fyne.KeyR:
		if !a.reloadBtn.Disabled() {
			a.onReload()
		}
	case fyne.KeyP:
		if !a.playBtn.Disabled() {
			a.onPlayName()
		}
	case fyne.KeyEscape:
		if a.ctrl != nil {
			a.ctrl.CancelDelete()
		}
	}
}
