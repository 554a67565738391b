package gui

import (
	"context"
	"fmt"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	fynetooltip "github.com/dweymouth/fyne-tooltip"
	ttwidget "github.com/dweymouth/fyne-tooltip/widget"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"codeberg.org/snonux/studycards/internal"
	"codeberg.org/snonux/studycards/internal/cards"
	"codeberg.org/snonux/studycards/internal/session"
)

// Application represents the main GUI application. It renders the state of
// a session.Controller and forwards user actions to it.
type Application struct {
	// Fyne components
	app    fyne.App
	window fyne.Window

	// Toolbar buttons
	prevBtn    *ttwidget.Button
	nextBtn    *ttwidget.Button
	learnedBtn *ttwidget.Button
	deleteBtn  *ttwidget.Button
	uploadBtn  *ttwidget.Button
	reloadBtn  *ttwidget.Button
	resetBtn   *ttwidget.Button
	playBtn    *ttwidget.Button

	// Body
	studyView     fyne.CanvasObject
	completedView fyne.CanvasObject
	fatalView     fyne.CanvasObject
	fatalLabel    *widget.Label
	imageDisplay  *ImageDisplay
	cardArea      *fyne.Container

	// Status section
	positionLabel *widget.Label
	statusLabel   *widget.Label
	audioLabel    *widget.Label
	busyBar       *widget.ProgressBarInfinite
	logViewer     *LogViewer

	config Config
	logger *zap.Logger
	ctrl   *session.Controller

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	cardID       int
	highlighters map[cards.Ref]*WordText
	locked       bool
	completed    bool
	fatal        bool
	deleteArmed  bool
}

// Config holds GUI application configuration
type Config struct {
	// DeckLabel is shown in the window title, e.g. "verbs / b2.json".
	DeckLabel string
}

// New creates a new GUI application. Bind must be called before Run.
func New(config Config, logger *zap.Logger) *Application {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	a := &Application{
		app:          app.NewWithID("org.codeberg.snonux.studycards"),
		config:       config,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		cardID:       -1,
		highlighters: make(map[cards.Ref]*WordText),
	}
	a.setupUI()
	return a
}

// Bind attaches the controller that the application drives
func (a *Application) Bind(ctrl *session.Controller) {
	a.ctrl = ctrl
}

// LogCore returns a zap core that mirrors info and above into the
// activity panel.
func (a *Application) LogCore() zapcore.Core {
	return a.logViewer.Core(zapcore.InfoLevel)
}

// setupUI creates the main user interface
func (a *Application) setupUI() {
	title := fmt.Sprintf("studycards v%s", internal.Version)
	if a.config.DeckLabel != "" {
		title += " - " + a.config.DeckLabel
	}
	a.window = a.app.NewWindow(title)
	a.window.Resize(fyne.NewSize(1000, 700))

	a.prevBtn = ttwidget.NewButtonWithIcon("", theme.NavigateBackIcon(), a.onPrev)
	a.nextBtn = ttwidget.NewButtonWithIcon("", theme.NavigateNextIcon(), a.onNext)
	a.learnedBtn = ttwidget.NewButtonWithIcon("Learned", theme.ConfirmIcon(), a.onLearned)
	a.learnedBtn.Importance = widget.HighImportance
	a.deleteBtn = ttwidget.NewButtonWithIcon("", theme.DeleteIcon(), a.onDeleteImage)
	a.uploadBtn = ttwidget.NewButtonWithIcon("", theme.UploadIcon(), a.onUploadImage)
	a.reloadBtn = ttwidget.NewButtonWithIcon("", theme.ViewRefreshIcon(), a.onReload)
	a.resetBtn = ttwidget.NewButtonWithIcon("", theme.HistoryIcon(), a.onResetAll)
	a.playBtn = ttwidget.NewButtonWithIcon("", theme.MediaPlayIcon(), a.onPlayName)

	toolbar := container.NewHBox(
		a.prevBtn,
		a.nextBtn,
		widget.NewSeparator(),
		a.learnedBtn,
		a.playBtn,
		a.deleteBtn,
		a.uploadBtn,
		widget.NewSeparator(),
		a.reloadBtn,
		a.resetBtn,
	)

	// Study view: image on the left, card text on the right
	a.imageDisplay = NewImageDisplay()
	a.cardArea = container.NewVBox()
	split := container.NewHSplit(a.imageDisplay, container.NewVScroll(a.cardArea))
	split.SetOffset(0.45)
	a.studyView = split

	a.completedView = a.buildCompletedView()

	a.fatalLabel = widget.NewLabel("")
	a.fatalLabel.Wrapping = fyne.TextWrapWord
	a.fatalLabel.Alignment = fyne.TextAlignCenter
	a.fatalView = container.NewVBox(
		layout.NewSpacer(),
		widget.NewLabelWithStyle("Could not load the deck", fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		a.fatalLabel,
		layout.NewSpacer(),
	)

	a.showBody(nil)

	// Status section
	a.positionLabel = widget.NewLabel("Loading cards...")
	a.statusLabel = widget.NewLabel("Ready")
	a.audioLabel = widget.NewLabel("")
	a.audioLabel.TextStyle = fyne.TextStyle{Italic: true}
	a.busyBar = widget.NewProgressBarInfinite()
	a.busyBar.Hide()
	a.logViewer = NewLogViewer()

	statusSection := container.NewVBox(
		widget.NewSeparator(),
		container.NewHBox(a.positionLabel, layout.NewSpacer(), a.audioLabel),
		a.statusLabel,
		a.busyBar,
		widget.NewAccordion(widget.NewAccordionItem("Activity", a.logViewer)),
	)

	content := container.NewBorder(
		container.NewVBox(toolbar, widget.NewSeparator()),
		statusSection,
		nil, nil,
		container.NewStack(a.studyView, a.completedView, a.fatalView),
	)

	a.window.SetContent(fynetooltip.AddWindowToolTipLayer(content, a.window.Canvas()))
	a.setupTooltips()
	a.setupKeyboardShortcuts()
	a.updateButtons()

	a.window.SetOnClosed(func() {
		a.cancel()
		if a.ctrl != nil {
			a.ctrl.Close()
		}
	})
}

func (a *Application) buildCompletedView() fyne.CanvasObject {
	resetBtn := ttwidget.NewButtonWithIcon("Start over", theme.HistoryIcon(), a.onResetAll)
	resetBtn.SetToolTip("Mark every card as not learned")
	reloadBtn := ttwidget.NewButtonWithIcon("Reload", theme.ViewRefreshIcon(), a.onReload)
	reloadBtn.SetToolTip("Fetch the deck again (r)")

	return container.NewVBox(
		layout.NewSpacer(),
		widget.NewLabelWithStyle("All cards learned!", fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		container.NewCenter(container.NewHBox(resetBtn, reloadBtn)),
		layout.NewSpacer(),
	)
}

// setupTooltips sets up all tooltips after the tooltip layer has been created
func (a *Application) setupTooltips() {
	a.prevBtn.SetToolTip("Previous card (←)")
	a.nextBtn.SetToolTip("Next card (→)")
	a.learnedBtn.SetToolTip("Mark as learned (l)")
	a.deleteBtn.SetToolTip("Delete image and generate a new one (d, twice)")
	a.uploadBtn.SetToolTip("Upload an image from disk (u)")
	a.reloadBtn.SetToolTip("Reload deck (r)")
	a.resetBtn.SetToolTip("Reset all cards to not learned")
	a.playBtn.SetToolTip("Play card name (p)")
}

// Run shows the window, starts the session and blocks until the window
// is closed.
func (a *Application) Run() {
	if a.ctrl != nil {
		go func() {
			if err := a.ctrl.Start(a.ctx); err != nil {
				a.logger.Error("could not start session", zap.Error(err))
			}
		}()
	}
	a.window.ShowAndRun()
}

// showBody makes obj the only visible body view. A nil obj hides all.
// Must run on the fyne goroutine.
func (a *Application) showBody(obj fyne.CanvasObject) {
	for _, v := range []fyne.CanvasObject{a.studyView, a.completedView, a.fatalView} {
		if v == obj {
			v.Show()
		} else {
			v.Hide()
		}
	}
}

// updateButtons enables the actions that make sense in the current state.
// Must run on the fyne goroutine.
func (a *Application) updateButtons() {
	a.mu.Lock()
	locked, completed, fatal, armed := a.locked, a.completed, a.fatal, a.deleteArmed
	a.mu.Unlock()

	enable := func(b *ttwidget.Button, on bool) {
		if on {
			b.Enable()
		} else {
			b.Disable()
		}
	}

	studying := !fatal && !completed
	enable(a.prevBtn, studying && !locked)
	enable(a.nextBtn, studying && !locked)
	enable(a.learnedBtn, studying && !locked)
	enable(a.deleteBtn, studying && !locked)
	enable(a.uploadBtn, studying && !locked)
	enable(a.playBtn, studying)
	enable(a.reloadBtn, !fatal && !locked)
	enable(a.resetBtn, !fatal && !locked)

	if armed {
		a.deleteBtn.SetText("Confirm?")
		a.deleteBtn.Importance = widget.DangerImportance
	} else {
		a.deleteBtn.SetText("")
		a.deleteBtn.Importance = widget.MediumImportance
	}
	a.deleteBtn.Refresh()

	if locked {
		a.busyBar.Show()
		a.busyBar.Start()
	} else {
		a.busyBar.Stop()
		a.busyBar.Hide()
	}
}

func (a *Application) setStatus(msg string) {
	fyne.Do(func() {
		a.statusLabel.SetText(msg)
	})
}
