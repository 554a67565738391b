package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"codeberg.org/snonux/studycards/internal/api"
	"codeberg.org/snonux/studycards/internal/cards"
	"codeberg.org/snonux/studycards/internal/confirm"
	"codeberg.org/snonux/studycards/internal/image"
	"codeberg.org/snonux/studycards/internal/playback"
)

var (
	// ErrBusy is returned while another operation holds the interaction lock.
	ErrBusy = errors.New("another operation is in progress")
	// ErrCompleted is returned when every card is learned.
	ErrCompleted = errors.New("all cards are learned")
	// ErrNotStarted is returned before a successful Start.
	ErrNotStarted = errors.New("session not started")
	// ErrNothingToPlay is returned for a reference without speakable text.
	ErrNothingToPlay = errors.New("nothing to play")
)

// Snapshot is a read-only view of the controller state.
type Snapshot struct {
	Started       bool
	Completed     bool
	Busy          bool
	Playing       bool
	DeletePending bool
	Index         int
	Active        int
	Total         int
	// CardID of the current card, -1 when none is shown.
	CardID int
	Fatal  error
}

// Controller owns the card repository, the cursor, the delete guard and
// the player.
type Controller struct {
	repo     *cards.Repository
	backend  Backend
	loader   ImageLoader
	player   Player
	view     View
	logger   *zap.Logger
	guard    *confirm.Guard
	spawn    func(func())
	prompt   func(cards.Card) string
	autoPlay bool

	// lockMu guards the interaction lock. It is held by an operation in
	// flight (busy) or by any running playback (playing).
	lockMu  sync.Mutex
	busy    bool
	playing int

	mu        sync.Mutex
	index     int
	started   bool
	completed bool
	fatal     error

	playCtx    context.Context
	playCancel context.CancelFunc
}

// New creates a controller
func New(deps Deps) *Controller {
	c := &Controller{
		repo:     deps.Repo,
		backend:  deps.Backend,
		loader:   deps.Loader,
		player:   deps.Player,
		view:     deps.View,
		logger:   deps.Logger,
		spawn:    deps.Spawn,
		prompt:   deps.Prompt,
		autoPlay: deps.AutoPlay,
	}
	if c.repo == nil {
		c.repo = cards.NewRepository()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.spawn == nil {
		c.spawn = func(f func()) { go f() }
	}
	if c.prompt == nil {
		c.prompt = image.BuildPrompt
	}

	c.guard = confirm.New(&confirm.Config{
		Timeout:   deps.ConfirmTimeout,
		AfterFunc: deps.AfterFunc,
		OnTimeout: func() {
			c.logger.Debug("delete confirmation timed out")
			c.view.SetDeletePending(false)
		},
	})
	c.playCtx, c.playCancel = context.WithCancel(context.Background())
	return c
}

// Close stops background playback and disarms the delete confirmation.
func (c *Controller) Close() {
	c.playCancel()
	c.guard.Reset()
}

// Repository returns the card repository
func (c *Controller) Repository() *cards.Repository {
	return c.repo
}

func (c *Controller) lock() error {
	return c.acquire(true)
}

func (c *Controller) unlock() {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	c.busy = false
	if c.playing == 0 {
		c.view.SetLocked(false)
	}
}

// acquire takes the interaction lock. With show unset the view is not told,
// which lets a call that turns out to need no lock release it quietly.
func (c *Controller) acquire(show bool) error {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	if c.busy || c.playing > 0 {
		return ErrBusy
	}
	c.busy = true
	if show {
		c.view.SetLocked(true)
	}
	return nil
}

// release gives back a lock taken by acquire(false).
func (c *Controller) release() {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	c.busy = false
}

func (c *Controller) showLocked() {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	c.view.SetLocked(true)
}

// beginPlay locks the interaction for the length of a playback. Playback
// may start while an operation holds the lock.
func (c *Controller) beginPlay() {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	c.playing++
	if c.playing == 1 && !c.busy {
		c.view.SetLocked(true)
	}
}

func (c *Controller) endPlay() {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	c.playing--
	if c.playing == 0 && !c.busy {
		c.view.SetLocked(false)
	}
}

// Start loads the deck and shows the first card. A failure leaves the
// session in a non-interactive error state.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlock()

	list, err := c.backend.FetchCards(ctx)
	if err != nil {
		err = fmt.Errorf("failed to load cards: %w", err)
		c.logger.Error("session start failed", zap.Error(err))
		c.mu.Lock()
		c.fatal = err
		c.mu.Unlock()
		c.view.ShowFatal(err)
		return err
	}

	c.repo.Load(list)
	c.mu.Lock()
	c.started = true
	c.fatal = nil
	c.mu.Unlock()

	c.logger.Info("session started",
		zap.Int("cards", c.repo.Len()),
		zap.Int("active", c.repo.ActiveLen()))

	c.loadCard(ctx, 0, true)
	return nil
}

// Reload fetches the deck again and stays near the current position.
func (c *Controller) Reload(ctx context.Context) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlock()

	if err := c.checkStarted(); err != nil {
		return err
	}

	list, err := c.backend.FetchCards(ctx)
	if err != nil {
		return c.report("reload cards", err)
	}
	c.repo.Load(list)

	c.mu.Lock()
	index := c.index
	c.mu.Unlock()
	if n := c.repo.ActiveLen(); index >= n {
		index = n - 1
	}
	c.loadCard(ctx, max(index, 0), false)
	return nil
}

// Next shows the following card, wrapping around at the end.
func (c *Controller) Next(ctx context.Context) error {
	return c.step(ctx, 1)
}

// Prev shows the previous card, wrapping around at the start.
func (c *Controller) Prev(ctx context.Context) error {
	return c.step(ctx, -1)
}

func (c *Controller) step(ctx context.Context, delta int) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlock()

	if err := c.checkStarted(); err != nil {
		return err
	}

	n := c.repo.ActiveLen()
	if n == 0 {
		return nil
	}

	c.mu.Lock()
	index := c.index
	c.mu.Unlock()

	c.loadCard(ctx, ((index+delta)%n+n)%n, true)
	return nil
}

// MarkAsLearned persists the learned flag of the current card and moves to
// the card that takes its place.
func (c *Controller) MarkAsLearned(ctx context.Context) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlock()

	card, index, err := c.current()
	if err != nil {
		return err
	}

	if err := c.backend.UpdateStatus(ctx, card.ID, true); err != nil {
		return c.report(fmt.Sprintf("mark %q as learned", card.Name), err)
	}
	if err := c.repo.MarkLearned(card.ID); err != nil {
		return c.report(fmt.Sprintf("mark %q as learned", card.Name), err)
	}

	c.logger.Info("card learned", zap.Int("card", card.ID), zap.String("name", card.Name))

	n := c.repo.ActiveLen()
	if n == 0 {
		c.showCompleted()
		return nil
	}
	c.loadCard(ctx, min(index, n-1), true)
	return nil
}

// DeleteImage deletes the image of the current card. The first call only
// asks for confirmation; a second call within the confirmation window
// deletes the image and generates a new one.
func (c *Controller) DeleteImage(ctx context.Context) error {
	// The lock is taken before the guard so that a busy refusal leaves a
	// pending confirmation armed.
	if err := c.acquire(false); err != nil {
		return err
	}

	card, index, err := c.current()
	if err != nil {
		c.release()
		return err
	}

	if c.guard.Request() == confirm.AskConfirm {
		c.release()
		c.view.SetDeletePending(true)
		c.view.Notify("Click delete again to confirm")
		return nil
	}

	c.view.SetDeletePending(false)
	c.showLocked()
	defer c.unlock()

	if err := c.backend.DeleteImage(ctx, card.ID); err != nil {
		return c.report(fmt.Sprintf("delete image of %q", card.Name), err)
	}
	if err := c.repo.SetImagePath(card.ID, ""); err != nil {
		return c.report(fmt.Sprintf("delete image of %q", card.Name), err)
	}

	c.logger.Info("image deleted", zap.Int("card", card.ID))
	c.loadCard(ctx, index, true)
	return nil
}

// UploadImage replaces the image of the current card with the one read
// from r and shows the card again.
func (c *Controller) UploadImage(ctx context.Context, filename string, r io.Reader) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlock()

	card, index, err := c.current()
	if err != nil {
		return err
	}

	path, err := c.backend.UploadImage(ctx, card.ID, filename, r)
	if err != nil {
		return c.report(fmt.Sprintf("upload image for %q", card.Name), err)
	}
	if err := c.repo.SetImagePath(card.ID, path); err != nil {
		return c.report(fmt.Sprintf("upload image for %q", card.Name), err)
	}

	c.logger.Info("image uploaded", zap.Int("card", card.ID), zap.String("path", path))
	c.loadCard(ctx, index, false)
	return nil
}

// CancelDelete disarms a pending delete confirmation.
func (c *Controller) CancelDelete() {
	c.guard.Reset()
	c.view.SetDeletePending(false)
}

// ResetAll marks every card as not learned on the backend and locally,
// then reloads the deck. The caller must have confirmed with the user.
func (c *Controller) ResetAll(ctx context.Context) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlock()

	if err := c.checkStarted(); err != nil {
		return err
	}

	if err := c.backend.ResetAll(ctx); err != nil {
		return c.report("reset all cards", err)
	}
	c.repo.ResetAll()
	c.logger.Info("deck reset", zap.Int("cards", c.repo.Len()))

	list, err := c.backend.FetchCards(ctx)
	if err != nil {
		// The local mirror of the reset is still valid.
		c.loadCard(ctx, 0, true)
		return c.report("reload cards", err)
	}
	c.repo.Load(list)
	c.loadCard(ctx, 0, true)
	return nil
}

// PlayName speaks the name of the current card.
func (c *Controller) PlayName(ctx context.Context) (playback.Outcome, error) {
	card, _, err := c.current()
	if err != nil {
		return playback.Failed, err
	}
	return c.PlayTarget(ctx, cards.NameRef(card.ID))
}

// PlayTarget speaks the text addressed by ref and highlights its words.
// Navigation, learning and deleting are refused with ErrBusy until the
// playback ends or fails. A new play supersedes a running one.
func (c *Controller) PlayTarget(ctx context.Context, ref cards.Ref) (playback.Outcome, error) {
	if err := c.checkStarted(); err != nil {
		return playback.Failed, err
	}

	card, err := c.repo.Get(ref.CardID)
	if err != nil {
		return playback.Failed, err
	}
	text, ok := card.TextFor(ref)
	if !ok {
		return playback.Failed, fmt.Errorf("%q: %w", card.Name, ErrNothingToPlay)
	}

	c.beginPlay()
	defer c.endPlay()

	return c.player.Play(ctx, playback.Request{
		Text:     text,
		Words:    cards.Words(text),
		Name:     card.Name,
		Category: card.Category,
		Deck:     card.DeckName,
		Target:   c.view.Highlighter(ref),
	})
}

// Snapshot returns the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	s := Snapshot{
		Started:   c.started,
		Completed: c.completed,
		Index:     c.index,
		CardID:    -1,
		Fatal:     c.fatal,
	}
	c.mu.Unlock()

	c.lockMu.Lock()
	s.Busy = c.busy
	s.Playing = c.playing > 0
	c.lockMu.Unlock()
	s.DeletePending = c.guard.State() == confirm.AwaitingConfirm
	s.Active = c.repo.ActiveLen()
	s.Total = c.repo.Len()
	if s.Started && !s.Completed {
		if card, ok := c.repo.ActiveAt(s.Index); ok {
			s.CardID = card.ID
		}
	}
	return s
}

// loadCard shows the active card at index and resolves its image. A cached
// image that fails to load falls back to generation.
func (c *Controller) loadCard(ctx context.Context, index int, autoPlay bool) {
	c.guard.Reset()
	c.view.SetDeletePending(false)

	n := c.repo.ActiveLen()
	card, ok := c.repo.ActiveAt(index)
	if n == 0 || !ok {
		c.showCompleted()
		return
	}

	c.mu.Lock()
	c.index = index
	c.completed = false
	c.mu.Unlock()

	c.view.ShowCard(card, index, n)

	if card.ImagePath != "" {
		img, err := c.loader.Load(ctx, card.ImagePath)
		if err == nil {
			c.view.ShowImage(card.ID, img)
			if autoPlay && c.autoPlay {
				c.playInBackground(card)
			}
			return
		}
		c.logger.Warn("cached image failed to load, generating a new one",
			zap.Int("card", card.ID),
			zap.String("path", card.ImagePath),
			zap.Error(err))
	}

	c.generateImage(ctx, card)
}

func (c *Controller) generateImage(ctx context.Context, card cards.Card) {
	c.view.ShowImageGenerating(card.ID)

	path, err := c.backend.GenerateImage(ctx, api.ImageRequest{
		CardID: card.ID,
		Prompt: c.prompt(card),
		Force:  true,
	})
	if err != nil {
		c.imageFailed(card, fmt.Errorf("image generation failed: %w", err))
		return
	}
	if err := c.repo.SetImagePath(card.ID, path); err != nil {
		c.imageFailed(card, err)
		return
	}

	img, err := c.loader.Load(ctx, path)
	if err != nil {
		c.imageFailed(card, err)
		return
	}
	c.view.ShowImage(card.ID, img)
}

func (c *Controller) imageFailed(card cards.Card, err error) {
	c.logger.Error("image unavailable", zap.Int("card", card.ID), zap.Error(err))
	c.view.ShowImageError(card.ID, err)
}

func (c *Controller) playInBackground(card cards.Card) {
	ctx := c.playCtx
	c.spawn(func() {
		outcome, err := c.PlayTarget(ctx, cards.NameRef(card.ID))
		if err != nil && outcome != playback.Stopped {
			c.logger.Debug("auto play failed", zap.Int("card", card.ID), zap.Error(err))
		}
	})
}

func (c *Controller) showCompleted() {
	c.mu.Lock()
	c.completed = true
	c.index = 0
	c.mu.Unlock()

	c.guard.Reset()
	c.view.ShowCompleted()
}

// report logs err, shows it and returns it wrapped with the operation.
func (c *Controller) report(op string, err error) error {
	err = fmt.Errorf("%s: %w", op, err)
	c.logger.Error("operation failed", zap.Error(err))
	c.view.ShowError(err)
	return err
}

func (c *Controller) checkStarted() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return ErrNotStarted
	}
	return nil
}

// current returns the card under the cursor.
func (c *Controller) current() (cards.Card, int, error) {
	c.mu.Lock()
	started, completed, index := c.started, c.completed, c.index
	c.mu.Unlock()

	if !started {
		return cards.Card{}, 0, ErrNotStarted
	}
	if completed {
		return cards.Card{}, 0, ErrCompleted
	}
	card, ok := c.repo.ActiveAt(index)
	if !ok {
		return cards.Card{}, 0, ErrCompleted
	}
	return card, index, nil
}
