package session

import (
	"context"
	stdimage "image"
	"io"
	"time"

	"go.uber.org/zap"

	"codeberg.org/snonux/studycards/internal/api"
	"codeberg.org/snonux/studycards/internal/cards"
	"codeberg.org/snonux/studycards/internal/confirm"
	"codeberg.org/snonux/studycards/internal/playback"
)

// View renders session state. Implementations must be safe to call from
// any goroutine.
type View interface {
	ShowCard(card cards.Card, index, total int)
	ShowImage(cardID int, img stdimage.Image)
	ShowImageGenerating(cardID int)
	ShowImageError(cardID int, err error)
	ShowCompleted()
	ShowFatal(err error)
	SetLocked(locked bool)
	SetDeletePending(pending bool)
	Notify(msg string)
	ShowError(err error)
	// Highlighter returns the widget that highlights the words of ref.
	Highlighter(ref cards.Ref) playback.Highlighter
}

// Backend is the remote card store
type Backend interface {
	FetchCards(ctx context.Context) ([]cards.Card, error)
	GenerateImage(ctx context.Context, req api.ImageRequest) (string, error)
	DeleteImage(ctx context.Context, cardID int) error
	UploadImage(ctx context.Context, cardID int, filename string, r io.Reader) (string, error)
	UpdateStatus(ctx context.Context, cardID int, learned bool) error
	ResetAll(ctx context.Context) error
}

// ImageLoader fetches and decodes card images
type ImageLoader interface {
	Load(ctx context.Context, path string) (stdimage.Image, error)
}

// Player speaks text with word highlighting
type Player interface {
	Play(ctx context.Context, req playback.Request) (playback.Outcome, error)
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Repo    *cards.Repository
	Backend Backend
	Loader  ImageLoader
	Player  Player
	View    View
	Logger  *zap.Logger

	// AutoPlay speaks the card name whenever a card with a cached image
	// is shown.
	AutoPlay bool

	// ConfirmTimeout and AfterFunc configure the delete confirmation.
	ConfirmTimeout time.Duration
	AfterFunc      confirm.AfterFunc

	// Spawn runs background playback. Defaults to a new goroutine.
	Spawn func(func())

	// Prompt builds the image generation prompt. Defaults to image.BuildPrompt.
	Prompt func(cards.Card) string
}
