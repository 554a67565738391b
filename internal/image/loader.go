// Package image loads card images from the backend or disk and builds the
// prompts used to generate new ones.
package image

import (
	"context"
	"fmt"
	stdimage "image"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"codeberg.org/snonux/studycards/internal/api"
)

// URLResolver turns backend paths into absolute URLs.
type URLResolver interface {
	ResolveURL(ref string) (string, error)
}

// LoaderConfig configures a Loader
type LoaderConfig struct {
	MaxWidth  int
	MaxHeight int
	Timeout   time.Duration
	// MediaDir holds images written by this client. Only paths inside it
	// are read from disk; everything else is a backend path.
	MediaDir string
}

// DefaultLoaderConfig returns default configuration
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		MaxWidth:  1024,
		MaxHeight: 1024,
		Timeout:   30 * time.Second,
	}
}

// Loader fetches and decodes card images.
type Loader struct {
	resolver URLResolver
	client   *http.Client
	config   LoaderConfig
	now      func() time.Time
	logger   *zap.Logger
}

// NewLoader creates a loader. resolver may be nil when only absolute URLs
// and MediaDir files are loaded.
func NewLoader(resolver URLResolver, config LoaderConfig, logger *zap.Logger) *Loader {
	defaults := DefaultLoaderConfig()
	if config.MaxWidth <= 0 {
		config.MaxWidth = defaults.MaxWidth
	}
	if config.MaxHeight <= 0 {
		config.MaxHeight = defaults.MaxHeight
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		resolver: resolver,
		client:   &http.Client{Timeout: config.Timeout},
		config:   config,
		now:      time.Now,
		logger:   logger,
	}
}

// Load fetches the image at path. Files inside MediaDir are read directly;
// backend paths are resolved and requested with a cache-busting query
// parameter.
// Failures are returned as *api.ResourceLoadError.
func (l *Loader) Load(ctx context.Context, path string) (stdimage.Image, error) {
	if path == "" {
		return nil, &api.ResourceLoadError{Resource: "image", Err: fmt.Errorf("empty path")}
	}

	if l.isLocal(path) {
		img, err := imaging.Open(path, imaging.AutoOrientation(true))
		if err != nil {
			return nil, &api.ResourceLoadError{Resource: path, Err: err}
		}
		return l.fit(img), nil
	}

	target, err := l.url(path)
	if err != nil {
		return nil, &api.ResourceLoadError{Resource: path, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &api.ResourceLoadError{Resource: path, Err: err}
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &api.ResourceLoadError{Resource: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &api.ResourceLoadError{Resource: path, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	img, err := imaging.Decode(resp.Body, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &api.ResourceLoadError{Resource: path, Err: err}
	}

	l.logger.Debug("image loaded", zap.String("url", target))
	return l.fit(img), nil
}

// isLocal reports whether path names a file inside MediaDir.
func (l *Loader) isLocal(path string) bool {
	if l.config.MediaDir == "" || !filepath.IsAbs(path) {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(l.config.MediaDir), filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// url resolves path and appends t=<unix millis>.
func (l *Loader) url(path string) (string, error) {
	resolved := path
	if l.resolver != nil {
		var err error
		if resolved, err = l.resolver.ResolveURL(path); err != nil {
			return "", err
		}
	}

	u, err := url.Parse(resolved)
	if err != nil {
		return "", err
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("cannot resolve %q to an absolute URL", path)
	}

	q := u.Query()
	q.Set("t", strconv.FormatInt(l.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// fit downsizes images larger than the configured bounds.
func (l *Loader) fit(img stdimage.Image) stdimage.Image {
	b := img.Bounds()
	if b.Dx() <= l.config.MaxWidth && b.Dy() <= l.config.MaxHeight {
		return img
	}
	return imaging.Fit(img, l.config.MaxWidth, l.config.MaxHeight, imaging.Lanczos)
}
