package speech

import (
	"fmt"
	"os"
	"path/filepath"

	"codeberg.org/snonux/studycards/internal"
)

// fileCache stores synthesized audio on disk keyed by text, voice and model.
type fileCache struct {
	dir string
	ext string
}

func newFileCache(dir, ext string) (*fileCache, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &fileCache{dir: dir, ext: ext}, nil
}

// path returns the cache file for a request. The deck prefix keeps files
// of different decks apart when browsing the cache directory.
func (c *fileCache) path(req Request, text string) string {
	key := internal.CacheKey(text, req.Voice, req.Model)
	prefix := internal.SanitizeFilename(req.Category + "_" + req.Deck)
	if prefix == "_" {
		prefix = "cards"
	}
	// Use first 2 chars as subdirectory for better file system performance
	return filepath.Join(c.dir, key[:2], prefix+"_"+key+c.ext)
}

// lookup returns the cached file if one exists and is non-empty.
func (c *fileCache) lookup(req Request, text string) (string, bool) {
	if c == nil {
		return "", false
	}
	p := c.path(req, text)
	info, err := os.Stat(p)
	if err != nil || info.Size() == 0 {
		return "", false
	}
	return p, true
}

// store writes data into the cache and returns the file path.
func (c *fileCache) store(req Request, text string, data []byte) (string, error) {
	p := c.path(req, text)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp := p + ".part"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return "", fmt.Errorf("failed to store audio file: %w", err)
	}
	return p, nil
}
