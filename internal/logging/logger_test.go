package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studycards.log")

	logger := New(Options{File: path})
	logger.Debug("hidden")
	logger.Info("card learned", zap.Int("card", 3))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "card learned", entry["msg"])
	assert.Equal(t, 3.0, entry["card"])
	assert.Equal(t, "info", entry["level"])
}

func TestDebugLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")

	logger := New(Options{File: path, Debug: true})
	logger.Debug("visible")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "visible")
}

func TestRotatingFileDefaults(t *testing.T) {
	l := rotatingFile(Options{File: "x.log"})
	assert.Equal(t, 10, l.MaxSize)
	assert.Equal(t, 3, l.MaxBackups)
	assert.Equal(t, 28, l.MaxAge)
}
