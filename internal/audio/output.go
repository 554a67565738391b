// Package audio drives the system audio player and reports playback
// progress to the playback package.
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"codeberg.org/snonux/studycards/internal/api"
	"codeberg.org/snonux/studycards/internal/playback"
)

// DefaultTick is the progress event interval.
const DefaultTick = 50 * time.Millisecond

// ExecOutput plays audio with an external player process.
type ExecOutput struct {
	client  *http.Client
	tempDir string
	tick    time.Duration
	logger  *zap.Logger

	duration func(ctx context.Context, path string) (float64, error)
	command  func(path string) (*exec.Cmd, error)
}

// NewExecOutput creates an output using the first audio player found on
// the system.
func NewExecOutput(logger *zap.Logger) *ExecOutput {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecOutput{
		client:   &http.Client{Timeout: 60 * time.Second},
		tick:     DefaultTick,
		logger:   logger,
		duration: audioDuration,
		command:  playerCommand,
	}
}

// Start fetches source when it is remote and starts the player process.
func (o *ExecOutput) Start(ctx context.Context, source string) (playback.Stream, error) {
	path, cleanup, err := o.fetch(ctx, source)
	if err != nil {
		return nil, err
	}

	cmd, err := o.command(path)
	if err != nil {
		cleanup()
		return nil, err
	}

	duration, err := o.duration(ctx, path)
	if err != nil {
		o.logger.Debug("audio duration unknown, highlighting disabled",
			zap.String("path", path), zap.Error(err))
		duration = 0
	}

	if err := cmd.Start(); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to start audio player: %w", err)
	}

	s := &execStream{
		cmd:     cmd,
		events:  make(chan playback.Event),
		done:    make(chan struct{}),
		cleanup: cleanup,
	}
	go s.run(duration, o.tick)
	return s, nil
}

// fetch returns a local path for source, downloading remote audio to a
// temp file.
func (o *ExecOutput) fetch(ctx context.Context, source string) (string, func(), error) {
	if !isRemote(source) {
		if _, err := os.Stat(source); err != nil {
			return "", nil, &api.ResourceLoadError{Resource: source, Err: err}
		}
		return source, func() {}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", nil, &api.ResourceLoadError{Resource: source, Err: err}
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return "", nil, &api.ResourceLoadError{Resource: source, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, &api.ResourceLoadError{Resource: source, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	ext := filepath.Ext(req.URL.Path)
	if ext == "" {
		ext = ".mp3"
	}
	f, err := os.CreateTemp(o.tempDir, "studycards-audio-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() { os.Remove(f.Name()) }

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		cleanup()
		return "", nil, &api.ResourceLoadError{Resource: source, Err: err}
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}

type execStream struct {
	cmd      *exec.Cmd
	events   chan playback.Event
	done     chan struct{}
	stopOnce sync.Once
	cleanup  func()
}

func (s *execStream) Events() <-chan playback.Event { return s.events }

// Stop kills the player process
func (s *execStream) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
	})
}

// send delivers ev unless the stream was stopped.
func (s *execStream) send(ev playback.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *execStream) run(duration float64, tick time.Duration) {
	defer close(s.events)
	defer s.cleanup()

	exited := make(chan error, 1)
	go func() { exited <- s.cmd.Wait() }()

	start := time.Now()
	if !s.send(playback.Event{Kind: playback.EventDuration, Seconds: duration}) {
		<-exited
		return
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			<-exited
			return
		case err := <-exited:
			if err != nil {
				s.send(playback.Event{Kind: playback.EventError, Err: fmt.Errorf("audio player exited: %w", err)})
				return
			}
			s.send(playback.Event{Kind: playback.EventEnded})
			return
		case <-ticker.C:
			if !s.send(playback.Event{Kind: playback.EventProgress, Seconds: time.Since(start).Seconds()}) {
				<-exited
				return
			}
		}
	}
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// playerCommand picks a platform specific audio player.
func playerCommand(path string) (*exec.Cmd, error) {
	switch runtime.GOOS {
	case "darwin": // macOS
		return exec.Command("afplay", path), nil
	case "linux":
		// mpg123 first since it handles MP3 files best
		candidates := [][]string{
			{"mpg123", "-q"},
			{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"},
			{"play", "-q"}, // SoX
			{"paplay"},
			{"aplay", "-q"},
		}
		if strings.EqualFold(filepath.Ext(path), ".wav") {
			// mpg123 cannot decode wav
			candidates = candidates[1:]
		}
		for _, c := range candidates {
			if _, err := exec.LookPath(c[0]); err == nil {
				args := append(append([]string(nil), c[1:]...), path)
				return exec.Command(c[0], args...), nil
			}
		}
		return nil, errors.New("no audio player found. Install mpg123, ffplay, sox, paplay, or aplay")
	case "windows":
		return exec.Command("cmd", "/c", "start", "/min", path), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// audioDuration returns the length of an audio file in seconds, using
// ffprobe when installed and the RIFF header for wav files otherwise.
func audioDuration(ctx context.Context, path string) (float64, error) {
	if _, err := exec.LookPath("ffprobe"); err == nil {
		out, err := exec.CommandContext(ctx, "ffprobe",
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1",
			path).Output()
		if err == nil {
			return parseDuration(string(out))
		}
	}

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return wavDuration(path)
	}
	return 0, errors.New("ffprobe not available")
}

func parseDuration(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("no duration reported")
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

// wavDuration reads the canonical 44 byte header.
func wavDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	header := make([]byte, 44)
	if _, err := io.ReadFull(f, header); err != nil {
		return 0, fmt.Errorf("short wav header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" || string(header[36:40]) != "data" {
		return 0, errors.New("unsupported wav layout")
	}

	byteRate := binary.LittleEndian.Uint32(header[28:32])
	dataSize := binary.LittleEndian.Uint32(header[40:44])
	if byteRate == 0 {
		return 0, errors.New("invalid wav byte rate")
	}
	return float64(dataSize) / float64(byteRate), nil
}
