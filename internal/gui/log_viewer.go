package gui

import (
	"fmt"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap/zapcore"
)

// LogViewer is a widget that displays the session log, newest first
type LogViewer struct {
	widget.BaseWidget

	logEntry   *widget.Entry
	scrollView *container.Scroll

	mu          sync.Mutex
	messages    []string
	maxMessages int
}

// NewLogViewer creates a new log viewer widget
func NewLogViewer() *LogViewer {
	v := &LogViewer{maxMessages: 500}

	v.logEntry = widget.NewMultiLineEntry()
	v.logEntry.Disable() // read-only
	v.logEntry.Wrapping = fyne.TextWrapWord

	v.scrollView = container.NewScroll(v.logEntry)
	v.scrollView.SetMinSize(fyne.NewSize(0, 120))

	v.ExtendBaseWidget(v)
	return v
}

// CreateRenderer implements fyne.Widget
func (v *LogViewer) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(v.scrollView)
}

// AddMessage prepends message and drops the oldest beyond the limit
func (v *LogViewer) AddMessage(message string) {
	v.mu.Lock()
	v.messages = append([]string{message}, v.messages...)
	if len(v.messages) > v.maxMessages {
		v.messages = v.messages[:v.maxMessages]
	}
	text := strings.Join(v.messages, "\n")
	v.mu.Unlock()

	fyne.Do(func() {
		v.logEntry.SetText(text)
		v.scrollView.Offset = fyne.NewPos(0, 0)
		v.scrollView.Refresh()
	})
}

// Messages returns a copy of the shown messages, newest first
func (v *LogViewer) Messages() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.messages...)
}

// Core returns a zap core that feeds entries at or above level into the
// viewer. Tee it with the regular core to mirror the log in the window.
func (v *LogViewer) Core(level zapcore.Level) zapcore.Core {
	return &viewerCore{LevelEnabler: level, viewer: v}
}

type viewerCore struct {
	zapcore.LevelEnabler
	viewer *LogViewer
	fields []zapcore.Field
}

func (c *viewerCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return &clone
}

func (c *viewerCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *viewerCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	all := append(append([]zapcore.Field(nil), c.fields...), fields...)
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range all {
		f.AddTo(enc)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s", ent.Time.Format("15:04:05"), ent.Level.CapitalString(), ent.Message)
	for _, f := range all {
		fmt.Fprintf(&b, " %s=%v", f.Key, enc.Fields[f.Key])
	}
	c.viewer.AddMessage(b.String())
	return nil
}

func (c *viewerCore) Sync() error { return nil }
