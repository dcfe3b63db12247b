package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var (
	Log             *slog.Logger
	defaultLevel    slog.Level
	componentLevels map[string]slog.Level
	levelsMu        sync.RWMutex
	format          string
	output          io.Writer
	pid             int
	loggerCache     sync.Map
)

func init() {
	defaultLevel = slog.LevelInfo
	componentLevels = make(map[string]slog.Level)
	format = "text"
	output = os.Stdout
	pid = os.Getpid()

	Log = slog.New(NewTextHandler(output, nil, ""))
}

// Configure resets the default level, the per-component levels and the output
// format. Loggers handed out before the call keep their old handler.
func Configure(logFormat string, level LogLevel, components map[string]LogLevel) {
	levelsMu.Lock()
	defaultLevel = parseLevel(string(level))
	format = logFormat
	componentLevels = make(map[string]slog.Level)
	for name, lvl := range components {
		componentLevels[name] = parseLevel(string(lvl))
	}
	levelsMu.Unlock()

	loggerCache = sync.Map{}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = newJSONHandler(output, "")
	} else {
		handler = NewTextHandler(output, nil, "")
	}

	Log = slog.New(handler)
}

// SetOutput redirects every logger created afterwards. Used by tests.
func SetOutput(w io.Writer) {
	levelsMu.Lock()
	output = w
	levelsMu.Unlock()
	loggerCache = sync.Map{}
}

type TextHandler struct {
	opts      *slog.HandlerOptions
	mu        sync.Mutex
	w         io.Writer
	attrs     []slog.Attr
	component string
}

func NewTextHandler(w io.Writer, opts *slog.HandlerOptions, component string) *TextHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &TextHandler{
		w:         w,
		opts:      opts,
		component: component,
	}
}

func (h *TextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= getEffectiveLevel(h.component)
}

func (h *TextHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	keys := make([]string, 0, r.NumAttrs()+len(h.attrs))
	attrs := make(map[string]any)

	for _, a := range h.attrs {
		if _, seen := attrs[a.Key]; !seen {
			keys = append(keys, a.Key)
		}
		attrs[a.Key] = a.Value.Any()
	}

	r.Attrs(func(a slog.Attr) bool {
		if _, seen := attrs[a.Key]; !seen {
			keys = append(keys, a.Key)
		}
		attrs[a.Key] = a.Value.Any()
		return true
	})

	buf := make([]byte, 0, 256)
	buf = append(buf, r.Time.Format("2006/01/02 15:04:05.000")...)
	buf = append(buf, fmt.Sprintf(" [%d]", pid)...)

	if h.component != "" {
		buf = append(buf, fmt.Sprintf(" [%s]", h.component)...)
	}

	buf = append(buf, ' ')
	buf = append(buf, r.Level.String()...)
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)

	for _, k := range keys {
		buf = append(buf, fmt.Sprintf(" %s=%v", k, attrs[k])...)
	}

	buf = append(buf, '\n')
	_, err := h.w.Write(buf)
	return err
}

func (h *TextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &TextHandler{
		w:         h.w,
		opts:      h.opts,
		attrs:     merged,
		component: h.component,
	}
}

func (h *TextHandler) WithGroup(name string) slog.Handler {
	return &TextHandler{
		w:         h.w,
		opts:      h.opts,
		attrs:     h.attrs,
		component: subComponent(h.component, name),
	}
}

type JSONHandler struct {
	inner     slog.Handler
	component string
}

func newJSONHandler(w io.Writer, component string) *JSONHandler {
	return &JSONHandler{
		inner: slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}),
		component: component,
	}
}

func (h *JSONHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= getEffectiveLevel(h.component)
}

func (h *JSONHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.component != "" {
		r.AddAttrs(slog.String("component", h.component))
	}
	return h.inner.Handle(ctx, r)
}

func (h *JSONHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &JSONHandler{
		inner:     h.inner.WithAttrs(attrs),
		component: h.component,
	}
}

func (h *JSONHandler) WithGroup(name string) slog.Handler {
	return &JSONHandler{
		inner:     h.inner,
		component: subComponent(h.component, name),
	}
}

func subComponent(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether level is one of the accepted level names.
func ValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case "", "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// getEffectiveLevel walks up the dotted component path, so a level set for
// "bus" also applies to "bus.dispatch".
func getEffectiveLevel(component string) slog.Level {
	levelsMu.RLock()
	defer levelsMu.RUnlock()

	if level, ok := componentLevels[component]; ok {
		return level
	}

	path := component
	for {
		idx := strings.LastIndex(path, ".")
		if idx < 0 {
			break
		}
		path = path[:idx]
		if level, ok := componentLevels[path]; ok {
			return level
		}
	}

	return defaultLevel
}

func Get(name string) *slog.Logger {
	if l, ok := loggerCache.Load(name); ok {
		return l.(*slog.Logger)
	}

	levelsMu.RLock()
	w := output
	f := format
	levelsMu.RUnlock()

	var handler slog.Handler
	if strings.ToLower(f) == "json" {
		handler = newJSONHandler(w, name)
	} else {
		handler = NewTextHandler(w, nil, name)
	}

	l := slog.New(handler)
	loggerCache.Store(name, l)
	return l
}

// Component is an alias of Get kept for call sites that read better with it.
func Component(name string) *slog.Logger {
	return Get(name)
}

func SetComponentLevel(name string, level LogLevel) {
	levelsMu.Lock()
	componentLevels[name] = parseLevel(string(level))
	levelsMu.Unlock()
	loggerCache.Delete(name)
}

func ClearComponentLevel(name string) {
	levelsMu.Lock()
	delete(componentLevels, name)
	levelsMu.Unlock()
	loggerCache.Delete(name)
}

func GetComponentLevels() map[string]LogLevel {
	levelsMu.RLock()
	defer levelsMu.RUnlock()
	result := make(map[string]LogLevel)
	for name, level := range componentLevels {
		result[name] = levelToLogLevel(level)
	}
	return result
}

func GetDefaultLevel() LogLevel {
	levelsMu.RLock()
	defer levelsMu.RUnlock()
	return levelToLogLevel(defaultLevel)
}

func levelToLogLevel(level slog.Level) LogLevel {
	switch level {
	case slog.LevelDebug:
		return LogLevelDebug
	case slog.LevelInfo:
		return LogLevelInfo
	case slog.LevelWarn:
		return LogLevelWarn
	case slog.LevelError:
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

type MessageAttrs struct {
	MessageID      string
	Kind           string
	Element        string
	Source         string
	SubscriptionID string
}

// WithMessage attaches the non-empty message attributes to logger.
func WithMessage(logger *slog.Logger, attrs MessageAttrs) *slog.Logger {
	fields := []struct{ key, value string }{
		{"message_id", attrs.MessageID},
		{"kind", attrs.Kind},
		{"element", attrs.Element},
		{"source", attrs.Source},
		{"subscription_id", attrs.SubscriptionID},
	}

	args := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		if f.value != "" {
			args = append(args, f.key, f.value)
		}
	}

	return logger.With(args...)
}

// Components lists the names that have an explicit level set.
func Components() []string {
	levelsMu.RLock()
	defer levelsMu.RUnlock()

	names := make([]string, 0, len(componentLevels))
	for name := range componentLevels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
