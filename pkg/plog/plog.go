package plog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Log levels. NOTICE sits between INFO and WARN and is used for messages that
// should stand out in a normal run without being a problem.
const (
	LevelDebug  = slog.LevelDebug
	LevelInfo   = slog.LevelInfo
	LevelNotice = slog.Level(2)
	LevelWarn   = slog.LevelWarn
	LevelError  = slog.LevelError
)

var levelNames = map[slog.Level]string{
	LevelNotice: "NOTICE",
}

// LevelDispatchHandler is a slog.Handler that writes log records to different
// handlers based on the record's level. INFO and NOTICE go to one handler,
// while WARN and above go to another.
type LevelDispatchHandler struct {
	stdoutHandler slog.Handler
	stderrHandler slog.Handler
}

// Enabled checks if the level is enabled for either of the underlying handlers.
func (h *LevelDispatchHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.stdoutHandler.Enabled(ctx, level) || h.stderrHandler.Enabled(ctx, level)
}

// Handle dispatches the record to the appropriate handler.
func (h *LevelDispatchHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		return h.stderrHandler.Handle(ctx, r)
	}
	return h.stdoutHandler.Handle(ctx, r)
}

// WithAttrs returns a new LevelDispatchHandler with the given attributes added.
func (h *LevelDispatchHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LevelDispatchHandler{
		stdoutHandler: h.stdoutHandler.WithAttrs(attrs),
		stderrHandler: h.stderrHandler.WithAttrs(attrs),
	}
}

// WithGroup returns a new LevelDispatchHandler with the given group.
func (h *LevelDispatchHandler) WithGroup(name string) slog.Handler {
	return &LevelDispatchHandler{
		stdoutHandler: h.stdoutHandler.WithGroup(name),
		stderrHandler: h.stderrHandler.WithGroup(name),
	}
}

var (
	level         = new(slog.LevelVar)
	defaultLogger atomic.Pointer[slog.Logger]
)

func replaceLevelName(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if l, ok := a.Value.Any().(slog.Level); ok {
		if name, found := levelNames[l]; found {
			a.Value = slog.StringValue(name)
		}
	}
	return a
}

func newTextHandler(w io.Writer, minimum slog.Leveler) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       minimum,
		ReplaceAttr: replaceLevelName,
	})
}

// minLevel keeps the stderr handler at WARN unless the configured level is higher.
type minLevel struct{ floor slog.Level }

func (m minLevel) Level() slog.Level { return max(m.floor, level.Level()) }

func init() {
	level.Set(LevelInfo)
	defaultLogger.Store(slog.New(&LevelDispatchHandler{
		stdoutHandler: newTextHandler(os.Stdout, level),
		stderrHandler: newTextHandler(os.Stderr, minLevel{floor: LevelWarn}),
	}))
}

// SetOutput redirects all levels to a single writer, primarily for testing.
func SetOutput(w io.Writer) {
	defaultLogger.Store(slog.New(newTextHandler(w, level)))
}

// SetLevel sets the minimum level of the global logger.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// LevelFromString parses "debug", "info", "notice", "warn" or "error".
func LevelFromString(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "notice":
		return LevelNotice, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level: %q", s)
	}
}

func logAt(l slog.Level, msg string, args ...any) {
	defaultLogger.Load().Log(context.Background(), l, msg, args...)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) { logAt(LevelDebug, msg, args...) }

// Info logs an informational message.
func Info(msg string, args ...any) { logAt(LevelInfo, msg, args...) }

// Notice logs a message that is more important than INFO but not a warning.
func Notice(msg string, args ...any) { logAt(LevelNotice, msg, args...) }

// Warn logs a warning message.
func Warn(msg string, args ...any) { logAt(LevelWarn, msg, args...) }

// Error logs an error message.
func Error(msg string, args ...any) { logAt(LevelError, msg, args...) }

// Logger writes through the global logger but can be silenced. A silent
// Logger drops everything below ERROR; errors are always written.
//
// The zero value is a non-silent Logger.
type Logger struct {
	silent bool
}

// Scoped returns a Logger honoring the given silence setting.
func Scoped(silent bool) Logger {
	return Logger{silent: silent}
}

// Silent reports whether the logger suppresses non-error output.
func (l Logger) Silent() bool { return l.silent }

func (l Logger) Debug(msg string, args ...any) {
	if !l.silent {
		Debug(msg, args...)
	}
}

func (l Logger) Info(msg string, args ...any) {
	if !l.silent {
		Info(msg, args...)
	}
}

func (l Logger) Notice(msg string, args ...any) {
	if !l.silent {
		Notice(msg, args...)
	}
}

func (l Logger) Warn(msg string, args ...any) {
	if !l.silent {
		Warn(msg, args...)
	}
}

func (l Logger) Error(msg string, args ...any) { Error(msg, args...) }
