// Package logging provides the structured logger every LIFT component
// takes as an explicit dependency, rather than relying on package-level
// logging state.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger is the structured logging surface every component depends on.
// With attaches contextual attributes (e.g. the current agent) to every
// subsequent record without mutating the receiver.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// streamSplitHandler routes DEBUG/INFO records to stdout and WARN/ERROR
// records to stderr, so a run's informational trace and its failures can
// be captured or redirected independently.
type streamSplitHandler struct {
	info  slog.Handler
	error slog.Handler
}

func (h *streamSplitHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.info.Enabled(ctx, level) || h.error.Enabled(ctx, level)
}

func (h *streamSplitHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level >= slog.LevelWarn {
		return h.error.Handle(ctx, record)
	}
	return h.info.Handle(ctx, record)
}

func (h *streamSplitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &streamSplitHandler{
		info:  h.info.WithAttrs(attrs),
		error: h.error.WithAttrs(attrs),
	}
}

func (h *streamSplitHandler) WithGroup(name string) slog.Handler {
	return &streamSplitHandler{
		info:  h.info.WithGroup(name),
		error: h.error.WithGroup(name),
	}
}

// slogLogger adapts a *slog.Logger to Logger.
type slogLogger struct {
	logger *slog.Logger
}

// New builds a Logger at the given level, writing DEBUG/INFO JSON records
// to stdout and WARN/ERROR records to stderr.
func New(level slog.Level) Logger {
	return NewWithWriters(os.Stdout, os.Stderr, level)
}

// NewWithWriters builds a Logger writing to explicit streams; tests use
// this to capture output.
func NewWithWriters(infoWriter, errorWriter io.Writer, level slog.Level) Logger {
	opts := &slog.HandlerOptions{Level: level}
	handler := &streamSplitHandler{
		info:  slog.NewJSONHandler(infoWriter, opts),
		error: slog.NewJSONHandler(errorWriter, opts),
	}
	return &slogLogger{logger: slog.New(handler)}
}

// ParseLevel maps LIFT_LOG_LEVEL's accepted string values to a slog.Level,
// defaulting to Info for anything unrecognized.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func (l *slogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: l.logger.With(args...)}
}
