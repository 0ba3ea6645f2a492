// Package logger provides the structured, slog-based logging the client
// attaches to each operation attempt, threaded through context so pool and
// transport errors surfacing up through the retry loop carry the same
// correlation ID.
package logger

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps *slog.Logger so call sites can pass a context carrying
// correlation fields (see WithContext) without repeating them at every
// log call.
type Logger struct {
	base *slog.Logger
}

// New builds a Logger writing JSON to w at the given level. Passing nil for
// w defaults to os.Stderr.
func New(level slog.Level, w *os.File) *Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{base: slog.New(handler)}
}

// Nop returns a Logger that discards everything, for tests and callers that
// don't configure logging.
func Nop() *Logger {
	return &Logger{base: slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func (l *Logger) with(ctx context.Context, args []any) *slog.Logger {
	if lc, ok := FromContext(ctx); ok {
		args = append(args, "correlation_id", lc.CorrelationID)
		if lc.Operation != "" {
			args = append(args, "operation", lc.Operation)
		}
		if lc.Endpoint != "" {
			args = append(args, "endpoint", lc.Endpoint)
		}
	}
	return l.base.With(args...)
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.with(ctx, nil).Debug(msg, args...)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.with(ctx, nil).Warn(msg, args...)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.with(ctx, nil).Error(msg, args...)
}
