// Package logger configures the process-wide slog logger and tags every
// line with the request ID and caller identity carried in the context.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type ctxField string

const (
	requestIDField   ctxField = "request_id"
	identityKeyField ctxField = "identity_key"
)

var levels = map[string]slog.Level{
	"DEBUG": slog.LevelDebug,
	"INFO":  slog.LevelInfo,
	"WARN":  slog.LevelWarn,
	"ERROR": slog.LevelError,
}

// Init installs the default logger on stdout, configured by LOG_FORMAT
// (json or text, default json) and LOG_LEVEL (DEBUG, INFO, WARN or ERROR,
// default INFO).
func Init() error {
	return InitWriter(os.Stdout, os.Getenv("LOG_FORMAT"), os.Getenv("LOG_LEVEL"))
}

// InitWriter installs the default logger on w. Empty values take the same
// defaults as Init.
func InitWriter(w io.Writer, format, level string) error {
	if level == "" {
		level = "INFO"
	}
	lvl, ok := levels[strings.ToUpper(level)]
	if !ok {
		return fmt.Errorf("unknown LOG_LEVEL %q: want DEBUG, INFO, WARN or ERROR", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "", "json":
		h = slog.NewJSONHandler(w, opts)
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q: want json or text", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// WithRequestID returns ctx carrying requestID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDField, requestID)
}

// GetRequestID returns the request ID in ctx, if any
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDField).(string)
	return id
}

// WithIdentityKey returns ctx carrying the signed-in caller's identity key.
// Identity keys are app-scoped pseudonyms, so they go into logs as is.
func WithIdentityKey(ctx context.Context, identityKey string) context.Context {
	return context.WithValue(ctx, identityKeyField, identityKey)
}

// FromContext returns the default logger with the context's fields attached
func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	for _, f := range []ctxField{requestIDField, identityKeyField} {
		if v, _ := ctx.Value(f).(string); v != "" {
			l = l.With(string(f), v)
		}
	}
	return l
}

// Debug, Info, Warn and Error log through FromContext(ctx)
func Debug(ctx context.Context, msg string, args ...any) { logAt(ctx, slog.LevelDebug, msg, args) }

func Info(ctx context.Context, msg string, args ...any) { logAt(ctx, slog.LevelInfo, msg, args) }

func Warn(ctx context.Context, msg string, args ...any) { logAt(ctx, slog.LevelWarn, msg, args) }

func Error(ctx context.Context, msg string, args ...any) { logAt(ctx, slog.LevelError, msg, args) }

func logAt(ctx context.Context, level slog.Level, msg string, args []any) {
	FromContext(ctx).Log(ctx, level, msg, args...)
}
