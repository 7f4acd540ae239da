// Package logging wraps log/slog with context-carried component names and
// a file-backed handler. All engine packages log through this so a single
// session's activity can be traced across spawner, handler, and manager
// boundaries.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type componentKey struct{}

var (
	mu      sync.Mutex
	logger  = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	logFile *os.File

	levelGetter func() slog.Level = func() slog.Level { return slog.LevelInfo }
)

// SetLogLevelGetter installs the function consulted for the active log
// level at Init time. The CLI layer wires this to its settings.
func SetLogLevelGetter(get func() slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	levelGetter = get
}

// Init switches logging to a per-run log file under the user cache
// directory. sessionID may be empty; it only affects the file name. On any
// failure the stderr fallback stays active and the error is returned.
func Init(ctx context.Context, sessionID string) error {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return fmt.Errorf("failed to locate cache directory: %w", err)
	}
	logDir := filepath.Join(cacheDir, "conductor", "logs")
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	name := "conductor.log"
	if sessionID != "" {
		name = "conductor-" + sessionID + ".log"
	}
	f, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	logger = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: levelGetter()}))
	_ = ctx
	return nil
}

// Close flushes and closes the log file, reverting to the stderr fallback.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// WithComponent returns a context whose log records carry a component attr.
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey{}, component)
}

func current() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

func log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	l := current()
	if component, ok := ctx.Value(componentKey{}).(string); ok {
		attrs = append([]any{slog.String("component", component)}, attrs...)
	}
	l.Log(ctx, level, msg, attrs...)
}

// Debug logs at debug level with the context's component attached.
func Debug(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelDebug, msg, attrs...)
}

// Info logs at info level with the context's component attached.
func Info(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelInfo, msg, attrs...)
}

// Warn logs at warn level with the context's component attached.
func Warn(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelWarn, msg, attrs...)
}

// Error logs at error level with the context's component attached.
func Error(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelError, msg, attrs...)
}

// LogDuration logs msg with a duration_ms attr measured from start.
func LogDuration(ctx context.Context, level slog.Level, msg string, start time.Time, attrs ...any) {
	attrs = append(attrs, slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	log(ctx, level, msg, attrs...)
}
