package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// L is the global logger instance. It's initialized to discard all output by default.
// Call Init() to enable logging.
var L = slog.New(slog.NewTextHandler(io.Discard, nil))

// Options configures the logger initialization.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	File    string     // Log file, appended to. Empty means stderr
	Level   slog.Level // Minimum log level. Default: LevelInfo when enabled
}

// Init configures logging. Call before any log calls. The returned closer
// releases the log file, if any.
func Init(opts Options) (io.Closer, error) {
	if !opts.Enabled {
		L = slog.New(slog.NewTextHandler(io.Discard, nil))
		return nopCloser{}, nil
	}

	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		w, closer = f, f
	}

	L = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level}))
	return closer, nil
}

// ParseLevel maps debug, info, warn, and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(strings.ToUpper(s)))
	return l, err
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) { L.Error(msg, args...) }
