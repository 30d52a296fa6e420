// Package logging provides structured logging for the DMR relay.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig configures rotating log file output.
type FileConfig struct {
	Path       string // Log file path; empty means stderr only
	MaxSizeMB  int    // Rotate after this many megabytes
	MaxBackups int    // Number of rotated files to keep
}

// NewLogger creates a new structured logger with the specified level and format.
// Supported levels: debug, info, warn, error
// Supported formats: text, json
func NewLogger(level, format string) *slog.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewRotatingLogger creates a logger writing to a size-rotated file.
// Falls back to stderr when no path is configured.
func NewRotatingLogger(level, format string, fc FileConfig) *slog.Logger {
	if fc.Path == "" {
		return NewLogger(level, format)
	}

	w := &lumberjack.Logger{
		Filename:   fc.Path,
		MaxSize:    fc.MaxSizeMB,
		MaxBackups: fc.MaxBackups,
	}
	return NewLoggerWithWriter(level, format, w)
}

// NewLoggerWithWriter creates a new structured logger with a custom writer.
func NewLoggerWithWriter(level, format string, w io.Writer) *slog.Logger {
	lvl := parseLevel(level)

	opts := &slog.HandlerOptions{
		Level: lvl,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level.
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

// NopLogger returns a logger that discards all output.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Common attribute keys for consistent logging.
const (
	KeyAddress   = "address"
	KeyClient    = "client"
	KeySrcID     = "src_id"
	KeyDstID     = "dst_id"
	KeySlot      = "slot"
	KeyCallsign  = "callsign"
	KeyReason    = "reason"
	KeyError     = "error"
	KeyComponent = "component"
	KeyCount     = "count"
)
