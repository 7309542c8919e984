package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// ParseLevel maps a settings string to a slog level. Unknown values fall
// back to info so a typo in the settings file never silences the client.
func ParseLevel(raw string) slog.Level {
	switch raw {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds the client logger. Output goes to stderr so command output on
// stdout stays machine-readable; when logDir is set the stream is teed into
// nugs-queue.log inside it.
func New(levelStr, logDir string) (*slog.Logger, error) {
	var output io.Writer = os.Stderr

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory %s: %w", logDir, err)
		}
		logPath := filepath.Join(logDir, "nugs-queue.log")
		logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", logPath, err)
		}
		output = io.MultiWriter(os.Stderr, logFile)
	}

	handler := slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: ParseLevel(levelStr),
	})
	return slog.New(handler), nil
}

// Discard returns a logger that drops everything. Used as the default for
// library callers that do not wire one in.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
