// Package log configures the process-wide slog logger.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dotse/slug"
	slogmulti "github.com/samber/slog-multi"
)

type Level string

const (
	Debug Level = "debug"
	Info  Level = "info"
	Warn  Level = "warn"
	Error Level = "error"
)

// ToSlogLevel maps our levels to the equivalent slog level.
func ToSlogLevel(level Level) slog.Level {
	switch Level(strings.ToLower(string(level))) {
	case Debug:
		return slog.LevelDebug
	case Info:
		return slog.LevelInfo
	case Warn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// Options selects where log records go.
type Options struct {
	Level Level
	// File, when non-empty, receives every record.
	File string
	// Console mirrors records to stderr. The TUI disables it since it owns
	// the terminal.
	Console bool
}

// Setup creates and installs the default global logger. It returns a
// cleanup function which should be called on program shutdown.
func Setup(opts Options) (func(), error) {
	var (
		closer  = func() {}
		handler = slug.HandlerOptions{
			HandlerOptions: slog.HandlerOptions{
				Level: ToSlogLevel(opts.Level),
			},
		}
		handlers []slog.Handler
	)

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return closer, fmt.Errorf("creating log directory: %w", err)
		}

		logFile, errLogFile := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if errLogFile != nil {
			return closer, fmt.Errorf("opening log file %s: %w", opts.File, errLogFile)
		}

		closer = func() { Closer(logFile) }
		handlers = append(handlers, slug.NewHandler(handler, logFile))
	}

	if opts.Console || len(handlers) == 0 {
		handlers = append(handlers, slug.NewHandler(handler, os.Stderr))
	}

	slog.SetDefault(slog.New(slogmulti.Fanout(handlers...)))

	return closer, nil
}

// Closer closes c and logs any failure.
func Closer(c io.Closer) {
	if errClose := c.Close(); errClose != nil {
		slog.Error("Failed to close", ErrAttr(errClose))
	}
}

// ErrAttr is shorthand for an "error" attribute.
func ErrAttr(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
