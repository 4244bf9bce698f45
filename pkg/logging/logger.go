package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options configures the process logger.
type Options struct {
	Level     string
	Format    string
	AddSource bool
	Output    io.Writer
}

var level = new(slog.LevelVar)

// InitLogger builds the process logger and installs it as the slog default.
// The level stays adjustable through SetLevel.
func InitLogger(opts Options) *slog.Logger {
	level.Set(ParseLevel(opts.Level))
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{Level: level, AddSource: opts.AddSource}
	var handler slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// SetLevel changes the level of every logger built by InitLogger.
func SetLevel(name string) {
	level.Set(ParseLevel(name))
}

func Level() slog.Level {
	return level.Level()
}

func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewComponentLogger creates a component-specific logger.
func NewComponentLogger(base *slog.Logger, component string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With(slog.String("component", component))
}
