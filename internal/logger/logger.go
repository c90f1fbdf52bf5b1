// Package logger provides the module's opinionated slog setup: a colorized
// charmbracelet handler for interactive CLI use and a JSON handler for
// machine consumption.
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level  slog.Level
	json   bool
	writer io.Writer
}

// Option configures a Logger created with New.
type Option func(*config)

// WithDebug sets the log level to Debug when true, Info otherwise.
func WithDebug(debug bool) Option {
	return func(c *config) {
		if debug {
			c.level = slog.LevelDebug
		} else {
			c.level = slog.LevelInfo
		}
	}
}

// WithJSON switches to slog's JSON handler for structured output.
func WithJSON(json bool) Option {
	return func(c *config) {
		c.json = json
	}
}

// WithWriter overrides the output writer. Defaults to os.Stderr so stdout
// stays clean for command output.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.writer = w
	}
}

// New builds a *slog.Logger according to the options.
func New(opts ...Option) *slog.Logger {
	c := &config{
		level:  slog.LevelInfo,
		writer: os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.json {
		return slog.New(slog.NewJSONHandler(c.writer, &slog.HandlerOptions{Level: c.level}))
	}

	charmLevel := charmlog.InfoLevel
	if c.level == slog.LevelDebug {
		charmLevel = charmlog.DebugLevel
	}
	handler := charmlog.NewWithOptions(c.writer, charmlog.Options{
		Level:           charmLevel,
		ReportTimestamp: true,
	})
	return slog.New(handler)
}
