// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelTrace additionally logs every queue decision.
	LevelTrace LogLevel = "trace"

	// LevelDebug logs per-page flow and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs session lifecycle and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs retries, splits and throttling and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs terminal errors only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// parseLevel maps a configured level to zerolog. Unknown levels fall back to
// info.
func parseLevel(level LogLevel) zerolog.Level {
	s := strings.ToLower(strings.TrimSpace(string(level)))
	if s == "warning" {
		s = "warn"
	}
	l, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return l
}

// NewLogger creates a logger tagged with a component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log levels used across the module:
//
// Trace: queue bookkeeping (handles skipped, pieces queued)
// Debug: pages fetched and decoded, cache hits, chain step failures
// Info: fetch session start and finish, server startup and shutdown
// Warn: failed pages requeued, quota throttling, cache fallbacks
// Error: terminal session errors, critical quota blocks
//
// Common fields: component, session, space, mode, params, status, error.
