// Package logging provides structured logging configuration using zerolog.
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
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure output
	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetLevel changes the global log level at runtime, for example after a
// configuration reload.
func SetLevel(level LogLevel) {
	zerolog.SetGlobalLevel(parseLevel(level))
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/stale/miss, key, TTL)
//   - Rate limit rejections
//   - Deferred pool saturation
//
// Info: Normal operation events
//   - HTTP requests
//   - Cache purges
//   - Configuration reloads
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Store call failures (treated as miss)
//   - Failed background revalidations
//   - Oversized or unserializable cache entries
//   - Slow requests
//
// Error: Error conditions requiring attention
//   - Panics in deferred tasks
//   - Unhandled handler errors (500 responses)
//   - Configuration errors
//
// Context Fields:
//   - component: Logger owner (cache, ratelimit, httpapi, ...)
//   - key: Logical or physical store key
//   - tier: Rate limit tier
//   - request_id: Request correlation ID
//   - status: HTTP status code
//   - duration: Request duration
//   - ttl: Cache entry lifetime
