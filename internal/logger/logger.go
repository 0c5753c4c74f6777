// Package logger configures the process-wide structured logger. It mirrors
// the init-once, settable-level pattern used throughout the pack (see
// alxayo-rtmp-go/internal/logger) but backs it with zerolog instead of
// log/slog.
package logger

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	initOnce sync.Once
	global   zerolog.Logger
)

// Init initializes the global logger with the given level (debug, info,
// warn, error; unrecognized values fall back to info). Safe to call once;
// subsequent calls are no-ops so tests and the CLI can both call it.
func Init(level string) {
	initOnce.Do(func() {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		global = zerolog.New(os.Stdout).With().Timestamp().Logger().Level(parseLevel(level))
	})
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "info", "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get returns the global logger, initializing it with default settings if
// Init hasn't been called yet (e.g. in tests).
func Get() zerolog.Logger {
	Init("info")
	return global
}

// With returns a child logger carrying the given component name.
func With(component string) zerolog.Logger {
	return Get().With().Str("component", component).Logger()
}
