package httpapi

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "eventmap-core"

var levelAliases = map[string]string{
	"warning": "warn",
	"off":     "disabled",
	"none":    "disabled",
}

// NewLogger returns the server logger: JSON lines on stdout.
func NewLogger(level string) zerolog.Logger {
	return newLogger(level, os.Stdout)
}

// NewConsoleLogger returns a human-readable logger on stderr for CLI commands
// whose stdout carries data.
func NewConsoleLogger(level string) zerolog.Logger {
	return newLogger(level, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
}

func newLogger(level string, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(parseLevel(level))
	return zerolog.New(w).With().Timestamp().Str("service", serviceName).Logger()
}

// parseLevel accepts zerolog level names, numeric levels and a few aliases.
// Anything else is info.
func parseLevel(raw string) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(raw))
	if alias, ok := levelAliases[name]; ok {
		name = alias
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
