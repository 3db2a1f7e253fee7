package cliconfig

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger from the configured level and format.
// Unknown levels fall back to info.
func NewLogger(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.LogFormat == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return logger.Level(level).With().Timestamp().Logger()
}
