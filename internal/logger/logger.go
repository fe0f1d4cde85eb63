// Package logger provides the process-wide structured logging facility.
//
// Per spec.md §9 ("Global mutable state. ... the only process-wide facility
// is tracing-style logging"), this is the one package-level global in the
// runtime; every other component carries its dependencies through explicit
// handles.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the global logger instance.
var Log zerolog.Logger

// Initialize configures the global logger.
func Initialize(level string, pretty bool) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	Log = log.With().
		Str("service", "authcore").
		Logger()

	Log.Info().
		Str("level", logLevel.String()).
		Bool("pretty", pretty).
		Msg("logger initialized")
}

// GetLogger returns the global logger instance.
func GetLogger() *zerolog.Logger { return &Log }

// Events returns a logger scoped to the event bus/store/DLQ/replay engine.
func Events() *zerolog.Logger {
	l := Log.With().Str("component", "events").Logger()
	return &l
}

// Webhooks returns a logger scoped to the webhook delivery engine.
func Webhooks() *zerolog.Logger {
	l := Log.With().Str("component", "webhooks").Logger()
	return &l
}

// Schema returns a logger scoped to schema composition and migration.
func Schema() *zerolog.Logger {
	l := Log.With().Str("component", "schema").Logger()
	return &l
}

// Plugins returns a logger scoped to the plugin lifecycle host.
func Plugins() *zerolog.Logger {
	l := Log.With().Str("component", "plugins").Logger()
	return &l
}

// Storage returns a logger scoped to storage adapters.
func Storage() *zerolog.Logger {
	l := Log.With().Str("component", "storage").Logger()
	return &l
}
