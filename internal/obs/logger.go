// Package obs groups the server's observability surface: structured
// logging and Prometheus metrics.
package obs

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LoggerConfig configures NewLogger.
type LoggerConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, pretty
}

// NewLogger returns a structured logger with a timestamp, caller, and
// service field.
func NewLogger(cfg LoggerConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if cfg.Format == "pretty" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Str("service", "kvmux").
		Logger()
}

// RecoverPanic logs a recovered panic without re-raising it. Intended
// for defer blocks in long-lived goroutines that must outlive a single
// bad request.
func RecoverPanic(logger zerolog.Logger, goroutine string) {
	if r := recover(); r != nil {
		logger.Error().
			Str("goroutine", goroutine).
			Interface("panic", r).
			Msg("recovered panic")
	}
}
