// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

// Package logging provides the process-wide zerolog logger for CCLSRec.
//
// Initialize once from main with the logging section of the configuration:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logger := logging.WithComponent("trainer")
//	logger.Info().Int("epoch", 3).Float64("loss", 1.23).Msg("epoch finished")
//
// Components receive a zerolog.Logger by value and add a "component" field.
// Training runs and HTTP requests carry a correlation id through
// context.Context; Ctx(ctx) returns a logger with that id attached.
//
// Always terminate event chains with Msg or Send:
//
//	logging.Info().Str("key", "value").Msg("message")  // emitted
//	logging.Info().Str("key", "value")                 // dropped
package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error, disabled.
	Level string `koanf:"level" json:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic disabled"`

	// Format is json (default) or console.
	Format string `koanf:"format" json:"format" validate:"omitempty,oneof=json console"`

	// Caller adds file:line to every event.
	Caller bool `koanf:"caller" json:"caller"`

	// Timestamp adds the event time.
	Timestamp bool `koanf:"timestamp" json:"timestamp"`

	// Output defaults to os.Stderr.
	Output io.Writer `koanf:"-" json:"-"`
}

// DefaultConfig logs info and above as timestamped JSON to stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Timestamp: true, Output: os.Stderr}
}

var global atomic.Pointer[zerolog.Logger]

//nolint:gochecknoinits // logging works before an explicit Init call
func init() {
	Init(DefaultConfig())
}

// New builds a logger from cfg without touching the global one.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	ctx := zerolog.New(out).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// Init replaces the global logger and sets the global level from cfg. It
// may be called more than once.
func Init(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "time"
	zerolog.MessageFieldName = "message"
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	SetLogger(New(cfg))
}

// parseLevel accepts zerolog level names plus "warning"; anything else is
// info.
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// SetLevel updates the global level.
func SetLevel(level string) {
	zerolog.SetGlobalLevel(parseLevel(level))
}

// Logger returns the global logger.
func Logger() zerolog.Logger {
	return *global.Load()
}

// SetLogger replaces the global logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func SetLogger(l zerolog.Logger) {
	global.Store(&l)
}

// WithComponent returns a child of the global logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return Logger().With().Str("component", component).Logger()
}

// Debug starts a debug event on the global logger.
func Debug() *zerolog.Event { return global.Load().Debug() }

// Info starts an info event on the global logger.
func Info() *zerolog.Event { return global.Load().Info() }

// Warn starts a warn event on the global logger.
func Warn() *zerolog.Event { return global.Load().Warn() }

// Error starts an error event on the global logger.
func Error() *zerolog.Event { return global.Load().Error() }

// NewTestLogger returns a timestamped JSON logger writing to w.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return New(Config{Format: "json", Timestamp: true, Output: w})
}
