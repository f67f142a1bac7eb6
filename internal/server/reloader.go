// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cclsrec/internal/metrics"
	"github.com/tomtom215/cclsrec/internal/recommend"
	"github.com/tomtom215/cclsrec/internal/recommend/storage"
)

// CheckpointSource lists and loads checkpoints. *storage.Store satisfies it.
type CheckpointSource interface {
	Refresh() error
	Latest(name string) (int, bool)
	LoadCheckpoint(ctx context.Context, name string, version int) (*storage.Checkpoint, *storage.Metadata, error)
}

// ModelSwapper receives restored models. *recommend.Engine satisfies it.
type ModelSwapper interface {
	Swap(p recommend.Predictor, itemIDs []string, version int) error
	Version() int
}

// ReloaderConfig tunes the reload circuit breaker.
type ReloaderConfig struct {
	// TripAfter consecutive failed loads opens the breaker.
	// Default: 3
	TripAfter uint32

	// OpenTimeout is how long the breaker stays open before a trial load.
	// Default: 5m
	OpenTimeout time.Duration
}

// Reloader swaps the engine to the newest stored checkpoint.
//
// Loading goes through a circuit breaker so a corrupt latest checkpoint is
// not re-read and re-verified on every poll.
type Reloader struct {
	source CheckpointSource
	engine ModelSwapper
	name   string
	cb     *gobreaker.CircuitBreaker[int]
	logger zerolog.Logger
}

// NewReloader creates a reloader for checkpoints stored under name.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewReloader(source CheckpointSource, engine ModelSwapper, name string, cfg ReloaderConfig, logger zerolog.Logger) *Reloader {
	if cfg.TripAfter == 0 {
		cfg.TripAfter = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 5 * time.Minute
	}
	logger = logger.With().Str("component", "reloader").Str("model", name).Logger()
	cbName := "checkpoint-reload"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)
	cb := gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.TripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String(), stateToFloat(to))
		},
	})

	return &Reloader{source: source, engine: engine, name: name, cb: cb, logger: logger}
}

// stateToFloat maps breaker states to gauge values.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Reload loads and swaps in the latest checkpoint when it is newer than the
// engine's model. It returns the version being served afterwards.
func (r *Reloader) Reload(ctx context.Context) (int, error) {
	if err := r.source.Refresh(); err != nil {
		return r.engine.Version(), fmt.Errorf("refresh checkpoint index: %w", err)
	}
	latest, ok := r.source.Latest(r.name)
	current := r.engine.Version()
	if !ok || latest <= current {
		return current, nil
	}

	version, err := r.cb.Execute(func() (int, error) {
		return r.load(ctx, latest)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordModelReload("rejected", 0)
		return current, err
	case err != nil:
		metrics.RecordModelReload("error", 0)
		r.logger.Error().Err(err).Int("version", latest).Msg("checkpoint reload failed")
		return current, err
	}
	metrics.RecordModelReload("success", version)
	return version, nil
}

func (r *Reloader) load(ctx context.Context, version int) (int, error) {
	start := time.Now()
	c, meta, err := r.source.LoadCheckpoint(ctx, r.name, version)
	if err != nil {
		return 0, fmt.Errorf("load checkpoint v%d: %w", version, err)
	}
	m, err := c.Restore()
	if err != nil {
		return 0, fmt.Errorf("restore checkpoint v%d: %w", version, err)
	}
	if err := r.engine.Swap(m, c.Items, meta.Version); err != nil {
		return 0, fmt.Errorf("swap to checkpoint v%d: %w", version, err)
	}
	r.logger.Info().
		Int("version", meta.Version).
		Int("epoch", meta.Epoch).
		Str("run_id", meta.RunID).
		Dur("load_time", time.Since(start)).
		Msg("checkpoint reloaded")
	return meta.Version, nil
}
