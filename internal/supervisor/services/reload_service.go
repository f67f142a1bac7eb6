// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Reloader brings the served model up to date and reports the version served.
type Reloader interface {
	Reload(ctx context.Context) (int, error)
}

// ReloadService polls a Reloader on an interval, starting immediately.
// Reload failures are logged and retried on the next tick; they never crash
// the service.
type ReloadService struct {
	reloader Reloader
	interval time.Duration
	logger   zerolog.Logger
	name     string
}

// NewReloadService creates the polling service. A non-positive interval
// becomes one minute.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewReloadService(reloader Reloader, interval time.Duration, logger zerolog.Logger) *ReloadService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReloadService{
		reloader: reloader,
		interval: interval,
		logger:   logger.With().Str("service", "checkpoint-reloader").Logger(),
		name:     "checkpoint-reloader",
	}
}

// Serve implements suture.Service.
func (s *ReloadService) Serve(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("checkpoint reloader starting")
	s.reload(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("checkpoint reloader shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.reload(ctx)
		}
	}
}

func (s *ReloadService) reload(ctx context.Context) {
	version, err := s.reloader.Reload(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn().Err(err).Int("serving_version", version).Msg("checkpoint reload failed, retrying on next tick")
		}
		return
	}
	if version == 0 {
		s.logger.Debug().Msg("no checkpoint available yet")
	}
}

func (s *ReloadService) String() string {
	return s.name
}
