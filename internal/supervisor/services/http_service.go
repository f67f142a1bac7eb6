// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// DefaultDrainTimeout bounds how long in-flight recommendation requests may
// run after the API is asked to stop.
const DefaultDrainTimeout = 10 * time.Second

// HTTPServer is the part of *http.Server the API service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService serves the recommendation API under supervision.
type HTTPServerService struct {
	server HTTPServer
	addr   string
	drain  time.Duration
	logger zerolog.Logger
}

// NewHTTPServerService wraps server. A non-positive drain timeout becomes
// DefaultDrainTimeout.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHTTPServerService(server HTTPServer, drain time.Duration, logger zerolog.Logger) *HTTPServerService {
	if drain <= 0 {
		drain = DefaultDrainTimeout
	}
	s := &HTTPServerService{server: server, drain: drain}
	if hs, ok := server.(*http.Server); ok {
		s.addr = hs.Addr
	}
	s.logger = logger.With().Str("service", s.String()).Logger()
	return s
}

// Serve implements suture.Service. It returns the listener's error if the
// server stops on its own, and ctx.Err() after a clean drain.
func (s *HTTPServerService) Serve(ctx context.Context) error {
	stopped := make(chan error, 1)
	go func() {
		err := s.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		stopped <- err
	}()
	s.logger.Info().Str("addr", s.addr).Msg("recommendation api listening")

	select {
	case err := <-stopped:
		if err != nil {
			return fmt.Errorf("recommendation api: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Dur("timeout", s.drain).Msg("draining recommendation api")
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.drain)
	defer cancel()
	if err := s.server.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("drain recommendation api: %w", err)
	}
	if err := <-stopped; err != nil {
		s.logger.Warn().Err(err).Msg("listener reported error during drain")
	}
	return ctx.Err()
}

// Addr returns the configured listen address, empty for non-*http.Server
// implementations.
func (s *HTTPServerService) Addr() string { return s.addr }

func (s *HTTPServerService) String() string { return "recommendation-api" }
