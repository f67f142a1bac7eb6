// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

// Package server exposes the recommendation engine over HTTP and keeps it
// supplied with the newest checkpoint.
//
// Routes:
//
//	GET  /healthz                          liveness
//	GET  /readyz                           503 until a model is loaded
//	GET  /metrics                          Prometheus exposition
//	POST /api/v1/recommendations           top-K next items
//	GET  /api/v1/model                     engine counters and model version
//	GET  /api/v1/users/{userID}/history    stored history
//	PUT  /api/v1/users/{userID}/history    replace history
//	POST /api/v1/users/{userID}/history    append to history
//
// The history routes are registered only when a history store is given.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tomtom215/cclsrec/internal/config"
	"github.com/tomtom215/cclsrec/internal/recommend"
)

// Engine is the part of recommend.Engine the handlers use.
type Engine interface {
	Recommend(ctx context.Context, req recommend.Request) (*recommend.Response, error)
	Stats() recommend.EngineStats
	Ready() bool
	Version() int
}

// HistoryStore reads and writes user histories.
type HistoryStore interface {
	recommend.HistoryLookup
	Put(ctx context.Context, userID string, items []string) error
	Append(ctx context.Context, userID string, items ...string) error
}

// Server holds the HTTP handlers.
type Server struct {
	cfg     config.ServerConfig
	engine  Engine
	history HistoryStore
	logger  zerolog.Logger
}

// New creates a server. hist may be nil.
//
//nolint:gocritic // config and logger passed by value
func New(cfg config.ServerConfig, engine Engine, hist HistoryStore, logger zerolog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		engine:  engine,
		history: hist,
		logger:  logger.With().Str("component", "http").Logger(),
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging(s.logger))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(s.cfg.CORSOrigins))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(s.cfg.RateLimit))
		r.Use(PrometheusMetrics)
		r.Use(chimiddleware.Compress(5, "application/json"))

		r.Post("/recommendations", s.handleRecommend)
		r.Get("/model", s.handleModel)

		if s.history != nil {
			r.Route("/users/{userID}/history", func(r chi.Router) {
				r.Get("/", s.handleGetHistory)
				r.Put("/", s.handleWriteHistory)
				r.Post("/", s.handleWriteHistory)
			})
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})
	return r
}

// HTTPServer returns an http.Server for the configured address.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
}
