// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/cclsrec/internal/logging"
	"github.com/tomtom215/cclsrec/internal/recommend"
	"github.com/tomtom215/cclsrec/internal/recommend/history"
	"github.com/tomtom215/cclsrec/internal/recommend/storage"
	"github.com/tomtom215/cclsrec/internal/server"
	"github.com/tomtom215/cclsrec/internal/supervisor"
	"github.com/tomtom215/cclsrec/internal/supervisor/services"
)

func newServeCmd(a *app) *cobra.Command {
	var noHistory bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the recommendation API",
		Long: `Serve recommendations over HTTP. The newest checkpoint is loaded on
start and new checkpoints are picked up while running. Requests can name
a user whose history is read from the history store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.serve(cmd.Context(), noHistory)
		},
	}
	cmd.Flags().String("addr", "", "override server.addr")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "serve without the history store")
	return cmd
}

func (a *app) serve(parent context.Context, noHistory bool) error {
	cfg := a.cfg
	logger := logging.Logger()

	engine, err := recommend.NewEngine(cfg.Server.Engine, logging.WithComponent("engine"))
	if err != nil {
		return err
	}

	var hist server.HistoryStore
	if !noHistory {
		hs, err := history.Open(cfg.History)
		if err != nil {
			return err
		}
		defer func() {
			if err := hs.Close(); err != nil {
				logging.Warn().Err(err).Msg("Failed to close history store")
			}
		}()
		engine.SetHistoryLookup(hs)
		hist = hs
		logging.Info().Str("path", cfg.History.Path).Msg("History store opened")
	}

	store, err := storage.NewStore(cfg.Storage.Dir)
	if err != nil {
		return err
	}
	reloader := server.NewReloader(store, engine, cfg.Storage.Name, server.ReloaderConfig{}, logger)
	httpServer := server.New(cfg.Server, engine, hist, logger).HTTPServer()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(logger), cfg.Server.Supervisor)
	if err != nil {
		return err
	}
	tree.AddModelService(services.NewReloadService(reloader, cfg.Server.ReloadInterval, logger))
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout, logger))

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logging.Info().Str("addr", cfg.Server.Addr).Str("checkpoints", cfg.Storage.Dir).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown requested, waiting for services to stop")
		err = <-errCh
	case err = <-errCh:
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Server stopped")
	return err
}
