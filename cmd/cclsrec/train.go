// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/cclsrec/internal/logging"
	"github.com/tomtom215/cclsrec/internal/recommend/model"
	"github.com/tomtom215/cclsrec/internal/recommend/storage"
	"github.com/tomtom215/cclsrec/internal/recommend/trainer"
)

func newTrainCmd(a *app) *cobra.Command {
	var epochs int
	var noCheckpoint bool
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model on the configured interactions",
		Long: `Load the interaction log, train the model with periodic validation
and early stopping, store the best checkpoint and report test metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if epochs > 0 {
				a.cfg.Training.Epochs = epochs
			}
			return a.train(cmd, noCheckpoint)
		},
	}
	cmd.Flags().IntVar(&epochs, "epochs", 0, "override training.epochs")
	cmd.Flags().BoolVar(&noCheckpoint, "no-checkpoint", false, "do not write checkpoints")
	return cmd
}

func (a *app) train(cmd *cobra.Command, noCheckpoint bool) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := logging.NewRunID()
	ctx = logging.ContextWithRunID(ctx, runID)
	logger := logging.WithComponent("train").With().Str("run_id", runID).Logger()
	cfg := a.cfg

	ds, err := loadDataset(ctx, &cfg.Data, logger)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(cfg.Training.Seed)) //nolint:gosec // reproducible initialization
	m, err := model.New(cfg.Model, ds.Info, rng)
	if err != nil {
		return fmt.Errorf("build model: %w", err)
	}
	logger.Info().
		Int("params", m.Params().NumElements()).
		Str("loss_type", string(cfg.Model.LossType)).
		Int("n_layers", cfg.Model.NLayers).
		Int("hidden_size", cfg.Model.HiddenSize).
		Msg("Model built")

	var store *storage.Store
	if !noCheckpoint {
		if store, err = storage.NewStore(cfg.Storage.Dir); err != nil {
			return err
		}
	}

	tcfg := cfg.Training
	tcfg.CheckpointName = cfg.Storage.Name
	t, err := trainer.New(tcfg, m, ds, store, runID, logging.Logger())
	if err != nil {
		return err
	}
	result, err := t.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("training interrupted: %w", err)
		}
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}
