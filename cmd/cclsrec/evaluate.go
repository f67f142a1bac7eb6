// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package main

import (
	"errors"
	"fmt"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/cclsrec/internal/logging"
	"github.com/tomtom215/cclsrec/internal/metrics"
	"github.com/tomtom215/cclsrec/internal/recommend"
	"github.com/tomtom215/cclsrec/internal/recommend/dataset"
	"github.com/tomtom215/cclsrec/internal/recommend/evaluate"
	"github.com/tomtom215/cclsrec/internal/recommend/storage"
)

// errVocabularyMismatch is returned when a checkpoint was trained on a
// different item catalog than the one loaded.
var errVocabularyMismatch = errors.New("checkpoint vocabulary does not match the dataset")

// EvaluationReport is printed by the evaluate command.
type EvaluationReport struct {
	Name     string           `json:"name"`
	Version  int              `json:"version"`
	RunID    string           `json:"run_id,omitempty"`
	Epoch    int              `json:"epoch"`
	Split    string           `json:"split"`
	Examples int              `json:"examples"`
	Metrics  evaluate.Metrics `json:"metrics"`
	Duration time.Duration    `json:"duration"`
}

func newEvaluateCmd(a *app) *cobra.Command {
	var version int
	var split string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a stored checkpoint",
		Long: `Load a checkpoint (the latest unless --version is given) and report
Hit@K, NDCG@K and MRR@K on the validation or test split.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.evaluate(cmd, version, split)
		},
	}
	cmd.Flags().IntVar(&version, "version", 0, "checkpoint version (0 for latest)")
	cmd.Flags().StringVar(&split, "split", "test", "split to evaluate (valid or test)")
	return cmd
}

func (a *app) evaluate(cmd *cobra.Command, version int, split string) error {
	if split != "valid" && split != "test" {
		return fmt.Errorf("split must be valid or test, got %q", split)
	}
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	logger := logging.WithComponent("evaluate")
	cfg := a.cfg

	store, err := storage.NewStore(cfg.Storage.Dir)
	if err != nil {
		return err
	}
	ckpt, meta, err := store.LoadCheckpoint(ctx, cfg.Storage.Name, version)
	if err != nil {
		return err
	}
	m, err := ckpt.Restore()
	if err != nil {
		return err
	}

	ds, err := loadDataset(ctx, &cfg.Data, logger)
	if err != nil {
		return err
	}
	if err := checkCompatible(ckpt, ds); err != nil {
		return err
	}

	examples := ds.Test
	if split == "valid" {
		examples = ds.Valid
	}
	start := time.Now()
	result, err := evaluate.Evaluate(ctx, m, examples, cfg.Training.Eval)
	if err != nil {
		return fmt.Errorf("evaluate %s: %w", split, err)
	}
	metrics.RecordEvaluation(split, result)
	logger.Info().
		Int("version", meta.Version).
		Str("split", split).
		Str("metrics", result.String()).
		Msg("Evaluation complete")

	return printJSON(cmd.OutOrStdout(), EvaluationReport{
		Name:     cfg.Storage.Name,
		Version:  meta.Version,
		RunID:    meta.RunID,
		Epoch:    meta.Epoch,
		Split:    split,
		Examples: len(examples),
		Metrics:  result,
		Duration: time.Since(start),
	})
}

// checkCompatible requires the checkpoint to use the dataset's item ids and
// sequence width.
func checkCompatible(ckpt *storage.Checkpoint, ds *dataset.Dataset) error {
	if ckpt.Info.MaxSeqLength != ds.Info.MaxSeqLength {
		return fmt.Errorf("checkpoint max_seq_length %d, dataset %d: %w",
			ckpt.Info.MaxSeqLength, ds.Info.MaxSeqLength, recommend.ErrShapeMismatch)
	}
	if !slices.Equal(ckpt.Items, ds.Vocab.Items()) {
		return fmt.Errorf("%w: checkpoint has %d items, dataset %d",
			errVocabularyMismatch, len(ckpt.Items), ds.Vocab.Len())
	}
	return nil
}
