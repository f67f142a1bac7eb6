// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/cclsrec/internal/config"
	"github.com/tomtom215/cclsrec/internal/recommend/dataset"
	"github.com/tomtom215/cclsrec/internal/recommend/dataset/duckdbsource"
)

// loadDataset reads and processes the configured interaction log.
func loadDataset(ctx context.Context, cfg *config.DataConfig, logger zerolog.Logger) (*dataset.Dataset, error) {
	start := time.Now()
	var src dataset.Source
	switch cfg.Source {
	case config.SourceDuckDB:
		r, err := duckdbsource.Open(duckdbsource.Config{
			Path:            cfg.DuckDB.Path,
			Relation:        cfg.DuckDB.Relation,
			Fields:          cfg.Fields,
			TimestampIsTime: cfg.DuckDB.TimestampIsTime,
		})
		if err != nil {
			return nil, err
		}
		defer r.Close() //nolint:errcheck // read-only connection
		src = r
	case config.SourceFile:
		src = &dataset.FileSource{Path: cfg.Path, Format: cfg.Format, Fields: cfg.Fields}
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.Source)
	}

	ds, err := dataset.Load(ctx, src, cfg.DatasetOptions())
	if err != nil {
		return nil, err
	}
	stats := ds.Stats()
	logger.Info().
		Str("source", cfg.Source).
		Int("users", stats.Users).
		Int("items", stats.Items).
		Int("interactions", stats.Interactions).
		Int("train", stats.Train).
		Int("valid", stats.Valid).
		Int("test", stats.Test).
		Dur("duration", time.Since(start)).
		Msg("Dataset loaded")
	return ds, nil
}
