// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

// Package augment builds the stochastic sub-sequence views used by the
// free contrastive branch.
//
// Every real item of a sequence is kept or dropped by an independent coin
// flip. KeepMajority keeps an item when its draw exceeds the mask ratio and
// KeepMinority keeps it when the draw is below it. Kept items stay in their
// original order, left-aligned, and every view is padded back to the full
// sequence width with the pad id.
//
// Each call takes one seed per example from the caller's generator before any
// work starts, so the result depends only on the generator state and not on
// how examples are scheduled across workers.
package augment

import (
	"context"
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/cclsrec/internal/recommend"
)

// Augmenter produces sub-sequence views of padded item sequences.
type Augmenter struct {
	ratio   float64
	maxLen  int
	workers int
}

// New creates an augmenter for sequences of width maxLen. ratio must lie in
// (0, 1).
func New(ratio float64, maxLen, workers int) (*Augmenter, error) {
	if ratio <= 0 || ratio >= 1 {
		return nil, fmt.Errorf("mask ratio must be in (0, 1), got %f", ratio)
	}
	if maxLen < 1 {
		return nil, fmt.Errorf("max sequence length must be positive, got %d", maxLen)
	}
	if workers < 1 {
		workers = 1
	}
	return &Augmenter{ratio: ratio, maxLen: maxLen, workers: workers}, nil
}

// Ratio returns the mask ratio.
func (a *Augmenter) Ratio() float64 { return a.ratio }

// KeepMajority keeps each real item whose uniform draw exceeds the ratio.
func (a *Augmenter) KeepMajority(ctx context.Context, rng *rand.Rand, items [][]int) ([][]int, error) {
	return a.apply(ctx, rng, items, func(u float64) bool { return u > a.ratio })
}

// KeepMinority keeps each real item whose uniform draw is below the ratio.
func (a *Augmenter) KeepMinority(ctx context.Context, rng *rand.Rand, items [][]int) ([][]int, error) {
	return a.apply(ctx, rng, items, func(u float64) bool { return u < a.ratio })
}

func (a *Augmenter) apply(ctx context.Context, rng *rand.Rand, items [][]int, keep func(u float64) bool) ([][]int, error) {
	if rng == nil {
		return nil, recommend.ErrNoRandomSource
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("empty batch: %w", recommend.ErrShapeMismatch)
	}
	width := len(items[0])
	for i, row := range items {
		if len(row) != width || len(row) > a.maxLen {
			return nil, fmt.Errorf("sequence %d has width %d (first row %d, max %d): %w", i, len(row), width, a.maxLen, recommend.ErrRaggedBatch)
		}
	}

	seeds := make([]int64, len(items))
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	out := make([][]int, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = a.view(items[i], rand.New(rand.NewSource(seeds[i])), keep)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("augment batch: %w", err)
	}
	return out, nil
}

// view draws once per real item and pads the kept items to maxLen.
func (a *Augmenter) view(row []int, rng *rand.Rand, keep func(u float64) bool) []int {
	dst := make([]int, a.maxLen)
	n := 0
	for _, id := range row {
		if id == recommend.PadID {
			continue
		}
		if keep(rng.Float64()) {
			dst[n] = id
			n++
		}
	}
	return dst
}
