// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package recommend

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// PadID is the reserved item id used to pad sequences.
const PadID = 0

// DataInfo describes the dataset a model is built for.
type DataInfo struct {
	// NItems is the size of the item vocabulary including the pad id 0.
	NItems int `json:"n_items"`

	// MaxSeqLength is the fixed width of every item sequence.
	MaxSeqLength int `json:"max_seq_length"`
}

// Validate checks that the dataset dimensions are usable.
func (d DataInfo) Validate() error {
	if d.NItems < 2 {
		return fmt.Errorf("n_items must be at least 2 (pad plus one item), got %d", d.NItems)
	}
	if d.MaxSeqLength < 1 {
		return fmt.Errorf("max_seq_length must be positive, got %d", d.MaxSeqLength)
	}
	return nil
}

// Batch is one mini-batch of sequences and their targets.
//
// ItemSeq rows hold real item ids left-aligned and padded with PadID up to
// MaxSeqLength. ItemSeqLen counts the real items of each row.
type Batch struct {
	ItemSeq    [][]int `json:"item_seq"`
	ItemSeqLen []int   `json:"item_seq_len"`

	// PosItems is the next item of each sequence (training target).
	PosItems []int `json:"pos_items,omitempty"`

	// NegItems holds one sampled negative per sequence; BPR training only.
	NegItems []int `json:"neg_items,omitempty"`

	// ItemIDs holds the candidate item scored by PredictSingle.
	ItemIDs []int `json:"item_ids,omitempty"`
}

// Size returns the number of sequences in the batch.
func (b *Batch) Size() int { return len(b.ItemSeq) }

// Validate checks the sequence part of the batch against the dataset
// dimensions. Target fields are validated when present.
func (b *Batch) Validate(info DataInfo) error {
	n := len(b.ItemSeq)
	if n == 0 {
		return fmt.Errorf("empty batch: %w", ErrShapeMismatch)
	}
	if len(b.ItemSeqLen) != n {
		return fmt.Errorf("item_seq_len has %d entries for %d sequences: %w", len(b.ItemSeqLen), n, ErrShapeMismatch)
	}
	for i, row := range b.ItemSeq {
		if len(row) != info.MaxSeqLength {
			return fmt.Errorf("sequence %d has width %d, want %d: %w", i, len(row), info.MaxSeqLength, ErrRaggedBatch)
		}
		if l := b.ItemSeqLen[i]; l < 1 || l > info.MaxSeqLength {
			return fmt.Errorf("sequence %d: item_seq_len %d not in [1, %d]: %w", i, l, info.MaxSeqLength, ErrSequenceLength)
		}
		for _, id := range row {
			if id < 0 || id >= info.NItems {
				return fmt.Errorf("sequence %d: item %d not in [0, %d): %w", i, id, info.NItems, ErrItemOutOfRange)
			}
		}
	}
	for name, ids := range map[string][]int{"pos_items": b.PosItems, "neg_items": b.NegItems, "item_ids": b.ItemIDs} {
		if ids == nil {
			continue
		}
		if len(ids) != n {
			return fmt.Errorf("%s has %d entries for %d sequences: %w", name, len(ids), n, ErrShapeMismatch)
		}
		for _, id := range ids {
			if id < 0 || id >= info.NItems {
				return fmt.Errorf("%s: item %d not in [0, %d): %w", name, id, info.NItems, ErrItemOutOfRange)
			}
		}
	}
	return nil
}

// Predictor scores whole catalogs for a batch of sequences.
// The CCLSRec model implements it.
type Predictor interface {
	PredictFullCatalog(batch *Batch) (*mat.Dense, error)
	Info() DataInfo
}

// HistoryLookup returns the stored item history of a user, oldest first.
type HistoryLookup interface {
	Get(ctx context.Context, userID string) ([]string, error)
}

// Request is a recommendation request.
type Request struct {
	// UserID selects a stored history. Ignored when Items is set.
	UserID string `json:"user_id,omitempty"`

	// Items is an explicit history, oldest first, in external item ids.
	Items []string `json:"items,omitempty"`

	// K is the number of recommendations to return.
	K int `json:"k,omitempty"`

	// Exclude lists external item ids that must not be recommended.
	Exclude []string `json:"exclude,omitempty"`

	// IncludeHistory allows items already in the history to be recommended.
	IncludeHistory bool `json:"include_history,omitempty"`
}

// ScoredItem is one recommended item.
type ScoredItem struct {
	ItemID string  `json:"item_id"`
	Score  float64 `json:"score"`
	Rank   int     `json:"rank"`
}

// ResponseMetadata describes how a response was produced.
type ResponseMetadata struct {
	ModelVersion   int           `json:"model_version"`
	HistoryLength  int           `json:"history_length"`
	UnknownItems   int           `json:"unknown_items"`
	CacheHit       bool          `json:"cache_hit"`
	LatencyMS      float64       `json:"latency_ms"`
	GeneratedAt    time.Time     `json:"generated_at"`
	PredictionTime time.Duration `json:"-"`
}

// Response is the result of Engine.Recommend.
type Response struct {
	Items    []ScoredItem     `json:"items"`
	Metadata ResponseMetadata `json:"metadata"`
}
