// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

// Package dataset turns raw user-item interactions into training batches.
//
// # Pipeline
//
//	Source (JSONL, CSV/TSV, DuckDB)
//	       ↓
//	[]Interaction
//	       ↓
//	Build: k-core filtering, chronological sort, item id remapping
//	       ↓
//	Dataset: per-user sequences, leave-one-out Train/Valid/Test examples
//	       ↓
//	Iterator: shuffled recommend.Batch values with optional negatives
//
// # Item Ids
//
// External item ids are strings. Build assigns internal ids 1..n in sorted
// external order and reserves 0 for padding, so DataInfo.NItems is the number
// of distinct items plus one.
//
// # Splitting
//
// For a user with chronological items s[0..n-1], the last item is the test
// target, the one before it the validation target, and every earlier item
// from s[1] on is a training target. Each example's history is the items
// before its target, truncated to the most recent MaxSeqLength.
package dataset
