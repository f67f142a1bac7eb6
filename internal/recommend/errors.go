// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package recommend

import "errors"

var (
	// ErrUnsupportedLossType is returned when model.loss_type is neither BPR nor CE.
	ErrUnsupportedLossType = errors.New("unsupported loss type")

	// ErrUnsupportedSimilarity is returned when model.sim is neither dot nor cos.
	ErrUnsupportedSimilarity = errors.New("unsupported similarity")

	// ErrUnsupportedActivation is returned for an unknown model.hidden_act.
	ErrUnsupportedActivation = errors.New("unsupported activation")

	// ErrSequenceLength is returned when an item_seq_len is outside [1, max_seq_length].
	ErrSequenceLength = errors.New("sequence length out of range")

	// ErrRaggedBatch is returned when the rows of a sequence batch differ in width
	// or exceed max_seq_length.
	ErrRaggedBatch = errors.New("ragged sequence batch")

	// ErrShapeMismatch is returned when batch fields disagree in size.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrItemOutOfRange is returned for an item id outside [0, n_items).
	ErrItemOutOfRange = errors.New("item id out of range")

	// ErrMissingNegatives is returned when BPR training gets a batch without negatives.
	ErrMissingNegatives = errors.New("batch has no negative items")

	// ErrNoRandomSource is returned when an operation that draws random numbers
	// is called without a generator.
	ErrNoRandomSource = errors.New("no random source")

	// ErrModelNotReady is returned by the engine before a model has been loaded.
	ErrModelNotReady = errors.New("model not ready")

	// ErrEmptyHistory is returned when a request resolves to no known items.
	ErrEmptyHistory = errors.New("no known items in history")
)
