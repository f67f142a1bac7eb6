// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

// Package nn provides the neural building blocks of the recommender: an
// explicitly owned parameter collection, embeddings, linear and LayerNorm
// layers, attention masks and a post-LN transformer encoder.
//
// # Sequence Encoders
//
// SequenceEncoder is the capability the model depends on. Two implementations
// share the same transformer stack and differ only in the attention mask they
// derive from a batch of padded item ids:
//
//   - MaskedEncoder: position i attends to j iff j <= i and item j is not pad
//   - FreeEncoder: position i attends to j iff item j is not pad
//
// Masked entries receive an additive bias of -10000 before the softmax rather
// than -Inf, so a row with every key masked degrades to a uniform average
// instead of NaN.
//
// # Batched Layout
//
// A batch of B sequences of length L travels through the encoder as a single
// [B*L, hidden] matrix; example b occupies rows [b*L, (b+1)*L). Linear layers
// act on the whole matrix and attention slices it per example and per head.
//
// # Randomness
//
// Dropout is the only stochastic operation. It draws from Pass.RNG and is
// skipped entirely when Pass.Train is false, which makes evaluation passes
// deterministic.
package nn
