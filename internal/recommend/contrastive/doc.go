// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

// Package contrastive implements the in-batch InfoNCE loss and the
// alignment/uniformity diagnostics over paired representation batches.
//
// Both halves share one pairing convention, exposed as Partner: for a batch
// of N pairs stacked as 2N rows, row i pairs with row i+N. The correlated
// sample mask removes the diagonal and the partner column from each row,
// leaving 2N-2 negatives. Masks are memoized per N in a MaskCache, which is
// pre-populated for the nominal training batch size so only the trailing
// partial batch of an epoch builds a new one.
package contrastive
