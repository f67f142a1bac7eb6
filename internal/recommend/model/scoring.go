// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/cclsrec/internal/autograd"
	"github.com/tomtom215/cclsrec/internal/recommend"
	"github.com/tomtom215/cclsrec/internal/recommend/nn"
)

// normalize applies the configured score normalization. In global mode the
// whole tensor is divided by its Frobenius norm, so an example's score
// depends on the rest of its batch.
func (m *Model) normalize(x *autograd.Value) *autograd.Value {
	if m.cfg.ScoreNorm == recommend.ScoreNormRow {
		return autograd.NormalizeRows(x, m.cfg.NormEpsilon)
	}
	return autograd.GlobalNormalize(x, m.cfg.NormEpsilon)
}

// catalogLogits returns the [B, n_items] normalized scores of seq against
// the whole item table, divided by tao.
func (m *Model) catalogLogits(seq *autograd.Value) *autograd.Value {
	scores := autograd.MatMulT(m.normalize(seq), m.normalize(m.items.Table))
	return autograd.Scale(scores, 1/m.cfg.Tao)
}

// PredictSingle scores the candidate batch.ItemIDs[b] for every sequence b.
func (m *Model) PredictSingle(batch *recommend.Batch) ([]float64, error) {
	if len(batch.ItemIDs) != batch.Size() {
		return nil, fmt.Errorf("item_ids has %d entries for %d sequences: %w", len(batch.ItemIDs), batch.Size(), recommend.ErrShapeMismatch)
	}
	seq, err := m.EncodeMasked(batch, nn.Eval())
	if err != nil {
		return nil, err
	}
	cand := m.items.Lookup(batch.ItemIDs)
	scores := autograd.RowDot(m.normalize(seq), m.normalize(cand))
	out := make([]float64, batch.Size())
	for b := range out {
		out[b] = scores.Data().At(b, 0) / m.cfg.Tao
	}
	return out, nil
}

// PredictFullCatalog scores every item for every sequence. Column 0 is the
// pad item; callers ranking items should exclude it.
func (m *Model) PredictFullCatalog(batch *recommend.Batch) (*mat.Dense, error) {
	seq, err := m.EncodeMasked(batch, nn.Eval())
	if err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(m.catalogLogits(seq).Data()), nil
}
