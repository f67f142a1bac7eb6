// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/cclsrec/internal/recommend"
)

// MaskBias is the additive attention bias for excluded positions.
const MaskBias = -10000.0

// AttentionMask holds one additive L x L bias matrix per example: row i,
// column j is 0 when query i may attend to key j and MaskBias otherwise.
type AttentionMask struct {
	Batch  int
	Length int
	Bias   []*mat.Dense
}

// Attendable reports whether query i of example b may attend to key j.
func (m AttentionMask) Attendable(b, i, j int) bool {
	return m.Bias[b].At(i, j) == 0
}

// CausalMask lets position i attend to non-pad positions j <= i.
func CausalMask(items [][]int) (AttentionMask, error) {
	return buildMask(items, true)
}

// PaddingMask lets every position attend to every non-pad position.
func PaddingMask(items [][]int) (AttentionMask, error) {
	return buildMask(items, false)
}

func buildMask(items [][]int, causal bool) (AttentionMask, error) {
	if len(items) == 0 {
		return AttentionMask{}, fmt.Errorf("empty batch: %w", recommend.ErrShapeMismatch)
	}
	l := len(items[0])
	if l == 0 {
		return AttentionMask{}, fmt.Errorf("zero-length sequences: %w", recommend.ErrShapeMismatch)
	}
	mask := AttentionMask{Batch: len(items), Length: l, Bias: make([]*mat.Dense, len(items))}
	for b, row := range items {
		if len(row) != l {
			return AttentionMask{}, fmt.Errorf("sequence %d has width %d, want %d: %w", b, len(row), l, recommend.ErrRaggedBatch)
		}
		bias := mat.NewDense(l, l, nil)
		for i := 0; i < l; i++ {
			dst := bias.RawRowView(i)
			for j := 0; j < l; j++ {
				if row[j] == recommend.PadID || (causal && j > i) {
					dst[j] = MaskBias
				}
			}
		}
		mask.Bias[b] = bias
	}
	return mask, nil
}
