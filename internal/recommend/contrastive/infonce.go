// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package contrastive

import (
	"fmt"

	"github.com/tomtom215/cclsrec/internal/autograd"
	"github.com/tomtom215/cclsrec/internal/recommend"
)

// CosineEpsilon bounds row norms from below in the cosine similarity.
const CosineEpsilon = 1e-8

// InfoNCE is the in-batch contrastive loss: each row's paired view is the
// positive and the other 2N-2 rows of the stacked batch are negatives.
type InfoNCE struct {
	Temp  float64
	Sim   recommend.Similarity
	Masks *MaskCache
}

// NewInfoNCE validates the temperature and similarity.
func NewInfoNCE(temp float64, sim recommend.Similarity, masks *MaskCache) (*InfoNCE, error) {
	if temp <= 0 {
		return nil, fmt.Errorf("temperature must be positive, got %f", temp)
	}
	switch sim {
	case recommend.SimilarityDot, recommend.SimilarityCosine:
	default:
		return nil, fmt.Errorf("similarity %q: %w", sim, recommend.ErrUnsupportedSimilarity)
	}
	if masks == nil {
		masks = &MaskCache{masks: make(map[int]*CorrelatedMask)}
	}
	return &InfoNCE{Temp: temp, Sim: sim, Masks: masks}, nil
}

// Logits returns the [2N, 2N-1] logit matrix with each row's positive in
// column 0, followed by its negatives in ascending column order. Every label
// is 0.
func (f *InfoNCE) Logits(zi, zj *autograd.Value) (*autograd.Value, []int, error) {
	ni, hi := zi.Dims()
	nj, hj := zj.Dims()
	if ni != nj || hi != hj {
		return nil, nil, fmt.Errorf("views are %dx%d and %dx%d: %w", ni, hi, nj, hj, recommend.ErrShapeMismatch)
	}
	mask, err := f.Masks.Get(ni)
	if err != nil {
		return nil, nil, err
	}

	z := autograd.ConcatRows(zi, zj)
	if f.Sim == recommend.SimilarityCosine {
		z = autograd.NormalizeRows(z, CosineEpsilon)
	}
	sim := autograd.Scale(autograd.MatMulT(z, z), 1/f.Temp)
	logits := autograd.GatherEntries(sim, mask.gatherIndex())
	return logits, make([]int, 2*ni), nil
}

// Loss returns the mean cross-entropy of the logits against label 0.
func (f *InfoNCE) Loss(zi, zj *autograd.Value) (*autograd.Value, error) {
	logits, labels, err := f.Logits(zi, zj)
	if err != nil {
		return nil, err
	}
	return autograd.CrossEntropy(logits, labels), nil
}
