// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package contrastive

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/cclsrec/internal/recommend"
)

// Decomposition holds the alignment and uniformity diagnostics of a pair of
// views.
type Decomposition struct {
	// Alignment sums the L2 distance of every row to its partner; each pair
	// is counted from both sides.
	Alignment float64 `json:"alignment"`

	// Uniformity sums exp(-2·distance) over ordered off-diagonal pairs of the
	// reference batch.
	Uniformity float64 `json:"uniformity"`
}

// Decompose computes the diagnostics without building any gradient graph.
// zi and zj must have the same shape; origin may have any row count but the
// same width.
func Decompose(zi, zj, origin mat.Matrix) (Decomposition, error) {
	ni, hi := zi.Dims()
	nj, hj := zj.Dims()
	no, ho := origin.Dims()
	if ni != nj || hi != hj || ho != hi {
		return Decomposition{}, fmt.Errorf("views %dx%d and %dx%d with reference %dx%d: %w", ni, hi, nj, hj, no, ho, recommend.ErrShapeMismatch)
	}

	z := mat.NewDense(2*ni, hi, nil)
	z.Stack(zi, zj)

	var d Decomposition
	for r := 0; r < 2*ni; r++ {
		d.Alignment += floats.Distance(z.RawRowView(r), z.RawRowView(Partner(r, ni)), 2)
	}

	ref := mat.DenseCopyOf(origin)
	for a := 0; a < no; a++ {
		for b := 0; b < no; b++ {
			if a == b {
				continue
			}
			d.Uniformity += math.Exp(-2 * floats.Distance(ref.RawRowView(a), ref.RawRowView(b), 2))
		}
	}
	return d, nil
}
