// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package autograd

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// CrossEntropy returns the mean over rows of -log softmax(logits)[label].
func CrossEntropy(logits *Value, labels []int) *Value {
	r, c := logits.Dims()
	if len(labels) != r {
		panic(fmt.Sprintf("autograd: CrossEntropy wants %d labels, got %d", r, len(labels)))
	}
	probs := mat.NewDense(r, c, nil)
	var total float64
	for i := 0; i < r; i++ {
		row := logits.data.RawRowView(i)
		label := labels[i]
		if label < 0 || label >= c {
			panic(fmt.Sprintf("autograd: label %d out of range [0,%d)", label, c))
		}
		total += logSumExp(row) - row[label]
		softmaxInto(probs.RawRowView(i), row)
	}
	n := float64(r)
	out := mat.NewDense(1, 1, []float64{total / n})
	return derive(out, func(g *mat.Dense) {
		scale := g.At(0, 0) / n
		ga := mat.NewDense(r, c, nil)
		for i := 0; i < r; i++ {
			dst := ga.RawRowView(i)
			scaleInto(dst, probs.RawRowView(i), scale)
			dst[labels[i]] -= scale
		}
		logits.accumulate(ga)
	}, logits)
}

// BPRLoss returns -mean(log(gamma + sigmoid(pos - neg))) over the r x 1
// score columns pos and neg.
func BPRLoss(pos, neg *Value, gamma float64) *Value {
	mustSameShape("BPRLoss", pos, neg)
	r, c := pos.Dims()
	if c != 1 {
		panic(fmt.Sprintf("autograd: BPRLoss wants column vectors, got %dx%d", r, c))
	}
	local := make([]float64, r)
	var total float64
	for i := 0; i < r; i++ {
		s := sigmoid(pos.data.At(i, 0) - neg.data.At(i, 0))
		total -= math.Log(gamma + s)
		local[i] = -s * (1 - s) / (gamma + s)
	}
	n := float64(r)
	out := mat.NewDense(1, 1, []float64{total / n})
	return derive(out, func(g *mat.Dense) {
		scale := g.At(0, 0) / n
		gp := mat.NewDense(r, 1, nil)
		gn := mat.NewDense(r, 1, nil)
		for i, d := range local {
			gp.Set(i, 0, d*scale)
			gn.Set(i, 0, -d*scale)
		}
		pos.accumulate(gp)
		neg.accumulate(gn)
	}, pos, neg)
}

func logSumExp(row []float64) float64 {
	maxv := math.Inf(-1)
	for _, x := range row {
		if x > maxv {
			maxv = x
		}
	}
	if math.IsInf(maxv, -1) {
		return maxv
	}
	var s float64
	for _, x := range row {
		s += math.Exp(x - maxv)
	}
	return maxv + math.Log(s)
}
