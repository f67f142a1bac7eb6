// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

/*
Package autograd implements reverse-mode automatic differentiation over dense
float64 matrices backed by gonum.

Every quantity in a forward pass is a *Value holding a *mat.Dense. Leaf values
are either constants (New) or trainable parameters (NewParam). Each operation
returns a new Value that remembers its parents and a closure computing the
parents' gradients from its own. Calling Backward on a 1x1 result walks the
graph in reverse topological order and accumulates gradients into every
parameter that contributed to it.

# Graph Tracking

A value is tracked when at least one of its ancestors is a parameter. Untracked
values carry no parents and no closure, so evaluation-only passes (prediction,
diagnostics) build no graph and allocate no gradients.

# Shapes

Everything is two-dimensional. Sequences of a batch are stacked row-wise into a
single [batch*length, hidden] matrix; scalars are 1x1. Shape mismatches panic,
matching gonum's own behaviour: callers validate shapes at their boundaries and
return errors there.

# Example

	w := autograd.NewParam("w", mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
	x := autograd.New(mat.NewDense(1, 2, []float64{1, 1}))
	loss := autograd.Sum(autograd.MatMul(x, w))
	if err := loss.Backward(); err != nil {
		return err
	}
	fmt.Println(mat.Formatted(w.Grad()))
*/
package autograd
