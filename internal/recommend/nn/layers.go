// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package nn

import (
	"fmt"
	"math/rand"

	"github.com/tomtom215/cclsrec/internal/autograd"
	"github.com/tomtom215/cclsrec/internal/recommend"
)

// Pass carries the per-call execution mode.
type Pass struct {
	// Train enables dropout.
	Train bool

	// RNG supplies dropout masks and augmentation draws.
	RNG *rand.Rand
}

// Eval returns a deterministic pass with dropout disabled.
func Eval() Pass { return Pass{} }

// Training returns a pass with dropout enabled, drawing from rng.
func Training(rng *rand.Rand) Pass { return Pass{Train: true, RNG: rng} }

// Dropout applies dropout with probability p in training passes.
func (p Pass) Dropout(x *autograd.Value, prob float64) *autograd.Value {
	if !p.Train {
		return x
	}
	return autograd.Dropout(x, prob, p.RNG)
}

// Embedding is a lookup table of row vectors.
type Embedding struct {
	Table *autograd.Value
	pad   int
}

// NewEmbedding registers an n x dim table initialized from init. When pad is
// non-negative that row is zeroed and Lookup maps it to the zero vector.
func NewEmbedding(params *Params, name string, n, dim, pad int, init Initializer) *Embedding {
	w := init.Normal(n, dim)
	if pad >= 0 {
		for j := 0; j < dim; j++ {
			w.Set(pad, j, 0)
		}
	}
	return &Embedding{Table: params.Add(name+".weight", w), pad: pad}
}

// Lookup returns one row per id.
func (e *Embedding) Lookup(ids []int) *autograd.Value {
	if e.pad >= 0 {
		return autograd.Lookup(e.Table, ids, e.pad)
	}
	return autograd.GatherRows(e.Table, ids)
}

// Linear computes x·W + b.
type Linear struct {
	Weight *autograd.Value
	Bias   *autograd.Value
}

// NewLinear registers an in x out weight (Gaussian) and a zero bias.
func NewLinear(params *Params, name string, in, out int, init Initializer) *Linear {
	return &Linear{
		Weight: params.Add(name+".weight", init.Normal(in, out)),
		Bias:   params.Add(name+".bias", Zeros(1, out)),
	}
}

// Forward applies the layer to every row of x.
func (l *Linear) Forward(x *autograd.Value) *autograd.Value {
	return autograd.AddRowVector(autograd.MatMul(x, l.Weight), l.Bias)
}

// LayerNorm normalizes rows and applies a learned gain and bias.
type LayerNorm struct {
	Gain *autograd.Value
	Bias *autograd.Value
	Eps  float64
}

// NewLayerNorm registers gain=1 and bias=0 parameters of width dim.
func NewLayerNorm(params *Params, name string, dim int, eps float64) *LayerNorm {
	return &LayerNorm{
		Gain: params.Add(name+".weight", Ones(1, dim)),
		Bias: params.Add(name+".bias", Zeros(1, dim)),
		Eps:  eps,
	}
}

// Forward normalizes every row of x.
func (n *LayerNorm) Forward(x *autograd.Value) *autograd.Value {
	return autograd.LayerNormRows(x, n.Gain, n.Bias, n.Eps)
}

// Activation is an element-wise nonlinearity.
type Activation func(*autograd.Value) *autograd.Value

// ActivationByName resolves a hidden_act name.
func ActivationByName(name string) (Activation, error) {
	switch name {
	case "gelu":
		return autograd.GELU, nil
	case "relu":
		return autograd.ReLU, nil
	case "swish":
		return autograd.Swish, nil
	case "tanh":
		return autograd.Tanh, nil
	case "sigmoid":
		return autograd.Sigmoid, nil
	default:
		return nil, fmt.Errorf("activation %q: %w", name, recommend.ErrUnsupportedActivation)
	}
}
