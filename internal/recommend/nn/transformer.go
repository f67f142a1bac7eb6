// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package nn

import (
	"fmt"
	"math"

	"github.com/tomtom215/cclsrec/internal/autograd"
	"github.com/tomtom215/cclsrec/internal/recommend"
)

// EncoderConfig sizes a transformer encoder.
type EncoderConfig struct {
	NLayers      int
	NHeads       int
	HiddenSize   int
	InnerSize    int
	HiddenDrop   float64
	AttnDrop     float64
	HiddenAct    string
	LayerNormEps float64
}

// EncoderConfigFrom extracts the encoder sizes from a model configuration.
//
//nolint:gocritic // hugeParam: configs are passed by value
func EncoderConfigFrom(c recommend.ModelConfig) EncoderConfig {
	return EncoderConfig{
		NLayers:      c.NLayers,
		NHeads:       c.NHeads,
		HiddenSize:   c.HiddenSize,
		InnerSize:    c.InnerSize,
		HiddenDrop:   c.HiddenDropoutProb,
		AttnDrop:     c.AttnDropoutProb,
		HiddenAct:    c.HiddenAct,
		LayerNormEps: c.LayerNormEps,
	}
}

// MultiHeadAttention is masked scaled dot-product self-attention followed by
// an output projection, residual connection and LayerNorm.
type MultiHeadAttention struct {
	heads      int
	headDim    int
	query      *Linear
	key        *Linear
	value      *Linear
	dense      *Linear
	norm       *LayerNorm
	attnDrop   float64
	hiddenDrop float64
}

func newMultiHeadAttention(params *Params, name string, cfg EncoderConfig, init Initializer) *MultiHeadAttention {
	h := cfg.HiddenSize
	return &MultiHeadAttention{
		heads:      cfg.NHeads,
		headDim:    h / cfg.NHeads,
		query:      NewLinear(params, name+".query", h, h, init),
		key:        NewLinear(params, name+".key", h, h, init),
		value:      NewLinear(params, name+".value", h, h, init),
		dense:      NewLinear(params, name+".dense", h, h, init),
		norm:       NewLayerNorm(params, name+".layer_norm", h, cfg.LayerNormEps),
		attnDrop:   cfg.AttnDrop,
		hiddenDrop: cfg.HiddenDrop,
	}
}

// Forward attends within each example of the stacked [B*L, hidden] input.
func (a *MultiHeadAttention) Forward(x *autograd.Value, mask AttentionMask, pass Pass) *autograd.Value {
	q := a.query.Forward(x)
	k := a.key.Forward(x)
	v := a.value.Forward(x)
	scale := 1 / math.Sqrt(float64(a.headDim))
	l := mask.Length

	examples := make([]*autograd.Value, mask.Batch)
	for b := 0; b < mask.Batch; b++ {
		qb := autograd.SliceRows(q, b*l, (b+1)*l)
		kb := autograd.SliceRows(k, b*l, (b+1)*l)
		vb := autograd.SliceRows(v, b*l, (b+1)*l)
		bias := autograd.New(mask.Bias[b])

		heads := make([]*autograd.Value, a.heads)
		for h := 0; h < a.heads; h++ {
			c0, c1 := h*a.headDim, (h+1)*a.headDim
			qh := autograd.SliceCols(qb, c0, c1)
			kh := autograd.SliceCols(kb, c0, c1)
			vh := autograd.SliceCols(vb, c0, c1)

			scores := autograd.Add(autograd.Scale(autograd.MatMulT(qh, kh), scale), bias)
			probs := pass.Dropout(autograd.SoftmaxRows(scores), a.attnDrop)
			heads[h] = autograd.MatMul(probs, vh)
		}
		if a.heads == 1 {
			examples[b] = heads[0]
		} else {
			examples[b] = autograd.ConcatCols(heads...)
		}
	}

	context := examples[0]
	if mask.Batch > 1 {
		context = autograd.ConcatRows(examples...)
	}
	hidden := pass.Dropout(a.dense.Forward(context), a.hiddenDrop)
	return a.norm.Forward(autograd.Add(hidden, x))
}

// FeedForward is the position-wise two-layer network with residual and LayerNorm.
type FeedForward struct {
	dense1 *Linear
	dense2 *Linear
	act    Activation
	norm   *LayerNorm
	drop   float64
}

func newFeedForward(params *Params, name string, cfg EncoderConfig, act Activation, init Initializer) *FeedForward {
	return &FeedForward{
		dense1: NewLinear(params, name+".dense_1", cfg.HiddenSize, cfg.InnerSize, init),
		dense2: NewLinear(params, name+".dense_2", cfg.InnerSize, cfg.HiddenSize, init),
		act:    act,
		norm:   NewLayerNorm(params, name+".layer_norm", cfg.HiddenSize, cfg.LayerNormEps),
		drop:   cfg.HiddenDrop,
	}
}

// Forward applies the network to every row of x.
func (f *FeedForward) Forward(x *autograd.Value, pass Pass) *autograd.Value {
	h := f.dense2.Forward(f.act(f.dense1.Forward(x)))
	h = pass.Dropout(h, f.drop)
	return f.norm.Forward(autograd.Add(h, x))
}

// TransformerLayer is attention followed by the feed-forward block.
type TransformerLayer struct {
	attention   *MultiHeadAttention
	feedForward *FeedForward
}

// Forward runs one layer.
func (t *TransformerLayer) Forward(x *autograd.Value, mask AttentionMask, pass Pass) *autograd.Value {
	return t.feedForward.Forward(t.attention.Forward(x, mask, pass), pass)
}

// TransformerEncoder is a stack of transformer layers.
type TransformerEncoder struct {
	layers []*TransformerLayer
	hidden int
}

// NewTransformerEncoder registers the parameters of every layer under prefix.
func NewTransformerEncoder(params *Params, prefix string, cfg EncoderConfig, init Initializer) (*TransformerEncoder, error) {
	if cfg.NLayers < 1 || cfg.NHeads < 1 || cfg.HiddenSize%cfg.NHeads != 0 {
		return nil, fmt.Errorf("encoder %s: %d heads cannot split hidden size %d over %d layers", prefix, cfg.NHeads, cfg.HiddenSize, cfg.NLayers)
	}
	act, err := ActivationByName(cfg.HiddenAct)
	if err != nil {
		return nil, fmt.Errorf("encoder %s: %w", prefix, err)
	}

	enc := &TransformerEncoder{layers: make([]*TransformerLayer, cfg.NLayers), hidden: cfg.HiddenSize}
	for i := range enc.layers {
		name := fmt.Sprintf("%s.layer.%d", prefix, i)
		enc.layers[i] = &TransformerLayer{
			attention:   newMultiHeadAttention(params, name+".attention", cfg, init),
			feedForward: newFeedForward(params, name+".feed_forward", cfg, act, init),
		}
	}
	return enc, nil
}

// Encode runs every layer and returns each layer's output; the last entry is
// the final hidden state.
func (e *TransformerEncoder) Encode(input *autograd.Value, mask AttentionMask, pass Pass) ([]*autograd.Value, error) {
	r, c := input.Dims()
	if r != mask.Batch*mask.Length || c != e.hidden {
		return nil, fmt.Errorf("encoder input is %dx%d, want %dx%d: %w", r, c, mask.Batch*mask.Length, e.hidden, recommend.ErrShapeMismatch)
	}
	if pass.Train && pass.RNG == nil {
		return nil, fmt.Errorf("training pass: %w", recommend.ErrNoRandomSource)
	}
	outputs := make([]*autograd.Value, len(e.layers))
	hidden := input
	for i, layer := range e.layers {
		hidden = layer.Forward(hidden, mask, pass)
		outputs[i] = hidden
	}
	return outputs, nil
}
