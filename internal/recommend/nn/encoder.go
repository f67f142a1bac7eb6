// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package nn

import "github.com/tomtom215/cclsrec/internal/autograd"

// SequenceEncoder turns embedded sequences into per-layer hidden states.
//
// AttentionMask derives the mask the encoder applies to a batch of padded item
// ids; Encode consumes the stacked [B*L, hidden] input together with that mask.
type SequenceEncoder interface {
	AttentionMask(items [][]int) (AttentionMask, error)
	Encode(input *autograd.Value, mask AttentionMask, pass Pass) ([]*autograd.Value, error)
}

// MaskedEncoder is a transformer restricted to causal, non-pad attention.
type MaskedEncoder struct {
	*TransformerEncoder
}

// NewMaskedEncoder registers a causal encoder under prefix.
func NewMaskedEncoder(params *Params, prefix string, cfg EncoderConfig, init Initializer) (*MaskedEncoder, error) {
	enc, err := NewTransformerEncoder(params, prefix, cfg, init)
	if err != nil {
		return nil, err
	}
	return &MaskedEncoder{TransformerEncoder: enc}, nil
}

// AttentionMask returns the causal padding mask.
func (e *MaskedEncoder) AttentionMask(items [][]int) (AttentionMask, error) {
	return CausalMask(items)
}

// FreeEncoder is a transformer that only excludes pad positions.
type FreeEncoder struct {
	*TransformerEncoder
}

// NewFreeEncoder registers a bidirectional encoder under prefix.
func NewFreeEncoder(params *Params, prefix string, cfg EncoderConfig, init Initializer) (*FreeEncoder, error) {
	enc, err := NewTransformerEncoder(params, prefix, cfg, init)
	if err != nil {
		return nil, err
	}
	return &FreeEncoder{TransformerEncoder: enc}, nil
}

// AttentionMask returns the padding-only mask.
func (e *FreeEncoder) AttentionMask(items [][]int) (AttentionMask, error) {
	return PaddingMask(items)
}

var (
	_ SequenceEncoder = (*MaskedEncoder)(nil)
	_ SequenceEncoder = (*FreeEncoder)(nil)
)
