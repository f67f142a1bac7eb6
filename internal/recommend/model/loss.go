// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package model

import (
	"context"
	"fmt"

	"github.com/tomtom215/cclsrec/internal/autograd"
	"github.com/tomtom215/cclsrec/internal/recommend"
	"github.com/tomtom215/cclsrec/internal/recommend/contrastive"
	"github.com/tomtom215/cclsrec/internal/recommend/nn"
)

// BPRGamma keeps the BPR logarithm finite.
const BPRGamma = 1e-10

// LossOutput is the result of one training step's forward pass.
type LossOutput struct {
	// Total is primary + lmd*guidance + niu*free; call Backward on it.
	Total *autograd.Value

	Primary  float64
	Guidance float64
	Free     float64

	GuidanceDiag contrastive.Decomposition
	FreeDiag     contrastive.Decomposition
}

// ComputeTrainingLoss runs the full training forward pass over batch.
//
// pass.RNG is required even when pass.Train is false because the free
// branch always draws augmented views.
func (m *Model) ComputeTrainingLoss(ctx context.Context, batch *recommend.Batch, pass nn.Pass) (*LossOutput, error) {
	if pass.RNG == nil {
		return nil, fmt.Errorf("training loss: %w", recommend.ErrNoRandomSource)
	}
	if err := batch.Validate(m.info); err != nil {
		return nil, err
	}
	if len(batch.PosItems) != batch.Size() {
		return nil, fmt.Errorf("pos_items has %d entries for %d sequences: %w", len(batch.PosItems), batch.Size(), recommend.ErrShapeMismatch)
	}
	if m.cfg.LossType == recommend.LossBPR && len(batch.NegItems) == 0 {
		return nil, recommend.ErrMissingNegatives
	}

	seqOutput, err := m.EncodeMasked(batch, pass)
	if err != nil {
		return nil, err
	}
	primary, err := m.primaryLoss(seqOutput, batch)
	if err != nil {
		return nil, err
	}

	// Guidance: a second dropout view of the same sequences.
	seqOutput1, err := m.EncodeMasked(batch, pass)
	if err != nil {
		return nil, err
	}
	guidance, err := m.nce.Loss(seqOutput1, seqOutput)
	if err != nil {
		return nil, fmt.Errorf("guidance loss: %w", err)
	}

	// Free: two augmented views through the unmasked encoder, gathered at
	// the original last position.
	seq1, err := m.augmenter.KeepMajority(ctx, pass.RNG, batch.ItemSeq)
	if err != nil {
		return nil, err
	}
	seq2, err := m.augmenter.KeepMinority(ctx, pass.RNG, batch.ItemSeq)
	if err != nil {
		return nil, err
	}
	out1, err := m.EncodeFree(seq1, batch.ItemSeqLen, pass)
	if err != nil {
		return nil, err
	}
	out2, err := m.EncodeFree(seq2, batch.ItemSeqLen, pass)
	if err != nil {
		return nil, err
	}
	free, err := m.nce.Loss(out1, out2)
	if err != nil {
		return nil, fmt.Errorf("free loss: %w", err)
	}

	// Diagnostics read raw matrices; nothing here joins the graph.
	seqOutput2, err := m.EncodeMasked(batch, pass)
	if err != nil {
		return nil, err
	}
	guidDiag, err := contrastive.Decompose(seqOutput1.Data(), seqOutput2.Data(), seqOutput.Data())
	if err != nil {
		return nil, err
	}
	freeDiag, err := contrastive.Decompose(out1.Data(), out2.Data(), seqOutput.Data())
	if err != nil {
		return nil, err
	}

	total := autograd.Add(primary, autograd.Add(
		autograd.Scale(guidance, m.cfg.Lmd),
		autograd.Scale(free, m.cfg.Niu),
	))
	return &LossOutput{
		Total:        total,
		Primary:      primary.Item(),
		Guidance:     guidance.Item(),
		Free:         free.Item(),
		GuidanceDiag: guidDiag,
		FreeDiag:     freeDiag,
	}, nil
}

func (m *Model) primaryLoss(seqOutput *autograd.Value, batch *recommend.Batch) (*autograd.Value, error) {
	switch m.cfg.LossType {
	case recommend.LossBPR:
		pos := autograd.RowDot(seqOutput, m.items.Lookup(batch.PosItems))
		neg := autograd.RowDot(seqOutput, m.items.Lookup(batch.NegItems))
		return autograd.BPRLoss(pos, neg, BPRGamma), nil
	case recommend.LossCE:
		return autograd.CrossEntropy(m.catalogLogits(seqOutput), batch.PosItems), nil
	default:
		return nil, fmt.Errorf("loss type %q: %w", m.cfg.LossType, recommend.ErrUnsupportedLossType)
	}
}
