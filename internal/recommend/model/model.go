// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

// Package model implements the CCLSRec sequential recommender.
//
// The model owns an item embedding table, a position embedding table, an
// input LayerNorm and two transformer encoders with separate parameters:
//
//   - the masked encoder applies causal and padding masks and produces the
//     sequence representation used for scoring;
//   - the free encoder applies only the padding mask and encodes the two
//     augmented views of the contrastive branch.
//
// Training combines the primary next-item loss with a guidance InfoNCE term
// over two dropout views of the same sequence and a free InfoNCE term over
// the augmented views. Inference scores either one candidate per sequence or
// the whole catalog.
//
// All randomness comes from the *rand.Rand passed at construction (weight
// init) or carried by nn.Pass (dropout and augmentation), so a run is
// reproducible from its seeds.
package model

import (
	"fmt"
	"math/rand"

	"github.com/tomtom215/cclsrec/internal/autograd"
	"github.com/tomtom215/cclsrec/internal/recommend"
	"github.com/tomtom215/cclsrec/internal/recommend/augment"
	"github.com/tomtom215/cclsrec/internal/recommend/contrastive"
	"github.com/tomtom215/cclsrec/internal/recommend/nn"
)

// Parameter name prefixes.
const (
	ItemEmbeddingName     = "item_embedding"
	PositionEmbeddingName = "position_embedding"
	InputNormName         = "layer_norm"
	MaskedEncoderName     = "trm_encoder"
	FreeEncoderName       = "trm_encoder_free"
)

// Model is a CCLSRec recommender. A Model is safe for concurrent prediction;
// training steps and parameter updates must not overlap with anything else.
type Model struct {
	cfg  recommend.ModelConfig
	info recommend.DataInfo

	params    *nn.Params
	items     *nn.Embedding
	positions *nn.Embedding
	inputNorm *nn.LayerNorm
	masked    nn.SequenceEncoder
	free      nn.SequenceEncoder

	augmenter *augment.Augmenter
	nce       *contrastive.InfoNCE
}

// New builds a model with freshly initialized parameters drawn from rng.
//
//nolint:gocritic // hugeParam: configs are passed by value
func New(cfg recommend.ModelConfig, info recommend.DataInfo, rng *rand.Rand) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model config: %w", err)
	}
	if err := info.Validate(); err != nil {
		return nil, fmt.Errorf("invalid data info: %w", err)
	}
	if rng == nil {
		return nil, fmt.Errorf("initialize parameters: %w", recommend.ErrNoRandomSource)
	}

	m := &Model{cfg: cfg, info: info, params: nn.NewParams()}
	init := nn.Initializer{Std: cfg.InitializerRange, RNG: rng}
	m.items = nn.NewEmbedding(m.params, ItemEmbeddingName, info.NItems, cfg.HiddenSize, recommend.PadID, init)
	m.positions = nn.NewEmbedding(m.params, PositionEmbeddingName, info.MaxSeqLength, cfg.HiddenSize, -1, init)

	encCfg := nn.EncoderConfigFrom(cfg)
	masked, err := nn.NewMaskedEncoder(m.params, MaskedEncoderName, encCfg, init)
	if err != nil {
		return nil, err
	}
	free, err := nn.NewFreeEncoder(m.params, FreeEncoderName, encCfg, init)
	if err != nil {
		return nil, err
	}
	m.masked, m.free = masked, free
	m.inputNorm = nn.NewLayerNorm(m.params, InputNormName, cfg.HiddenSize, cfg.LayerNormEps)

	m.augmenter, err = augment.New(cfg.MaskRatio, info.MaxSeqLength, cfg.AugmentWorkers)
	if err != nil {
		return nil, err
	}
	masks, err := contrastive.NewMaskCache(cfg.TrainBatchSize)
	if err != nil {
		return nil, err
	}
	m.nce, err = contrastive.NewInfoNCE(cfg.Tau, cfg.Sim, masks)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Config returns the model hyperparameters.
func (m *Model) Config() recommend.ModelConfig { return m.cfg }

// Info returns the dataset dimensions the model was built for.
func (m *Model) Info() recommend.DataInfo { return m.info }

// Params returns the trainable parameters.
func (m *Model) Params() *nn.Params { return m.params }

// ItemEmbeddings returns the item embedding table parameter.
func (m *Model) ItemEmbeddings() *autograd.Value { return m.items.Table }

// embed returns the [B*L, hidden] input of the encoders: item plus position
// embeddings, LayerNorm, and optionally hidden dropout.
func (m *Model) embed(items [][]int, pass nn.Pass, dropout bool) *autograd.Value {
	l := m.info.MaxSeqLength
	ids := make([]int, 0, len(items)*l)
	pos := make([]int, 0, len(items)*l)
	for _, row := range items {
		ids = append(ids, row...)
		for j := range row {
			pos = append(pos, j)
		}
	}
	x := autograd.Add(m.items.Lookup(ids), m.positions.Lookup(pos))
	x = m.inputNorm.Forward(x)
	if dropout {
		x = pass.Dropout(x, m.cfg.HiddenDropoutProb)
	}
	return x
}

// encode runs enc over items and gathers each example's state at lens-1.
func (m *Model) encode(enc nn.SequenceEncoder, items [][]int, lens []int, pass nn.Pass, dropout bool) (*autograd.Value, error) {
	mask, err := enc.AttentionMask(items)
	if err != nil {
		return nil, err
	}
	layers, err := enc.Encode(m.embed(items, pass, dropout), mask, pass)
	if err != nil {
		return nil, err
	}
	return GatherLast(layers[len(layers)-1], mask.Length, lens)
}

// EncodeMasked returns the [B, hidden] representation of each sequence
// through the causal encoder.
func (m *Model) EncodeMasked(batch *recommend.Batch, pass nn.Pass) (*autograd.Value, error) {
	if err := batch.Validate(m.info); err != nil {
		return nil, err
	}
	return m.encode(m.masked, batch.ItemSeq, batch.ItemSeqLen, pass, true)
}

// EncodeFree returns the [B, hidden] representation of items through the
// free encoder, gathered at lens-1. Input embeddings are not dropped out.
func (m *Model) EncodeFree(items [][]int, lens []int, pass nn.Pass) (*autograd.Value, error) {
	probe := recommend.Batch{ItemSeq: items, ItemSeqLen: lens}
	if err := probe.Validate(m.info); err != nil {
		return nil, err
	}
	return m.encode(m.free, items, lens, pass, false)
}

// GatherLast picks row b*length+lens[b]-1 of the stacked [B*length, hidden]
// hidden states for every example b.
func GatherLast(hidden *autograd.Value, length int, lens []int) (*autograd.Value, error) {
	rows, _ := hidden.Dims()
	if length < 1 || rows != len(lens)*length {
		return nil, fmt.Errorf("hidden states have %d rows for %d sequences of length %d: %w", rows, len(lens), length, recommend.ErrShapeMismatch)
	}
	idx := make([]int, len(lens))
	for b, n := range lens {
		if n < 1 || n > length {
			return nil, fmt.Errorf("sequence %d: gather index %d not in [0, %d]: %w", b, n-1, length-1, recommend.ErrSequenceLength)
		}
		idx[b] = b*length + n - 1
	}
	return autograd.GatherRows(hidden, idx), nil
}

var _ recommend.Predictor = (*Model)(nil)
