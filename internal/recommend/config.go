// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package recommend

import (
	"fmt"
	"time"
)

// LossType selects the primary training loss.
type LossType string

const (
	// LossCE is cross-entropy over the full item catalog.
	LossCE LossType = "CE"
	// LossBPR is the pairwise Bayesian Personalized Ranking loss.
	LossBPR LossType = "BPR"
)

// Similarity selects the contrastive similarity function.
type Similarity string

const (
	// SimilarityDot is the raw dot product.
	SimilarityDot Similarity = "dot"
	// SimilarityCosine is the cosine similarity.
	SimilarityCosine Similarity = "cos"
)

// ScoreNorm selects how representations are normalized before scoring.
type ScoreNorm string

const (
	// ScoreNormGlobal divides each tensor by its Frobenius norm over the whole batch.
	ScoreNormGlobal ScoreNorm = "global"
	// ScoreNormRow divides every row by its own L2 norm (per-example cosine).
	ScoreNormRow ScoreNorm = "row"
)

// Activation names accepted by ModelConfig.HiddenAct.
var Activations = []string{"gelu", "relu", "swish", "tanh", "sigmoid"}

// ModelConfig holds the hyperparameters of the CCLSRec model.
type ModelConfig struct {
	// NLayers is the number of transformer layers in each encoder.
	// Default: 2.
	NLayers int `koanf:"n_layers" json:"n_layers"`

	// NHeads is the number of attention heads. Must divide HiddenSize.
	// Default: 2.
	NHeads int `koanf:"n_heads" json:"n_heads"`

	// HiddenSize is the embedding and hidden state width.
	// Default: 64.
	HiddenSize int `koanf:"hidden_size" json:"hidden_size"`

	// InnerSize is the feed-forward width.
	// Default: 256.
	InnerSize int `koanf:"inner_size" json:"inner_size"`

	// HiddenDropoutProb is applied to embeddings and sublayer outputs.
	// Default: 0.5.
	HiddenDropoutProb float64 `koanf:"hidden_dropout_prob" json:"hidden_dropout_prob"`

	// AttnDropoutProb is applied to attention weights.
	// Default: 0.5.
	AttnDropoutProb float64 `koanf:"attn_dropout_prob" json:"attn_dropout_prob"`

	// HiddenAct is the feed-forward activation.
	// Default: gelu.
	HiddenAct string `koanf:"hidden_act" json:"hidden_act"`

	// LayerNormEps is the LayerNorm variance epsilon.
	// Default: 1e-12.
	LayerNormEps float64 `koanf:"layer_norm_eps" json:"layer_norm_eps"`

	// InitializerRange is the standard deviation of the Gaussian weight init.
	// Default: 0.02.
	InitializerRange float64 `koanf:"initializer_range" json:"initializer_range"`

	// LossType selects the primary loss.
	// Default: CE.
	LossType LossType `koanf:"loss_type" json:"loss_type"`

	// TrainBatchSize is the nominal batch size; its contrastive mask is
	// precomputed. Set from training.train_batch_size.
	// Default: 256.
	TrainBatchSize int `koanf:"-" json:"train_batch_size"`

	// Lmd weights the guidance contrastive loss.
	// Default: 0.1.
	Lmd float64 `koanf:"lmd" json:"lmd"`

	// Niu weights the free (augmented view) contrastive loss.
	// Default: 0.1.
	Niu float64 `koanf:"niu" json:"niu"`

	// Tau is the contrastive temperature.
	// Default: 1.0.
	Tau float64 `koanf:"tau" json:"tau"`

	// Tao is the score temperature.
	// Default: 1.0.
	Tao float64 `koanf:"tao" json:"tao"`

	// Sim is the contrastive similarity.
	// Default: dot.
	Sim Similarity `koanf:"sim" json:"sim"`

	// MaskRatio is the augmentation probability p in (0, 1).
	// Default: 0.2.
	MaskRatio float64 `koanf:"mask_ratio" json:"mask_ratio"`

	// ScoreNorm selects the score normalization.
	// Default: global.
	ScoreNorm ScoreNorm `koanf:"score_norm" json:"score_norm"`

	// NormEpsilon is the lower bound applied to every norm before dividing.
	// Default: 1e-12.
	NormEpsilon float64 `koanf:"norm_epsilon" json:"norm_epsilon"`

	// AugmentWorkers bounds the goroutines used by the augmenter.
	// Default: 4.
	AugmentWorkers int `koanf:"augment_workers" json:"augment_workers"`
}

// DefaultModelConfig returns the default hyperparameters.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		NLayers:           2,
		NHeads:            2,
		HiddenSize:        64,
		InnerSize:         256,
		HiddenDropoutProb: 0.5,
		AttnDropoutProb:   0.5,
		HiddenAct:         "gelu",
		LayerNormEps:      1e-12,
		InitializerRange:  0.02,
		LossType:          LossCE,
		TrainBatchSize:    256,
		Lmd:               0.1,
		Niu:               0.1,
		Tau:               1.0,
		Tao:               1.0,
		Sim:               SimilarityDot,
		MaskRatio:         0.2,
		ScoreNorm:         ScoreNormGlobal,
		NormEpsilon:       1e-12,
		AugmentWorkers:    4,
	}
}

// Validate checks the configuration for errors.
//
//nolint:gocyclo // validation needs to check many fields
func (c *ModelConfig) Validate() error {
	switch c.LossType {
	case LossCE, LossBPR:
	default:
		return fmt.Errorf("model.loss_type must be BPR or CE, got %q: %w", c.LossType, ErrUnsupportedLossType)
	}
	switch c.Sim {
	case SimilarityDot, SimilarityCosine:
	default:
		return fmt.Errorf("model.sim must be dot or cos, got %q: %w", c.Sim, ErrUnsupportedSimilarity)
	}
	if !isActivation(c.HiddenAct) {
		return fmt.Errorf("model.hidden_act must be one of %v, got %q: %w", Activations, c.HiddenAct, ErrUnsupportedActivation)
	}
	switch c.ScoreNorm {
	case ScoreNormGlobal, ScoreNormRow:
	default:
		return fmt.Errorf("model.score_norm must be global or row, got %q", c.ScoreNorm)
	}

	if c.NLayers < 1 {
		return fmt.Errorf("model.n_layers must be positive, got %d", c.NLayers)
	}
	if c.NHeads < 1 {
		return fmt.Errorf("model.n_heads must be positive, got %d", c.NHeads)
	}
	if c.HiddenSize < 1 || c.HiddenSize%c.NHeads != 0 {
		return fmt.Errorf("model.hidden_size must be a positive multiple of model.n_heads (%d), got %d", c.NHeads, c.HiddenSize)
	}
	if c.InnerSize < 1 {
		return fmt.Errorf("model.inner_size must be positive, got %d", c.InnerSize)
	}
	if c.HiddenDropoutProb < 0 || c.HiddenDropoutProb >= 1 {
		return fmt.Errorf("model.hidden_dropout_prob must be in [0, 1), got %f", c.HiddenDropoutProb)
	}
	if c.AttnDropoutProb < 0 || c.AttnDropoutProb >= 1 {
		return fmt.Errorf("model.attn_dropout_prob must be in [0, 1), got %f", c.AttnDropoutProb)
	}
	if c.LayerNormEps <= 0 {
		return fmt.Errorf("model.layer_norm_eps must be positive, got %g", c.LayerNormEps)
	}
	if c.InitializerRange <= 0 {
		return fmt.Errorf("model.initializer_range must be positive, got %g", c.InitializerRange)
	}
	if c.TrainBatchSize < 1 {
		return fmt.Errorf("training.train_batch_size must be positive, got %d", c.TrainBatchSize)
	}
	if c.Lmd < 0 {
		return fmt.Errorf("model.lmd must be non-negative, got %f", c.Lmd)
	}
	if c.Niu < 0 {
		return fmt.Errorf("model.niu must be non-negative, got %f", c.Niu)
	}
	if c.Tau <= 0 {
		return fmt.Errorf("model.tau must be positive, got %f", c.Tau)
	}
	if c.Tao <= 0 {
		return fmt.Errorf("model.tao must be positive, got %f", c.Tao)
	}
	if c.MaskRatio <= 0 || c.MaskRatio >= 1 {
		return fmt.Errorf("model.mask_ratio must be in (0, 1), got %f", c.MaskRatio)
	}
	if c.NormEpsilon <= 0 {
		return fmt.Errorf("model.norm_epsilon must be positive, got %g", c.NormEpsilon)
	}
	if c.AugmentWorkers < 1 {
		return fmt.Errorf("model.augment_workers must be positive, got %d", c.AugmentWorkers)
	}
	return nil
}

func isActivation(name string) bool {
	for _, a := range Activations {
		if a == name {
			return true
		}
	}
	return false
}

// EngineConfig controls request handling in the serving engine.
type EngineConfig struct {
	// DefaultK is used when a request does not set K.
	// Default: 10.
	DefaultK int `koanf:"default_k" json:"default_k"`

	// MaxK caps K.
	// Default: 100.
	MaxK int `koanf:"max_k" json:"max_k"`

	// CacheEnabled turns the response cache on.
	// Default: true.
	CacheEnabled bool `koanf:"cache_enabled" json:"cache_enabled"`

	// CacheTTL is the cache entry time-to-live.
	// Default: 5m.
	CacheTTL time.Duration `koanf:"cache_ttl" json:"cache_ttl"`

	// CacheMaxEntries is the maximum number of cached responses.
	// Default: 10000.
	CacheMaxEntries int `koanf:"cache_max_entries" json:"cache_max_entries"`
}

// DefaultEngineConfig returns the default serving configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultK:        10,
		MaxK:            100,
		CacheEnabled:    true,
		CacheTTL:        5 * time.Minute,
		CacheMaxEntries: 10000,
	}
}

// Validate checks the configuration for errors.
func (c *EngineConfig) Validate() error {
	if c.DefaultK < 1 {
		return fmt.Errorf("serving.default_k must be positive, got %d", c.DefaultK)
	}
	if c.MaxK < c.DefaultK {
		return fmt.Errorf("serving.max_k must be >= serving.default_k, got %d < %d", c.MaxK, c.DefaultK)
	}
	if c.CacheEnabled {
		if c.CacheTTL <= 0 {
			return fmt.Errorf("serving.cache_ttl must be positive, got %v", c.CacheTTL)
		}
		if c.CacheMaxEntries < 1 {
			return fmt.Errorf("serving.cache_max_entries must be positive, got %d", c.CacheMaxEntries)
		}
	}
	return nil
}
