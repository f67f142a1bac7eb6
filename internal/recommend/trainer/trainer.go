// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

// Package trainer runs the CCLSRec training loop: shuffled mini-batches,
// Adam steps, periodic validation, best-model checkpointing and early
// stopping.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/cclsrec/internal/metrics"
	"github.com/tomtom215/cclsrec/internal/recommend"
	"github.com/tomtom215/cclsrec/internal/recommend/dataset"
	"github.com/tomtom215/cclsrec/internal/recommend/evaluate"
	"github.com/tomtom215/cclsrec/internal/recommend/model"
	"github.com/tomtom215/cclsrec/internal/recommend/nn"
	"github.com/tomtom215/cclsrec/internal/recommend/optim"
	"github.com/tomtom215/cclsrec/internal/recommend/storage"
)

// ErrDiverged is returned when the training loss stops being finite.
var ErrDiverged = errors.New("training loss is not finite")

// Config controls a training run.
type Config struct {
	// Epochs is the maximum number of passes over the training examples.
	// Default: 50.
	Epochs int `koanf:"epochs" json:"epochs" validate:"min=1"`

	// TrainBatchSize is the number of sequences per optimizer step.
	// Default: 256.
	TrainBatchSize int `koanf:"train_batch_size" json:"train_batch_size" validate:"min=1"`

	// EvalEvery validates after every n-th epoch. The last epoch is
	// always validated.
	// Default: 1.
	EvalEvery int `koanf:"eval_every" json:"eval_every" validate:"min=1"`

	// StoppingStep stops training after this many validations without
	// improvement. Zero disables early stopping.
	// Default: 10.
	StoppingStep int `koanf:"stopping_step" json:"stopping_step" validate:"min=0"`

	// ValidMetric selects the best model, e.g. "ndcg@10".
	// Default: ndcg@10.
	ValidMetric string `koanf:"valid_metric" json:"valid_metric" validate:"required"`

	// Seed drives parameter initialization, shuffling, negatives, dropout
	// and augmentation.
	// Default: 2020.
	Seed int64 `koanf:"seed" json:"seed"`

	// LogInterval throttles per-step progress logs.
	// Default: 10s.
	LogInterval time.Duration `koanf:"log_interval" json:"log_interval"`

	// CheckpointName names the checkpoint series in the store.
	// Default: cclsrec.
	CheckpointName string `koanf:"checkpoint_name" json:"checkpoint_name" validate:"required"`

	// KeepCheckpoints is the number of versions kept after the run.
	// Default: 3.
	KeepCheckpoints int `koanf:"keep_checkpoints" json:"keep_checkpoints" validate:"min=1"`

	Optimizer optim.AdamConfig `koanf:"optimizer" json:"optimizer"`
	Eval      evaluate.Options `koanf:"eval" json:"eval"`
}

// DefaultConfig returns the default training configuration.
func DefaultConfig() Config {
	return Config{
		Epochs:          50,
		TrainBatchSize:  256,
		EvalEvery:       1,
		StoppingStep:    10,
		ValidMetric:     evaluate.Key("ndcg", 10),
		Seed:            2020,
		LogInterval:     10 * time.Second,
		CheckpointName:  "cclsrec",
		KeepCheckpoints: 3,
		Optimizer:       optim.DefaultAdamConfig(),
		Eval:            evaluate.DefaultOptions(),
	}
}

// Validate checks the cross-field constraints.
//
//nolint:gocritic // hugeParam: config passed by value for simplicity
func (c Config) Validate() error {
	if c.Epochs < 1 {
		return fmt.Errorf("training.epochs must be positive, got %d", c.Epochs)
	}
	if c.TrainBatchSize < 1 {
		return fmt.Errorf("training.train_batch_size must be positive, got %d", c.TrainBatchSize)
	}
	if c.EvalEvery < 1 {
		return fmt.Errorf("training.eval_every must be positive, got %d", c.EvalEvery)
	}
	if c.StoppingStep < 0 {
		return fmt.Errorf("training.stopping_step must be non-negative, got %d", c.StoppingStep)
	}
	if err := c.Optimizer.Validate(); err != nil {
		return err
	}
	if !slices.Contains(metricNames(c.Eval.Ks), c.ValidMetric) {
		return fmt.Errorf("training.valid_metric %q is not produced by eval.ks %v", c.ValidMetric, c.Eval.Ks)
	}
	return nil
}

func metricNames(ks []int) []string {
	var out []string
	for _, k := range ks {
		for _, m := range []string{"hit", "ndcg", "mrr"} {
			out = append(out, evaluate.Key(m, k))
		}
	}
	return out
}

// Result summarizes a finished run.
type Result struct {
	RunID        string           `json:"run_id"`
	Epochs       int              `json:"epochs"`
	Steps        int              `json:"steps"`
	BestEpoch    int              `json:"best_epoch"`
	BestValid    evaluate.Metrics `json:"best_valid"`
	Test         evaluate.Metrics `json:"test"`
	StoppedEarly bool             `json:"stopped_early"`

	// CheckpointVersion is the stored version of the best model, 0 when no
	// store was configured.
	CheckpointVersion int           `json:"checkpoint_version"`
	Duration          time.Duration `json:"duration"`
}

// Trainer owns one model and the data it is trained on.
type Trainer struct {
	cfg    Config
	model  *model.Model
	data   *dataset.Dataset
	store  *storage.Store
	runID  string
	logger zerolog.Logger
}

// New prepares a run. store may be nil to skip checkpointing.
//
//nolint:gocritic // hugeParam: config and logger passed by value
func New(cfg Config, m *model.Model, data *dataset.Dataset, store *storage.Store, runID string, logger zerolog.Logger) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid training config: %w", err)
	}
	if m.Info() != data.Info {
		return nil, fmt.Errorf("model built for %+v, dataset has %+v: %w", m.Info(), data.Info, recommend.ErrShapeMismatch)
	}
	if len(data.Train) == 0 || len(data.Valid) == 0 {
		return nil, fmt.Errorf("need training and validation examples, got %d and %d", len(data.Train), len(data.Valid))
	}
	return &Trainer{
		cfg:    cfg,
		model:  m,
		data:   data,
		store:  store,
		runID:  runID,
		logger: logger.With().Str("component", "trainer").Str("run_id", runID).Logger(),
	}, nil
}

// Run trains until the epoch budget is spent, early stopping triggers or
// ctx is cancelled. The best validated parameters are loaded back into the
// model before the test split is evaluated.
//
//nolint:gocyclo // the epoch loop keeps its bookkeeping in one place
func (t *Trainer) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	info := t.model.Info()
	rng := rand.New(rand.NewSource(t.cfg.Seed)) //nolint:gosec // reproducible training, not security sensitive

	bpr := t.model.Config().LossType == recommend.LossBPR
	it, err := dataset.NewIterator(t.data.Train, info, t.cfg.TrainBatchSize, bpr, rng)
	if err != nil {
		return nil, err
	}
	opt, err := optim.NewAdam(t.model.Params().All(), t.cfg.Optimizer)
	if err != nil {
		return nil, err
	}
	opt.PinZeroRow(t.model.ItemEmbeddings(), recommend.PadID)

	t.logger.Info().
		Int("train", len(t.data.Train)).
		Int("valid", len(t.data.Valid)).
		Int("test", len(t.data.Test)).
		Int("n_items", info.NItems).
		Int("params", t.model.Params().NumElements()).
		Int("batches_per_epoch", it.NumBatches()).
		Str("loss_type", string(t.model.Config().LossType)).
		Msg("training started")

	res := &Result{RunID: t.runID}
	progress := rate.Sometimes{First: 1, Interval: t.cfg.LogInterval}
	best := math.Inf(-1)
	var bestParams map[string]*mat.Dense
	stale := 0

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		epochStart := time.Now()
		it.Reset()
		var lossSum float64
		batches := 0
		for batch, ok := it.Next(); ok; batch, ok = it.Next() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			loss, err := t.step(ctx, batch, opt, rng)
			if err != nil {
				return nil, fmt.Errorf("epoch %d step %d: %w", epoch, opt.Steps()+1, err)
			}
			lossSum += loss
			batches++
			res.Steps++
			progress.Do(func() {
				t.logger.Info().
					Int("epoch", epoch).
					Int("batch", batches).
					Int("of", it.NumBatches()).
					Float64("loss", loss).
					Msg("training progress")
			})
		}
		res.Epochs = epoch
		metrics.RecordEpoch()
		t.logger.Info().
			Int("epoch", epoch).
			Float64("mean_loss", lossSum/float64(max(batches, 1))).
			Dur("elapsed", time.Since(epochStart)).
			Msg("epoch finished")

		if epoch%t.cfg.EvalEvery != 0 && epoch != t.cfg.Epochs {
			continue
		}
		valid, err := evaluate.Evaluate(ctx, t.model, t.data.Valid, t.cfg.Eval)
		if err != nil {
			return nil, fmt.Errorf("validate epoch %d: %w", epoch, err)
		}
		metrics.RecordEvaluation("valid", valid)
		score := valid[t.cfg.ValidMetric]
		t.logger.Info().Int("epoch", epoch).Str("metrics", valid.String()).Msg("validation")

		if score > best {
			best, stale = score, 0
			res.BestEpoch, res.BestValid = epoch, valid
			bestParams = t.model.Params().Snapshot()
			version, err := t.checkpoint(ctx, epoch, valid, start)
			if err != nil {
				return nil, err
			}
			if version > 0 {
				res.CheckpointVersion = version
			}
			continue
		}
		stale++
		if t.cfg.StoppingStep > 0 && stale >= t.cfg.StoppingStep {
			res.StoppedEarly = true
			t.logger.Info().
				Int("epoch", epoch).
				Int("best_epoch", res.BestEpoch).
				Msg("early stopping")
			break
		}
	}

	if bestParams != nil {
		if err := t.model.Params().Load(bestParams); err != nil {
			return nil, fmt.Errorf("restore best parameters: %w", err)
		}
	}
	if len(t.data.Test) > 0 {
		test, err := evaluate.Evaluate(ctx, t.model, t.data.Test, t.cfg.Eval)
		if err != nil {
			return nil, fmt.Errorf("test: %w", err)
		}
		metrics.RecordEvaluation("test", test)
		res.Test = test
	}
	if t.store != nil {
		removed, err := t.store.Prune(ctx, t.cfg.CheckpointName, t.cfg.KeepCheckpoints)
		if err != nil {
			t.logger.Warn().Err(err).Msg("prune checkpoints")
		} else if removed > 0 {
			t.logger.Debug().Int("removed", removed).Msg("old checkpoints pruned")
		}
	}

	res.Duration = time.Since(start)
	t.logger.Info().
		Int("best_epoch", res.BestEpoch).
		Str("valid", res.BestValid.String()).
		Str("test", res.Test.String()).
		Dur("duration", res.Duration).
		Msg("training finished")
	return res, nil
}

// step runs one forward, backward and optimizer update and returns the loss.
func (t *Trainer) step(ctx context.Context, batch *recommend.Batch, opt *optim.Adam, rng *rand.Rand) (float64, error) {
	start := time.Now()
	opt.ZeroGrad()
	out, err := t.model.ComputeTrainingLoss(ctx, batch, nn.Training(rng))
	if err != nil {
		return 0, err
	}
	loss := out.Total.Item()
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, fmt.Errorf("loss %v: %w", loss, ErrDiverged)
	}
	if err := out.Total.Backward(); err != nil {
		return 0, fmt.Errorf("backward: %w", err)
	}
	norm := opt.Step()

	metrics.RecordTrainStep(time.Since(start), metrics.LossSample{
		Total:              loss,
		Primary:            out.Primary,
		Guidance:           out.Guidance,
		Free:               out.Free,
		GuidanceAlignment:  out.GuidanceDiag.Alignment,
		GuidanceUniformity: out.GuidanceDiag.Uniformity,
		FreeAlignment:      out.FreeDiag.Alignment,
		FreeUniformity:     out.FreeDiag.Uniformity,
	}, norm)
	return loss, nil
}

// checkpoint saves the current parameters as the next version and returns
// it, or 0 without a store.
func (t *Trainer) checkpoint(ctx context.Context, epoch int, valid evaluate.Metrics, runStart time.Time) (int, error) {
	if t.store == nil {
		return 0, nil
	}
	ckpt, err := storage.NewCheckpoint(t.model, t.data.Vocab.Items(), epoch, valid)
	if err != nil {
		return 0, err
	}
	version := 1
	if latest, ok := t.store.Latest(t.cfg.CheckpointName); ok {
		version = latest + 1
	}
	meta := storage.Metadata{
		RunID:              t.runID,
		TrainedAt:          time.Now(),
		TrainingDurationMS: time.Since(runStart).Milliseconds(),
	}
	if err := t.store.SaveCheckpoint(ctx, t.cfg.CheckpointName, version, ckpt, meta); err != nil {
		return 0, fmt.Errorf("save checkpoint: %w", err)
	}
	metrics.RecordCheckpoint()
	t.logger.Info().Int("epoch", epoch).Int("version", version).Msg("checkpoint saved")
	return version, nil
}
