// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package trainer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/cclsrec/internal/recommend"
	"github.com/tomtom215/cclsrec/internal/recommend/dataset"
	"github.com/tomtom215/cclsrec/internal/recommend/evaluate"
	"github.com/tomtom215/cclsrec/internal/recommend/model"
	"github.com/tomtom215/cclsrec/internal/recommend/storage"
)

// testData builds 12 users walking a ring of 10 items from different
// starting points.
func testData(t *testing.T) *dataset.Dataset {
	t.Helper()
	var in []dataset.Interaction
	for u := 0; u < 12; u++ {
		for step := 0; step < 8; step++ {
			in = append(in, dataset.Interaction{
				UserID:    fmt.Sprintf("u%02d", u),
				ItemID:    fmt.Sprintf("i%d", (u+step)%10),
				Timestamp: float64(step),
			})
		}
	}
	d, err := dataset.Build(in, dataset.Options{MaxSeqLength: 5, MinUserInteractions: 1, MinItemInteractions: 1})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return d
}

func testModel(t *testing.T, info recommend.DataInfo, loss recommend.LossType) *model.Model {
	t.Helper()
	cfg := recommend.DefaultModelConfig()
	cfg.NLayers = 1
	cfg.HiddenSize = 8
	cfg.InnerSize = 16
	cfg.TrainBatchSize = 16
	cfg.AugmentWorkers = 2
	cfg.LossType = loss
	m, err := model.New(cfg, info, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("model.New() error = %v", err)
	}
	return m
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Epochs = 2
	cfg.TrainBatchSize = 16
	cfg.StoppingStep = 0
	cfg.ValidMetric = evaluate.Key("hit", 5)
	cfg.Eval = evaluate.Options{Ks: []int{5}, BatchSize: 8}
	cfg.Optimizer.LearningRate = 0.01
	return cfg
}

func TestRun(t *testing.T) {
	for _, loss := range []recommend.LossType{recommend.LossCE, recommend.LossBPR} {
		t.Run(string(loss), func(t *testing.T) {
			data := testData(t)
			store, err := storage.NewStore(t.TempDir())
			if err != nil {
				t.Fatalf("NewStore() error = %v", err)
			}
			m := testModel(t, data.Info, loss)
			before := m.Params().Snapshot()

			tr, err := New(testConfig(), m, data, store, "run1", zerolog.Nop())
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			res, err := tr.Run(context.Background())
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			// 60 train examples in batches of 16.
			if res.Epochs != 2 || res.Steps != 8 || res.StoppedEarly {
				t.Errorf("Result = %+v, want 2 epochs of 4 steps", res)
			}
			if res.BestEpoch < 1 || res.BestEpoch > 2 {
				t.Errorf("BestEpoch = %d", res.BestEpoch)
			}
			for _, metrics := range []evaluate.Metrics{res.BestValid, res.Test} {
				hit, ok := metrics["hit@5"]
				if !ok || hit < 0 || hit > 1 || math.IsNaN(hit) {
					t.Errorf("hit@5 = %v (present %v)", hit, ok)
				}
			}

			latest, ok := store.Latest("cclsrec")
			if !ok || latest != res.CheckpointVersion {
				t.Errorf("store latest = %d, %v; result version %d", latest, ok, res.CheckpointVersion)
			}
			ckpt, meta, err := store.LoadCheckpoint(context.Background(), "cclsrec", 0)
			if err != nil {
				t.Fatalf("LoadCheckpoint() error = %v", err)
			}
			if meta.RunID != "run1" || ckpt.Epoch != res.BestEpoch {
				t.Errorf("checkpoint run %q epoch %d, want run1 epoch %d", meta.RunID, ckpt.Epoch, res.BestEpoch)
			}

			changed := false
			for name, after := range m.Params().Snapshot() {
				if !matEqual(before[name].RawMatrix().Data, after.RawMatrix().Data) {
					changed = true
				}
			}
			if !changed {
				t.Error("training did not change any parameter")
			}
			pad := m.ItemEmbeddings().Data().RawRowView(recommend.PadID)
			for _, v := range pad {
				if v != 0 {
					t.Fatalf("pad embedding row = %v, want zeros", pad)
				}
			}
		})
	}
}

func matEqual(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRunEarlyStopping(t *testing.T) {
	data := testData(t)
	cfg := testConfig()
	cfg.Epochs = 5
	cfg.StoppingStep = 1

	tr, err := New(cfg, testModel(t, data.Info, recommend.LossCE), data, nil, "run2", zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	res, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.StoppedEarly {
		if res.Epochs-res.BestEpoch != 1 {
			t.Errorf("stopped at epoch %d with best %d, want one stale validation", res.Epochs, res.BestEpoch)
		}
	} else if res.Epochs != 5 {
		t.Errorf("Epochs = %d without early stop, want 5", res.Epochs)
	}
	if res.CheckpointVersion != 0 {
		t.Errorf("CheckpointVersion = %d without a store, want 0", res.CheckpointVersion)
	}
}

func TestRunCancelled(t *testing.T) {
	data := testData(t)
	tr, err := New(testConfig(), testModel(t, data.Info, recommend.LossCE), data, nil, "run3", zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tr.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestNewErrors(t *testing.T) {
	data := testData(t)
	m := testModel(t, data.Info, recommend.LossCE)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"metric not evaluated", func(c *Config) { c.ValidMetric = "ndcg@10" }},
		{"zero epochs", func(c *Config) { c.Epochs = 0 }},
		{"zero eval interval", func(c *Config) { c.EvalEvery = 0 }},
		{"bad optimizer", func(c *Config) { c.Optimizer.LearningRate = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			if _, err := New(cfg, m, data, nil, "r", zerolog.Nop()); err == nil {
				t.Error("New() should fail")
			}
		})
	}

	other := testModel(t, recommend.DataInfo{NItems: data.Info.NItems + 1, MaxSeqLength: 5}, recommend.LossCE)
	if _, err := New(testConfig(), other, data, nil, "r", zerolog.Nop()); !errors.Is(err, recommend.ErrShapeMismatch) {
		t.Errorf("New() with mismatched model error = %v, want ErrShapeMismatch", err)
	}
}
