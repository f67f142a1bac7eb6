// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package model

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/cclsrec/internal/autograd"
	"github.com/tomtom215/cclsrec/internal/recommend"
	"github.com/tomtom215/cclsrec/internal/recommend/nn"
)

func testConfig() recommend.ModelConfig {
	cfg := recommend.DefaultModelConfig()
	cfg.HiddenSize = 8
	cfg.NHeads = 2
	cfg.InnerSize = 16
	cfg.TrainBatchSize = 4
	cfg.AugmentWorkers = 2
	return cfg
}

var testInfo = recommend.DataInfo{NItems: 50, MaxSeqLength: 10}

func newTestModel(t *testing.T, cfg recommend.ModelConfig) *Model {
	t.Helper()
	m, err := New(cfg, testInfo, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}

// testBatch returns four sequences of five real items padded to ten.
func testBatch() *recommend.Batch {
	rng := rand.New(rand.NewSource(2))
	b := &recommend.Batch{}
	for i := 0; i < 4; i++ {
		row := make([]int, testInfo.MaxSeqLength)
		for j := 0; j < 5; j++ {
			row[j] = 1 + rng.Intn(testInfo.NItems-1)
		}
		b.ItemSeq = append(b.ItemSeq, row)
		b.ItemSeqLen = append(b.ItemSeqLen, 5)
		b.PosItems = append(b.PosItems, 1+rng.Intn(testInfo.NItems-1))
		b.NegItems = append(b.NegItems, 1+rng.Intn(testInfo.NItems-1))
	}
	return b
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

func TestNew(t *testing.T) {
	m := newTestModel(t, testConfig())

	table := m.ItemEmbeddings().Data()
	if r, c := table.Dims(); r != 50 || c != 8 {
		t.Fatalf("item table dims = %dx%d, want 50x8", r, c)
	}
	for j := 0; j < 8; j++ {
		if table.At(recommend.PadID, j) != 0 {
			t.Errorf("pad row entry %d = %g, want 0", j, table.At(0, j))
		}
	}
	for _, name := range []string{
		"item_embedding.weight",
		"position_embedding.weight",
		"layer_norm.weight",
		"trm_encoder.layer.1.attention.key.weight",
		"trm_encoder_free.layer.0.feed_forward.dense_1.weight",
	} {
		if m.Params().Get(name) == nil {
			t.Errorf("parameter %q missing", name)
		}
	}
	if got := m.Info(); got != testInfo {
		t.Errorf("Info() = %+v, want %+v", got, testInfo)
	}
}

func TestNewErrors(t *testing.T) {
	cfg := testConfig()
	cfg.LossType = "MSE"
	if _, err := New(cfg, testInfo, rand.New(rand.NewSource(1))); !errors.Is(err, recommend.ErrUnsupportedLossType) {
		t.Errorf("New() error = %v, want ErrUnsupportedLossType", err)
	}
	cfg = testConfig()
	cfg.Sim = "l2"
	if _, err := New(cfg, testInfo, rand.New(rand.NewSource(1))); !errors.Is(err, recommend.ErrUnsupportedSimilarity) {
		t.Errorf("New() error = %v, want ErrUnsupportedSimilarity", err)
	}
	if _, err := New(testConfig(), testInfo, nil); !errors.Is(err, recommend.ErrNoRandomSource) {
		t.Errorf("New() error = %v, want ErrNoRandomSource", err)
	}
	if _, err := New(testConfig(), recommend.DataInfo{NItems: 1, MaxSeqLength: 5}, rand.New(rand.NewSource(1))); err == nil {
		t.Error("New() with a single item should fail")
	}
}

func TestNewIsReproducible(t *testing.T) {
	a := newTestModel(t, testConfig())
	b := newTestModel(t, testConfig())
	snapA, snapB := a.Params().Snapshot(), b.Params().Snapshot()
	for name, wa := range snapA {
		if !mat.Equal(wa, snapB[name]) {
			t.Errorf("parameter %q differs between models built from the same seed", name)
		}
	}
}

func TestEndToEnd(t *testing.T) {
	m := newTestModel(t, testConfig())
	batch := testBatch()

	out, err := m.ComputeTrainingLoss(context.Background(), batch, nn.Training(rand.New(rand.NewSource(3))))
	if err != nil {
		t.Fatalf("ComputeTrainingLoss() error = %v", err)
	}
	for name, v := range map[string]float64{"primary": out.Primary, "guidance": out.Guidance, "free": out.Free} {
		if !finite(v) || v < 0 {
			t.Errorf("%s loss = %v, want finite and non-negative", name, v)
		}
	}
	want := out.Primary + 0.1*out.Guidance + 0.1*out.Free
	if math.Abs(out.Total.Item()-want) > 1e-12 {
		t.Errorf("Total = %v, want %v", out.Total.Item(), want)
	}
	for name, d := range map[string]float64{
		"guidance alignment":  out.GuidanceDiag.Alignment,
		"guidance uniformity": out.GuidanceDiag.Uniformity,
		"free alignment":      out.FreeDiag.Alignment,
		"free uniformity":     out.FreeDiag.Uniformity,
	} {
		if !finite(d) || d < 0 {
			t.Errorf("%s = %v, want finite and non-negative", name, d)
		}
	}
	if out.GuidanceDiag.Uniformity <= 0 {
		t.Errorf("guidance uniformity = %v, want > 0", out.GuidanceDiag.Uniformity)
	}

	if err := out.Total.Backward(); err != nil {
		t.Fatalf("Backward() error = %v", err)
	}
	for _, name := range []string{
		"item_embedding.weight",
		"position_embedding.weight",
		"trm_encoder.layer.0.attention.query.weight",
		"trm_encoder_free.layer.0.attention.query.weight",
	} {
		if m.Params().Get(name).Grad() == nil {
			t.Errorf("parameter %q received no gradient", name)
		}
	}

	scores, err := m.PredictFullCatalog(batch)
	if err != nil {
		t.Fatalf("PredictFullCatalog() error = %v", err)
	}
	if r, c := scores.Dims(); r != 4 || c != 50 {
		t.Fatalf("scores dims = %dx%d, want 4x50", r, c)
	}
	for _, v := range scores.RawMatrix().Data {
		if !finite(v) {
			t.Fatalf("score %v is not finite", v)
		}
	}
}

func TestBPRLoss(t *testing.T) {
	cfg := testConfig()
	cfg.LossType = recommend.LossBPR
	m := newTestModel(t, cfg)
	batch := testBatch()

	out, err := m.ComputeTrainingLoss(context.Background(), batch, nn.Training(rand.New(rand.NewSource(3))))
	if err != nil {
		t.Fatalf("ComputeTrainingLoss() error = %v", err)
	}
	if !finite(out.Primary) || out.Primary < 0 {
		t.Errorf("BPR loss = %v, want finite and non-negative", out.Primary)
	}

	batch.NegItems = nil
	if _, err := m.ComputeTrainingLoss(context.Background(), batch, nn.Training(rand.New(rand.NewSource(3)))); !errors.Is(err, recommend.ErrMissingNegatives) {
		t.Errorf("ComputeTrainingLoss() without negatives error = %v, want ErrMissingNegatives", err)
	}
}

func TestCosineSimilarityAndPartialBatch(t *testing.T) {
	cfg := testConfig()
	cfg.Sim = recommend.SimilarityCosine
	m := newTestModel(t, cfg)
	batch := testBatch()
	batch.ItemSeq = batch.ItemSeq[:3]
	batch.ItemSeqLen = batch.ItemSeqLen[:3]
	batch.PosItems = batch.PosItems[:3]
	batch.NegItems = batch.NegItems[:3]

	out, err := m.ComputeTrainingLoss(context.Background(), batch, nn.Training(rand.New(rand.NewSource(4))))
	if err != nil {
		t.Fatalf("ComputeTrainingLoss() error = %v", err)
	}
	if !finite(out.Guidance) || !finite(out.Free) {
		t.Errorf("contrastive losses = %v, %v, want finite", out.Guidance, out.Free)
	}
}

func TestComputeTrainingLossErrors(t *testing.T) {
	m := newTestModel(t, testConfig())

	if _, err := m.ComputeTrainingLoss(context.Background(), testBatch(), nn.Eval()); !errors.Is(err, recommend.ErrNoRandomSource) {
		t.Errorf("error = %v, want ErrNoRandomSource", err)
	}

	batch := testBatch()
	batch.ItemSeqLen[1] = 11
	if _, err := m.ComputeTrainingLoss(context.Background(), batch, nn.Training(rand.New(rand.NewSource(1)))); !errors.Is(err, recommend.ErrSequenceLength) {
		t.Errorf("error = %v, want ErrSequenceLength", err)
	}

	batch = testBatch()
	batch.PosItems = nil
	if _, err := m.ComputeTrainingLoss(context.Background(), batch, nn.Training(rand.New(rand.NewSource(1)))); !errors.Is(err, recommend.ErrShapeMismatch) {
		t.Errorf("error = %v, want ErrShapeMismatch", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.ComputeTrainingLoss(ctx, testBatch(), nn.Training(rand.New(rand.NewSource(1)))); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestEncodeMaskedDeterministic(t *testing.T) {
	m := newTestModel(t, testConfig())
	batch := testBatch()

	a, err := m.EncodeMasked(batch, nn.Eval())
	if err != nil {
		t.Fatalf("EncodeMasked() error = %v", err)
	}
	b, err := m.EncodeMasked(batch, nn.Eval())
	if err != nil {
		t.Fatalf("EncodeMasked() error = %v", err)
	}
	if !mat.Equal(a.Data(), b.Data()) {
		t.Error("eval EncodeMasked is not deterministic")
	}
	if r, c := a.Dims(); r != 4 || c != 8 {
		t.Errorf("representation dims = %dx%d, want 4x8", r, c)
	}

	c, _ := m.EncodeMasked(batch, nn.Training(rand.New(rand.NewSource(5))))
	d, _ := m.EncodeMasked(batch, nn.Training(rand.New(rand.NewSource(5))))
	if !mat.Equal(c.Data(), d.Data()) {
		t.Error("train EncodeMasked with equal seeds differs")
	}
}

func TestEncodeFreeIgnoresTrailingContent(t *testing.T) {
	m := newTestModel(t, testConfig())
	items := [][]int{{3, 4, 5, 0, 0, 0, 0, 0, 0, 0}}

	a, err := m.EncodeFree(items, []int{2}, nn.Eval())
	if err != nil {
		t.Fatalf("EncodeFree() error = %v", err)
	}
	// The free encoder sees later real items, so changing one moves the
	// representation gathered at an earlier position.
	b, err := m.EncodeFree([][]int{{3, 4, 9, 0, 0, 0, 0, 0, 0, 0}}, []int{2}, nn.Eval())
	if err != nil {
		t.Fatalf("EncodeFree() error = %v", err)
	}
	if mat.EqualApprox(a.Data(), b.Data(), 1e-15) {
		t.Error("free encoder representation ignores a later real item")
	}
}

func TestPredictSingleMatchesFullCatalog(t *testing.T) {
	for _, norm := range []recommend.ScoreNorm{recommend.ScoreNormGlobal, recommend.ScoreNormRow} {
		t.Run(string(norm), func(t *testing.T) {
			cfg := testConfig()
			cfg.ScoreNorm = norm
			cfg.Tao = 0.5
			m := newTestModel(t, cfg)
			batch := testBatch()

			full, err := m.PredictFullCatalog(batch)
			if err != nil {
				t.Fatalf("PredictFullCatalog() error = %v", err)
			}
			batch.ItemIDs = make([]int, batch.Size())
			for b := range batch.ItemIDs {
				best := 1
				for c := 2; c < testInfo.NItems; c++ {
					if full.At(b, c) > full.At(b, best) {
						best = c
					}
				}
				batch.ItemIDs[b] = best
			}
			single, err := m.PredictSingle(batch)
			if err != nil {
				t.Fatalf("PredictSingle() error = %v", err)
			}

			// Global normalization divides candidates by the norm of the
			// candidate batch instead of the whole table.
			factor := 1.0
			if norm == recommend.ScoreNormGlobal {
				cand := autograd.GatherRows(m.ItemEmbeddings(), batch.ItemIDs).Data()
				factor = mat.Norm(m.ItemEmbeddings().Data(), 2) / mat.Norm(cand, 2)
			}
			for b, id := range batch.ItemIDs {
				want := full.At(b, id) * factor
				if math.Abs(single[b]-want) > 1e-9*math.Max(1, math.Abs(want)) {
					t.Errorf("sequence %d: PredictSingle = %v, want %v", b, single[b], want)
				}
			}
		})
	}
}

func TestGatherLast(t *testing.T) {
	hidden := autograd.New(mat.NewDense(6, 1, []float64{0, 1, 2, 3, 4, 5}))
	got, err := GatherLast(hidden, 3, []int{2, 3})
	if err != nil {
		t.Fatalf("GatherLast() error = %v", err)
	}
	if got.Data().At(0, 0) != 1 || got.Data().At(1, 0) != 5 {
		t.Errorf("GatherLast() = %v, want [1 5]", mat.Formatted(got.Data()))
	}

	for _, lens := range [][]int{{0, 1}, {4, 1}} {
		if _, err := GatherLast(hidden, 3, lens); !errors.Is(err, recommend.ErrSequenceLength) {
			t.Errorf("GatherLast(%v) error = %v, want ErrSequenceLength", lens, err)
		}
	}
	if _, err := GatherLast(hidden, 3, []int{1}); !errors.Is(err, recommend.ErrShapeMismatch) {
		t.Errorf("GatherLast() with wrong batch error = %v, want ErrShapeMismatch", err)
	}
}

func TestPredictSingleRequiresCandidates(t *testing.T) {
	m := newTestModel(t, testConfig())
	if _, err := m.PredictSingle(testBatch()); !errors.Is(err, recommend.ErrShapeMismatch) {
		t.Errorf("PredictSingle() error = %v, want ErrShapeMismatch", err)
	}
}
