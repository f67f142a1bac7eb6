// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package optim

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/cclsrec/internal/autograd"
)

func TestAdamMinimizesQuadratic(t *testing.T) {
	p := autograd.NewParam("w", mat.NewDense(1, 2, []float64{3, -2}))
	target := autograd.New(mat.NewDense(1, 2, []float64{1, 1}))

	cfg := DefaultAdamConfig()
	cfg.LearningRate = 0.1
	opt, err := NewAdam([]*autograd.Value{p}, cfg)
	if err != nil {
		t.Fatalf("NewAdam() error = %v", err)
	}
	for i := 0; i < 500; i++ {
		opt.ZeroGrad()
		d := autograd.Sub(p, target)
		loss := autograd.Sum(autograd.Mul(d, d))
		if err := loss.Backward(); err != nil {
			t.Fatalf("Backward() error = %v", err)
		}
		opt.Step()
	}
	for j, want := range []float64{1, 1} {
		if got := p.Data().At(0, j); math.Abs(got-want) > 1e-2 {
			t.Errorf("w[%d] = %v, want about %v", j, got, want)
		}
	}
	if opt.Steps() != 500 {
		t.Errorf("Steps() = %d, want 500", opt.Steps())
	}
}

func TestAdamFirstStepSize(t *testing.T) {
	// With bias correction the first update is lr * sign(g).
	p := autograd.NewParam("w", mat.NewDense(1, 2, []float64{0, 0}))
	cfg := DefaultAdamConfig()
	cfg.GradClip = 0
	opt, err := NewAdam([]*autograd.Value{p}, cfg)
	if err != nil {
		t.Fatalf("NewAdam() error = %v", err)
	}
	coef := autograd.New(mat.NewDense(1, 2, []float64{4, -0.5}))
	if err := autograd.Sum(autograd.Mul(p, coef)).Backward(); err != nil {
		t.Fatalf("Backward() error = %v", err)
	}
	opt.Step()
	for j, want := range []float64{-0.001, 0.001} {
		if got := p.Data().At(0, j); math.Abs(got-want) > 1e-9 {
			t.Errorf("w[%d] = %v, want %v", j, got, want)
		}
	}
}

func TestAdamGradClip(t *testing.T) {
	p := autograd.NewParam("w", mat.NewDense(1, 2, []float64{0, 0}))
	cfg := DefaultAdamConfig()
	cfg.GradClip = 1
	opt, err := NewAdam([]*autograd.Value{p}, cfg)
	if err != nil {
		t.Fatalf("NewAdam() error = %v", err)
	}
	coef := autograd.New(mat.NewDense(1, 2, []float64{30, 40}))
	if err := autograd.Sum(autograd.Mul(p, coef)).Backward(); err != nil {
		t.Fatalf("Backward() error = %v", err)
	}
	if norm := opt.Step(); math.Abs(norm-50) > 1e-9 {
		t.Errorf("Step() norm = %v, want 50", norm)
	}
}

func TestAdamWeightDecayAndPinnedRows(t *testing.T) {
	weight := autograd.NewParam("proj.weight", mat.NewDense(2, 1, []float64{1, 1}))
	bias := autograd.NewParam("proj.bias", mat.NewDense(1, 1, []float64{1}))
	norm := autograd.NewParam("layer_norm.weight", mat.NewDense(1, 1, []float64{1}))

	cfg := DefaultAdamConfig()
	cfg.WeightDecay = 0.5
	opt, err := NewAdam([]*autograd.Value{weight, bias, norm}, cfg)
	if err != nil {
		t.Fatalf("NewAdam() error = %v", err)
	}
	opt.PinZeroRow(weight, 0)
	if weight.Data().At(0, 0) != 0 {
		t.Fatal("PinZeroRow() did not zero the row")
	}

	// Zero gradients isolate the effect of weight decay.
	for _, p := range []*autograd.Value{weight, bias, norm} {
		if err := autograd.Sum(autograd.Scale(p, 0)).Backward(); err != nil {
			t.Fatalf("Backward() error = %v", err)
		}
	}
	opt.Step()

	if got, want := weight.Data().At(1, 0), 1-0.001*0.5; math.Abs(got-want) > 1e-12 {
		t.Errorf("decayed weight = %v, want %v", got, want)
	}
	if weight.Data().At(0, 0) != 0 {
		t.Errorf("pinned row = %v, want 0", weight.Data().At(0, 0))
	}
	if bias.Data().At(0, 0) != 1 || norm.Data().At(0, 0) != 1 {
		t.Errorf("bias and layer norm were decayed: %v, %v", bias.Data().At(0, 0), norm.Data().At(0, 0))
	}
}

func TestAdamConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*AdamConfig)
	}{
		{"zero lr", func(c *AdamConfig) { c.LearningRate = 0 }},
		{"beta1", func(c *AdamConfig) { c.Beta1 = 1 }},
		{"beta2", func(c *AdamConfig) { c.Beta2 = -0.1 }},
		{"epsilon", func(c *AdamConfig) { c.Epsilon = 0 }},
		{"decay", func(c *AdamConfig) { c.WeightDecay = -1 }},
		{"clip", func(c *AdamConfig) { c.GradClip = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultAdamConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() error = nil, want error")
			}
		})
	}
	cfg := DefaultAdamConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config Validate() error = %v", err)
	}
}
