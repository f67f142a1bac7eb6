// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

// Package optim provides the Adam optimizer used to train the recommender.
package optim

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/cclsrec/internal/autograd"
)

// AdamConfig holds the optimizer hyperparameters.
type AdamConfig struct {
	LearningRate float64 `koanf:"learning_rate" json:"learning_rate"`
	Beta1        float64 `koanf:"beta1" json:"beta1"`
	Beta2        float64 `koanf:"beta2" json:"beta2"`
	Epsilon      float64 `koanf:"epsilon" json:"epsilon"`

	// WeightDecay is decoupled (AdamW) decay. LayerNorm and bias parameters
	// are never decayed.
	WeightDecay float64 `koanf:"weight_decay" json:"weight_decay"`

	// GradClip rescales gradients whose global L2 norm exceeds it.
	// Zero disables clipping.
	GradClip float64 `koanf:"grad_clip" json:"grad_clip"`
}

// DefaultAdamConfig returns the defaults used for training.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		GradClip:     5,
	}
}

// Validate checks the configuration for errors.
func (c *AdamConfig) Validate() error {
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %g", c.LearningRate)
	}
	if c.Beta1 < 0 || c.Beta1 >= 1 {
		return fmt.Errorf("beta1 must be in [0, 1), got %g", c.Beta1)
	}
	if c.Beta2 < 0 || c.Beta2 >= 1 {
		return fmt.Errorf("beta2 must be in [0, 1), got %g", c.Beta2)
	}
	if c.Epsilon <= 0 {
		return fmt.Errorf("epsilon must be positive, got %g", c.Epsilon)
	}
	if c.WeightDecay < 0 {
		return fmt.Errorf("weight_decay must be non-negative, got %g", c.WeightDecay)
	}
	if c.GradClip < 0 {
		return fmt.Errorf("grad_clip must be non-negative, got %g", c.GradClip)
	}
	return nil
}

type moments struct {
	m, v  *mat.Dense
	decay bool
}

// Adam updates a fixed set of parameters in place.
type Adam struct {
	cfg    AdamConfig
	params []*autograd.Value
	state  map[*autograd.Value]*moments
	pinned map[*autograd.Value][]int
	step   int
}

// NewAdam creates an optimizer over params.
func NewAdam(params []*autograd.Value, cfg AdamConfig) (*Adam, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid optimizer config: %w", err)
	}
	a := &Adam{
		cfg:    cfg,
		params: params,
		state:  make(map[*autograd.Value]*moments, len(params)),
		pinned: make(map[*autograd.Value][]int),
	}
	for _, p := range params {
		r, c := p.Dims()
		a.state[p] = &moments{
			m:     mat.NewDense(r, c, nil),
			v:     mat.NewDense(r, c, nil),
			decay: decays(p.Name()),
		}
	}
	return a, nil
}

// decays reports whether weight decay applies to the named parameter.
func decays(name string) bool {
	return !strings.HasSuffix(name, ".bias") && !strings.Contains(name, "layer_norm")
}

// PinZeroRow keeps row of p at zero after every step. The item embedding
// pad row is pinned this way.
func (a *Adam) PinZeroRow(p *autograd.Value, row int) {
	a.pinned[p] = append(a.pinned[p], row)
	zeroRow(p.Data(), row)
}

// Steps returns the number of updates applied so far.
func (a *Adam) Steps() int { return a.step }

// SetLearningRate changes the learning rate for subsequent steps.
func (a *Adam) SetLearningRate(lr float64) { a.cfg.LearningRate = lr }

// LearningRate returns the current learning rate.
func (a *Adam) LearningRate() float64 { return a.cfg.LearningRate }

// GradNorm returns the global L2 norm of all gradients.
func (a *Adam) GradNorm() float64 {
	var sq float64
	for _, p := range a.params {
		if g := p.Grad(); g != nil {
			n := mat.Norm(g, 2)
			sq += n * n
		}
	}
	return math.Sqrt(sq)
}

// Step clips gradients if configured and applies one update. Parameters
// without a gradient are left untouched. It returns the gradient norm
// measured before clipping.
func (a *Adam) Step() float64 {
	norm := a.GradNorm()
	scale := 1.0
	if a.cfg.GradClip > 0 && norm > a.cfg.GradClip {
		scale = a.cfg.GradClip / (norm + 1e-6)
	}

	a.step++
	bc1 := 1 - math.Pow(a.cfg.Beta1, float64(a.step))
	bc2 := 1 - math.Pow(a.cfg.Beta2, float64(a.step))
	lr := a.cfg.LearningRate

	for _, p := range a.params {
		g := p.Grad()
		if g == nil {
			continue
		}
		st := a.state[p]
		w := p.Data().RawMatrix()
		gm := g.RawMatrix()
		mm := st.m.RawMatrix()
		vm := st.v.RawMatrix()
		for i := 0; i < w.Rows; i++ {
			wr := w.Data[i*w.Stride : i*w.Stride+w.Cols]
			gr := gm.Data[i*gm.Stride : i*gm.Stride+gm.Cols]
			mr := mm.Data[i*mm.Stride : i*mm.Stride+mm.Cols]
			vr := vm.Data[i*vm.Stride : i*vm.Stride+vm.Cols]
			for j := range wr {
				gj := gr[j] * scale
				mr[j] = a.cfg.Beta1*mr[j] + (1-a.cfg.Beta1)*gj
				vr[j] = a.cfg.Beta2*vr[j] + (1-a.cfg.Beta2)*gj*gj
				update := (mr[j] / bc1) / (math.Sqrt(vr[j]/bc2) + a.cfg.Epsilon)
				if st.decay && a.cfg.WeightDecay > 0 {
					update += a.cfg.WeightDecay * wr[j]
				}
				wr[j] -= lr * update
			}
		}
		for _, row := range a.pinned[p] {
			zeroRow(p.Data(), row)
		}
	}
	return norm
}

// ZeroGrad clears the gradients of every parameter.
func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		p.ZeroGrad()
	}
}

func zeroRow(m *mat.Dense, row int) {
	r := m.RawRowView(row)
	for j := range r {
		r[j] = 0
	}
}
