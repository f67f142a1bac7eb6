// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package nn

import (
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/cclsrec/internal/autograd"
)

// Params is an ordered, named collection of trainable parameters.
type Params struct {
	values []*autograd.Value
	index  map[string]*autograd.Value
}

// NewParams returns an empty collection.
func NewParams() *Params {
	return &Params{index: make(map[string]*autograd.Value)}
}

// Add registers a new parameter. Registering a name twice panics.
func (p *Params) Add(name string, data *mat.Dense) *autograd.Value {
	if _, dup := p.index[name]; dup {
		panic(fmt.Sprintf("nn: duplicate parameter %q", name))
	}
	v := autograd.NewParam(name, data)
	p.values = append(p.values, v)
	p.index[name] = v
	return v
}

// Get returns the parameter with the given name, or nil.
func (p *Params) Get(name string) *autograd.Value { return p.index[name] }

// All returns the parameters in registration order.
func (p *Params) All() []*autograd.Value { return p.values }

// Names returns the parameter names in registration order.
func (p *Params) Names() []string {
	names := make([]string, len(p.values))
	for i, v := range p.values {
		names[i] = v.Name()
	}
	return names
}

// NumElements returns the total number of scalar weights.
func (p *Params) NumElements() int {
	n := 0
	for _, v := range p.values {
		r, c := v.Dims()
		n += r * c
	}
	return n
}

// ZeroGrad clears every gradient.
func (p *Params) ZeroGrad() {
	for _, v := range p.values {
		v.ZeroGrad()
	}
}

// Snapshot returns copies of every parameter matrix keyed by name.
func (p *Params) Snapshot() map[string]*mat.Dense {
	out := make(map[string]*mat.Dense, len(p.values))
	for _, v := range p.values {
		out[v.Name()] = mat.DenseCopyOf(v.Data())
	}
	return out
}

// Load copies src into the registered parameters. Every registered name must
// be present with a matching shape and src may not carry unknown names.
func (p *Params) Load(src map[string]*mat.Dense) error {
	var unknown []string
	for name := range src {
		if _, ok := p.index[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown parameters %v", unknown)
	}
	for _, v := range p.values {
		m, ok := src[v.Name()]
		if !ok {
			return fmt.Errorf("missing parameter %q", v.Name())
		}
		r, c := v.Dims()
		mr, mc := m.Dims()
		if r != mr || c != mc {
			return fmt.Errorf("parameter %q has shape %dx%d, want %dx%d", v.Name(), mr, mc, r, c)
		}
	}
	for _, v := range p.values {
		v.Data().Copy(src[v.Name()])
	}
	return nil
}

// Initializer draws initial weights from a seeded Gaussian.
type Initializer struct {
	Std float64
	RNG *rand.Rand
}

// Normal returns an r x c matrix of N(0, Std²) draws.
func (i Initializer) Normal(r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for k := range data {
		data[k] = i.RNG.NormFloat64() * i.Std
	}
	return mat.NewDense(r, c, data)
}

// Zeros returns an r x c zero matrix.
func Zeros(r, c int) *mat.Dense { return mat.NewDense(r, c, nil) }

// Ones returns an r x c matrix of ones.
func Ones(r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for k := range data {
		data[k] = 1
	}
	return mat.NewDense(r, c, data)
}
