// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package autograd

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNotScalar is returned when Backward is called on a value that is not 1x1.
	ErrNotScalar = errors.New("autograd: backward requires a 1x1 value")

	// ErrNoGraph is returned when Backward is called on a value that does not
	// depend on any parameter.
	ErrNoGraph = errors.New("autograd: value does not depend on any parameter")
)

// Value is a node in the computation graph.
type Value struct {
	data     *mat.Dense
	grad     *mat.Dense
	name     string
	param    bool
	track    bool
	parents  []*Value
	backward func()
}

// New wraps data as a constant. The matrix is not copied.
func New(data *mat.Dense) *Value {
	return &Value{data: data}
}

// NewParam wraps data as a trainable parameter. The matrix is not copied, so
// optimizer updates applied to Data() are visible to later forward passes.
func NewParam(name string, data *mat.Dense) *Value {
	return &Value{data: data, name: name, param: true, track: true}
}

// Scalar returns a 1x1 constant.
func Scalar(x float64) *Value {
	return New(mat.NewDense(1, 1, []float64{x}))
}

// Data returns the underlying matrix.
func (v *Value) Data() *mat.Dense { return v.data }

// Grad returns the accumulated gradient, or nil if none has flowed into v.
func (v *Value) Grad() *mat.Dense { return v.grad }

// Name returns the parameter name; empty for intermediate values.
func (v *Value) Name() string { return v.name }

// IsParam reports whether v is a trainable leaf.
func (v *Value) IsParam() bool { return v.param }

// RequiresGrad reports whether gradients flow through v.
func (v *Value) RequiresGrad() bool { return v.track }

// Dims returns the number of rows and columns.
func (v *Value) Dims() (r, c int) { return v.data.Dims() }

// Item returns the single element of a 1x1 value.
func (v *Value) Item() float64 { return v.data.At(0, 0) }

// ZeroGrad drops the accumulated gradient.
func (v *Value) ZeroGrad() { v.grad = nil }

// Detach returns a constant sharing v's data.
func (v *Value) Detach() *Value { return New(v.data) }

// Backward accumulates d(v)/d(p) into every parameter p that v depends on.
func (v *Value) Backward() error {
	r, c := v.data.Dims()
	if r != 1 || c != 1 {
		return fmt.Errorf("%w: got %dx%d", ErrNotScalar, r, c)
	}
	if !v.track {
		return ErrNoGraph
	}

	order := topoSort(v)
	v.grad = mat.NewDense(1, 1, []float64{1})
	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]
		if node.backward != nil && node.grad != nil {
			node.backward()
		}
	}
	return nil
}

// topoSort returns the tracked ancestors of root, parents before children.
func topoSort(root *Value) []*Value {
	visited := make(map[*Value]bool)
	var order []*Value

	type frame struct {
		node *Value
		next int
	}
	stack := []frame{{node: root}}
	visited[root] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.node.parents) {
			p := top.node.parents[top.next]
			top.next++
			if p.track && !visited[p] {
				visited[p] = true
				stack = append(stack, frame{node: p})
			}
			continue
		}
		order = append(order, top.node)
		stack = stack[:len(stack)-1]
	}
	return order
}

// derive builds the result of an operation. back receives the output gradient
// and is only installed when some parent is tracked.
func derive(data *mat.Dense, back func(g *mat.Dense), parents ...*Value) *Value {
	out := &Value{data: data}
	for _, p := range parents {
		if p.track {
			out.track = true
			break
		}
	}
	if out.track {
		out.parents = parents
		out.backward = func() { back(out.grad) }
	}
	return out
}

// accumulate adds g into v's gradient.
func (v *Value) accumulate(g mat.Matrix) {
	if !v.track {
		return
	}
	if v.grad == nil {
		r, c := v.data.Dims()
		v.grad = mat.NewDense(r, c, nil)
	}
	v.grad.Add(v.grad, g)
}

// gradView returns a writable view of v's gradient, allocating it if needed.
// It returns nil for untracked values.
func (v *Value) gradView(r0, r1, c0, c1 int) *mat.Dense {
	if !v.track {
		return nil
	}
	if v.grad == nil {
		r, c := v.data.Dims()
		v.grad = mat.NewDense(r, c, nil)
	}
	return v.grad.Slice(r0, r1, c0, c1).(*mat.Dense)
}

func mustSameShape(op string, a, b *Value) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		panic(fmt.Sprintf("autograd: %s shape mismatch %dx%d vs %dx%d", op, ar, ac, br, bc))
	}
}
