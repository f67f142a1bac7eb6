// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package autograd

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Add returns a + b.
func Add(a, b *Value) *Value {
	mustSameShape("Add", a, b)
	var out mat.Dense
	out.Add(a.data, b.data)
	return derive(&out, func(g *mat.Dense) {
		a.accumulate(g)
		b.accumulate(g)
	}, a, b)
}

// Sub returns a - b.
func Sub(a, b *Value) *Value {
	mustSameShape("Sub", a, b)
	var out mat.Dense
	out.Sub(a.data, b.data)
	return derive(&out, func(g *mat.Dense) {
		a.accumulate(g)
		if b.track {
			var neg mat.Dense
			neg.Scale(-1, g)
			b.accumulate(&neg)
		}
	}, a, b)
}

// AddRowVector adds the 1xC row vector v to every row of a.
func AddRowVector(a, v *Value) *Value {
	r, c := a.Dims()
	vr, vc := v.Dims()
	if vr != 1 || vc != c {
		panic(fmt.Sprintf("autograd: AddRowVector expects 1x%d, got %dx%d", c, vr, vc))
	}
	out := mat.NewDense(r, c, nil)
	row := v.data.RawRowView(0)
	for i := 0; i < r; i++ {
		dst := out.RawRowView(i)
		src := a.data.RawRowView(i)
		for j := range dst {
			dst[j] = src[j] + row[j]
		}
	}
	return derive(out, func(g *mat.Dense) {
		a.accumulate(g)
		if v.track {
			v.accumulate(columnSums(g))
		}
	}, a, v)
}

// Mul returns the element-wise product of a and b.
func Mul(a, b *Value) *Value {
	mustSameShape("Mul", a, b)
	var out mat.Dense
	out.MulElem(a.data, b.data)
	return derive(&out, func(g *mat.Dense) {
		if a.track {
			var ga mat.Dense
			ga.MulElem(g, b.data)
			a.accumulate(&ga)
		}
		if b.track {
			var gb mat.Dense
			gb.MulElem(g, a.data)
			b.accumulate(&gb)
		}
	}, a, b)
}

// Scale returns s * a.
func Scale(a *Value, s float64) *Value {
	var out mat.Dense
	out.Scale(s, a.data)
	return derive(&out, func(g *mat.Dense) {
		var ga mat.Dense
		ga.Scale(s, g)
		a.accumulate(&ga)
	}, a)
}

// MatMul returns the matrix product a·b.
func MatMul(a, b *Value) *Value {
	var out mat.Dense
	out.Mul(a.data, b.data)
	return derive(&out, func(g *mat.Dense) {
		if a.track {
			var ga mat.Dense
			ga.Mul(g, b.data.T())
			a.accumulate(&ga)
		}
		if b.track {
			var gb mat.Dense
			gb.Mul(a.data.T(), g)
			b.accumulate(&gb)
		}
	}, a, b)
}

// MatMulT returns a·bᵀ.
func MatMulT(a, b *Value) *Value {
	var out mat.Dense
	out.Mul(a.data, b.data.T())
	return derive(&out, func(g *mat.Dense) {
		if a.track {
			var ga mat.Dense
			ga.Mul(g, b.data)
			a.accumulate(&ga)
		}
		if b.track {
			var gb mat.Dense
			gb.Mul(g.T(), a.data)
			b.accumulate(&gb)
		}
	}, a, b)
}

// Transpose returns aᵀ.
func Transpose(a *Value) *Value {
	out := mat.DenseCopyOf(a.data.T())
	return derive(out, func(g *mat.Dense) {
		a.accumulate(g.T())
	}, a)
}

// SliceRows returns rows [r0, r1) of a.
func SliceRows(a *Value, r0, r1 int) *Value {
	_, c := a.Dims()
	out := mat.DenseCopyOf(a.data.Slice(r0, r1, 0, c))
	return derive(out, func(g *mat.Dense) {
		view := a.gradView(r0, r1, 0, c)
		view.Add(view, g)
	}, a)
}

// SliceCols returns columns [c0, c1) of a.
func SliceCols(a *Value, c0, c1 int) *Value {
	r, _ := a.Dims()
	out := mat.DenseCopyOf(a.data.Slice(0, r, c0, c1))
	return derive(out, func(g *mat.Dense) {
		view := a.gradView(0, r, c0, c1)
		view.Add(view, g)
	}, a)
}

// ConcatRows stacks values vertically. All values must share a column count.
func ConcatRows(vs ...*Value) *Value {
	if len(vs) == 0 {
		panic("autograd: ConcatRows of nothing")
	}
	_, c := vs[0].Dims()
	rows := 0
	for _, v := range vs {
		vr, vc := v.Dims()
		if vc != c {
			panic(fmt.Sprintf("autograd: ConcatRows column mismatch %d vs %d", vc, c))
		}
		rows += vr
	}
	out := mat.NewDense(rows, c, nil)
	offset := 0
	for _, v := range vs {
		vr, _ := v.Dims()
		out.Slice(offset, offset+vr, 0, c).(*mat.Dense).Copy(v.data)
		offset += vr
	}
	return derive(out, func(g *mat.Dense) {
		offset := 0
		for _, v := range vs {
			vr, _ := v.Dims()
			v.accumulate(g.Slice(offset, offset+vr, 0, c))
			offset += vr
		}
	}, vs...)
}

// ConcatCols joins values horizontally. All values must share a row count.
func ConcatCols(vs ...*Value) *Value {
	if len(vs) == 0 {
		panic("autograd: ConcatCols of nothing")
	}
	r, _ := vs[0].Dims()
	cols := 0
	for _, v := range vs {
		vr, vc := v.Dims()
		if vr != r {
			panic(fmt.Sprintf("autograd: ConcatCols row mismatch %d vs %d", vr, r))
		}
		cols += vc
	}
	out := mat.NewDense(r, cols, nil)
	offset := 0
	for _, v := range vs {
		_, vc := v.Dims()
		out.Slice(0, r, offset, offset+vc).(*mat.Dense).Copy(v.data)
		offset += vc
	}
	return derive(out, func(g *mat.Dense) {
		offset := 0
		for _, v := range vs {
			_, vc := v.Dims()
			v.accumulate(g.Slice(0, r, offset, offset+vc))
			offset += vc
		}
	}, vs...)
}

// GatherRows returns the rows of a selected by idx, in order. Repeated
// indices are allowed; their gradients add up.
func GatherRows(a *Value, idx []int) *Value {
	return gatherRows(a, idx, -1)
}

// Lookup is an embedding lookup: like GatherRows, except that rows for pad
// are zero and never receive gradient, whatever the table holds.
func Lookup(table *Value, ids []int, pad int) *Value {
	return gatherRows(table, ids, pad)
}

func gatherRows(a *Value, idx []int, skip int) *Value {
	ar, c := a.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, k := range idx {
		if k < 0 || k >= ar {
			panic(fmt.Sprintf("autograd: row index %d out of range [0,%d)", k, ar))
		}
		if k == skip {
			continue
		}
		copy(out.RawRowView(i), a.data.RawRowView(k))
	}
	return derive(out, func(g *mat.Dense) {
		for i, k := range idx {
			if k == skip {
				continue
			}
			dst := a.gradView(k, k+1, 0, c).RawRowView(0)
			for j, x := range g.RawRowView(i) {
				dst[j] += x
			}
		}
	}, a)
}

// GatherEntries picks, for every row r, the columns index[r] of a. All index
// rows must have the same length k; the result is len(index) x k.
func GatherEntries(a *Value, index [][]int) *Value {
	if len(index) == 0 {
		panic("autograd: GatherEntries with no rows")
	}
	ar, ac := a.Dims()
	if len(index) != ar {
		panic(fmt.Sprintf("autograd: GatherEntries wants %d index rows, got %d", ar, len(index)))
	}
	k := len(index[0])
	out := mat.NewDense(ar, k, nil)
	for r, cols := range index {
		if len(cols) != k {
			panic(fmt.Sprintf("autograd: GatherEntries ragged index row %d", r))
		}
		src := a.data.RawRowView(r)
		dst := out.RawRowView(r)
		for j, col := range cols {
			if col < 0 || col >= ac {
				panic(fmt.Sprintf("autograd: column index %d out of range [0,%d)", col, ac))
			}
			dst[j] = src[col]
		}
	}
	return derive(out, func(g *mat.Dense) {
		for r, cols := range index {
			dst := a.gradView(r, r+1, 0, ac).RawRowView(0)
			for j, col := range cols {
				dst[col] += g.At(r, j)
			}
		}
	}, a)
}

// RowDot returns the r x 1 column of per-row dot products of a and b.
func RowDot(a, b *Value) *Value {
	mustSameShape("RowDot", a, b)
	r, c := a.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, dot(a.data.RawRowView(i), b.data.RawRowView(i)))
	}
	return derive(out, func(g *mat.Dense) {
		if a.track {
			ga := mat.NewDense(r, c, nil)
			for i := 0; i < r; i++ {
				scaleInto(ga.RawRowView(i), b.data.RawRowView(i), g.At(i, 0))
			}
			a.accumulate(ga)
		}
		if b.track {
			gb := mat.NewDense(r, c, nil)
			for i := 0; i < r; i++ {
				scaleInto(gb.RawRowView(i), a.data.RawRowView(i), g.At(i, 0))
			}
			b.accumulate(gb)
		}
	}, a, b)
}

// Sum returns the 1x1 sum of all elements of a.
func Sum(a *Value) *Value {
	out := mat.NewDense(1, 1, []float64{mat.Sum(a.data)})
	return derive(out, func(g *mat.Dense) {
		a.accumulate(filled(a, g.At(0, 0)))
	}, a)
}

// Mean returns the 1x1 mean of all elements of a.
func Mean(a *Value) *Value {
	r, c := a.Dims()
	n := float64(r * c)
	out := mat.NewDense(1, 1, []float64{mat.Sum(a.data) / n})
	return derive(out, func(g *mat.Dense) {
		a.accumulate(filled(a, g.At(0, 0)/n))
	}, a)
}

func filled(like *Value, x float64) *mat.Dense {
	r, c := like.Dims()
	data := make([]float64, r*c)
	for i := range data {
		data[i] = x
	}
	return mat.NewDense(r, c, data)
}

func columnSums(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(1, c, nil)
	dst := out.RawRowView(0)
	for i := 0; i < r; i++ {
		for j, x := range m.RawRowView(i) {
			dst[j] += x
		}
	}
	return out
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func scaleInto(dst, src []float64, s float64) {
	for i := range dst {
		dst[i] = src[i] * s
	}
}
