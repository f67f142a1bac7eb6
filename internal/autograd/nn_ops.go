// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package autograd

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// SoftmaxRows applies a numerically stable softmax to every row of a.
func SoftmaxRows(a *Value) *Value {
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		softmaxInto(out.RawRowView(i), a.data.RawRowView(i))
	}
	return derive(out, func(g *mat.Dense) {
		ga := mat.NewDense(r, c, nil)
		for i := 0; i < r; i++ {
			y := out.RawRowView(i)
			gy := g.RawRowView(i)
			s := dot(gy, y)
			dst := ga.RawRowView(i)
			for j := range dst {
				dst[j] = y[j] * (gy[j] - s)
			}
		}
		a.accumulate(ga)
	}, a)
}

func softmaxInto(dst, src []float64) {
	maxv := math.Inf(-1)
	for _, x := range src {
		if x > maxv {
			maxv = x
		}
	}
	var sum float64
	for j, x := range src {
		e := math.Exp(x - maxv)
		dst[j] = e
		sum += e
	}
	for j := range dst {
		dst[j] /= sum
	}
}

// LayerNormRows normalizes every row of x to zero mean and unit variance and
// applies the 1xC gain and bias.
func LayerNormRows(x, gain, bias *Value, eps float64) *Value {
	r, c := x.Dims()
	if gr, gc := gain.Dims(); gr != 1 || gc != c {
		panic(fmt.Sprintf("autograd: LayerNormRows gain must be 1x%d, got %dx%d", c, gr, gc))
	}
	mustSameShape("LayerNormRows", gain, bias)

	xhat := mat.NewDense(r, c, nil)
	invStd := make([]float64, r)
	out := mat.NewDense(r, c, nil)
	gw := gain.data.RawRowView(0)
	bw := bias.data.RawRowView(0)
	n := float64(c)
	for i := 0; i < r; i++ {
		row := x.data.RawRowView(i)
		var mean float64
		for _, v := range row {
			mean += v
		}
		mean /= n
		var variance float64
		for _, v := range row {
			d := v - mean
			variance += d * d
		}
		variance /= n
		invStd[i] = 1 / math.Sqrt(variance+eps)
		h := xhat.RawRowView(i)
		o := out.RawRowView(i)
		for j, v := range row {
			h[j] = (v - mean) * invStd[i]
			o[j] = h[j]*gw[j] + bw[j]
		}
	}

	return derive(out, func(g *mat.Dense) {
		if gain.track || bias.track {
			gg := mat.NewDense(1, c, nil)
			gb := mat.NewDense(1, c, nil)
			ggw := gg.RawRowView(0)
			gbw := gb.RawRowView(0)
			for i := 0; i < r; i++ {
				h := xhat.RawRowView(i)
				for j, gv := range g.RawRowView(i) {
					ggw[j] += gv * h[j]
					gbw[j] += gv
				}
			}
			gain.accumulate(gg)
			bias.accumulate(gb)
		}
		if !x.track {
			return
		}
		gx := mat.NewDense(r, c, nil)
		dh := make([]float64, c)
		for i := 0; i < r; i++ {
			h := xhat.RawRowView(i)
			var meanDh, meanDhH float64
			for j, gv := range g.RawRowView(i) {
				dh[j] = gv * gw[j]
				meanDh += dh[j]
				meanDhH += dh[j] * h[j]
			}
			meanDh /= n
			meanDhH /= n
			dst := gx.RawRowView(i)
			for j := range dst {
				dst[j] = invStd[i] * (dh[j] - meanDh - h[j]*meanDhH)
			}
		}
		x.accumulate(gx)
	}, x, gain, bias)
}

// unary applies f element-wise. df receives the input and the output and
// returns the local derivative.
func unary(a *Value, f func(x float64) float64, df func(x, y float64) float64) *Value {
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, _ int, v float64) float64 { return f(v) }, a.data)
	return derive(out, func(g *mat.Dense) {
		ga := mat.NewDense(r, c, nil)
		ga.Apply(func(i, j int, gv float64) float64 {
			return gv * df(a.data.At(i, j), out.At(i, j))
		}, g)
		a.accumulate(ga)
	}, a)
}

// GELU is the exact (erf based) Gaussian error linear unit.
func GELU(a *Value) *Value {
	return unary(a,
		func(x float64) float64 { return 0.5 * x * (1 + math.Erf(x/math.Sqrt2)) },
		func(x, _ float64) float64 {
			cdf := 0.5 * (1 + math.Erf(x/math.Sqrt2))
			pdf := math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
			return cdf + x*pdf
		})
}

// ReLU returns max(0, a).
func ReLU(a *Value) *Value {
	return unary(a,
		func(x float64) float64 { return math.Max(0, x) },
		func(x, _ float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		})
}

// Tanh applies the hyperbolic tangent.
func Tanh(a *Value) *Value {
	return unary(a, math.Tanh, func(_, y float64) float64 { return 1 - y*y })
}

// Sigmoid applies the logistic function.
func Sigmoid(a *Value) *Value {
	return unary(a, sigmoid, func(_, y float64) float64 { return y * (1 - y) })
}

// Swish returns a * sigmoid(a).
func Swish(a *Value) *Value {
	return unary(a,
		func(x float64) float64 { return x * sigmoid(x) },
		func(x, _ float64) float64 {
			s := sigmoid(x)
			return s + x*s*(1-s)
		})
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// Dropout zeroes each element with probability p and scales the survivors by
// 1/(1-p). A nil rng or p <= 0 returns a unchanged.
func Dropout(a *Value, p float64, rng *rand.Rand) *Value {
	if rng == nil || p <= 0 {
		return a
	}
	r, c := a.Dims()
	mask := mat.NewDense(r, c, nil)
	if p < 1 {
		keep := 1 / (1 - p)
		mask.Apply(func(_, _ int, _ float64) float64 {
			if rng.Float64() < p {
				return 0
			}
			return keep
		}, mask)
	}
	var out mat.Dense
	out.MulElem(a.data, mask)
	return derive(&out, func(g *mat.Dense) {
		var ga mat.Dense
		ga.MulElem(g, mask)
		a.accumulate(&ga)
	}, a)
}

// GlobalNormalize divides a by max(‖a‖_F, eps), the Frobenius norm of the
// whole matrix.
func GlobalNormalize(a *Value, eps float64) *Value {
	norm := mat.Norm(a.data, 2)
	denom := math.Max(norm, eps)
	var out mat.Dense
	out.Scale(1/denom, a.data)
	return derive(&out, func(g *mat.Dense) {
		var ga mat.Dense
		if norm > eps {
			s := mat.Sum(elemProduct(g, &out))
			ga.Scale(s, &out)
			ga.Sub(g, &ga)
			ga.Scale(1/denom, &ga)
		} else {
			ga.Scale(1/denom, g)
		}
		a.accumulate(&ga)
	}, a)
}

// NormalizeRows divides every row of a by max(‖row‖₂, eps).
func NormalizeRows(a *Value, eps float64) *Value {
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	norms := make([]float64, r)
	for i := 0; i < r; i++ {
		src := a.data.RawRowView(i)
		norms[i] = math.Sqrt(dot(src, src))
		scaleInto(out.RawRowView(i), src, 1/math.Max(norms[i], eps))
	}
	return derive(out, func(g *mat.Dense) {
		ga := mat.NewDense(r, c, nil)
		for i := 0; i < r; i++ {
			gy := g.RawRowView(i)
			dst := ga.RawRowView(i)
			denom := math.Max(norms[i], eps)
			if norms[i] <= eps {
				scaleInto(dst, gy, 1/denom)
				continue
			}
			y := out.RawRowView(i)
			s := dot(gy, y)
			for j := range dst {
				dst[j] = (gy[j] - y[j]*s) / denom
			}
		}
		a.accumulate(ga)
	}, a)
}

func elemProduct(a, b mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.MulElem(a, b)
	return &out
}
