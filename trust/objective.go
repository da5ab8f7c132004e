// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trust

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Objective is the concave dual of the equilibrium problem
//
//	maximize 𝐱₀ᵀ𝛌 - ∑ⱼ Ωⱼ𝚎𝚡𝚙((𝐀ᵀ𝛌)ⱼ)
//
// whose stationary point recovers the primal concentrations 𝐱ⱼ(𝛌) = Ωⱼ𝚎𝚡𝚙((𝐀ᵀ𝛌)ⱼ)
// satisfying the mass-conservation constraints 𝐀𝐱 = 𝐱₀. Positivity of 𝐱 holds by
// construction so the dual carries no inequality constraint.
//
//   - 𝒈(𝛌) = 𝛌ᵀ𝐱₀ - ∑ⱼ 𝐱ⱼ(𝛌)
//   - 𝜵𝒈(𝛌) = 𝐱₀ - 𝐀𝐱(𝛌)
//   - 𝜵²𝒈(𝛌) = -𝐀 𝚍𝚒𝚊𝚐(𝐱(𝛌)) 𝐀ᵀ
//
// An Objective is immutable and safe for concurrent use.
type Objective struct {
	m, n    int
	a       *mat.Dense // m × n composition
	logW    []float64  // log Ωⱼ
	x0      []float64  // m
	workers int
}

// grain is the minimal slice length handed to a worker goroutine.
const grain = 256

func newObjective(a *mat.Dense, omega, x0 []float64, workers int) *Objective {
	logW := make([]float64, len(omega))
	for j, w := range omega {
		logW[j] = math.Log(w)
	}
	return newLogObjective(a, logW, x0, workers)
}

// newLogObjective takes ownership of logW.
func newLogObjective(a *mat.Dense, logW, x0 []float64, workers int) *Objective {
	m, n := a.Dims()
	return &Objective{
		m: m, n: n,
		a:       a,
		logW:    logW,
		x0:      append([]float64(nil), x0...),
		workers: max(workers, 1),
	}
}

// Dims returns the number of monomers m and polymers n.
func (o *Objective) Dims() (m, n int) {
	return o.m, o.n
}

// parallel splits [0,count) into at most o.workers contiguous chunks and passes
// the chunk index k along. Every output element is owned by one chunk, so
// results do not depend on the worker count.
func (o *Objective) parallel(count int, body func(k, lo, hi int)) {
	if o.workers <= 1 || count < 2*grain {
		body(0, 0, count)
		return
	}
	chunk := max((count+o.workers-1)/o.workers, grain)
	var wg sync.WaitGroup
	for k, lo := 0, 0; lo < count; k, lo = k+1, lo+chunk {
		wg.Add(1)
		go func(k, lo, hi int) {
			defer wg.Done()
			body(k, lo, hi)
		}(k, lo, min(lo+chunk, count))
	}
	wg.Wait()
}

// Concentrations stores 𝐱(𝛌) into x, each exponent clamped into [minExpArg, maxExpArg].
func (o *Objective) Concentrations(lambda, x []float64) error {
	if len(lambda) != o.m || len(x) != o.n {
		panic("bound check error")
	}
	o.parallel(o.n, func(_, lo, hi int) {
		t := x[lo:hi]
		copy(t, o.logW[lo:hi])
		for i, l := range lambda {
			if l != zero {
				floats.AddScaled(t, l, o.a.RawRowView(i)[lo:hi]) // log Ωⱼ + (𝐀ᵀ𝛌)ⱼ
			}
		}
		for j, v := range t {
			t[j] = math.Exp(math.Min(math.Max(v, minExpArg), maxExpArg))
		}
	})
	for j, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: concentration of polymer %d is %v", ErrNumericalFailure, j, v)
		}
	}
	return nil
}

// value computes 𝒈(𝛌) from the concentrations x = 𝐱(𝛌).
func (o *Objective) value(lambda, x []float64) (float64, error) {
	g := floats.Dot(lambda, o.x0) - floats.Sum(x)
	if math.IsNaN(g) || math.IsInf(g, 0) {
		return g, fmt.Errorf("%w: dual objective is %v", ErrNumericalFailure, g)
	}
	return g, nil
}

// gradient stores 𝜵𝒈 = 𝐱₀ - 𝐀𝐱 into grad.
func (o *Objective) gradient(x, grad []float64) error {
	o.parallel(o.m, func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			grad[i] = o.x0[i] - floats.Dot(o.a.RawRowView(i), x)
		}
	})
	if floats.HasNaN(grad) || math.IsInf(floats.Norm(grad, math.Inf(1)), 0) {
		return fmt.Errorf("%w: gradient is not finite", ErrNumericalFailure)
	}
	return nil
}

// curvature stores the negated Hessian 𝐁 = 𝐀 𝚍𝚒𝚊𝚐(𝐱) 𝐀ᵀ into b (upper triangle).
// The scratch w holds n elements per worker.
func (o *Objective) curvature(x []float64, b *mat.SymDense, w []float64) {
	raw := b.RawSymmetric()
	o.parallel(o.m, func(k, lo, hi int) {
		wi := w[k*o.n : (k+1)*o.n]
		for i := lo; i < hi; i++ {
			floats.MulTo(wi, o.a.RawRowView(i), x) // 𝐀ᵢⱼ𝐱ⱼ
			row := raw.Data[i*raw.Stride:]
			for l := i; l < o.m; l++ {
				row[l] = floats.Dot(wi, o.a.RawRowView(l))
			}
		}
	})
}

// curvatureProduct stores 𝐁𝐯 = 𝐀 (𝐱 ⊙ 𝐀ᵀ𝐯) into out without forming 𝐁.
// The scratch t holds n elements.
func (o *Objective) curvatureProduct(x, v, out, t []float64) {
	o.parallel(o.n, func(_, lo, hi int) {
		s := t[lo:hi]
		clear(s)
		for i, vi := range v {
			if vi != zero {
				floats.AddScaled(s, vi, o.a.RawRowView(i)[lo:hi])
			}
		}
		floats.Mul(s, x[lo:hi])
	})
	o.parallel(o.m, func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = floats.Dot(o.a.RawRowView(i), t)
		}
	})
}

// Evaluate returns 𝒈(𝛌), 𝜵𝒈(𝛌) and 𝜵²𝒈(𝛌) in freshly allocated storage.
func (o *Objective) Evaluate(lambda []float64) (value float64, grad []float64, curv *mat.SymDense, err error) {
	if len(lambda) != o.m {
		return 0, nil, nil, fmt.Errorf("%w: λ has %d elements, want %d", ErrDimensionMismatch, len(lambda), o.m)
	}
	x := make([]float64, o.n)
	if err = o.Concentrations(lambda, x); err != nil {
		return
	}
	if value, err = o.value(lambda, x); err != nil {
		return
	}
	grad = make([]float64, o.m)
	if err = o.gradient(x, grad); err != nil {
		return
	}
	b := mat.NewSymDense(o.m, nil)
	o.curvature(x, b, make([]float64, o.workers*o.n))
	curv = mat.NewSymDense(o.m, nil)
	curv.ScaleSym(-one, b)
	return
}

// Value returns 𝒈(𝛌) only.
func (o *Objective) Value(lambda []float64) (float64, error) {
	if len(lambda) != o.m {
		return 0, fmt.Errorf("%w: λ has %d elements, want %d", ErrDimensionMismatch, len(lambda), o.m)
	}
	x := make([]float64, o.n)
	if err := o.Concentrations(lambda, x); err != nil {
		return 0, err
	}
	return o.value(lambda, x)
}

// Residual returns 𝐀𝐱 - 𝐱₀ measured with the infinity norm.
func (o *Objective) Residual(x []float64) float64 {
	r := zero
	for i := 0; i < o.m; i++ {
		r = math.Max(r, math.Abs(floats.Dot(o.a.RawRowView(i), x)-o.x0[i]))
	}
	return r
}
