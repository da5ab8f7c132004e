// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package numdiff estimates derivatives by finite differences.
package numdiff

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
var cubeEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/3)

type Method int

const (
	// Forward use the first order accuracy forward difference.
	Forward Method = iota
	// Central use the second order accuracy central difference.
	Central
)

// ApproxSpec represents a numerical differentiation algorithms to estimate the derivative of a mathematical function.
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
//
// # License
//
//   - https://github.com/scipy/scipy/blob/main/LICENSE.txt
type ApproxSpec struct {
	// Finite difference method to use.
	Method Method
	// Relative step size used to compute absolute step size.
	// The default absolute step size is computed as h = RelStep * sign(x0) * max(1, abs(x0)) with RelStep being selected automatically.
	// Otherwise, absolute step size is computed as h = RelStep * sign(x0) * abs(x0) when RelStep is provided.
	RelStep float64
	// Absolute step size to use.
	// The RelStep is used when AbsStep is not provide.
	// For Central method the sign of AbsStep is ignored.
	AbsStep float64
	approxCtx
}

type approxCtx struct {
	f0, f1, f2 []float64
	absStep    []float64
}

func (as *ApproxSpec) check(n, m int) error {
	switch {
	case n <= 0 || m <= 0:
		return errors.New("negative dimensions")
	case as.Method != Forward && as.Method != Central:
		return errors.New("unknown method")
	case math.IsNaN(as.RelStep) || math.IsNaN(as.AbsStep):
		return errors.New("step size is NaN")
	}
	if len(as.f0) != m {
		as.f0 = make([]float64, m)
		as.f1 = make([]float64, m)
		as.f2 = make([]float64, m)
	}
	if len(as.absStep) != n {
		as.absStep = make([]float64, n)
	}
	return nil
}

// Jacobian stores the m × n derivative of f at x0 into jac.
// The function f writes f(x) into y; x0 is restored before return.
func (as *ApproxSpec) Jacobian(jac *mat.Dense, f func(x, y []float64), x0 []float64) error {
	m, n := jac.Dims()
	if n != len(x0) {
		return errors.New("invalid x0 dimensions")
	}
	if f == nil {
		return errors.New("object function is required")
	}
	if err := as.check(n, m); err != nil {
		return err
	}

	as.absoluteStep(x0)
	f0, f1, f2 := as.f0, as.f1, as.f2

	if as.Method == Forward {
		f(x0, f0)
	}
	for i, s := range as.absStep {
		x := x0[i]
		switch as.Method {
		case Forward:
			x0[i] = x + s
			f(x0, f1)
			d := 1.0 / s
			for j := range f0 {
				jac.Set(j, i, (f1[j]-f0[j])*d)
			}
		case Central:
			x0[i] = x - s
			f(x0, f1)
			x0[i] = x + s
			f(x0, f2)
			d := 1.0 / (2 * s)
			for j := range f1 {
				jac.Set(j, i, (f2[j]-f1[j])*d)
			}
		}
		x0[i] = x
	}
	return nil
}

// Gradient stores the derivative of the scalar function f at x0 into grad.
func (as *ApproxSpec) Gradient(grad []float64, f func(x []float64) float64, x0 []float64) error {
	if len(x0) == 0 {
		return errors.New("negative dimensions")
	}
	if len(grad) != len(x0) {
		return errors.New("invalid gradient dimensions")
	}
	if f == nil {
		return errors.New("object function is required")
	}
	jac := mat.NewDense(1, len(x0), grad)
	return as.Jacobian(jac, func(x, y []float64) { y[0] = f(x) }, x0)
}

func (as *ApproxSpec) absoluteStep(x0 []float64) {
	h := as.absStep
	if len(h) != len(x0) {
		panic("bound check error")
	}

	var eps float64
	switch as.Method {
	case Forward:
		eps = sqrtEps
	case Central:
		eps = cubeEps
	default:
		panic("unknown method")
	}

	abs := as.AbsStep
	rel := as.RelStep
	if abs == 0 && rel == 0 {
		for i, v := range x0 {
			h[i] = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
		}
	} else {
		for i, v := range x0 {
			s := abs
			if s == 0 {
				s = math.Copysign(rel, v) * math.Abs(v)
			}
			if d := (v + s) - v; d == 0 {
				s = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
			}
			h[i] = s
		}
	}
	if as.Method == Central {
		for i, v := range h {
			h[i] = math.Abs(v)
		}
	}
}

// MaxRelDiff returns 𝚖𝚊𝚡ᵢ |aᵢ - bᵢ| / 𝚖𝚊𝚡(1, |bᵢ|).
func MaxRelDiff(a, b []float64) float64 {
	if len(a) != len(b) {
		panic("bound check error")
	}
	d := 0.0
	for i, v := range b {
		d = math.Max(d, math.Abs(a[i]-v)/math.Max(1, math.Abs(v)))
	}
	return d
}
