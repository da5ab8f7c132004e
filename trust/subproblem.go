// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trust

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Path tags the branch of the subproblem solver that produced a step.
type Path int

const (
	PathNone Path = iota
	// PathNewton full Newton step inside the region.
	PathNewton
	// PathCauchy steepest ascent step, clipped to the region.
	PathCauchy
	// PathDogleg boundary point on the segment from the Cauchy point to the Newton step.
	PathDogleg
	// PathCG truncated CG converged inside the region.
	PathCG
	// PathCGBoundary truncated CG stopped on the boundary.
	PathCGBoundary
	// PathCGNegative truncated CG met non-positive curvature and moved to the boundary.
	PathCGNegative
)

func (p Path) String() string {
	switch p {
	case PathNone:
		return "-"
	case PathNewton:
		return "newton"
	case PathCauchy:
		return "cauchy"
	case PathDogleg:
		return "dogleg"
	case PathCG:
		return "cg"
	case PathCGBoundary:
		return "cg-boundary"
	case PathCGNegative:
		return "cg-negative"
	default:
		return fmt.Sprintf("path(%d)", int(p))
	}
}

// errNoNewton reports that every direct Newton solve failed.
var errNoNewton = errors.New("no finite newton step")

// subproblem approximately solves
//
//	maximize 𝒎(𝐩) = 𝐠ᵀ𝐩 - ½𝐩ᵀ𝐁𝐩   subject to ‖𝐩‖ ≤ δ
//
// where 𝐠 = 𝜵𝒈(𝛌) and 𝐁 = -𝜵²𝒈(𝛌) is positive semi-definite.
// The predicted improvement 𝒎(𝐩) - 𝒎(0) is non-negative for every returned step.
type subproblem struct {
	m, n int
	// direct storage, nil when only truncated CG is used
	b    *mat.SymDense // 𝐁
	reg  *mat.SymDense // 𝐁 + μ𝐈
	chol mat.Cholesky
	ls   minNorm
	w    []float64 // workers × n scratch of the curvature assembly
	// m-vectors
	pn, bp []float64
	r, d   []float64
	// n-vector scratch of curvature products
	t []float64
}

func newSubproblem(m, n, workers int, direct bool) *subproblem {
	s := &subproblem{
		m: m, n: n,
		pn: make([]float64, m),
		bp: make([]float64, m),
		r:  make([]float64, m),
		d:  make([]float64, m),
		t:  make([]float64, n),
	}
	if direct {
		s.b = mat.NewSymDense(m, nil)
		s.reg = mat.NewSymDense(m, nil)
		s.w = make([]float64, max(workers, 1)*n)
	}
	return s
}

// predicted returns 𝐠ᵀ𝐩 - ½𝐩ᵀ(𝐁𝐩) given bp = 𝐁𝐩.
func predicted(g, p, bp []float64) float64 {
	return floats.Dot(g, p) - half*floats.Dot(p, bp)
}

// boundary returns the positive τ with ‖𝐳 + τ𝐝‖ = δ given zz = ‖𝐳‖², zd = 𝐳ᵀ𝐝 and dd = ‖𝐝‖².
func boundary(zz, zd, dd, delta float64) float64 {
	if dd <= zero {
		return zero
	}
	disc := zd*zd + dd*(delta*delta-zz)
	return (-zd + math.Sqrt(math.Max(disc, zero))) / dd
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// symv stores 𝐁𝐯 into out.
func (s *subproblem) symv(v, out []float64) {
	mat.NewVecDense(s.m, out).MulVec(s.b, mat.NewVecDense(s.m, v))
}

// newton stores the solution of 𝐁𝐩 = 𝐠 into s.pn.
//
// Cholesky is tried first. An indefinite or ill-conditioned factor falls back to the
// minimum-length least-squares solution, then to Cholesky of the shifted 𝐁 + μ𝐈.
func (s *subproblem) newton(g []float64) error {
	m := s.m
	pn := mat.NewVecDense(m, s.pn)
	rhs := mat.NewVecDense(m, g)

	if s.chol.Factorize(s.b) && s.chol.Cond() <= one/(hun*eps) {
		if err := s.chol.SolveVecTo(pn, rhs); err == nil && finite(s.pn) {
			return nil
		}
	}

	if k := s.ls.solve(s.b, g, s.pn); k > 0 && finite(s.pn) {
		return nil
	}

	dmax := zero
	for i := 0; i < m; i++ {
		dmax = math.Max(dmax, math.Abs(s.b.At(i, i)))
	}
	mu := math.Sqrt(eps) * math.Max(one, dmax)
	for try := 0; try < 6; try, mu = try+1, mu*hun {
		s.reg.CopySym(s.b)
		for i := 0; i < m; i++ {
			s.reg.SetSym(i, i, s.b.At(i, i)+mu)
		}
		if !s.chol.Factorize(s.reg) {
			continue
		}
		if err := s.chol.SolveVecTo(pn, rhs); err == nil && finite(s.pn) {
			return nil
		}
	}
	return errNoNewton
}

// dogleg stores the step into p and returns the predicted improvement.
// It requires s.b to hold the curvature at the current multipliers and
// reports errNoNewton when no Newton step could be computed.
func (s *subproblem) dogleg(g, p []float64, delta float64) (pred float64, path Path, err error) {
	gg := floats.Dot(g, g)
	if gg == zero {
		clear(p)
		return zero, PathNewton, nil
	}
	gNorm := math.Sqrt(gg)

	if err = s.newton(g); err != nil {
		return
	}

	s.symv(g, s.bp)
	gBg := floats.Dot(g, s.bp)

	switch alpha := gg / gBg; {
	case floats.Norm(s.pn, 2) <= delta:
		copy(p, s.pn)
		path = PathNewton
	case !(gBg > zero) || alpha*gNorm >= delta:
		floats.ScaleTo(p, delta/gNorm, g)
		path = PathCauchy
	default:
		// 𝐩 = 𝐩ᶜ + τ(𝐩ᴺ - 𝐩ᶜ)
		floats.ScaleTo(p, alpha, g)
		floats.SubTo(s.d, s.pn, p)
		tau := boundary(alpha*alpha*gg, floats.Dot(p, s.d), floats.Dot(s.d, s.d), delta)
		floats.AddScaled(p, math.Min(math.Max(tau, zero), one), s.d)
		path = PathDogleg
	}

	s.symv(p, s.bp)
	if pred = predicted(g, p, s.bp); pred > zero && !math.IsInf(pred, 0) {
		return
	}
	// A regularized or rank-deficient Newton step may fail to ascend.
	return s.cauchy(g, p, delta)
}

// solve stores the step of method into p. Without direct storage every step comes
// from truncated CG. A dogleg that finds no Newton step falls back to the Cauchy
// point when method is Dogleg and to truncated CG otherwise.
// The direct path requires s.b to hold the curvature at x.
func (s *subproblem) solve(obj *Objective, x, g, p []float64, delta float64, method Method) (pred float64, path Path, err error) {
	if s.b == nil {
		return s.steihaug(obj, x, g, p, delta)
	}
	pred, path, err = s.dogleg(g, p, delta)
	if !errors.Is(err, errNoNewton) {
		return
	}
	if method == Dogleg {
		return s.cauchy(g, p, delta)
	}
	return s.steihaug(obj, x, g, p, delta)
}

// cauchy stores the maximizer of the model along 𝐠 inside the region into p.
func (s *subproblem) cauchy(g, p []float64, delta float64) (pred float64, path Path, err error) {
	gg := floats.Dot(g, g)
	if gg == zero {
		clear(p)
		return zero, PathCauchy, nil
	}
	s.symv(g, s.bp)
	gBg := floats.Dot(g, s.bp)

	t := delta / math.Sqrt(gg)
	if gBg > zero {
		t = math.Min(t, gg/gBg)
	}
	floats.ScaleTo(p, t, g)
	s.symv(p, s.bp)
	pred = predicted(g, p, s.bp)
	if math.IsNaN(pred) || math.IsInf(pred, 0) || !finite(p) {
		return pred, PathCauchy, fmt.Errorf("%w: no finite cauchy step", ErrNumericalFailure)
	}
	return pred, PathCauchy, nil
}
