// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trust

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// steihaug runs truncated conjugate gradients on 𝐁𝐩 = 𝐠 starting from 𝐩 = 0, using only
// curvature-vector products 𝐁𝐯 evaluated at the concentrations x. The iteration stops when
//   - the residual drops below 𝚖𝚒𝚗(½, √‖𝐠‖)‖𝐠‖
//   - a direction of non-positive curvature appears (the step is moved to the boundary)
//   - the next iterate would leave the region (the step is cut at the boundary)
//
// # References
//
//	T. Steihaug, 'The conjugate gradient method and trust regions in large scale optimization',
//	SIAM Journal on Numerical Analysis 20(3), 1983.
func (s *subproblem) steihaug(o *Objective, x, g, p []float64, delta float64) (pred float64, path Path, err error) {
	clear(p)
	r, d, bd := s.r, s.d, s.bp

	gNorm := floats.Norm(g, 2)
	if gNorm == zero {
		return zero, PathCG, nil
	}
	tol := math.Min(half, math.Sqrt(gNorm)) * gNorm

	// r = 𝐁𝐩 - 𝐠 is the residual of the model, d the conjugate direction.
	floats.ScaleTo(r, -one, g)
	copy(d, g)
	rr := gNorm * gNorm

	path = PathCG
	limit := max(2*s.m, 10)
	for iter := 0; iter < limit; iter++ {
		o.curvatureProduct(x, d, bd, s.t)
		dBd := floats.Dot(d, bd)

		pp, pd, dd := floats.Dot(p, p), floats.Dot(p, d), floats.Dot(d, d)
		if !(dBd > zero) {
			floats.AddScaled(p, boundary(pp, pd, dd, delta), d)
			path = PathCGNegative
			break
		}

		alpha := rr / dBd
		if pp+alpha*(two*pd+alpha*dd) >= delta*delta {
			floats.AddScaled(p, boundary(pp, pd, dd, delta), d)
			path = PathCGBoundary
			break
		}

		floats.AddScaled(p, alpha, d)
		floats.AddScaled(r, alpha, bd)
		rrNext := floats.Dot(r, r)
		if math.Sqrt(rrNext) < tol {
			break
		}

		// d = -r + βd
		beta := rrNext / rr
		floats.Scale(beta, d)
		floats.Sub(d, r)
		rr = rrNext
	}

	o.curvatureProduct(x, p, bd, s.t)
	pred = predicted(g, p, bd)
	if math.IsNaN(pred) || math.IsInf(pred, 0) || !finite(p) {
		return pred, path, fmt.Errorf("%w: no finite truncated CG step", ErrNumericalFailure)
	}
	return pred, path, nil
}
