// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trust

import (
	"math"
	"time"
)

// monitor decides when the iteration terminates.
type monitor struct {
	tol      float64 // Tolerance × ‖𝐱₀‖∞
	stallTol float64 // StallTolerance × ‖𝐱₀‖∞
	maxIter  int
	maxDur   time.Duration
}

// newMonitor scales the tolerances to the monomer concentrations.
// A problem without any monomer keeps them absolute.
func newMonitor(a *Args, x0Norm float64) monitor {
	scale := x0Norm
	if !(scale > zero) {
		scale = one
	}
	return monitor{
		tol:      a.Tolerance * scale,
		stallTol: a.StallTolerance * scale,
		maxIter:  a.MaxIterations,
		maxDur:   a.MaxDuration,
	}
}

// check is called before every iteration with the current ‖𝜵𝒈‖∞.
// Convergence wins over every budget; a stalled run converges only under the relaxed tolerance.
func (m *monitor) check(iter int, gradNorm float64, elapsed time.Duration, stalled bool) Status {
	switch {
	case math.IsNaN(gradNorm):
		return Failed
	case gradNorm <= m.tol:
		return Converged
	case stalled && gradNorm <= m.stallTol:
		return Converged
	case stalled:
		return Failed
	case iter >= m.maxIter:
		return MaxIterationsReached
	case m.maxDur > 0 && elapsed >= m.maxDur:
		return TimeLimitReached
	}
	return Running
}

// negligible reports whether the predicted improvement is lost in the rounding of 𝒈.
func negligible(pred, value float64) bool {
	return pred <= four*eps*math.Max(one, math.Abs(value))
}
