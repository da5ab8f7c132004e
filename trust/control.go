// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trust

import "math"

// controller accepts or rejects trial steps and adapts the trust-region radius.
type controller struct {
	eta       float64
	maxDelta  float64
	normRatio float64
	rho       [2]float64 // shrink, grow cutoffs
	scale     [2]float64 // shrink, grow factors
}

func newController(a *Args) controller {
	return controller{
		eta:       a.Eta,
		maxDelta:  a.MaxDelta,
		normRatio: a.NormRatioThreshold,
		rho:       a.RhoThresholds,
		scale:     a.ScaleFactors,
	}
}

// gainRatio is actual / pred, zero when the prediction promises no improvement.
func gainRatio(actual, pred float64) float64 {
	if !(pred > zero) || math.IsNaN(actual) {
		return zero
	}
	return actual / pred
}

// update decides whether a step of length stepNorm with gain ratio rho is accepted and
// returns the next radius. The radius follows rho only:
//   - ρ < ρ₀ shrinks δ by the first scale factor
//   - ρ > ρ₁ with a step that reached the boundary grows δ by the second one, capped at the maximum
func (c *controller) update(rho, stepNorm, delta float64) (accept bool, next float64) {
	accept = rho > c.eta
	switch {
	case rho < c.rho[0]:
		next = delta * c.scale[0]
	case rho > c.rho[1] && stepNorm >= c.normRatio*delta:
		next = math.Min(delta*c.scale[1], c.maxDelta)
	default:
		next = delta
	}
	return
}
