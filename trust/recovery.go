// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trust

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// recoverPrimal rebuilds the primal answer 𝐱(𝛌) from the final multipliers of w.
func (o *Optimizer) recoverPrimal(w *Workspace, status Status) *Result {
	x := make([]float64, o.n)
	value, residual := math.NaN(), math.NaN()
	if err := o.obj.Concentrations(w.lambda, x); err == nil {
		if v, err := o.obj.value(w.lambda, x); err == nil {
			value = v
		}
		residual = o.obj.Residual(x)
	}
	return &Result{
		Status:   status,
		OK:       status == Converged,
		X:        x,
		Lambda:   slices.Clone(w.lambda),
		Value:    value,
		Error:    residual,
		Messages: slices.Clone(w.rec.msgs),
		Elapsed:  w.elapsed,
		Summary: Summary{
			NumIter:     w.iter,
			NumAccepted: w.accepted,
			NumEval:     w.eval,
			Delta:       w.delta,
			GradNorm:    floats.Norm(w.grad, math.Inf(1)),
		},
	}
}
