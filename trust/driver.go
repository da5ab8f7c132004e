// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trust

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/curioloop/coffee/numdiff"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// iterDriver is the main driver for iterations in an optimization process,
// responsible for managing the flow of the optimization.
type iterDriver struct {
	optimizer *Optimizer
	workspace *Workspace
}

// evaluate computes the concentrations, the dual value and its gradient at lambda.
func (d *iterDriver) evaluate(lambda, x, grad []float64) (f float64, err error) {
	obj := d.optimizer.obj
	d.workspace.eval++
	if err = obj.Concentrations(lambda, x); err != nil {
		return
	}
	if f, err = obj.value(lambda, x); err != nil {
		return
	}
	err = obj.gradient(x, grad)
	return
}

// mainLoop drives the iteration until the monitor reports a terminal status.
func (d *iterDriver) mainLoop(lambda0 []float64) (status Status, err error) {

	o, w := d.optimizer, d.workspace
	w.reset(lambda0, o.args.InitialDelta, o.sink)
	w.rec.emit(Event{Kind: EventStart, M: o.m, N: o.n, Delta: w.delta})

	// Calculate g₀ and 𝜵g₀
	if w.f, err = d.evaluate(w.lambda, w.x, w.grad); err == nil && o.args.CheckDerivatives {
		d.checkDerivatives()
	}

	cause := stallNone
	gNorm := math.NaN()
	for err == nil {
		gNorm = floats.Norm(w.grad, math.Inf(1))
		if status = o.monitor.check(w.iter, gNorm, time.Since(w.start), cause != stallNone); status.Terminal() {
			break
		}
		cause, err = d.iterate()
	}

	switch {
	case err != nil:
		status = Failed
	case status == Failed && cause == stallResolution:
		err = fmt.Errorf("%w: step is below the resolution of λ at δ = %g with ‖∇g‖∞ = %g", ErrNumericalFailure, w.delta, gNorm)
	case status == Failed:
		err = fmt.Errorf("%w: trust region collapsed at δ = %g with ‖∇g‖∞ = %g", ErrNumericalFailure, w.delta, gNorm)
	}

	w.elapsed = time.Since(w.start)
	w.rec.emit(Event{
		Kind:    EventFinish,
		Iter:    w.iter,
		Value:   w.f,
		Error:   gNorm,
		Delta:   w.delta,
		Status:  status,
		Elapsed: w.elapsed,
	})
	return
}

// stall tells why no further progress is possible.
type stall int

const (
	stallNone       stall = iota
	stallRadius           // δ dropped below MinDelta
	stallResolution       // 𝛌 + 𝐩 rounds back to 𝛌
)

// iterate performs one trust-region iteration and reports whether no further progress is possible.
func (d *iterDriver) iterate() (cause stall, err error) {

	o, w := d.optimizer, d.workspace
	sub := w.sub

	// The curvature only changes with 𝐱, which a rejected step leaves untouched.
	if o.direct && !w.curvOK {
		o.obj.curvature(w.x, sub.b, sub.w)
		w.curvOK = true
	}

	// Solve the trust-region subproblem.
	pred, path, err := sub.solve(o.obj, w.x, w.grad, w.step, w.delta, o.args.Subproblem)
	if err != nil {
		return
	}

	floats.AddTo(w.trial, w.lambda, w.step)
	if slices.Equal(w.trial, w.lambda) {
		return stallResolution, nil
	}

	fTrial, err := d.evaluate(w.trial, w.xTrial, w.gradTrial)
	if err != nil {
		return
	}

	// Once the prediction drowns in the rounding of g the gain is judged by the gradient instead.
	rho := gainRatio(fTrial-w.f, pred)
	if negligible(pred, w.f) {
		rho = zero
		if floats.Norm(w.gradTrial, math.Inf(1)) < floats.Norm(w.grad, math.Inf(1)) {
			rho = one
		}
	}

	stepNorm := floats.Norm(w.step, 2)
	accept, next := o.control.update(rho, stepNorm, w.delta)
	w.delta = next
	if accept {
		w.lambda, w.trial = w.trial, w.lambda
		w.x, w.xTrial = w.xTrial, w.x
		w.grad, w.gradTrial = w.gradTrial, w.grad
		w.f = fTrial
		w.accepted++
		w.curvOK = false
	}
	w.iter++

	w.rec.emit(Event{
		Kind:     EventIteration,
		Iter:     w.iter,
		Value:    w.f,
		Error:    floats.Norm(w.grad, math.Inf(1)),
		Delta:    w.delta,
		Rho:      rho,
		Accepted: accept,
		StepNorm: stepNorm,
		Path:     path,
		Elapsed:  time.Since(w.start),
	})

	if w.delta < o.args.MinDelta {
		cause = stallRadius
	}
	return
}

// checkDerivatives compares the analytic gradient and curvature at the initial multipliers
// with central finite differences.
func (d *iterDriver) checkDerivatives() {

	o, w := d.optimizer, d.workspace
	obj, m, n := o.obj, o.m, o.n
	lambda := slices.Clone(w.lambda)
	approx := numdiff.ApproxSpec{Method: numdiff.Central}

	gradDiff := math.NaN()
	num := make([]float64, m)
	value := func(l []float64) float64 {
		v, err := obj.Value(l)
		if err != nil {
			return math.NaN()
		}
		return v
	}
	if err := approx.Gradient(num, value, lambda); err == nil {
		gradDiff = numdiff.MaxRelDiff(w.grad, num)
	}

	curvDiff := math.NaN()
	x := make([]float64, n)
	gradient := func(l, y []float64) {
		if obj.Concentrations(l, x) != nil || obj.gradient(x, y) != nil {
			for i := range y {
				y[i] = math.NaN()
			}
		}
	}
	jac := mat.NewDense(m, m, nil)
	if err := approx.Jacobian(jac, gradient, lambda); err == nil {
		b := mat.NewSymDense(m, nil)
		obj.curvature(w.x, b, make([]float64, o.workers*n))
		hess := make([]float64, m*m)
		for i := 0; i < m; i++ {
			for j := 0; j < m; j++ {
				hess[i*m+j] = -b.At(i, j)
			}
		}
		curvDiff = numdiff.MaxRelDiff(hess, jac.RawMatrix().Data)
	}

	w.rec.emit(Event{Kind: EventDerivativeCheck, GradDiff: gradDiff, CurvDiff: curvDiff})
}
