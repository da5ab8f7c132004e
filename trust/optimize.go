// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package trust solves the equilibrium problem of a polymer system through its concave dual
//
//	maximize 𝒈(𝛌) = 𝛌ᵀ𝐱₀ - ∑ⱼ Ωⱼ𝚎𝚡𝚙((𝐀ᵀ𝛌)ⱼ)
//
// with a trust-region Newton iteration. The subproblem of each iteration is solved by
// the dogleg method on a factorized curvature or by Steihaug truncated conjugate gradients
// on curvature-vector products. At the maximizer the polymer concentrations
// 𝐱ⱼ = Ωⱼ𝚎𝚡𝚙((𝐀ᵀ𝛌)ⱼ) satisfy the mass conservation 𝐀𝐱 = 𝐱₀.
package trust

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Problem specifies an equilibrium problem with m monomers and n polymers.
type Problem struct {
	A     mat.Matrix // m × n composition, 𝐀ᵢⱼ counts monomer i in polymer j
	Omega []float64  // n positive polymer weights Ωⱼ
	X0    []float64  // m initial monomer concentrations
	// Optional n finite log Ωⱼ used in place of Omega, so that weights
	// beyond the float64 range can be expressed.
	LogOmega []float64
	Args     Args
}

// New checks the problem and creates an optimizer reporting to sink.
// A nil sink discards every event.
func (p *Problem) New(sink Sink) (optimizer *Optimizer, err error) {

	if sink == nil {
		sink = Discard
	}
	if p.A == nil {
		return nil, fmt.Errorf("%w: composition matrix is required", ErrDimensionMismatch)
	}

	m, n := p.A.Dims()
	weights := p.Omega
	if p.LogOmega != nil {
		weights = p.LogOmega
	}
	switch {
	case m == 0 || len(p.X0) == 0:
		err = fmt.Errorf("%w: monomers array is empty", ErrDimensionMismatch)
	case n == 0 || len(weights) == 0:
		err = fmt.Errorf("%w: polymers array is empty", ErrDimensionMismatch)
	case m != len(p.X0):
		err = fmt.Errorf("%w: composition has %d rows but %d monomer concentrations", ErrDimensionMismatch, m, len(p.X0))
	case n != len(weights):
		err = fmt.Errorf("%w: composition has %d columns but %d polymer weights", ErrDimensionMismatch, n, len(weights))
	case n < m:
		err = fmt.Errorf("%w: number of polymers %d is less than number of monomers %d", ErrDimensionMismatch, n, m)
	}
	if err != nil {
		return
	}

	logW := make([]float64, n)
	for j, w := range weights {
		if p.LogOmega != nil {
			if math.IsNaN(w) || math.IsInf(w, 0) {
				return nil, fmt.Errorf("%w: polymer log weight %d is %v", ErrInvalidInput, j, w)
			}
			logW[j] = w
			continue
		}
		if !(w > zero) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: polymer weight %d is %v", ErrInvalidInput, j, w)
		}
		logW[j] = math.Log(w)
	}
	for i, c := range p.X0 {
		if !(c >= zero) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("%w: monomer concentration %d is %v", ErrInvalidInput, i, c)
		}
	}

	a := mat.DenseCopyOf(p.A)
	for i := 0; i < m; i++ {
		row := a.RawRowView(i)
		for j, v := range row {
			if !(v >= zero) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: composition entry (%d,%d) is %v", ErrInvalidInput, i, j, v)
			}
		}
		if p.X0[i] > zero && floats.Max(row) == zero {
			return nil, fmt.Errorf("%w: monomer %d has positive concentration but appears in no polymer", ErrInvalidInput, i)
		}
	}

	args := p.Args
	if err = args.Validate(); err != nil {
		return
	}

	direct := args.Subproblem == Dogleg || args.Subproblem == Auto && m <= args.DirectLimit
	workers := args.workers()
	optimizer = &Optimizer{
		iterSpec{
			m: m, n: n,
			obj:     newLogObjective(a, logW, p.X0, workers),
			args:    args,
			direct:  direct,
			workers: workers,
			control: newController(&args),
			monitor: newMonitor(&args, floats.Norm(p.X0, math.Inf(1))),
			sink:    sink,
		},
	}
	return
}

type iterSpec struct {
	m, n    int
	obj     *Objective
	args    Args
	direct  bool
	workers int
	control controller
	monitor monitor
	sink    Sink
}

// Optimizer implemented using the trust-region Newton method on the dual.
type Optimizer struct {
	iterSpec
}

// Objective returns the dual objective of the problem.
func (o *Optimizer) Objective() *Objective {
	return o.obj
}

// Args returns the configuration of the optimizer.
func (o *Optimizer) Args() Args {
	return o.args
}

// Workspace contains the state and context of the optimization process.
// Given m monomers and n polymers, the work space is approximately
// float64[6×m + 3×n] plus float64[3×m² + (workers+1)×n] when the dogleg path is enabled.
type Workspace struct {
	m, n int
	iterCtx
}

type iterCtx struct {
	lambda, trial   []float64 // m
	grad, gradTrial []float64 // m
	step            []float64 // m
	x, xTrial       []float64 // n
	sub             *subproblem
	curvOK          bool // sub.b holds the curvature at x

	f        float64
	delta    float64
	iter     int
	accepted int
	eval     int
	start    time.Time
	elapsed  time.Duration
	rec      recorder
}

// Init allocate the workspace for the optimizer.
// To avoid race conditions, separate workspaces need to be created for each goroutine.
// But multiple workspaces could share one optimizer.
func (o *Optimizer) Init() *Workspace {
	m, n := o.m, o.n
	w := &Workspace{m: m, n: n}
	w.iterCtx = iterCtx{
		lambda:    make([]float64, m),
		trial:     make([]float64, m),
		grad:      make([]float64, m),
		gradTrial: make([]float64, m),
		step:      make([]float64, m),
		x:         make([]float64, n),
		xTrial:    make([]float64, n),
		sub:       newSubproblem(m, n, o.workers, o.direct),
	}
	return w
}

func (c *iterCtx) reset(lambda0 []float64, delta float64, sink Sink) {
	if lambda0 == nil {
		clear(c.lambda)
	} else {
		copy(c.lambda, lambda0)
	}
	c.f = math.NaN()
	c.delta = delta
	c.iter, c.accepted, c.eval = 0, 0, 0
	c.curvOK = false
	c.start = time.Now()
	c.elapsed = 0
	c.rec = recorder{sink: sink}
}

// Result contains the final result of the optimization process.
type Result struct {
	Status   Status        // Terminal state of the run.
	OK       bool          // Whether the optimization was converged.
	X        []float64     // Polymer concentrations at the final multipliers.
	Lambda   []float64     // Final multipliers.
	Value    float64       // Dual objective at the final multipliers.
	Error    float64       // ‖𝐀𝐱 - 𝐱₀‖∞ at the final multipliers.
	Messages []string      // Rendered events of the run in order.
	Elapsed  time.Duration // Wall-clock time of the run.
	Summary                // Optimization summary.
}

// ElapsedMicros returns the elapsed time in whole microseconds.
func (r *Result) ElapsedMicros() int64 {
	return r.Elapsed.Microseconds()
}

// Summary contains a summary of the optimization process.
type Summary struct {
	NumIter     int     // Number of iterations performed.
	NumAccepted int     // Number of accepted steps.
	NumEval     int     // Number of objective evaluations performed.
	Delta       float64 // Final trust-region radius.
	GradNorm    float64 // Final ‖𝜵𝒈‖∞.
}

// Fit runs the optimization from the multipliers lambda0 (zeros when nil) using workspace w.
//
// The returned Result always describes the best multipliers found. The error is non-nil only
// for a dimension mismatch of lambda0 or when the run fails, in which case it wraps
// ErrNumericalFailure and Result.Status is Failed.
func (o *Optimizer) Fit(lambda0 []float64, w *Workspace) (*Result, error) {

	if lambda0 != nil && len(lambda0) != o.m {
		return nil, fmt.Errorf("%w: λ₀ has %d elements, want %d", ErrDimensionMismatch, len(lambda0), o.m)
	}
	if w.m != o.m || w.n != o.n {
		panic("workspace dimension not match spec")
	}

	driver := iterDriver{
		optimizer: o,
		workspace: w,
	}

	status, err := driver.mainLoop(lambda0)
	return o.recoverPrimal(w, status), err
}
