// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trust

import "errors"

const (
	zero = 0.0
	half = 0.5
	one  = 1.0
	two  = 2.0
	four = 4.0
	hun  = 100.0
	eps  = float64(7)/3 - float64(4)/3 - 1.
)

const (
	// exponents of Ω·exp(Aᵗλ) are clamped into [minExpArg, maxExpArg]
	// so that every polymer concentration stays finite and strictly positive.
	minExpArg = -700.0
	maxExpArg = 600.0
)

// Status is the state of the convergence monitor.
type Status int

const (
	// Running the iteration has not terminated yet.
	Running Status = iota
	// Converged the conservation residual dropped below the tolerance.
	Converged
	// MaxIterationsReached the iteration budget was exhausted, best multipliers are returned.
	MaxIterationsReached
	// TimeLimitReached the wall-clock budget was exhausted, best multipliers are returned.
	TimeLimitReached
	// Failed a numerical failure aborted the run.
	Failed
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Converged:
		return "converged"
	case MaxIterationsReached:
		return "max iterations reached"
	case TimeLimitReached:
		return "time limit reached"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further iteration may follow.
func (s Status) Terminal() bool {
	return s != Running
}

var (
	// ErrDimensionMismatch shapes of A, Ω and x0 are inconsistent.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrInvalidInput non-finite or out-of-domain input values.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidArgs optimizer configuration rejected.
	ErrInvalidArgs = errors.New("invalid optimizer args")
	// ErrNumericalFailure an evaluation or a subproblem solve produced a non-finite result.
	ErrNumericalFailure = errors.New("numerical failure")
)
