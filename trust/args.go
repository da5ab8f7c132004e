// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trust

import (
	"fmt"
	"math"
	"runtime"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Method selects the trust-region subproblem solver.
type Method int

const (
	// Auto uses Dogleg while the monomer count stays below Args.DirectLimit
	// and whenever a direct Newton solve is available, Steihaug otherwise.
	Auto Method = iota
	// Dogleg interpolates between the Cauchy point and the Newton step.
	Dogleg
	// Steihaug runs truncated conjugate gradients on curvature-vector products only.
	Steihaug
)

func (m Method) String() string {
	switch m {
	case Auto:
		return "auto"
	case Dogleg:
		return "dogleg"
	case Steihaug:
		return "steihaug"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// ParseMethod converts a method name back into a Method.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "dogleg":
		return Dogleg, nil
	case "steihaug", "cg":
		return Steihaug, nil
	}
	return Auto, fmt.Errorf("%w: unknown subproblem method %q", ErrInvalidArgs, s)
}

// Args configures one optimization run.
type Args struct {
	// The iteration stop when the number of iterations reaches limit.
	// Zero is allowed and returns the initial multipliers untouched.
	MaxIterations int
	// Initial trust-region radius: 0 < δ₀ ≤ MaxDelta.
	InitialDelta float64
	// Upper bound of the trust-region radius.
	MaxDelta float64
	// The run fails when the radius collapses below this value without convergence.
	MinDelta float64
	// A step is accepted only when the gain ratio ρ > Eta.
	Eta float64
	// A step with ‖p‖ ≥ NormRatioThreshold·δ is considered to reach the boundary.
	NormRatioThreshold float64
	// Gain-ratio cutoffs [shrink, grow] for the radius update.
	RhoThresholds [2]float64
	// Radius multipliers [shrink, grow].
	ScaleFactors [2]float64
	// Converged when ‖∇g‖∞ ≤ Tolerance × ‖x₀‖∞, the mass conservation error relative to x₀.
	Tolerance float64
	// Relaxed relative tolerance accepted once progress is no longer representable.
	StallTolerance float64
	// Temperature used by the free-energy conversion.
	TempCelsius float64
	// Whether raw free energies are in kcal/mol and concentrations are scaled by the molarity of water.
	Scalarity bool
	// Subproblem solver.
	Subproblem Method
	// Auto switches to Steihaug above this number of monomers.
	DirectLimit int
	// Goroutines used inside a single evaluation, 0 means GOMAXPROCS.
	Workers int
	// Wall-clock budget checked between iterations, 0 means unlimited.
	MaxDuration time.Duration
	// Compare analytic derivatives against finite differences before iterating.
	CheckDerivatives bool
	// Verbose asks front ends for debug logging and timing.
	Verbose bool
	// UseTerminal asks front ends to stream the messages of a run as they happen.
	UseTerminal bool
}

// DefaultArgs returns the published defaults.
func DefaultArgs() Args {
	return Args{
		MaxIterations:      250,
		InitialDelta:       1.0,
		MaxDelta:           1000.0,
		MinDelta:           1e-12,
		Eta:                0.15,
		NormRatioThreshold: 0.95,
		RhoThresholds:      [2]float64{0.25, 0.75},
		ScaleFactors:       [2]float64{0.25, 2.0},
		Tolerance:          1e-14,
		StallTolerance:     1.5e-8,
		TempCelsius:        37.0,
		Scalarity:          true,
		Subproblem:         Auto,
		DirectLimit:        500,
		Workers:            1,
		UseTerminal:        true,
	}
}

// Validate reports every inconsistent field at once.
func (a *Args) Validate() error {
	var err error
	check := func(bad bool, format string, v ...any) {
		if bad {
			err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]any{ErrInvalidArgs}, v...)...))
		}
	}
	finite := func(v float64) bool {
		return !math.IsNaN(v) && !math.IsInf(v, 0)
	}

	check(a.MaxIterations < 0, "max iterations %d must not be negative", a.MaxIterations)
	check(!finite(a.MaxDelta) || a.MaxDelta <= zero, "max delta %g must be positive", a.MaxDelta)
	check(!finite(a.InitialDelta) || a.InitialDelta <= zero || a.InitialDelta > a.MaxDelta,
		"initial delta %g must be in (0, max delta]", a.InitialDelta)
	check(!finite(a.MinDelta) || a.MinDelta < zero || a.MinDelta >= a.InitialDelta,
		"min delta %g must be in [0, initial delta)", a.MinDelta)
	check(!finite(a.Eta) || a.Eta < zero || a.Eta >= one, "eta %g must be in [0, 1)", a.Eta)
	check(!finite(a.NormRatioThreshold) || a.NormRatioThreshold <= zero || a.NormRatioThreshold > one,
		"norm ratio threshold %g must be in (0, 1]", a.NormRatioThreshold)
	check(!finite(a.RhoThresholds[0]) || !finite(a.RhoThresholds[1]) || a.RhoThresholds[0] >= a.RhoThresholds[1],
		"rho thresholds %v must be increasing", a.RhoThresholds)
	check(!finite(a.ScaleFactors[0]) || a.ScaleFactors[0] <= zero || a.ScaleFactors[0] >= one,
		"shrink factor %g must be in (0, 1)", a.ScaleFactors[0])
	check(!finite(a.ScaleFactors[1]) || a.ScaleFactors[1] <= one, "grow factor %g must exceed 1", a.ScaleFactors[1])
	check(!finite(a.Tolerance) || a.Tolerance < zero, "tolerance %g must not be negative", a.Tolerance)
	check(!finite(a.StallTolerance) || a.StallTolerance < a.Tolerance,
		"stall tolerance %g must not be less than tolerance", a.StallTolerance)
	check(!finite(a.TempCelsius) || a.TempCelsius <= -273.15, "temperature %g°C is below absolute zero", a.TempCelsius)
	check(a.Subproblem < Auto || a.Subproblem > Steihaug, "unknown subproblem method %d", int(a.Subproblem))
	check(a.DirectLimit < 0, "direct limit %d must not be negative", a.DirectLimit)
	check(a.Workers < 0, "workers %d must not be negative", a.Workers)
	check(a.MaxDuration < 0, "max duration %v must not be negative", a.MaxDuration)
	return err
}

func (a *Args) workers() int {
	if a.Workers == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return a.Workers
}
