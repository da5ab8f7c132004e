// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trust

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestDefaultArgs(t *testing.T) {
	args := DefaultArgs()
	require.NoError(t, args.Validate())
	assert.Equal(t, 250, args.MaxIterations)
	assert.Equal(t, [2]float64{0.25, 0.75}, args.RhoThresholds)
	assert.Equal(t, [2]float64{0.25, 2.0}, args.ScaleFactors)
	assert.Equal(t, 37.0, args.TempCelsius)
	assert.True(t, args.Scalarity)
	assert.Equal(t, Auto, args.Subproblem)
}

func TestValidateCollectsEveryError(t *testing.T) {
	args := DefaultArgs()
	args.MaxIterations = -1
	args.InitialDelta = 0
	args.Eta = 1
	args.ScaleFactors = [2]float64{1.5, 0.5}
	args.Tolerance = math.NaN()

	err := args.Validate()
	require.ErrorIs(t, err, ErrInvalidArgs)
	assert.GreaterOrEqual(t, len(multierr.Errors(err)), 5)
	assert.Contains(t, err.Error(), "max iterations -1")
	assert.Contains(t, err.Error(), "eta 1")
}

func TestValidateBounds(t *testing.T) {
	for name, mutate := range map[string]func(*Args){
		"initial above max":    func(a *Args) { a.InitialDelta = 2 * a.MaxDelta },
		"min above initial":    func(a *Args) { a.MinDelta = a.InitialDelta },
		"rho not increasing":   func(a *Args) { a.RhoThresholds = [2]float64{0.8, 0.2} },
		"stall below tol":      func(a *Args) { a.StallTolerance = a.Tolerance / 2 },
		"below absolute zero":  func(a *Args) { a.TempCelsius = -300 },
		"unknown method":       func(a *Args) { a.Subproblem = Method(7) },
		"negative workers":     func(a *Args) { a.Workers = -2 },
		"negative duration":    func(a *Args) { a.MaxDuration = -1 },
		"infinite max delta":   func(a *Args) { a.MaxDelta = math.Inf(1) },
		"zero norm ratio":      func(a *Args) { a.NormRatioThreshold = 0 },
		"negative directLimit": func(a *Args) { a.DirectLimit = -1 },
	} {
		args := DefaultArgs()
		mutate(&args)
		assert.ErrorIs(t, args.Validate(), ErrInvalidArgs, name)
	}
}

func TestParseMethod(t *testing.T) {
	for in, want := range map[string]Method{
		"":          Auto,
		"auto":      Auto,
		"Dogleg":    Dogleg,
		" steihaug": Steihaug,
		"cg":        Steihaug,
	} {
		got, err := ParseMethod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, m := range []Method{Auto, Dogleg, Steihaug} {
		got, err := ParseMethod(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMethod("newton")
	assert.ErrorIs(t, err, ErrInvalidArgs)
}
