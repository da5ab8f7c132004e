// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package thermo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaterMolarity(t *testing.T) {
	assert.InDelta(t, 55.138380632259576, WaterMolarity(37), 1e-12)
	assert.InDelta(t, 55.34476562412985, WaterMolarity(25), 1e-12)

	// The density peaks near 4°C.
	peak := WaterDensity(3.983035)
	assert.InDelta(t, 999.974950, peak, 1e-9)
	assert.Less(t, WaterDensity(0), peak)
	assert.Less(t, WaterDensity(10), peak)
}

func TestKT(t *testing.T) {
	s := Scale{TempCelsius: 37, Molar: true}
	assert.InDelta(t, 0.6163207755, s.KT(), 1e-12)
	assert.Equal(t, 1.0, Scale{TempCelsius: 37}.KT())
}

func TestWeights(t *testing.T) {
	s := Scale{TempCelsius: 37, Molar: true}
	energies := []float64{0, -1.5, 2, -1000}

	logW := s.LogWeights(energies)
	assert.Equal(t, 0.0, logW[0])
	assert.InDelta(t, 2.4337975606665236, logW[1], 1e-12)
	assert.InDelta(t, -2/0.6163207755, logW[2], 1e-12)
	// Energies below the cap are clamped.
	assert.InDelta(t, 373.1822926355336, logW[3], 1e-9)

	w := s.Weights(energies)
	for j := range w {
		assert.InDelta(t, math.Exp(logW[j]), w[j], 1e-12*w[j])
	}

	plain := Scale{TempCelsius: 37}.LogWeights([]float64{3, -300})
	assert.Equal(t, []float64{-3, 230}, plain)
}

func TestConcentrationRoundTrip(t *testing.T) {
	s := Scale{TempCelsius: 25, Molar: true}
	x0 := []float64{1e-6, 2.5e-7}

	scaled := s.Monomers(x0)
	assert.InDelta(t, 1e-6/55.34476562412985, scaled[0], 1e-20)
	assert.Equal(t, []float64{1e-6, 2.5e-7}, x0, "input must not be modified")

	s.Restore(scaled)
	assert.InDeltaSlice(t, x0, scaled, 1e-21)

	plain := Scale{TempCelsius: 25}
	assert.Equal(t, x0, plain.Monomers(x0))
	assert.Equal(t, 1.0, plain.Factor())
}
