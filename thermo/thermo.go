// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package thermo converts raw polymer free energies and monomer concentrations
// into the unit convention of the equilibrium solver and back.
//
// With the molar convention enabled, a free energy ΔGⱼ in kcal/mol becomes the
// weight Ωⱼ = 𝚎𝚡𝚙(-ΔGⱼ / kT) and concentrations are expressed as mole fractions of
// water, whose molarity depends on the temperature. Without it kT = 1 and
// concentrations pass through untouched.
package thermo

import "math"

const (
	// GasConstant R in kcal/(mol·K).
	GasConstant = 0.00198717
	// ZeroCelsius in Kelvin.
	ZeroCelsius = 273.15
	// MinEnergy caps the most favorable free energy, so that 𝚎𝚡𝚙(-ΔG / kT)
	// stays inside the float64 range for every temperature of liquid water.
	MinEnergy = -230.0
	// WaterMolarMass in g/mol.
	WaterMolarMass = 18.0152
)

// WaterDensity returns the density of liquid water in kg/m³ at celsius,
// using the rational fit of Tanaka et al. (2001) to the IAPWS-95 formulation.
func WaterDensity(celsius float64) float64 {
	const (
		a1 = -3.983035
		a2 = 301.797
		a3 = 522528.9
		a4 = 69.34881
		a5 = 999.974950
	)
	t := celsius
	return a5 * (1 - (t+a1)*(t+a1)*(t+a2)/a3/(t+a4))
}

// WaterMolarity returns the molar concentration of pure water in mol/L at celsius.
func WaterMolarity(celsius float64) float64 {
	return WaterDensity(celsius) / WaterMolarMass
}

// Scale is the unit convention of one solve.
type Scale struct {
	TempCelsius float64
	// Molar enables kcal/mol energies and water-molarity concentration scaling.
	Molar bool
}

// KT returns the thermal energy kT in kcal/mol, or 1 without the molar convention.
func (s Scale) KT() float64 {
	if !s.Molar {
		return 1
	}
	return GasConstant * (s.TempCelsius + ZeroCelsius)
}

// Factor is the concentration unit in mol/L, or 1 without the molar convention.
func (s Scale) Factor() float64 {
	if !s.Molar {
		return 1
	}
	return WaterMolarity(s.TempCelsius)
}

// LogWeights returns log Ωⱼ = -𝚖𝚊𝚡(ΔGⱼ, MinEnergy) / kT for every energy.
func (s Scale) LogWeights(energies []float64) []float64 {
	kT := s.KT()
	w := make([]float64, len(energies))
	for j, g := range energies {
		w[j] = -math.Max(g, MinEnergy) / kT
	}
	return w
}

// Weights returns Ωⱼ = 𝚎𝚡𝚙(-𝚖𝚊𝚡(ΔGⱼ, MinEnergy) / kT) for every energy.
// Unfavorable energies may underflow to zero, LogWeights avoids that.
func (s Scale) Weights(energies []float64) []float64 {
	w := s.LogWeights(energies)
	for j, v := range w {
		w[j] = math.Exp(v)
	}
	return w
}

// Monomers returns the monomer concentrations in solver units.
func (s Scale) Monomers(x0 []float64) []float64 {
	f := s.Factor()
	out := make([]float64, len(x0))
	for i, c := range x0 {
		out[i] = c / f
	}
	return out
}

// Restore converts solver concentrations in place back to mol/L.
func (s Scale) Restore(x []float64) {
	f := s.Factor()
	if f == 1 {
		return
	}
	for j := range x {
		x[j] *= f
	}
}
