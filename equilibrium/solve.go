// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package equilibrium runs the full pipeline of a solve: parsing, unit
// preparation, optimization and restoration of the concentrations to mol/L.
package equilibrium

import (
	"fmt"
	"io"
	"os"

	"github.com/curioloop/coffee/fileparse"
	"github.com/curioloop/coffee/thermo"
	"github.com/curioloop/coffee/trust"
)

// Scale returns the unit convention selected by args.
func Scale(args *trust.Args) thermo.Scale {
	return thermo.Scale{TempCelsius: args.TempCelsius, Molar: args.Scalarity}
}

// Solve computes the equilibrium of a parsed input with raw free energies.
// Result.X and Result.Error are expressed in the units of in.Monomers.
//
// Dimension and input errors are returned before iterating with a nil Result.
// A numerical failure returns the best Result found along with the error.
func Solve(in *fileparse.Input, args trust.Args, sink trust.Sink) (*trust.Result, error) {
	scale := Scale(&args)
	p := trust.Problem{
		A:        in.A,
		LogOmega: scale.LogWeights(in.Energies),
		X0:       scale.Monomers(in.Monomers),
		Args:     args,
	}
	opt, err := p.New(sink)
	if err != nil {
		return nil, err
	}
	res, err := opt.Fit(nil, opt.Init())
	if res != nil {
		scale.Restore(res.X)
		res.Error *= scale.Factor()
	}
	return res, err
}

// Run parses a composition and a concentration stream and solves them.
func Run(cfe, con io.Reader, args trust.Args, sink trust.Sink) (*trust.Result, error) {
	in, err := fileparse.Read(cfe, con)
	if err != nil {
		return nil, err
	}
	return Solve(in, args, sink)
}

// RunFiles is Run on two files.
func RunFiles(cfePath, conPath string, args trust.Args, sink trust.Sink) (*trust.Result, error) {
	cfe, err := os.Open(cfePath)
	if err != nil {
		return nil, fmt.Errorf("error reading monomer/polymer file: %w", err)
	}
	defer cfe.Close()
	con, err := os.Open(conPath)
	if err != nil {
		return nil, fmt.Errorf("error reading concentration file: %w", err)
	}
	defer con.Close()
	return Run(cfe, con, args, sink)
}
