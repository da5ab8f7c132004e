// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report renders solver results for people and forwards solver events to loggers.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/curioloop/coffee/trust"
)

// Conclude renders the closing summary of a run. The elapsed time is appended
// when withTime is set, in milliseconds below one second and in seconds above.
// An exhausted iteration or time budget still completes; only a failed run says so.
func Conclude(res *trust.Result, withTime bool) string {
	var sb strings.Builder
	verb := "complete"
	if res.Status == trust.Failed {
		verb = "failed"
	}
	fmt.Fprintf(&sb, "Optimization %s after %d iterations.\n\n", verb, res.NumIter)
	fmt.Fprintf(&sb, "Number of monomers: %d\nNumber of polymers: %d\n\n", len(res.Lambda), len(res.X))
	fmt.Fprintf(&sb, "Optimal Lagrangian: %.6e\n\n", res.Value)
	sb.WriteString("Optimal Lambdas:\n")
	for _, l := range res.Lambda {
		fmt.Fprintf(&sb, "%.6e ", l)
	}
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Concentration Constraint Error: %.6e\n", res.Error)
	if withTime {
		sb.WriteString("\n")
		sb.WriteString(Elapsed(res.Elapsed))
	}
	return sb.String()
}

// Elapsed renders a duration the way Conclude does.
func Elapsed(d time.Duration) string {
	ms := float64(d.Microseconds()) / 1000
	if ms < 1000 {
		return fmt.Sprintf("Elapsed time: %.2f ms\n", ms)
	}
	return fmt.Sprintf("Elapsed time: %.2f s\n", ms/1000)
}

// Results renders the polymer concentrations on one line.
func Results(x []float64) string {
	var sb strings.Builder
	for _, v := range x {
		fmt.Fprintf(&sb, "%.2e ", v)
	}
	return sb.String()
}
