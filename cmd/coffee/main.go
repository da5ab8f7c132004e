// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command coffee computes polymer equilibrium concentrations.
//
//	coffee CFE CON [-l LOG] [-o OUT] [-v] [--config FILE]
//	coffee serve [--addr :8080]
package main

import (
	"os"
)

func main() {
	if err := NewRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
