// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/curioloop/coffee/trust"
)

const envPrefix = "COFFEE"

var (
	cfeExts = []string{".cfe", ".ocx", ".txt", ".csv", ".tsv"}
	conExts = []string{".con", ".txt", ".csv", ".tsv"}
	logExts = []string{".txt", ".log"}
)

// checkExt rejects a path whose extension is not in exts.
func checkExt(kind, path string, exts []string) error {
	if !slices.Contains(exts, strings.ToLower(filepath.Ext(path))) {
		return fmt.Errorf("%s file %q must be a %s file", kind, path, strings.Join(exts, ", "))
	}
	return nil
}

// addSolverFlags declares the optimizer settings shared by every command.
func addSolverFlags(fs *pflag.FlagSet) {
	def := trust.DefaultArgs()
	fs.Int("max-iterations", def.MaxIterations, "iteration budget")
	fs.Float64("max-delta", def.MaxDelta, "upper bound of the trust-region radius")
	fs.Float64("tolerance", def.Tolerance, "convergence tolerance on the conservation error")
	fs.Float64("temp", def.TempCelsius, "temperature in °C")
	fs.Bool("scalarity", def.Scalarity, "read energies in kcal/mol and scale concentrations by the molarity of water")
	fs.String("subproblem", def.Subproblem.String(), "subproblem solver: auto, dogleg or steihaug")
	fs.Int("direct-limit", def.DirectLimit, "auto switches to steihaug above this number of monomers")
	fs.Int("workers", def.Workers, "goroutines per evaluation, 0 uses every CPU")
	fs.Duration("max-duration", def.MaxDuration, "wall-clock budget of one solve, 0 is unlimited")
	fs.Bool("check-derivatives", false, "compare analytic derivatives with finite differences first")
	fs.String("config", "", "YAML configuration file")
	fs.BoolP("verbose", "v", false, "verbose output")
}

// loadConfig merges flags, COFFEE_* environment variables and the optional config file.
func loadConfig(v *viper.Viper, fs *pflag.FlagSet) error {
	if err := v.BindPFlags(fs); err != nil {
		return err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// solverArgs builds validated optimizer arguments from the merged configuration.
func solverArgs(v *viper.Viper) (trust.Args, error) {
	args := trust.DefaultArgs()
	args.MaxIterations = v.GetInt("max-iterations")
	args.MaxDelta = v.GetFloat64("max-delta")
	args.Tolerance = v.GetFloat64("tolerance")
	args.TempCelsius = v.GetFloat64("temp")
	args.Scalarity = v.GetBool("scalarity")
	args.DirectLimit = v.GetInt("direct-limit")
	args.Workers = v.GetInt("workers")
	args.MaxDuration = v.GetDuration("max-duration")
	args.CheckDerivatives = v.GetBool("check-derivatives")
	args.Verbose = v.GetBool("verbose")
	method, err := trust.ParseMethod(v.GetString("subproblem"))
	args.Subproblem = method
	return args, multierr.Combine(err, args.Validate())
}

// newLogger writes human readable diagnostics to w, at debug level when verbose.
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level))
}
