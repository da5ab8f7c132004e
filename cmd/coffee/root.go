// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/curioloop/coffee/equilibrium"
	"github.com/curioloop/coffee/report"
	"github.com/curioloop/coffee/trust"
)

type solveOptions struct {
	cfe, con string
	log, out string
	trace    bool
}

// NewRootCmd creates the coffee command writing results to stdout and diagnostics to stderr.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	v := viper.New()
	opts := &solveOptions{}

	cmd := &cobra.Command{
		Use:   "coffee CFE CON",
		Short: "Compute the equilibrium concentrations of a polymer system",
		Long: `coffee reads polymer compositions with their free energies (CFE) and initial
monomer concentrations (CON) and prints the equilibrium concentration of every polymer.

Settings are taken from flags, then COFFEE_* environment variables, then the --config file.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(2)(cmd, args); err != nil {
				return err
			}
			if err := checkExt("CFE", args[0], cfeExts); err != nil {
				return err
			}
			return checkExt("CON", args[1], conExts)
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(v, cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, files []string) error {
			opts.cfe, opts.con = files[0], files[1]
			if opts.log != "" {
				if err := checkExt("log", opts.log, logExts); err != nil {
					return err
				}
			}
			if opts.out != "" {
				if err := checkExt("output", opts.out, logExts); err != nil {
					return err
				}
			}
			args, err := solverArgs(v)
			if err != nil {
				return err
			}
			args.UseTerminal = opts.log == ""
			cmd.SilenceUsage = true
			return runSolve(opts, args, stdout, newLogger(stderr, args.Verbose))
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVarP(&opts.log, "log", "l", "", "write the log and results to this file (.txt or .log) instead of stdout")
	flags.StringVarP(&opts.out, "output", "o", "", "write only the results to this file (.txt or .log)")
	flags.BoolVar(&opts.trace, "trace", false, "print the radius, gain ratio and subproblem path of every iteration")
	addSolverFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCmd(v, stderr))
	return cmd
}

func runSolve(opts *solveOptions, args trust.Args, stdout io.Writer, log *zap.Logger) (err error) {
	defer func() { _ = log.Sync() }()

	var logFile, outFile *os.File
	if opts.log != "" {
		if logFile, err = os.Create(opts.log); err != nil {
			return err
		}
		defer logFile.Close()
	}
	if opts.out != "" {
		if outFile, err = os.Create(opts.out); err != nil {
			return err
		}
		defer outFile.Close()
	}

	// On a terminal the messages are streamed as they happen.
	var sinks []trust.Sink
	if args.UseTerminal {
		level := trust.LogEval
		if opts.trace {
			level = trust.LogTrace
		}
		sinks = append(sinks, trust.NewLogger(stdout, level))
	}
	if args.Verbose {
		sinks = append(sinks, report.NewZapSink(log))
	}

	res, err := equilibrium.RunFiles(opts.cfe, opts.con, args, trust.Tee(sinks...))
	if res == nil {
		log.Error("optimization aborted", zap.Error(err))
		return err
	}
	if err != nil {
		log.Warn("optimization failed", zap.Error(err))
	}

	results := report.Results(res.X)
	conclusion := report.Conclude(res, args.Verbose)
	if logFile != nil {
		for _, msg := range res.Messages {
			if _, werr := io.WriteString(logFile, msg); werr != nil {
				return werr
			}
		}
		if _, werr := fmt.Fprintf(logFile, "\n%s\n%s\n", conclusion, results); werr != nil {
			return werr
		}
	} else {
		fmt.Fprintf(stdout, "\n%s\n%s\n", conclusion, results)
	}
	if outFile != nil {
		if _, werr := io.WriteString(outFile, results); werr != nil {
			return werr
		}
	}
	return err
}
