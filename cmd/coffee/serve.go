// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/curioloop/coffee/server"
)

func newServeCmd(v *viper.Viper, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the solver over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			args, err := solverArgs(v)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			log := newLogger(stderr, args.Verbose)
			defer func() { _ = log.Sync() }()

			cfg := server.DefaultConfig()
			cfg.Args = args
			cfg.MaxConcurrent = v.GetInt64("max-concurrent")
			cfg.MaxUploadBytes = v.GetInt64("max-upload-bytes")

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			srv, err := server.New(cfg, log, reg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, v.GetString("addr"))
		},
	}
	def := server.DefaultConfig()
	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().Int64("max-concurrent", def.MaxConcurrent, "solves running at the same time")
	cmd.Flags().Int64("max-upload-bytes", def.MaxUploadBytes, "upper bound of a request body")
	return cmd
}
