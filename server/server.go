// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package server exposes the equilibrium solver over HTTP.
//
//	POST /solve    multipart form with the files "cfe" and "con"
//	GET  /metrics  Prometheus metrics
//	GET  /healthz  liveness
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/curioloop/coffee/equilibrium"
	"github.com/curioloop/coffee/fileparse"
	"github.com/curioloop/coffee/metrics"
	"github.com/curioloop/coffee/report"
	"github.com/curioloop/coffee/trust"
)

// Config configures a Server.
type Config struct {
	// Defaults of every solve, individual fields may be overridden by form values.
	Args trust.Args
	// Solves running at the same time, further requests wait.
	MaxConcurrent int64
	// Upper bound of a request body in bytes.
	MaxUploadBytes int64
}

// DefaultConfig returns the configuration used by `coffee serve`.
func DefaultConfig() Config {
	return Config{
		Args:           trust.DefaultArgs(),
		MaxConcurrent:  4,
		MaxUploadBytes: 32 << 20,
	}
}

// Server handles solve requests.
type Server struct {
	cfg     Config
	log     *zap.Logger
	sem     *semaphore.Weighted
	metrics *metrics.Sink
	mux     *http.ServeMux
}

// New creates a server whose metrics are registered with reg.
func New(cfg Config, log *zap.Logger, reg *prometheus.Registry) (*Server, error) {
	if cfg.MaxConcurrent <= 0 {
		return nil, fmt.Errorf("max concurrent solves %d must be positive", cfg.MaxConcurrent)
	}
	if err := cfg.Args.Validate(); err != nil {
		return nil, err
	}
	sink, err := metrics.New(reg)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:     cfg,
		log:     log,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrent),
		metrics: sink,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /solve", s.solve)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return s, nil
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Response is the JSON body of /solve. Non-finite numbers are reported as null.
type Response struct {
	Status             string    `json:"status"`
	OptimalX           []float64 `json:"optimal_x,omitempty"`
	OptimalLambda      []float64 `json:"optimal_lambda,omitempty"`
	OptimalLagrangian  *float64  `json:"optimal_lagrangian,omitempty"`
	ConcentrationError *float64  `json:"concentration_error,omitempty"`
	ElapsedTime        int64     `json:"elapsed_time"` // microseconds
	LogMessages        []string  `json:"log_messages,omitempty"`
	Message            string    `json:"message,omitempty"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func (s *Server) solve(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(zap.String("remote", r.RemoteAddr))

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		s.reply(w, log, http.StatusBadRequest, &Response{Status: "error", Message: err.Error()})
		return
	}
	defer r.MultipartForm.RemoveAll()

	args, err := s.requestArgs(r)
	if err != nil {
		s.reply(w, log, http.StatusBadRequest, &Response{Status: "error", Message: err.Error()})
		return
	}
	in, err := readInput(r)
	if err != nil {
		s.reply(w, log, http.StatusBadRequest, &Response{Status: "error", Message: err.Error()})
		return
	}

	if err = s.sem.Acquire(r.Context(), 1); err != nil {
		s.reply(w, log, http.StatusServiceUnavailable, &Response{Status: "error", Message: err.Error()})
		return
	}
	res, err := equilibrium.Solve(in, args, trust.Tee(s.metrics, report.NewZapSink(log)))
	s.sem.Release(1)

	if res == nil {
		s.reply(w, log, http.StatusBadRequest, &Response{Status: "error", Message: err.Error()})
		return
	}
	resp := &Response{
		Status:             res.Status.String(),
		OptimalX:           res.X,
		OptimalLambda:      res.Lambda,
		OptimalLagrangian:  finite(res.Value),
		ConcentrationError: finite(res.Error),
		ElapsedTime:        res.ElapsedMicros(),
		LogMessages:        res.Messages,
		Message:            report.Results(res.X),
	}
	code := http.StatusOK
	if err != nil {
		code = http.StatusUnprocessableEntity
		resp.Message = err.Error()
	}
	s.reply(w, log, code, resp)
}

// requestArgs applies the optional form values temp_celsius, scalarity and max_iterations.
func (s *Server) requestArgs(r *http.Request) (args trust.Args, err error) {
	args = s.cfg.Args
	if v := r.FormValue("temp_celsius"); v != "" {
		if args.TempCelsius, err = strconv.ParseFloat(v, 64); err != nil {
			return args, fmt.Errorf("temp_celsius: %w", err)
		}
	}
	if v := r.FormValue("scalarity"); v != "" {
		if args.Scalarity, err = strconv.ParseBool(v); err != nil {
			return args, fmt.Errorf("scalarity: %w", err)
		}
	}
	if v := r.FormValue("max_iterations"); v != "" {
		if args.MaxIterations, err = strconv.Atoi(v); err != nil {
			return args, fmt.Errorf("max_iterations: %w", err)
		}
	}
	return args, args.Validate()
}

func readInput(r *http.Request) (*fileparse.Input, error) {
	open := func(name string) (multipart.File, error) {
		f, _, err := r.FormFile(name)
		if err != nil {
			return nil, fmt.Errorf("form file %q: %w", name, err)
		}
		return f, nil
	}
	cfe, err := open("cfe")
	if err != nil {
		return nil, err
	}
	defer cfe.Close()
	con, err := open("con")
	if err != nil {
		return nil, err
	}
	defer con.Close()
	return fileparse.Read(cfe, con)
}

func (s *Server) reply(w http.ResponseWriter, log *zap.Logger, code int, resp *Response) {
	if code >= http.StatusBadRequest {
		log.Warn("solve request rejected", zap.Int("code", code), zap.String("message", resp.Message))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("encoding response", zap.Error(err))
	}
}
