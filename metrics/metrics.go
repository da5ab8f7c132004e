// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics exports solver activity as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/curioloop/coffee/trust"
)

const namespace = "coffee"

// Sink counts solver events. One Sink may be shared by concurrent runs.
type Sink struct {
	runs       *prometheus.CounterVec
	steps      *prometheus.CounterVec
	active     prometheus.Gauge
	iterations prometheus.Histogram
	duration   prometheus.Histogram
	residual   prometheus.Histogram
}

// New creates the solver metrics and registers them with reg.
func New(reg prometheus.Registerer) (*Sink, error) {
	s := &Sink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished optimization runs by terminal status.",
		}, []string{"status"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Trust-region iterations by subproblem path and outcome.",
		}, []string{"path", "accepted"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Optimization runs in progress.",
		}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_iterations",
			Help:      "Iterations per finished run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 9),
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock time per finished run.",
			Buckets:   prometheus.ExponentialBuckets(1e-4, 4, 10),
		}),
		residual: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_residual",
			Help:      "Final ‖Ax - x0‖∞ per finished run in solver units.",
			Buckets:   prometheus.ExponentialBuckets(1e-16, 100, 9),
		}),
	}
	for _, c := range []prometheus.Collector{s.runs, s.steps, s.active, s.iterations, s.duration, s.residual} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Sink) Record(e trust.Event) {
	switch e.Kind {
	case trust.EventStart:
		s.active.Inc()
	case trust.EventIteration:
		accepted := "false"
		if e.Accepted {
			accepted = "true"
		}
		s.steps.WithLabelValues(e.Path.String(), accepted).Inc()
	case trust.EventFinish:
		s.active.Dec()
		s.runs.WithLabelValues(e.Status.String()).Inc()
		s.iterations.Observe(float64(e.Iter))
		s.duration.Observe(e.Elapsed.Seconds())
		s.residual.Observe(e.Error)
	}
}
