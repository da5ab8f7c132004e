// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trust

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// EventKind tells which stage of a run emitted an Event.
type EventKind int

const (
	// EventStart is emitted once before the first iteration.
	EventStart EventKind = iota
	// EventDerivativeCheck carries the finite-difference comparison at 𝛌₀.
	EventDerivativeCheck
	// EventIteration is emitted after every trust-region iteration.
	EventIteration
	// EventFinish is emitted once with the terminal status.
	EventFinish
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventDerivativeCheck:
		return "derivative-check"
	case EventIteration:
		return "iteration"
	case EventFinish:
		return "finish"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is the structured record a run reports to its Sink.
type Event struct {
	Kind EventKind
	// Problem size, set on EventStart.
	M, N int
	// Completed iterations.
	Iter int
	// Dual objective at the current multipliers.
	Value float64
	// ‖𝐀𝐱 - 𝐱₀‖∞ at the current multipliers, which is also ‖𝜵𝒈‖∞.
	Error float64
	// Trust-region radius after the update.
	Delta float64
	// Gain ratio of the last step.
	Rho float64
	// Whether the last step was accepted.
	Accepted bool
	// Euclidean norm of the last step.
	StepNorm float64
	// Subproblem branch that produced the last step.
	Path Path
	// Largest relative gradient and curvature discrepancy, set on EventDerivativeCheck.
	GradDiff, CurvDiff float64
	// Terminal status, set on EventFinish.
	Status  Status
	Elapsed time.Duration
}

// String renders the event as a single log line.
func (e Event) String() string {
	switch e.Kind {
	case EventStart:
		return "Starting COFFEE optimization...\n"
	case EventDerivativeCheck:
		return fmt.Sprintf("Derivative check: gradient = %.3e, curvature = %.3e\n", e.GradDiff, e.CurvDiff)
	case EventIteration:
		return fmt.Sprintf("Iteration %d: f = %.12f, error = %.6e\n", e.Iter, e.Value, e.Error)
	case EventFinish:
		switch e.Status {
		case Converged:
			return fmt.Sprintf("Optimization complete after %d iterations.\n", e.Iter)
		case Failed:
			return fmt.Sprintf("Optimization failed after %d iterations.\n", e.Iter)
		default:
			return fmt.Sprintf("Optimization did not converge after %d iterations: %s.\n", e.Iter, e.Status)
		}
	}
	return e.Kind.String() + "\n"
}

// Sink receives the events of a run. Implementations shared between
// goroutines must be safe for concurrent use.
type Sink interface {
	Record(e Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(e Event)

func (f SinkFunc) Record(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

type teeSink []Sink

func (t teeSink) Record(e Event) {
	for _, s := range t {
		s.Record(e)
	}
}

// Tee forwards every event to all given sinks in order, nil sinks are skipped.
func Tee(sinks ...Sink) Sink {
	var t teeSink
	for _, s := range sinks {
		if s != nil {
			t = append(t, s)
		}
	}
	switch len(t) {
	case 0:
		return Discard
	case 1:
		return t[0]
	}
	return t
}

// LogLevel controls the frequency and type of logger output
type LogLevel int

const (
	// LogNoop no output is generated (level < 0)
	LogNoop LogLevel = -1
	// LogLast print only the start and the final line
	LogLast LogLevel = 0
	// LogEval print also f and the conservation error at every iteration
	LogEval LogLevel = 1
	// LogTrace print also the radius, gain ratio and subproblem branch of every iteration
	LogTrace LogLevel = 99
)

// Logger writes events as text lines.
type Logger struct {
	Level LogLevel
	Msg   io.Writer // Writer to output log messages, os.Stdout when nil.
	mu    sync.Mutex
}

// NewLogger creates a Logger writing to w.
func NewLogger(w io.Writer, level LogLevel) *Logger {
	return &Logger{Level: level, Msg: w}
}

func (l *Logger) enable(level LogLevel) bool {
	return l.Level >= level
}

func (l *Logger) Record(e Event) {
	switch e.Kind {
	case EventIteration:
		if !l.enable(LogEval) {
			return
		}
	case EventDerivativeCheck:
		if !l.enable(LogEval) {
			return
		}
	default:
		if !l.enable(LogLast) {
			return
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.Msg
	if w == nil {
		w = os.Stdout
	}
	_, _ = fmt.Fprint(w, e.String())
	if e.Kind == EventIteration && l.enable(LogTrace) {
		_, _ = fmt.Fprintf(w, "    delta= %12.5e  rho= %12.5e  |p|= %12.5e  accepted= %-5t  path= %s\n",
			e.Delta, e.Rho, e.StepNorm, e.Accepted, e.Path)
	}
}

// recorder keeps the rendered events of one run for Result.Messages.
type recorder struct {
	sink Sink
	msgs []string
}

func (r *recorder) emit(e Event) {
	r.msgs = append(r.msgs, e.String())
	r.sink.Record(e)
}
