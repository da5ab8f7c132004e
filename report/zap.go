// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"go.uber.org/zap"

	"github.com/curioloop/coffee/trust"
)

// ZapSink forwards solver events to a zap logger. Iterations are logged at debug level.
type ZapSink struct {
	Logger *zap.Logger
}

// NewZapSink creates a sink on logger, named "solver".
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{Logger: logger.Named("solver")}
}

func (s *ZapSink) Record(e trust.Event) {
	switch e.Kind {
	case trust.EventStart:
		s.Logger.Info("optimization started",
			zap.Int("monomers", e.M),
			zap.Int("polymers", e.N),
			zap.Float64("delta", e.Delta))
	case trust.EventDerivativeCheck:
		s.Logger.Info("derivative check",
			zap.Float64("gradient", e.GradDiff),
			zap.Float64("curvature", e.CurvDiff))
	case trust.EventIteration:
		if ce := s.Logger.Check(zap.DebugLevel, "iteration"); ce != nil {
			ce.Write(
				zap.Int("iter", e.Iter),
				zap.Float64("f", e.Value),
				zap.Float64("error", e.Error),
				zap.Float64("delta", e.Delta),
				zap.Float64("rho", e.Rho),
				zap.Bool("accepted", e.Accepted),
				zap.Stringer("path", e.Path))
		}
	case trust.EventFinish:
		fields := []zap.Field{
			zap.Stringer("status", e.Status),
			zap.Int("iterations", e.Iter),
			zap.Float64("f", e.Value),
			zap.Float64("error", e.Error),
			zap.Duration("elapsed", e.Elapsed),
		}
		if e.Status == trust.Failed {
			s.Logger.Warn("optimization failed", fields...)
		} else {
			s.Logger.Info("optimization finished", fields...)
		}
	}
}
