// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curioloop/coffee/trust"
)

func TestSinkCounts(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	s, err := New(reg)
	require.NoError(t, err)

	s.Record(trust.Event{Kind: trust.EventStart})
	assert.Equal(t, 1.0, testutil.ToFloat64(s.active))

	s.Record(trust.Event{Kind: trust.EventIteration, Path: trust.PathDogleg, Accepted: true})
	s.Record(trust.Event{Kind: trust.EventIteration, Path: trust.PathDogleg, Accepted: true})
	s.Record(trust.Event{Kind: trust.EventIteration, Path: trust.PathCauchy})
	s.Record(trust.Event{Kind: trust.EventFinish, Iter: 3, Status: trust.Converged, Error: 1e-15, Elapsed: time.Millisecond})

	assert.Equal(t, 0.0, testutil.ToFloat64(s.active))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.steps.WithLabelValues("dogleg", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.steps.WithLabelValues("cauchy", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.runs.WithLabelValues("converged")))

	expected := `
# HELP coffee_runs_total Finished optimization runs by terminal status.
# TYPE coffee_runs_total counter
coffee_runs_total{status="converged"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "coffee_runs_total"))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 6)
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}
