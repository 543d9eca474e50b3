package timetable

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsObserveSolve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.ObserveSolve("optimal", 120*time.Millisecond, 40, 90)
	m.ObserveSolve("optimal", 80*time.Millisecond, 40, 90)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.solveTotal.WithLabelValues("optimal")))
	assert.Equal(t, float64(40), testutil.ToFloat64(m.modelVars))
	assert.Equal(t, float64(90), testutil.ToFloat64(m.modelConstrs))
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSolve("feasible", time.Second, 1, 1)
	})
}

func TestMetricsDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.Error(t, err)
}
