package timetable

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics captures solve observations for operational dashboards.
type Metrics struct {
	solveDuration *prometheus.HistogramVec
	solveTotal    *prometheus.CounterVec
	modelVars     prometheus.Gauge
	modelConstrs  prometheus.Gauge
}

// NewMetrics registers the engine collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		solveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "timetable",
			Name:      "solve_duration_seconds",
			Help:      "Wall-clock duration of solver runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"status"}),
		solveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timetable",
			Name:      "solve_total",
			Help:      "Solver runs by final status.",
		}, []string{"status"}),
		modelVars: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "timetable",
			Name:      "model_variables",
			Help:      "Boolean variables in the last built model.",
		}),
		modelConstrs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "timetable",
			Name:      "model_constraints",
			Help:      "Constraints in the last built model.",
		}),
	}
	for _, c := range []prometheus.Collector{m.solveDuration, m.solveTotal, m.modelVars, m.modelConstrs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveSolve records one finished solve.
func (m *Metrics) ObserveSolve(status string, elapsed time.Duration, vars, constraints int) {
	if m == nil {
		return
	}
	m.solveDuration.WithLabelValues(status).Observe(elapsed.Seconds())
	m.solveTotal.WithLabelValues(status).Inc()
	m.modelVars.Set(float64(vars))
	m.modelConstrs.Set(float64(constraints))
}
