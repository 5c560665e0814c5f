// Package metrics provides Prometheus metrics instrumentation for the
// calibration solver.
//
// It exposes operational metrics about the solve pipeline, including the
// duration of each stage (fetch, solve), the iteration count and residual of
// the latest solution, the solution age, and error tracking. All metrics are
// exposed via the /metrics HTTP endpoint for Prometheus scraping.
//
// Metrics exposed:
//   - rxcal_adapter_fetch_seconds: Histogram of observation fetch duration
//   - rxcal_solver_solve_seconds: Histogram of calibration solve duration
//   - rxcal_solver_iterations: Gauge of the latest solve's iteration count
//   - rxcal_solution_residual_kelvin: Gauge of the latest worst-case residual
//   - rxcal_solution_age_seconds: Gauge of the current solution age
//   - rxcal_errors_total: Counter of errors by component and reason
//
// All metrics include the observation label.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the solver.
type Metrics struct {
	AdapterFetchSeconds    prometheus.Histogram
	SolverSolveSeconds     prometheus.Histogram
	SolverIterations       prometheus.Gauge
	SolutionResidualKelvin prometheus.Gauge
	SolutionAgeSeconds     prometheus.Gauge
	ErrorsTotal            *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New(observation string) *Metrics {
	return &Metrics{
		AdapterFetchSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "rxcal_adapter_fetch_seconds",
			Help: "Time spent fetching the observation from the adapter",
			ConstLabels: prometheus.Labels{
				"observation": observation,
			},
			Buckets: prometheus.DefBuckets,
		}),

		SolverSolveSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "rxcal_solver_solve_seconds",
			Help: "Time spent solving the calibration observation",
			ConstLabels: prometheus.Labels{
				"observation": observation,
			},
			Buckets: prometheus.DefBuckets,
		}),

		SolverIterations: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rxcal_solver_iterations",
			Help: "Iterations the latest solve took to converge",
			ConstLabels: prometheus.Labels{
				"observation": observation,
			},
		}),

		SolutionResidualKelvin: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rxcal_solution_residual_kelvin",
			Help: "Worst per-bin equation residual of the latest solution in Kelvin",
			ConstLabels: prometheus.Labels{
				"observation": observation,
			},
		}),

		SolutionAgeSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rxcal_solution_age_seconds",
			Help: "Age of the current stored solution in seconds",
			ConstLabels: prometheus.Labels{
				"observation": observation,
			},
		}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rxcal_errors_total",
			Help: "Total number of errors by component and reason",
			ConstLabels: prometheus.Labels{
				"observation": observation,
			},
		}, []string{"component", "reason"}),
	}
}

// RecordFetch records the time spent fetching the observation.
func (m *Metrics) RecordFetch(seconds float64) {
	m.AdapterFetchSeconds.Observe(seconds)
}

// RecordSolve records the time spent solving.
func (m *Metrics) RecordSolve(seconds float64) {
	m.SolverSolveSeconds.Observe(seconds)
}

// SetIterations sets the latest solve's iteration count.
func (m *Metrics) SetIterations(n int) {
	m.SolverIterations.Set(float64(n))
}

// SetResidual sets the latest solution's worst-case residual.
func (m *Metrics) SetResidual(kelvin float64) {
	m.SolutionResidualKelvin.Set(kelvin)
}

// SetSolutionAge sets the current solution age.
func (m *Metrics) SetSolutionAge(seconds float64) {
	m.SolutionAgeSeconds.Set(seconds)
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
