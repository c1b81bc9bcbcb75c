package instrument

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"popconn/ports"
)

// RunMetrics records permutation run activity. It implements
// ports.RunObserver.
type RunMetrics struct {
	registry *prometheus.Registry

	trialsTotal *prometheus.CounterVec
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	httpTotal   *prometheus.CounterVec
}

var _ ports.RunObserver = (*RunMetrics)(nil)

// NewRunMetrics registers the run metrics on a fresh registry, so several
// instances (tests, embedded servers) never collide.
func NewRunMetrics() *RunMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &RunMetrics{
		registry: reg,
		trialsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "popconn_permutation_trials_total",
			Help: "Completed permutation trials by metric",
		}, []string{"metric"}),
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "popconn_permutation_runs_total",
			Help: "Finished permutation runs by metric and outcome",
		}, []string{"metric", "outcome"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "popconn_permutation_run_duration_seconds",
			Help:    "Wall time of permutation runs",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"metric"}),
		httpTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "popconn_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
}

// TrialCompleted counts one finished trial
func (m *RunMetrics) TrialCompleted(metric string) {
	m.trialsTotal.WithLabelValues(metric).Inc()
}

// RunFinished records a run outcome and its duration
func (m *RunMetrics) RunFinished(metric string, outcome string, elapsed time.Duration) {
	m.runsTotal.WithLabelValues(metric, outcome).Inc()
	m.runDuration.WithLabelValues(metric).Observe(elapsed.Seconds())
}

// RequestServed counts one HTTP response
func (m *RunMetrics) RequestServed(route, code string) {
	m.httpTotal.WithLabelValues(route, code).Inc()
}

// Handler exposes the registry in the Prometheus text format
func (m *RunMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}
