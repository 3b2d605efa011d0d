package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazyhaar/polwatch/workflow"
)

// Metrics holds the service counters on a dedicated registry. It is the
// runner's workflow.Observer.
type Metrics struct {
	reg *prometheus.Registry

	stepAttempts *prometheus.CounterVec
	tasks        *prometheus.CounterVec
	checks       *prometheus.CounterVec
	changes      *prometheus.CounterVec
}

// NewMetrics registers the polwatch counters on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		stepAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "polwatch_step_attempts_total",
			Help: "Step invocations, retries included.",
		}, []string{"step"}),
		tasks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "polwatch_tasks_total",
			Help: "Finished tasks by step and terminal status.",
		}, []string{"step", "status"}),
		checks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "polwatch_checks_total",
			Help: "Finished policy checks by outcome.",
		}, []string{"status"}),
		changes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "polwatch_changes_total",
			Help: "Detected changes by impact level.",
		}, []string{"impact"}),
	}
}

func (m *Metrics) Attempt(step string) {
	m.stepAttempts.WithLabelValues(step).Inc()
}

func (m *Metrics) Finished(step string, status workflow.TaskStatus) {
	m.tasks.WithLabelValues(step, string(status)).Inc()
}

// ObserveReport counts a finished check and its changes.
func (m *Metrics) ObserveReport(r *workflow.Report) {
	m.checks.WithLabelValues(string(r.Status)).Inc()
	if r.Result == nil {
		return
	}
	for _, c := range r.Result.Changes {
		m.changes.WithLabelValues(string(c.Impact)).Inc()
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
