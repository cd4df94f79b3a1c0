package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// Metrics tracks pipeline activity on a dedicated Prometheus registry so
// /metrics exposes only drover series plus Go runtime collectors.
type Metrics struct {
	registry *prometheus.Registry

	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	activeRuns    prometheus.Gauge
	jobDuration   *prometheus.HistogramVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drover_runs_started_total",
			Help: "Workflow runs started.",
		}, []string{"workflow"}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drover_runs_completed_total",
			Help: "Workflow runs finished, by terminal status.",
		}, []string{"workflow", "status"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "drover_active_runs",
			Help: "Runs currently executing.",
		}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "drover_job_duration_seconds",
			Help:    "Wall time of finished jobs.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"workflow", "job"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.runsStarted,
		m.runsCompleted,
		m.activeRuns,
		m.jobDuration,
	)
	return m
}

// RunStarted records a run entering execution.
func (m *Metrics) RunStarted(workflow string) {
	m.runsStarted.WithLabelValues(workflow).Inc()
	m.activeRuns.Inc()
}

// RunCompleted records a run reaching a terminal status.
func (m *Metrics) RunCompleted(workflow string, status model.RunStatus) {
	m.runsCompleted.WithLabelValues(workflow, string(status)).Inc()
	m.activeRuns.Dec()
}

// ObserveJobDuration records the wall time of one finished job.
func (m *Metrics) ObserveJobDuration(workflow, job string, d time.Duration) {
	m.jobDuration.WithLabelValues(workflow, job).Observe(d.Seconds())
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
