// Package metrics exposes Prometheus instruments for resurrection runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "necromancer"

// Metrics holds the instruments for one process, registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	projectsScraped *prometheus.CounterVec
	sourceFailures  *prometheus.CounterVec
	classifications *prometheus.CounterVec
	narrations      *prometheus.CounterVec
	runs            *prometheus.CounterVec
	runDuration     prometheus.Histogram
	lastRunProjects prometheus.Gauge
	lastRunUnix     prometheus.Gauge
}

// New creates the instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	auto := promauto.With(reg)

	return &Metrics{
		registry: reg,
		projectsScraped: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projects_scraped_total",
			Help:      "Projects recovered, by source.",
		}, []string{"source"}),
		sourceFailures: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Sources that panicked or timed out, by source.",
		}, []string{"source"}),
		classifications: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Category decisions, by deciding tier.",
		}, []string{"tier"}),
		narrations: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narrations_total",
			Help:      "Summaries written, by deciding tier.",
		}, []string{"tier"}),
		runs: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Resurrection runs, by final status.",
		}, []string{"status"}),
		runDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full resurrection.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		lastRunProjects: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_projects",
			Help:      "Projects in the most recent portfolio.",
		}),
		lastRunUnix: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the most recent run finished.",
		}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSource records one source's outcome. Signature matches collect.WithObserver.
func (m *Metrics) ObserveSource(source string, found int, failed bool) {
	if failed {
		m.sourceFailures.WithLabelValues(source).Inc()
		return
	}
	m.projectsScraped.WithLabelValues(source).Add(float64(found))
}

// ObserveClassification counts one category decision.
func (m *Metrics) ObserveClassification(tier string) {
	m.classifications.WithLabelValues(tier).Inc()
}

// ObserveNarration counts one summary.
func (m *Metrics) ObserveNarration(tier string) {
	m.narrations.WithLabelValues(tier).Inc()
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(status string, d time.Duration, projects int) {
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
	m.lastRunProjects.Set(float64(projects))
	m.lastRunUnix.Set(float64(time.Now().Unix()))
}
