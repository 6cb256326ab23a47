package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quickpay"

// Collectors groups the pipeline's Prometheus instruments. A nil
// *Collectors is valid and records nothing.
type Collectors struct {
	registry *prometheus.Registry

	recordsGenerated *prometheus.CounterVec
	recordsLoaded    *prometheus.CounterVec
	qualityScore     prometheus.Gauge
	checkResults     *prometheus.CounterVec
	stepDuration     *prometheus.HistogramVec
	stepRuns         *prometheus.CounterVec
	exportRows       *prometheus.GaugeVec
	notifications    *prometheus.CounterVec
}

// New registers every collector on a fresh registry together with the Go
// and process collectors.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	c := &Collectors{
		registry: reg,
		recordsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_generated_total",
			Help:      "Synthetic records produced, by kind.",
		}, []string{"kind"}),
		recordsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_loaded_total",
			Help:      "Records written to a sink, by sink and kind.",
		}, []string{"sink", "kind"}),
		qualityScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quality_score",
			Help:      "Score of the most recent quality run (0-100).",
		}),
		checkResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quality_check_results_total",
			Help:      "Quality check outcomes, by check, severity and result.",
		}, []string{"check", "severity", "result"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_step_duration_seconds",
			Help:      "Duration of flow steps.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"flow", "step"}),
		stepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_step_runs_total",
			Help:      "Flow step outcomes, by flow, step and state.",
		}, []string{"flow", "step", "state"}),
		exportRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "export_rows",
			Help:      "Rows in the most recent export, by view.",
		}, []string{"view"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification attempts, by kind and result.",
		}, []string{"kind", "result"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.recordsGenerated, c.recordsLoaded, c.qualityScore, c.checkResults,
		c.stepDuration, c.stepRuns, c.exportRows, c.notifications,
	)
	return c
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collectors) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collectors) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collectors) RecordsGenerated(kind string, n int) {
	if c == nil {
		return
	}
	c.recordsGenerated.WithLabelValues(kind).Add(float64(n))
}

func (c *Collectors) RecordsLoaded(sink, kind string, n int) {
	if c == nil {
		return
	}
	c.recordsLoaded.WithLabelValues(sink, kind).Add(float64(n))
}

func (c *Collectors) QualityScore(score float64) {
	if c == nil {
		return
	}
	c.qualityScore.Set(score)
}

func (c *Collectors) CheckResult(check, severity string, passed bool) {
	if c == nil {
		return
	}
	result := "failed"
	if passed {
		result = "passed"
	}
	c.checkResults.WithLabelValues(check, severity, result).Inc()
}

func (c *Collectors) StepFinished(flow, step, state string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.stepDuration.WithLabelValues(flow, step).Observe(elapsed.Seconds())
	c.stepRuns.WithLabelValues(flow, step, state).Inc()
}

func (c *Collectors) ExportRows(view string, n int) {
	if c == nil {
		return
	}
	c.exportRows.WithLabelValues(view).Set(float64(n))
}

func (c *Collectors) Notification(kind string, err error) {
	if c == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "error"
	}
	c.notifications.WithLabelValues(kind, result).Inc()
}
