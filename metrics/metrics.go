// Package metrics exports pipeline run statistics to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/use-agent/pagepipe/models"
	"github.com/use-agent/pagepipe/pipeline"
)

const namespace = "pagepipe"

// Run outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	stages   *prometheus.HistogramVec
	duration *prometheus.HistogramVec
	active   prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished pipeline runs by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_failures_total",
			Help:      "Failed pipeline runs by error code.",
		}, []string{"code"}),
		stages: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent reaching each pipeline stage.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of successful runs by strategy.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"strategy"}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Pipeline runs currently in progress.",
		}),
	}
}

// Observe records one runner event.
func (m *Metrics) Observe(e pipeline.Event) {
	switch e.State {
	case pipeline.StateDone:
		outcome := OutcomeOK
		if e.Degraded {
			outcome = OutcomeDegraded
		}
		m.runs.WithLabelValues(e.Strategy, outcome).Inc()
		m.duration.WithLabelValues(e.Strategy).Observe(e.Elapsed.Seconds())
	case pipeline.StateFailed:
		m.runs.WithLabelValues(e.Strategy, OutcomeFailed).Inc()
		code := models.ErrCodeInternal
		if se := models.AsScrapeError(e.Err, models.ErrCodeInternal); se != nil {
			code = se.Code
		}
		m.failures.WithLabelValues(code).Inc()
	default:
		m.stages.WithLabelValues(e.State.String()).Observe(e.Elapsed.Seconds())
	}
}

// Observer returns Observe as a pipeline.Observer, chained before next
// when next is non-nil.
func (m *Metrics) Observer(next pipeline.Observer) pipeline.Observer {
	return func(e pipeline.Event) {
		m.Observe(e)
		if next != nil {
			next(e)
		}
	}
}

// Track marks a run as active until the returned func is called.
func (m *Metrics) Track() (done func()) {
	m.active.Inc()
	return m.active.Dec
}

// Handler serves the collectors gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
