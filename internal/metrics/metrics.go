package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aquasim"

const (
	OutcomeOK           = "ok"
	OutcomeStoreError   = "store_error"
	OutcomePublishError = "publish_error"
)

// Metrics owns a private registry so tests can build as many as they need
type Metrics struct {
	registry *prometheus.Registry

	ticks          *prometheus.CounterVec
	tickDuration   prometheus.Histogram
	anomalies      prometheus.Counter
	elapsedSeconds *prometheus.GaugeVec
	resets         *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Generated measurements by organism and outcome.",
		}, []string{"organism", "outcome"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one scheduler tick covering both organisms.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		anomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trucha_anomalies_total",
			Help:      "Fish ticks drawn from the out-of-range branch.",
		}),
		elapsedSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "elapsed_seconds",
			Help:      "Simulated seconds of the last generated record.",
		}, []string{"organism"}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resets_total",
			Help:      "Organism resets to genesis.",
		}, []string{"organism"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ticks,
		m.tickDuration,
		m.anomalies,
		m.elapsedSeconds,
		m.resets,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) TickGenerated(organism, outcome string, elapsed int64) {
	m.ticks.WithLabelValues(organism, outcome).Inc()
	if outcome != OutcomeStoreError {
		m.elapsedSeconds.WithLabelValues(organism).Set(float64(elapsed))
	}
}

func (m *Metrics) Anomaly() {
	m.anomalies.Inc()
}

func (m *Metrics) TickDuration(d time.Duration) {
	m.tickDuration.Observe(d.Seconds())
}

func (m *Metrics) Reset(organism string) {
	m.resets.WithLabelValues(organism).Inc()
	m.elapsedSeconds.WithLabelValues(organism).Set(0)
}
