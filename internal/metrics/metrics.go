package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "slack_digest"

// Metrics holds the collectors recorded by digest runs. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	runs             prometheus.Counter
	messages         *prometheus.CounterVec
	summarizeSeconds prometheus.Histogram
	missingCitations prometheus.Gauge
	publishFailures  *prometheus.CounterVec
	lastRun          prometheus.Gauge
	lastRunMessages  prometheus.Gauge
}

// New creates the collectors on a fresh registry, together with the Go
// runtime collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Digest runs started.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_fetched_total",
			Help:      "Messages collected, by channel id.",
		}, []string{"channel"}),
		summarizeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "summarize_duration_seconds",
			Help:      "Time spent waiting for the text-generation backend.",
			Buckets:   []float64{1, 5, 15, 30, 60, 90, 120, 180},
		}),
		missingCitations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "digest_missing_citations",
			Help:      "Bullets without an inline link in the latest digest.",
		}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Failed deliveries, by publisher.",
		}, []string{"publisher"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the latest run finished.",
		}),
		lastRunMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_messages",
			Help:      "Messages analyzed by the latest run.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.runs,
		m.messages,
		m.summarizeSeconds,
		m.missingCitations,
		m.publishFailures,
		m.lastRun,
		m.lastRunMessages,
	)
	return m
}

// Gatherer exposes the registry for /metrics.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.runs.Inc()
}

func (m *Metrics) MessagesFetched(channelID string, n int) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(channelID).Add(float64(n))
}

func (m *Metrics) Summarized(d time.Duration) {
	if m == nil {
		return
	}
	m.summarizeSeconds.Observe(d.Seconds())
}

func (m *Metrics) MissingCitations(n int) {
	if m == nil {
		return
	}
	m.missingCitations.Set(float64(n))
}

func (m *Metrics) PublishFailed(publisher string) {
	if m == nil {
		return
	}
	m.publishFailures.WithLabelValues(publisher).Inc()
}

// RunFinished records the completion time and message total of a run.
func (m *Metrics) RunFinished(at time.Time, messages int) {
	if m == nil {
		return
	}
	m.lastRun.Set(float64(at.Unix()))
	m.lastRunMessages.Set(float64(messages))
}
