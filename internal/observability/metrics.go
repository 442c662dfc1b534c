package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "checkpoint_status"

// Metrics holds the Prometheus counters, histograms, and gauges for the status pipeline.
type Metrics struct {
	// Refresh scheduler metrics.
	RefreshCycles        *prometheus.CounterVec // labels: mode={foreground,background,reconcile}, outcome={published,offline,kept,empty}
	RefreshSkipped       prometheus.Counter
	RefreshDuration      prometheus.Histogram
	PublishedCheckpoints prometheus.Gauge
	SchedulerRunning     prometheus.Gauge

	// Traffic probe metrics.
	ProbeOutcomes  *prometheus.CounterVec // labels: outcome={ok,timeout,error,skipped-no-coordinate,skipped-disabled}
	ProbeDuration  prometheus.Histogram
	TrafficEnabled prometheus.Gauge

	// Mutation and sink metrics.
	Mutations    *prometheus.CounterVec // labels: kind={report,vote,blacklist-item}, outcome={committed,failed,rejected-in-flight}
	SinkFailures *prometheus.CounterVec // labels: sink={kafka,s3}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RefreshCycles,
		m.RefreshSkipped,
		m.RefreshDuration,
		m.PublishedCheckpoints,
		m.SchedulerRunning,
		m.ProbeOutcomes,
		m.ProbeDuration,
		m.TrafficEnabled,
		m.Mutations,
		m.SinkFailures,
	)
	return m
}

// NewUnregisteredMetrics creates Metrics outside any registry, for one-shot
// tools that run the pipeline without serving /metrics.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RefreshCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_cycles_total",
			Help:      "Completed refresh cycles by mode and outcome.",
		}, []string{"mode", "outcome"}),
		RefreshSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_skipped_total",
			Help:      "Refresh requests skipped because a cycle was already in flight.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete read-enrich-score-publish cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		}),
		PublishedCheckpoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "published_checkpoints",
			Help:      "Number of checkpoints in the currently published snapshot.",
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 when the refresh scheduler is active, 0 when shut down.",
		}),
		ProbeOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traffic_probes_total",
			Help:      "Traffic probes by outcome.",
		}, []string{"outcome"}),
		ProbeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "traffic_probe_duration_seconds",
			Help:      "Traffic service request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3},
		}),
		TrafficEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "traffic_enabled",
			Help:      "1 when traffic enrichment is enabled, 0 otherwise.",
		}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Optimistic mutations by kind and settlement outcome.",
		}, []string{"kind", "outcome"}),
		SinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_failures_total",
			Help:      "Snapshot sink publish failures by sink.",
		}, []string{"sink"}),
	}
}
