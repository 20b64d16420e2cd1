package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ocean_contour"

// Metrics holds the Prometheus counters, histograms, and gauges for the contour service.
type Metrics struct {
	SamplesLoaded   prometheus.Counter
	SamplesRejected prometheus.Counter

	// Warm pass metrics.
	WarmState     prometheus.Gauge
	KeysComputed  *prometheus.CounterVec   // labels: status={contours,insufficient,empty_region,failed}
	StageDuration *prometheus.HistogramVec // labels: stage={interpolate,extract,clip}
	KeyDuration   prometheus.Histogram
	WarmDuration  prometheus.Histogram

	ClipFallbacks prometheus.Counter

	// Serving metrics.
	Lookups *prometheus.CounterVec // labels: result={found,not_ready,not_found,invalid}

	// Optional collaborators.
	MirrorLookups *prometheus.CounterVec // labels: result={hit,miss,error}
	SinkErrors    prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		SamplesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_loaded_total",
			Help:      "Total sample records accepted at startup.",
		}),
		SamplesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_rejected_total",
			Help:      "Total sample records dropped because a required field did not parse.",
		}),
		WarmState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "Service lifecycle state: 0 uninitialized, 1 loading, 2 region ready, 3 warming, 4 ready, 5 failed.",
		}),
		KeysComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keys_computed_total",
			Help:      "Contour sets written to the cache by status.",
		}, []string{"status"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of one pipeline stage for one key.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"stage"}),
		KeyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "key_duration_seconds",
			Help:      "Duration of a complete interpolate-extract-clip cycle for one key.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		WarmDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "warm_duration_seconds",
			Help:      "Duration of the full warm pass.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),
		ClipFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clip_fallbacks_total",
			Help:      "Lines kept unclipped because land clipping failed.",
		}),
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Contour lookups by result.",
		}, []string{"result"}),
		MirrorLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_lookups_total",
			Help:      "Shared mirror reads during the warm pass by result.",
		}, []string{"result"}),
		SinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Contour sets that could not be published.",
		}),
	}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.SamplesLoaded,
		m.SamplesRejected,
		m.WarmState,
		m.KeysComputed,
		m.StageDuration,
		m.KeyDuration,
		m.WarmDuration,
		m.ClipFallbacks,
		m.Lookups,
		m.MirrorLookups,
		m.SinkErrors,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
