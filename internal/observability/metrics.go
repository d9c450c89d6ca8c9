package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flood_map"

// Metrics holds the Prometheus counters, histograms, and gauges for the data pipeline.
type Metrics struct {
	// Feed metrics.
	FeedRequests *prometheus.CounterVec // labels: kind={full,token}, outcome={success,error}
	FeedDuration prometheus.Histogram

	// Cache metrics.
	CacheOps *prometheus.CounterVec // labels: op={get,put,clear}, result={hit,miss,expired,stored,skipped,retried,failed,cleared}

	// Normalization metrics.
	ItemsNormalized    prometheus.Counter
	ItemsRejected      prometheus.Counter
	ProcessingErrors   prometheus.Counter
	ProcessingFallback prometheus.Counter
	ProcessingDuration prometheus.Histogram

	// Controller metrics.
	LoadState       prometheus.Gauge // 0 idle, 1 loading, 2 ready, 3 failed
	RecordsLoaded   prometheus.Gauge
	RecordsFiltered prometheus.Gauge
	PollTicks       *prometheus.CounterVec // labels: outcome={changed,unchanged,adopted,error}
	PollerRunning   prometheus.Gauge

	// Rendering metrics.
	RenderJobs          *prometheus.CounterVec // labels: result={completed,cancelled}
	MarkersRendered     prometheus.Counter
	RenderProgress      prometheus.Gauge
	MarkerPublishErrors prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		FeedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_requests_total",
			Help:      "Upstream feed requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
		FeedDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_request_duration_seconds",
			Help:      "Duration of full feed downloads.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		CacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Cache store operations by op and result.",
		}, []string{"op", "result"}),
		ItemsNormalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_normalized_total",
			Help:      "Feed items that became incident records.",
		}),
		ItemsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_rejected_total",
			Help:      "Feed items dropped by validation.",
		}),
		ProcessingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processing_errors_total",
			Help:      "Offloaded normalization jobs that failed.",
		}),
		ProcessingFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processing_fallback_total",
			Help:      "Normalization jobs run synchronously because offload was unavailable.",
		}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_seconds",
			Help:      "Duration of envelope normalization.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		LoadState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "load_state",
			Help:      "Controller state: 0 idle, 1 loading, 2 ready, 3 failed.",
		}),
		RecordsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_loaded",
			Help:      "Incident records in the current set.",
		}),
		RecordsFiltered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_filtered",
			Help:      "Incident records passing the current filter.",
		}),
		PollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Freshness polls by outcome.",
		}, []string{"outcome"}),
		PollerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poller_running",
			Help:      "1 when the polling loop is active, 0 when shut down.",
		}),
		RenderJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_jobs_total",
			Help:      "Marker render jobs by result.",
		}, []string{"result"}),
		MarkersRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "markers_rendered_total",
			Help:      "Markers added to the map surface.",
		}),
		RenderProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "render_progress_ratio",
			Help:      "Progress of the running render job, 0 to 1.",
		}),
		MarkerPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "marker_publish_errors_total",
			Help:      "Marker batches that failed to publish to Kafka.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FeedRequests,
		m.FeedDuration,
		m.CacheOps,
		m.ItemsNormalized,
		m.ItemsRejected,
		m.ProcessingErrors,
		m.ProcessingFallback,
		m.ProcessingDuration,
		m.LoadState,
		m.RecordsLoaded,
		m.RecordsFiltered,
		m.PollTicks,
		m.PollerRunning,
		m.RenderJobs,
		m.MarkersRendered,
		m.RenderProgress,
		m.MarkerPublishErrors,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
