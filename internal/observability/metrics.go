package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "road_intensity"

// Metrics holds the Prometheus counters, histograms, and gauges for the styling service.
type Metrics struct {
	SnapshotsConsumed prometheus.Counter
	SnapshotsProduced prometheus.Counter
	TransformErrors   prometheus.Counter
	PipelineRunning   prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Styling metrics.
	InvalidIntensities *prometheus.CounterVec // labels: kind
	TableRebuilds      *prometheus.CounterVec // labels: kind, outcome={success,error}
	TableEntries       *prometheus.GaugeVec   // labels: kind

	// Rendering metrics.
	RenderUpdateErrors prometheus.Counter
	RenderAckDuration  prometheus.Histogram

	// Analysis backend client metrics.
	BackendRequests *prometheus.CounterVec   // labels: endpoint, outcome={success,error,task_error}
	BackendDuration *prometheus.HistogramVec // labels: endpoint
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.SnapshotsConsumed,
		m.SnapshotsProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.InvalidIntensities,
		m.TableRebuilds,
		m.TableEntries,
		m.RenderUpdateErrors,
		m.RenderAckDuration,
		m.BackendRequests,
		m.BackendDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// NewUnregisteredMetrics creates Metrics that are never exported, for
// one-shot command line tools that share clients with the service.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SnapshotsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_consumed_total",
			Help:      "Total snapshots read from the source.",
		}),
		SnapshotsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_produced_total",
			Help:      "Total styled snapshots written to the sink topic.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Total snapshots that could not be styled.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of snapshots per extracted batch.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-style-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		InvalidIntensities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_intensities_total",
			Help:      "Segment values styled with the fallback color, by kind.",
		}, []string{"kind"}),
		TableRebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_rebuilds_total",
			Help:      "Color table rebuilds by kind and outcome.",
		}, []string{"kind", "outcome"}),
		TableEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "table_entries",
			Help:      "Entries in the active color table, by kind.",
		}, []string{"kind"}),
		RenderUpdateErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_update_errors_total",
			Help:      "Layer updates that failed and were swallowed.",
		}),
		RenderAckDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_ack_duration_seconds",
			Help:      "Time from a visualization update to its two-frame acknowledgement.",
			Buckets:   []float64{0.016, 0.033, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Analysis backend requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Analysis backend request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"endpoint"}),
	}
}
