package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// forecast-to-S111 pipeline.
type Metrics struct {
	CyclesProcessed prometheus.Counter
	CyclesFailed    prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Acquisition metrics.
	HoursDownloaded  prometheus.Counter
	HourGaps         prometheus.Counter
	DownloadDuration prometheus.Histogram

	// Encoding metrics.
	ArtifactsWritten        prometheus.Counter
	CycleProcessingDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CyclesProcessed,
		m.CyclesFailed,
		m.PipelineRunning,
		m.HoursDownloaded,
		m.HourGaps,
		m.DownloadDuration,
		m.ArtifactsWritten,
		m.CycleProcessingDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CyclesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ofs_s111",
			Name:      "cycles_processed_total",
			Help:      "Forecast cycles for which at least one artifact was produced.",
		}),
		CyclesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ofs_s111",
			Name:      "cycles_failed_total",
			Help:      "Forecast cycles that produced no artifact.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ofs_s111",
			Name:      "pipeline_running",
			Help:      "1 while a cycle is being processed, 0 otherwise.",
		}),
		HoursDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ofs_s111",
			Name:      "hours_downloaded_total",
			Help:      "Forecast hour files retrieved from the archive.",
		}),
		HourGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ofs_s111",
			Name:      "hour_gaps_total",
			Help:      "Forecast hours that could not be retrieved.",
		}),
		DownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ofs_s111",
			Name:      "download_duration_seconds",
			Help:      "Duration of the full per-cycle download stage.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		ArtifactsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ofs_s111",
			Name:      "artifacts_written_total",
			Help:      "S-111 HDF5 files written, counting each subgrid file.",
		}),
		CycleProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ofs_s111",
			Name:      "cycle_processing_duration_seconds",
			Help:      "Duration of a complete acquire-interpolate-encode cycle.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}),
	}
}
