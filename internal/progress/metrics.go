package progress

import (
	"fmt"

	"github.com/MeKo-Tech/dmscan/internal/batch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsSink records job progress as Prometheus metrics in its own
// registry, so a run can be exported as a node-exporter textfile.
type MetricsSink struct {
	registry *prometheus.Registry

	imagesTotal      *prometheus.CounterVec
	matricesTotal    prometheus.Counter
	failuresTotal    *prometheus.CounterVec
	matricesPerImage prometheus.Histogram
	jobDuration      prometheus.Gauge
	jobCancelled     prometheus.Gauge
	lastPosition     prometheus.Gauge
	imagesInJob      prometheus.Gauge
}

// NewMetricsSink creates a sink with a fresh registry.
func NewMetricsSink() *MetricsSink {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &MetricsSink{
		registry: reg,
		imagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dmscan_images_total",
				Help: "Total number of images handled",
			},
			[]string{"status"}, // status: completed, failed
		),
		matricesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dmscan_matrices_extracted_total",
				Help: "Total number of matrices written to disk",
			},
		),
		failuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dmscan_failures_total",
				Help: "Total number of failures by error kind",
			},
			[]string{"kind"},
		),
		matricesPerImage: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dmscan_matrices_per_image",
				Help:    "Number of matrices detected per completed image",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
			},
		),
		jobDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dmscan_job_duration_seconds",
				Help: "Duration of the last job in seconds",
			},
		),
		jobCancelled: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dmscan_job_cancelled",
				Help: "1 if the last job was cancelled",
			},
		),
		lastPosition: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dmscan_job_position",
				Help: "Position of the image currently being processed",
			},
		),
		imagesInJob: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dmscan_job_images",
				Help: "Number of images in the current job",
			},
		),
	}
}

// Registry returns the registry holding the sink's metrics.
func (m *MetricsSink) Registry() *prometheus.Registry { return m.registry }

func (m *MetricsSink) Emit(e batch.Event) {
	switch e.Kind {
	case batch.EventImageStarted:
		m.lastPosition.Set(float64(e.Position))
		m.imagesInJob.Set(float64(e.Total))
	case batch.EventMatrixFound:
		m.matricesTotal.Inc()
	case batch.EventImageCompleted:
		m.imagesTotal.WithLabelValues("completed").Inc()
		m.matricesPerImage.Observe(float64(e.Count))
	case batch.EventImageFailed:
		m.failuresTotal.WithLabelValues(string(e.ErrKind)).Inc()
		if e.Index == 0 {
			m.imagesTotal.WithLabelValues("failed").Inc()
		}
	case batch.EventJobCompleted, batch.EventJobFailed:
		if e.Kind == batch.EventJobFailed {
			m.failuresTotal.WithLabelValues(string(e.ErrKind)).Inc()
		}
		if e.Summary != nil {
			m.jobDuration.Set(e.Summary.Duration.Seconds())
			if e.Summary.Cancelled {
				m.jobCancelled.Set(1)
			} else {
				m.jobCancelled.Set(0)
			}
		}
	}
}

// WriteTextfile writes all metrics in the text exposition format.
func (m *MetricsSink) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
