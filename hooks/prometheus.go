package hooks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Skryldev/image-compressor/core"
)

// PrometheusMetrics is a core.MetricsCollector backed by Prometheus vectors.
type PrometheusMetrics struct {
	stepDuration   *prometheus.HistogramVec
	stepErrors     *prometheus.CounterVec
	outputsTotal   *prometheus.CounterVec
	outputBytes    *prometheus.HistogramVec
	encodeAttempts *prometheus.HistogramVec
}

// NewPrometheusMetrics registers the compressor metrics with reg under
// namespace.  A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &PrometheusMetrics{
		stepDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Pipeline step duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"step"},
		),
		stepErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "step_errors_total",
				Help:      "Total number of failed pipeline steps",
			},
			[]string{"step", "category"},
		),
		outputsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outputs_total",
				Help:      "Total number of compressed outputs",
			},
			[]string{"format"},
		),
		outputBytes: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "output_bytes",
				Help:      "Size of compressed outputs in bytes",
				Buckets:   prometheus.ExponentialBuckets(16*1024, 2, 10),
			},
			[]string{"format"},
		),
		encodeAttempts: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "encode_attempts",
				Help:      "Encode attempts per output",
				Buckets:   prometheus.LinearBuckets(1, 1, 8),
			},
			[]string{"format"},
		),
	}
}

func (p *PrometheusMetrics) RecordProcessingTime(stepName string, d interface{ Seconds() float64 }) {
	p.stepDuration.WithLabelValues(stepName).Observe(d.Seconds())
}

func (p *PrometheusMetrics) RecordOutput(format core.OutputFormat, bytes int64, attempts int) {
	f := format.String()
	p.outputsTotal.WithLabelValues(f).Inc()
	p.outputBytes.WithLabelValues(f).Observe(float64(bytes))
	p.encodeAttempts.WithLabelValues(f).Observe(float64(attempts))
}

func (p *PrometheusMetrics) RecordError(stepName string, category string) {
	p.stepErrors.WithLabelValues(stepName, category).Inc()
}

var _ core.MetricsCollector = (*PrometheusMetrics)(nil)
