package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var imagesProcessed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "imgopt_images_processed_total",
		Help: "Number of processed images by operation and outcome",
	},
	[]string{"operation", "outcome"},
)

var bytesProcessed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "imgopt_bytes_total",
		Help: "Bytes read and written by operation",
	},
	[]string{"operation", "direction"},
)

var processingDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "imgopt_processing_duration_seconds",
		Help:    "Time spent processing one image",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	},
	[]string{"operation"},
)

var formatFallbacks = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "imgopt_format_fallbacks_total",
		Help: "Number of images written in a substitute format",
	},
	[]string{"requested"},
)

var collectors = []prometheus.Collector{
	imagesProcessed,
	bytesProcessed,
	processingDuration,
	formatFallbacks,
}

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics records image processing metrics.
type Metrics interface {
	RecordImage(operation, outcome string, in, out int64, took time.Duration)
	RecordFallback(requested string)
}

type metricsImpl struct{}

// New registers the collectors on reg. Registering twice on the same
// registerer is tolerated.
func New(reg prometheus.Registerer) Metrics {
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}

	return &metricsImpl{}
}

// RecordImage counts one processed image and its byte sizes.
func (m *metricsImpl) RecordImage(operation, outcome string, in, out int64, took time.Duration) {
	imagesProcessed.WithLabelValues(operation, outcome).Inc()
	processingDuration.WithLabelValues(operation).Observe(took.Seconds())

	if outcome != OutcomeSuccess {
		return
	}
	bytesProcessed.WithLabelValues(operation, "in").Add(float64(in))
	bytesProcessed.WithLabelValues(operation, "out").Add(float64(out))
}

// RecordFallback counts an image written in another format than requested.
func (m *metricsImpl) RecordFallback(requested string) {
	formatFallbacks.WithLabelValues(requested).Inc()
}

// Noop discards every metric.
type Noop struct{}

func (Noop) RecordImage(string, string, int64, int64, time.Duration) {}
func (Noop) RecordFallback(string)                                   {}
