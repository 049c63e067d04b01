package pebblestore

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type promMetrics struct {
	duration *prometheus.HistogramVec
	bytes    *prometheus.CounterVec
}

var metricsSingleton = sync.OnceValue(func() *promMetrics {
	return &promMetrics{
		duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "drumbeat",
			Subsystem: "pebble",
			Name:      "operation_duration_seconds",
			Help:      "Latency of pebble reads, index scans and batch commits.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 10),
		}, []string{"op"}),
		bytes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drumbeat",
			Subsystem: "pebble",
			Name:      "bytes_total",
			Help:      "Bytes read from or committed to pebble.",
		}, []string{"op"}),
	}
})

// PrometheusMetrics returns a MetricsHook that records into the default
// Prometheus registry.
func PrometheusMetrics() MetricsHook { return metricsSingleton() }

func (m *promMetrics) ObserveRead(elapsed time.Duration, bytes int) {
	m.duration.WithLabelValues("read").Observe(elapsed.Seconds())
	m.bytes.WithLabelValues("read").Add(float64(bytes))
}

func (m *promMetrics) ObserveScan(elapsed time.Duration, _ int) {
	m.duration.WithLabelValues("scan").Observe(elapsed.Seconds())
}

func (m *promMetrics) ObserveCommit(elapsed time.Duration, _ int, bytes int) {
	m.duration.WithLabelValues("commit").Observe(elapsed.Seconds())
	m.bytes.WithLabelValues("commit").Add(float64(bytes))
}
