package lifecycle

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/brugmanjoost/drumbeat/internal/message"
)

type metrics struct {
	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	transitions *prometheus.CounterVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drumbeat",
			Subsystem: "lifecycle",
			Name:      "operations_total",
			Help:      "Lifecycle operations by outcome.",
		}, []string{"operation", "result"}),
		duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "drumbeat",
			Subsystem: "lifecycle",
			Name:      "operation_duration_seconds",
			Help:      "Latency of lifecycle operations.",
			Buckets: []float64{
				0.0005, 0.001, 0.002, 0.005,
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5, 1,
			},
		}, []string{"operation"}),
		transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drumbeat",
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Committed state changes per queue and resulting status.",
		}, []string{"queue", "status"}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}

// resultLabel maps an operation error to a low-cardinality label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, message.ErrNotFound):
		return "not_found"
	case errors.Is(err, message.ErrAlreadyScheduled):
		return "already_scheduled"
	case errors.Is(err, message.ErrNotPending):
		return "not_pending"
	case errors.Is(err, message.ErrBadRequest):
		return "bad_request"
	case errors.Is(err, message.ErrCorruptState):
		return "corrupt"
	default:
		return "error"
	}
}

func (m *metrics) observe(op string, start time.Time, err error) {
	m.operations.WithLabelValues(op, resultLabel(err)).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
