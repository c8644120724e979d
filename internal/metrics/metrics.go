package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wanotify_messages_total",
			Help: "Dispatch outcomes by status and reason",
		},
		[]string{"status", "reason"}, // sent|failed , ok|invalid|transport|skipped
	)

	BatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wanotify_batches_total",
			Help: "Upload batches by terminal state",
		},
		[]string{"state"}, // reported|rejected|error
	)

	SendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wanotify_send_duration_seconds",
			Help:    "Latency of a single transport send",
			Buckets: prometheus.DefBuckets,
		},
	)

	once sync.Once
)

// MustRegister registers the collectors once; later calls are no-ops.
func MustRegister(r prometheus.Registerer) {
	once.Do(func() {
		r.MustRegister(
			MessagesTotal,
			BatchesTotal,
			SendDuration,
		)
	})
}
