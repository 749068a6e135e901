package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	opsEnqueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kassa",
			Name:      "ops_enqueued_total",
			Help:      "Operations appended to the offline queue.",
		},
	)

	opsCommitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kassa",
			Name:      "ops_committed_total",
			Help:      "Operations whose remote effects were confirmed.",
		},
		[]string{"kind"},
	)

	opFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kassa",
			Name:      "op_failures_total",
			Help:      "Operation executions that failed and stayed queued.",
		},
		[]string{"kind"},
	)

	drains = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kassa",
			Name:      "drains_total",
			Help:      "Queue drain passes started.",
		},
	)

	queueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kassa",
			Name:      "queue_length",
			Help:      "Pending operations in the offline queue.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(opsEnqueued, opsCommitted, opFailures, drains, queueLength)
	})
}

func IncEnqueued()             { opsEnqueued.Inc() }
func IncCommitted(kind string) { opsCommitted.WithLabelValues(kind).Inc() }
func IncFailure(kind string)   { opFailures.WithLabelValues(kind).Inc() }
func IncDrains()               { drains.Inc() }
func SetQueueLength(n int)     { queueLength.Set(float64(n)) }
