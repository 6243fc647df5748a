package outbox

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	enqueueTotal    *prometheus.CounterVec
	dispatchTotal   *prometheus.CounterVec
	deadTotal       *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
	pending         *prometheus.GaugeVec
	relayLeader     *prometheus.GaugeVec
	cleanedTotal    *prometheus.CounterVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		enqueueTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "functree",
			Subsystem: "outbox",
			Name:      "enqueue_total",
			Help:      "Events written to an outbox table.",
		}, []string{"table", "topic"}),
		dispatchTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "functree",
			Subsystem: "outbox",
			Name:      "dispatch_total",
			Help:      "Relay dispatch attempts by result.",
		}, []string{"table", "topic", "result"}),
		deadTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "functree",
			Subsystem: "outbox",
			Name:      "dead_total",
			Help:      "Events that ran out of dispatch attempts.",
		}, []string{"table", "topic"}),
		dispatchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "functree",
			Subsystem: "outbox",
			Name:      "dispatch_latency_seconds",
			Help:      "Latency of a single dispatch.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"table", "topic", "result"}),
		pending: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "functree",
			Subsystem: "outbox",
			Name:      "pending",
			Help:      "Unpublished events in the table.",
		}, []string{"table"}),
		relayLeader: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "functree",
			Subsystem: "outbox",
			Name:      "relay_leader",
			Help:      "1 when this instance holds the relay lock for the table.",
		}, []string{"table"}),
		cleanedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "functree",
			Subsystem: "outbox",
			Name:      "cleaned_total",
			Help:      "Published events removed after the retention period.",
		}, []string{"table"}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}
