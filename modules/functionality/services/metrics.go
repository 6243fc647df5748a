package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	positionsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "functree",
		Subsystem: "positions",
		Name:      "resolved_total",
		Help:      "Total number of resolved tree positions broken down by operation and relative position.",
	}, []string{"operation", "relative_position"})

	positionRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "functree",
		Subsystem: "position",
		Name:      "rejections_total",
		Help:      "Total number of rejected position requests broken down by error kind.",
	}, []string{"kind"})

	orderKeyExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "functree",
		Subsystem: "order_key",
		Name:      "exhausted_total",
		Help:      "Total number of order key allocations that could not land strictly between their neighbours.",
	})

	cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "functree",
		Subsystem: "cache",
		Name:      "requests_total",
		Help:      "Total number of tree cache lookups broken down by hit/miss.",
	}, []string{"result"})

	writeConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "functree",
		Subsystem: "write",
		Name:      "conflicts_total",
		Help:      "Total number of tree write conflicts broken down by kind.",
	}, []string{"kind"})
)

func recordPositionResolved(operation string, pos RelativePosition) {
	positionsResolved.WithLabelValues(operation, pos.String()).Inc()
}

func recordPositionRejection(kind ErrorKind) {
	positionRejections.WithLabelValues(string(kind)).Inc()
}

func recordOrderKeyExhausted() {
	orderKeyExhausted.Inc()
}

func recordCacheRequest(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheRequests.WithLabelValues(result).Inc()
}

func recordWriteConflict(kind string) {
	if kind == "" {
		kind = "other"
	}
	writeConflicts.WithLabelValues(kind).Inc()
}
