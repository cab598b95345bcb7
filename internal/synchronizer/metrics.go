package synchronizer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livesync",
		Subsystem: "synchronizer",
		Name:      "events_applied_total",
		Help:      "Change events applied to live collections.",
	}, []string{"table", "kind"})

	eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livesync",
		Subsystem: "synchronizer",
		Name:      "events_dropped_total",
		Help:      "Change events discarded before reaching a live collection.",
	}, []string{"table", "reason"})

	bulkLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livesync",
		Subsystem: "synchronizer",
		Name:      "bulk_loads_total",
		Help:      "Bulk reads issued by live collections, by outcome.",
	}, []string{"table", "outcome"})

	reconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livesync",
		Subsystem: "synchronizer",
		Name:      "reconnects_total",
		Help:      "Change stream disconnects followed by a resubscribe.",
	}, []string{"table"})
)
