// Package metrics provides Prometheus metrics for the supervisor, the
// worker pool, and the shared event queue.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workerSpawns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shepherd",
		Subsystem: "supervisor",
		Name:      "spawns_total",
		Help:      "Total worker spawns, including respawns after a crash",
	}, []string{"worker"})

	workerCrashes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shepherd",
		Subsystem: "supervisor",
		Name:      "crashes_total",
		Help:      "Total worker exits with an error",
	}, []string{"worker"})

	escalations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shepherd",
		Subsystem: "supervisor",
		Name:      "escalations_total",
		Help:      "Total failure escalations raised by workers",
	}, []string{"source"})

	queueMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shepherd",
		Subsystem: "queue",
		Name:      "messages_total",
		Help:      "Queue messages consumed, by kind",
	}, []string{"kind"})

	workersAlive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "shepherd",
		Subsystem: "supervisor",
		Name:      "workers_alive",
		Help:      "Number of currently live workers",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "shepherd",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Messages currently waiting in the event queue",
	})
)

// RecordSpawn increments the spawn counter for a worker.
func RecordSpawn(worker string) {
	workerSpawns.WithLabelValues(worker).Inc()
}

// RecordCrash increments the crash counter for a worker.
func RecordCrash(worker string) {
	workerCrashes.WithLabelValues(worker).Inc()
}

// RecordEscalation increments the escalation counter for a source worker.
func RecordEscalation(source string) {
	escalations.WithLabelValues(source).Inc()
}

// RecordQueueMessage increments the consumed message counter for a kind.
func RecordQueueMessage(kind string) {
	queueMessages.WithLabelValues(kind).Inc()
}

// SetWorkersAlive sets the live worker gauge.
func SetWorkersAlive(n int) {
	workersAlive.Set(float64(n))
}

// SetQueueDepth sets the queue depth gauge.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}
