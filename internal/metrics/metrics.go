// Package metrics holds the agent's Prometheus instrumentation. Collectors
// are registered with the default registry at init and served by httpapi.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "botd"

// Command outcome labels.
const (
	ResultOK      = "ok"
	ResultEmpty   = "empty"
	ResultUnknown = "unknown"
	ResultPanic   = "panic"
)

// Queue labels for QueueDrops.
const (
	QueueCommand    = "command"
	QueueSender     = "sender"
	QueueController = "controller"
)

var (
	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "started_total",
			Help:      "Sessions started, by transport",
		},
		[]string{"transport"},
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently connected",
		},
	)

	SessionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "errors_total",
			Help:      "Sessions ended by an error, by cause",
		},
		[]string{"cause"},
	)

	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "handled_total",
			Help:      "Commands dispatched, by name and outcome",
		},
		[]string{"command", "result"},
	)

	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "duration_seconds",
			Help:      "Command handler latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		},
		[]string{"command"},
	)

	QueueDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "dropped_total",
			Help:      "Items rejected because a bounded queue was full",
		},
		[]string{"queue"},
	)

	SchedulerApplied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "states_applied_total",
			Help:      "Controller states applied by the scheduler",
		},
	)

	SchedulerRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "running",
			Help:      "Schedulers currently running",
		},
	)

	Notices = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "finished_notices_total",
			Help:      "Command completion notices, by outcome (sent or dropped)",
		},
		[]string{"outcome"},
	)

	TransportBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "bytes_total",
			Help:      "Bytes moved over the transport, by direction",
		},
		[]string{"direction"},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsTotal, SessionsActive, SessionErrors,
		CommandsTotal, CommandDuration,
		QueueDrops,
		SchedulerApplied, SchedulerRunning, Notices,
		TransportBytes,
	)
}

// DropQueue records one rejected push.
func DropQueue(queue string) { QueueDrops.WithLabelValues(queue).Inc() }
