package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HttpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lending_transitions_total",
			Help: "Transaction lifecycle actions by outcome",
		},
		[]string{"action", "result"},
	)

	OverdueMarkedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lending_overdue_marked_total",
			Help: "Borrowed transactions moved to pending by the overdue sweep",
		},
	)

	SideEffectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_side_effects_total",
			Help: "Notification and email deliveries by outcome",
		},
		[]string{"kind", "result"},
	)

	LogbookAppendFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lending_logbook_append_failed_total",
			Help: "Committed transitions whose logbook entry could not be written",
		},
		[]string{"action"},
	)

	QueueDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_queue_dropped_total",
			Help: "Side-effect events dropped because the queue was full",
		},
	)
)

func InitMetrics() {
	prometheus.MustRegister(
		HttpRequestsTotal,
		HttpRequestDuration,
		TransitionsTotal,
		OverdueMarkedTotal,
		SideEffectsTotal,
		LogbookAppendFailedTotal,
		QueueDroppedTotal,
	)
}

// Transition records the outcome of one lifecycle action.
func Transition(action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	TransitionsTotal.WithLabelValues(action, result).Inc()
}
