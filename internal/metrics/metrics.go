package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// EventsIngested counts accepted events by type.
	EventsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionwatch_events_ingested_total",
		Help: "Accepted events by event type.",
	}, []string{"event_type"})

	// ValidationFailures counts events rejected at the boundary.
	ValidationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessionwatch_validation_failures_total",
		Help: "Events rejected by boundary validation.",
	})

	// AlertsFired counts emitted alerts by severity.
	AlertsFired = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionwatch_alerts_total",
		Help: "Security alerts fired by severity.",
	}, []string{"severity"})

	// ActiveSessions tracks the current session table size.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sessionwatch_active_sessions",
		Help: "Sessions currently held in the session table.",
	})

	// SessionsReaped counts reaper evictions by reason.
	SessionsReaped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionwatch_sessions_reaped_total",
		Help: "Sessions evicted by the reaper, by reason.",
	}, []string{"reason"})

	// SinkWriteFailures counts failed persistence/publish attempts.
	SinkWriteFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionwatch_sink_write_failures_total",
		Help: "Failed writes to persistence or publish sinks, by sink.",
	}, []string{"sink"})

	// SinkDropped counts sink items dropped on queue overflow.
	SinkDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessionwatch_sink_dropped_total",
		Help: "Sink items dropped because the dispatch queue was full.",
	})
)

func init() {
	prometheus.MustRegister(
		EventsIngested,
		ValidationFailures,
		AlertsFired,
		ActiveSessions,
		SessionsReaped,
		SinkWriteFailures,
		SinkDropped,
	)
}
