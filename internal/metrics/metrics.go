package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "limoo"

var (
	connectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connection_attempts_total",
		Help:      "WebSocket connection attempts by phase and result",
	}, []string{"phase", "result"})

	reconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connection_reconnects_total",
		Help:      "Reconnection cycles started, by trigger",
	}, []string{"reason"})

	connectionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connection_state",
		Help:      "Current connection state (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	backoffWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "connection_backoff_seconds",
		Help:      "Backoff waits between failed connection attempts",
		Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
	})

	eventsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "router_messages_received_total",
		Help:      "Inbound messages handed to the router",
	})

	eventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "router_events_dispatched_total",
		Help:      "Normalized events handed to listeners, by event name",
	}, []string{"event"})

	eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "router_messages_dropped_total",
		Help:      "Inbound messages dropped without dispatch, by reason",
	}, []string{"reason"})

	workspaceResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "workspace_resolutions_total",
		Help:      "Workspace resolver outcomes (hit, fetched, not_found, error)",
	}, []string{"result"})

	listenerQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "listener_queue_depth",
		Help:      "Events waiting for listener delivery",
	})

	handlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "listener_handler_errors_total",
		Help:      "Listener handler failures (errors and recovered panics)",
	}, []string{"handler"})

	journalRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "journal_rows_total",
		Help:      "Event journal rows by result (inserted, conflict, error)",
	}, []string{"result"})
)

// Connection attempt results.
const (
	ResultSuccess    = "success"
	ResultAuthFailed = "auth_failed"
	ResultTransient  = "transient"
)

var connectionStates = []string{"disconnected", "connecting", "connected", "reconnecting", "closed"}

// RecordConnectAttempt counts a finished connection attempt.
func RecordConnectAttempt(phase, result string) {
	connectAttempts.WithLabelValues(phase, result).Inc()
}

// RecordReconnect counts a reconnection cycle start.
func RecordReconnect(reason string) {
	reconnects.WithLabelValues(reason).Inc()
}

// SetConnectionState marks state as the active connection state.
func SetConnectionState(state string) {
	for _, s := range connectionStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		connectionState.WithLabelValues(s).Set(value)
	}
}

// RecordBackoff observes a backoff wait.
func RecordBackoff(d time.Duration) {
	backoffWait.Observe(d.Seconds())
}

// RecordMessageReceived counts an inbound message.
func RecordMessageReceived() {
	eventsReceived.Inc()
}

// RecordEventDispatched counts a dispatched event.
func RecordEventDispatched(event string) {
	eventsDispatched.WithLabelValues(event).Inc()
}

// RecordMessageDropped counts a dropped message.
func RecordMessageDropped(reason string) {
	eventsDropped.WithLabelValues(reason).Inc()
}

// RecordWorkspaceResolution counts a resolver outcome.
func RecordWorkspaceResolution(result string) {
	workspaceResolutions.WithLabelValues(result).Inc()
}

// SetListenerQueueDepth sets the pending event count.
func SetListenerQueueDepth(n int) {
	listenerQueueDepth.Set(float64(n))
}

// RecordHandlerError counts a handler failure.
func RecordHandlerError(handler string) {
	handlerErrors.WithLabelValues(handler).Inc()
}

// RecordJournalRows adds n rows with the given result.
func RecordJournalRows(result string, n int) {
	if n <= 0 {
		return
	}
	journalRows.WithLabelValues(result).Add(float64(n))
}
