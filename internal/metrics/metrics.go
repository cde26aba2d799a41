package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	eventsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statushub",
			Subsystem: "events",
			Name:      "received_total",
			Help:      "Number of status events received by the collector.",
		}, []string{"status"},
	)
	eventsAccepted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statushub",
			Subsystem: "events",
			Name:      "accepted_total",
			Help:      "Number of transitions appended to the history store.",
		}, []string{"status"},
	)
	eventsDeduplicated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statushub",
			Subsystem: "events",
			Name:      "deduplicated_total",
			Help:      "Number of events discarded as duplicate transitions.",
		}, []string{"status"},
	)
	eventsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statushub",
			Subsystem: "events",
			Name:      "rejected_total",
			Help:      "Number of events rejected at the collector boundary.",
		}, []string{"reason"},
	)
	eventsOverflowDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statushub",
			Subsystem: "events",
			Name:      "overflow_dropped_total",
			Help:      "Number of pending events dropped by reporter queue overflow.",
		}, []string{"object"},
	)
	appendRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "statushub",
			Subsystem: "store",
			Name:      "append_retries_total",
			Help:      "Number of append retries after transient store failures.",
		},
	)
	objectState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "statushub",
			Subsystem: "objects",
			Name:      "current_state",
			Help:      "Current state per object (1 = active state, 0 = inactive).",
		}, []string{"object", "state"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		eventsReceived, eventsAccepted, eventsDeduplicated,
		eventsRejected, eventsOverflowDropped, appendRetries, objectState,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the
// DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers used by internal packages. They no-op until Register is called.

func IncReceived(statusKind string) {
	if regOK.Load() {
		eventsReceived.WithLabelValues(statusKind).Inc()
	}
}

func IncAccepted(statusKind string) {
	if regOK.Load() {
		eventsAccepted.WithLabelValues(statusKind).Inc()
	}
}

func IncDeduplicated(statusKind string) {
	if regOK.Load() {
		eventsDeduplicated.WithLabelValues(statusKind).Inc()
	}
}

func IncRejected(reason string) {
	if regOK.Load() {
		eventsRejected.WithLabelValues(reason).Inc()
	}
}

func IncOverflowDropped(object string) {
	if regOK.Load() {
		eventsOverflowDropped.WithLabelValues(object).Inc()
	}
}

func IncAppendRetry() {
	if regOK.Load() {
		appendRetries.Inc()
	}
}

// SetObjectState marks state as the active state for object and clears
// the previous one.
func SetObjectState(object, prev, state string) {
	if !regOK.Load() {
		return
	}
	if prev != "" && prev != state {
		objectState.WithLabelValues(object, prev).Set(0)
	}
	objectState.WithLabelValues(object, state).Set(1)
}

// ClearObjectState removes all state series for a dropped object.
func ClearObjectState(object string) {
	if regOK.Load() {
		objectState.DeletePartialMatch(prometheus.Labels{"object": object})
	}
}
