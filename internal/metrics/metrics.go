// Package metrics exposes Prometheus counters for the resolver and queue.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_events_raised_total",
			Help: "Business events received, by event code and outcome (queued, suppressed)",
		},
		[]string{"event_code", "outcome"},
	)

	QueueEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_queue_enqueued_total",
			Help: "Queue items created, by whether quiet hours deferred them",
		},
		[]string{"deferred"},
	)

	QueueClaims = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_queue_claims_total",
			Help: "Queue items claimed by dispatch workers",
		},
	)

	QueueOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_queue_outcomes_total",
			Help: "Delivery outcomes reported back to the queue (sent, retry, failed)",
		},
		[]string{"outcome"},
	)

	QueueCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_queue_cancelled_total",
			Help: "Queue items moved to CANCELLED by operators",
		},
	)

	ConfigCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_config_cache_lookups_total",
			Help: "Tenant config cache lookups, by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)
