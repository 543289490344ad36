package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var appliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sync_envelopes_applied_total",
	Help: "The total number of envelopes applied to the replica store",
}, []string{"entity_type", "crud_action"})

var skippedStale = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sync_envelopes_skipped_stale_total",
	Help: "The total number of envelopes skipped as stale or duplicate",
}, []string{"entity_type"})

var dependencyTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sync_dependency_wait_timeouts_total",
	Help: "The total number of dependency waits that timed out",
}, []string{"entity_type", "dependency_type"})

// RequeuedTotal and DeadLetteredTotal are settled by the worker, which owns
// retry bookkeeping.
var RequeuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sync_envelopes_requeued_total",
	Help: "The total number of envelopes requeued with backoff",
}, []string{"entity_type"})

var DeadLetteredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sync_envelopes_dead_lettered_total",
	Help: "The total number of envelopes routed to the dead-letter queue",
}, []string{"entity_type"})

var ProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "sync_envelope_processing_duration_seconds",
	Help:    "The amount of time it takes to process one envelope",
	Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
}, []string{"entity_type"})
