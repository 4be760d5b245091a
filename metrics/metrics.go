package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEventsTotal counts payment webhooks by outcome
	// (granted, duplicate, ignored, invalid, malformed, forbidden, error).
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vitrine",
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Payment webhook events by outcome.",
	}, []string{"outcome"})

	// WebhookDuration tracks webhook handling latency.
	WebhookDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vitrine",
		Subsystem: "webhook",
		Name:      "duration_seconds",
		Help:      "Payment webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	// StoreDuration tracks store call latency by operation.
	StoreDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vitrine",
		Subsystem: "store",
		Name:      "duration_seconds",
		Help:      "Catalog and grant store call duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	// StoreErrorsTotal counts failed store calls by operation and kind (error, timeout).
	StoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vitrine",
		Subsystem: "store",
		Name:      "errors_total",
		Help:      "Failed store calls by operation and kind.",
	}, []string{"op", "kind"})

	// AccessQueriesTotal counts access queries by type (check, reconcile).
	AccessQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vitrine",
		Subsystem: "access",
		Name:      "queries_total",
		Help:      "Access queries by type.",
	}, []string{"query"})

	// GalleryAnomaliesTotal counts media descriptors dropped by the gallery assembler.
	GalleryAnomaliesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vitrine",
		Subsystem: "gallery",
		Name:      "anomalies_total",
		Help:      "Media descriptors that failed to decode and were skipped.",
	})

	// ActiveGrants reports active grants per plan code, refreshed by the stats worker.
	ActiveGrants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "vitrine",
		Subsystem: "grants",
		Name:      "active",
		Help:      "Active access grants by plan code.",
	}, []string{"plan_code"})
)
