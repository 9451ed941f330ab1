// Package metrics holds the Prometheus collectors exported on the metrics
// server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "godscore"

var (
	// ScoresComputed counts persisted score recomputations.
	// Labels: weights_version, trigger (score, signals, decay)
	ScoresComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "scores_computed_total",
			Help:      "Score recomputations persisted, by weights version and trigger",
		},
		[]string{"weights_version", "trigger"},
	)

	EnhancedScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "enhanced_score",
			Help:      "Distribution of persisted enhanced scores",
			Buckets:   prometheus.LinearBuckets(0, 10, 10),
		},
	)

	// WeightVersionOps counts supersede and rollback attempts.
	// Labels: op (supersede, rollback), result (ok, rejected, error)
	WeightVersionOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "weights",
			Name:      "version_operations_total",
			Help:      "Weight version supersede/rollback attempts by outcome",
		},
		[]string{"op", "result"},
	)

	// ActiveWeightVersion is 1 for the version last observed active.
	ActiveWeightVersion = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "weights",
			Name:      "active_version",
			Help:      "1 for the currently active weight version",
		},
		[]string{"version"},
	)

	// KAnonBuckets is the bucket count per risk level from the last guard run.
	// Labels: risk_level (CRITICAL, HIGH, MEDIUM, OK)
	KAnonBuckets = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "kanon",
			Name:      "buckets",
			Help:      "Discovery buckets per k-anonymity risk level in the last report",
		},
		[]string{"risk_level"},
	)

	// KAnonRuns counts guard runs.
	// Labels: result (ok, error)
	KAnonRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kanon",
			Name:      "runs_total",
			Help:      "K-anonymity guard runs by result",
		},
		[]string{"result"},
	)

	KAnonRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "kanon",
			Name:      "run_duration_seconds",
			Help:      "Duration of k-anonymity guard runs",
			Buckets:   prometheus.DefBuckets,
		},
	)

	FeedRowsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "rows_suppressed_total",
			Help:      "Match rows withheld from the public feed because their bucket is CRITICAL",
		},
	)

	// RedactionViolations counts tripwire findings.
	// Labels: type (BLOCKED_FIELD, POTENTIAL_DOMAIN), route
	RedactionViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redaction",
			Name:      "violations_total",
			Help:      "Redaction tripwire violations by type and route",
		},
		[]string{"type", "route"},
	)

	// EventsEmitted counts asynchronous event outcomes.
	// Labels: result (published, failed, dropped)
	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "emitted_total",
			Help:      "Asynchronous events by outcome",
		},
		[]string{"result"},
	)

	// HTTPRequests counts API requests.
	// Labels: method, route, status
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by method, route pattern and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request latency by route pattern",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		},
	)
)

// SetActiveVersion marks version as the only active one on the gauge.
func SetActiveVersion(version string) {
	ActiveWeightVersion.Reset()
	ActiveWeightVersion.WithLabelValues(version).Set(1)
}
