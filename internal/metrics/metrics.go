// Package metrics provides Prometheus metrics for the alerts viewer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "hemogram"
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)
)

// Alert API metrics
var (
	// FetchesTotal counts alert fetches by outcome (ok, transport, error).
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "fetches_total",
			Help:      "Total alert fetches by outcome",
		},
		[]string{"outcome"},
	)

	// FetchDuration tracks alert API round-trip latency.
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "fetch_duration_seconds",
			Help:      "Alert API request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// FetchesInFlight tracks alert fetches that have not completed.
	FetchesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "fetches_in_flight",
			Help:      "Number of alert fetches currently in flight",
		},
	)

	// StaleResultsTotal counts fetch results discarded because a newer fetch was launched.
	StaleResultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "stale_results_total",
			Help:      "Fetch results discarded in favor of a newer fetch",
		},
	)
)

// Push metrics
var (
	// PushMessagesTotal counts received push messages.
	PushMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "messages_total",
			Help:      "Total push messages received",
		},
	)

	// NotificationsTotal counts notifications by result (posted, suppressed, failed).
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "notifications_total",
			Help:      "Total notifications by result",
		},
		[]string{"result"},
	)

	// WebPushFailuresTotal counts Web Push deliveries that failed.
	WebPushFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "webpush_failures_total",
			Help:      "Total failed Web Push deliveries",
		},
	)

	// TokenRefreshesTotal counts registration token refreshes.
	TokenRefreshesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "token_refreshes_total",
			Help:      "Total registration token refreshes",
		},
	)

	// Analyzer metrics

	// DeviationsTotal counts out-of-range hemogram values by severity.
	DeviationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analyzer",
			Name:      "deviations_total",
			Help:      "Total out-of-range hemogram values by severity",
		},
		[]string{"severity"},
	)
)
