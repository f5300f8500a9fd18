package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacesync_hub_requests_total",
		Help: "Total hub requests by tag and status",
	}, []string{"tag", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spacesync_hub_request_duration_seconds",
		Help:    "Hub request duration in seconds by tag",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"tag"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacesync_hub_errors_total",
		Help: "Total hub errors by class",
	}, []string{"class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacesync_hub_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spacesync_hub_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacesync_hub_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})

	reauthTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacesync_hub_reauth_total",
		Help: "Total number of token refreshes by outcome",
	}, []string{"outcome"})
)
