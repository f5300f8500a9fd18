package loader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	featuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacesync_features_total",
		Help: "Total number of features stored by fetch mode",
	}, []string{"mode"})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacesync_fetch_sessions_total",
		Help: "Total number of completed fetch sessions by final status",
	}, []string{"status"})

	pageRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacesync_page_retries_total",
		Help: "Total number of failed requests absorbed by the queue by fetch mode",
	}, []string{"mode"})
)
