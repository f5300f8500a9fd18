package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pageSplitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacesync_page_splits_total",
		Help: "Total number of failed pages split into smaller requests by queue kind",
	}, []string{"queue"})

	pageSplitFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacesync_page_split_failures_total",
		Help: "Total number of failed pages that could not be split further by queue kind",
	}, []string{"queue"})

	optimalLimit = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spacesync_optimal_limit",
		Help: "Page limit currently used by the most recent cursor queue",
	})
)
