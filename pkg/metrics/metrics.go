// Package metrics exposes the Prometheus metrics of space-sync. The metrics
// themselves are declared with promauto next to the code that updates them.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prefix is shared by every metric of the module.
const Prefix = "spacesync_"

// Registry is the registerer promauto uses in every package.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Names returns the names of the registered space-sync metric families
// that have been observed at least once.
func Names() ([]string, error) {
	families, err := Gatherer.Gather()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), Prefix) {
			out = append(out, mf.GetName())
		}
	}
	return out, nil
}

// Catalogue
//
// Fetch sessions (pkg/loader):
//   - spacesync_features_total{mode} (Counter)
//   - spacesync_fetch_sessions_total{status} (Counter)
//   - spacesync_page_retries_total{mode} (Counter)
//
// Orchestration (pkg/task):
//   - spacesync_active_iterations (Gauge)
//   - spacesync_loop_iterations_total{chain} (Counter)
//   - spacesync_chain_step_errors_total{chain} (Counter)
//
// Queues (pkg/pagination):
//   - spacesync_optimal_limit (Gauge)
//   - spacesync_page_splits_total{queue} (Counter)
//   - spacesync_page_split_failures_total{queue} (Counter)
//
// Hub transport (pkg/client):
//   - spacesync_hub_requests_total{tag, status} (Counter)
//   - spacesync_hub_request_duration_seconds{tag} (Histogram)
//   - spacesync_hub_errors_total{class} (Counter)
//   - spacesync_hub_retries_total{error_class} (Counter)
//   - spacesync_hub_retry_backoff_seconds{error_class} (Histogram)
//   - spacesync_hub_retry_exhausted_total{error_class} (Counter)
//   - spacesync_hub_reauth_total{outcome} (Counter)
//
// Cache (pkg/cache):
//   - spacesync_cache_hits_total, spacesync_cache_misses_total (Counter)
//   - spacesync_cache_size_bytes (Gauge)
//   - spacesync_cache_not_modified_total (Counter)
//   - spacesync_cache_conditional_requests_total (Counter)
//   - spacesync_cache_errors_total{operation} (Counter)
//
// Quota (pkg/ratelimit):
//   - spacesync_quota_remaining (Gauge)
//   - spacesync_quota_blocks_total, spacesync_quota_throttles_total (Counter)
//
// Example queries:
//
//   # Pages shrunk per minute
//   rate(spacesync_page_splits_total[1m]) * 60
//
//   # Features stored per second by mode
//   sum by (mode) (rate(spacesync_features_total[5m]))
