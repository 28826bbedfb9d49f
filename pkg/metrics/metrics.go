// Package metrics exposes the Prometheus metrics of the client.
// All metrics are defined in their respective packages (pagination, client,
// cache, ratelimit) and registered with the default registry via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all client metrics are added to.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Stream Metrics (pkg/pagination):
//   - fireblocks_stream_pages_total{stream} (Counter): Pages delivered
//   - fireblocks_stream_items_total{stream} (Counter): Items in delivered pages
//   - fireblocks_stream_fetch_duration_seconds{stream} (Histogram): Page fetch latency
//   - fireblocks_stream_inflight_fetches{stream} (Gauge): Fetches in flight, at most 1 per stream
//   - fireblocks_stream_terminations_total{stream, reason} (Counter): exhausted, validation_error, fetch_error, closed
//
// Request Metrics (pkg/client):
//   - fireblocks_requests_total{endpoint, status} (Counter)
//   - fireblocks_request_duration_seconds{endpoint} (Histogram)
//   - fireblocks_errors_total{class} (Counter): client, server, rate_limit, network
//   - fireblocks_retries_total{error_class} (Counter)
//   - fireblocks_retry_backoff_seconds{error_class} (Histogram)
//   - fireblocks_retry_exhausted_total{error_class} (Counter)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - fireblocks_rate_limit_remaining (Gauge)
//   - fireblocks_rate_limit_blocks_total (Counter)
//   - fireblocks_rate_limit_throttles_total (Counter)
//
// Cache Metrics (pkg/cache):
//   - fireblocks_cache_hits_total{layer="redis"} (Counter)
//   - fireblocks_cache_misses_total (Counter)
//   - fireblocks_cache_size_bytes{layer="redis"} (Gauge)
//   - fireblocks_cache_conditional_requests_total (Counter)
//   - fireblocks_cache_not_modified_total (Counter)
//   - fireblocks_cache_errors_total{operation} (Counter)
//
// Example Prometheus Queries:
//
//   # Pages per second by stream
//   sum by (stream) (rate(fireblocks_stream_pages_total[5m]))
//
//   # Streams ending in errors
//   rate(fireblocks_stream_terminations_total{reason=~".*_error"}[5m])
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(fireblocks_request_duration_seconds_bucket[5m]))
//
//   # Quota running low
//   fireblocks_rate_limit_remaining < 10
