// Package metrics provides the centralized Prometheus registry for the
// insights gateway. All metrics are defined in their respective packages
// (auth, ratelimit, cache, provider) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the gateway.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Auth Metrics (pkg/auth):
//   - gateway_auth_failures_total{reason} (Counter): Failed authentication attempts by reason
//
// Rate Limit Metrics (pkg/ratelimit):
//   - gateway_rate_limit_admissions_total (Counter): Requests admitted by the sliding window
//   - gateway_rate_limit_rejections_total (Counter): Requests rejected over the per-identity limit
//   - gateway_rate_limit_tracked_identities (Gauge): Identities with at least one timestamp in window
//
// Cache Metrics (pkg/cache):
//   - gateway_cache_hits_total{path} (Counter): Cache hits by lookup path (query, request_id)
//   - gateway_cache_misses_total (Counter): Cache misses
//   - gateway_cache_errors_total{operation} (Counter): Cache backend errors by operation
//   - gateway_cache_cleared_keys_total (Counter): Keys removed by administrative clears
//
// Provider Metrics (pkg/provider):
//   - provider_requests_total{status} (Counter): Upstream requests by HTTP status
//   - provider_request_duration_seconds (Histogram): Fetch duration including retries
//   - provider_errors_total{kind} (Counter): Upstream errors by classified kind
//   - provider_retries_total{kind} (Counter): Retry attempts by error kind
//   - provider_retry_backoff_seconds{kind} (Histogram): Backoff duration before retries
//   - provider_retry_exhausted_total{kind} (Counter): Fetches that exhausted the attempt budget
//
// Example Prometheus Queries:
//
//	# Cache Hit Rate
//	sum(rate(gateway_cache_hits_total[5m])) /
//	(sum(rate(gateway_cache_hits_total[5m])) + sum(rate(gateway_cache_misses_total[5m])))
//
//	# Rate Limit Rejection Rate
//	rate(gateway_rate_limit_rejections_total[5m])
//
//	# Provider Error Rate
//	rate(provider_errors_total[5m])
//
//	# P95 Provider Latency
//	histogram_quantile(0.95, rate(provider_request_duration_seconds_bucket[5m]))
