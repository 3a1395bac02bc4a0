// Package telemetry provides application-level observability for the request tracker.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// served on the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<CRS_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is NOT served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Component request creation and status change counters
//   - API key validation outcomes and expiry sweep counters
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/requests/:id) rather
// than the raw request URL so request IDs never become label values.
package telemetry

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/component-request-system/crs/internal/safego"
)

// HTTP metrics, labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Component request metrics.
//
// RequestsCreatedTotal is labelled by source ("manual" or "figma-plugin").
// RequestStatusChangesTotal is labelled by the status entered.
//
// Example PromQL queries:
//   - Plugin share of new requests:  sum(rate(component_requests_created_total{source="figma-plugin"}[1d])) / sum(rate(component_requests_created_total[1d]))
//   - Denials per day:               increase(component_request_status_changes_total{status="Denied"}[1d])
var (
	RequestsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "component_requests_created_total",
			Help: "Total number of component requests created, by source.",
		},
		[]string{"source"},
	)

	RequestStatusChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "component_request_status_changes_total",
			Help: "Total number of component request status updates, by new status.",
		},
		[]string{"status"},
	)
)

// API key metrics.
//
// APIKeyValidationsTotal is labelled by result: "valid", "invalid" or "error".
// A spike in "invalid" usually means a plugin install is holding a revoked key.
//
// APIKeysDeactivatedTotal counts keys revoked by the expiry sweep job.
var (
	APIKeyValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_key_validations_total",
			Help: "Total number of API key validations, by result.",
		},
		[]string{"result"},
	)

	APIKeysDeactivatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "api_keys_deactivated_total",
			Help: "Total number of API keys deactivated by the expiry sweep.",
		},
	)
)

// DBOpenConnections tracks the number of open connections held by the sql.DB pool.
// It is sampled by StartDBStatsCollector rather than per-request.
//
// Example PromQL queries:
//   - Pool utilisation (%): db_open_connections / <CRS_DATABASE_MAX_CONNECTIONS> * 100
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// DBStatsInterval is how often StartDBStatsCollector samples the pool
const DBStatsInterval = 30 * time.Second

type statser interface {
	Stats() sql.DBStats
}

// StartDBStatsCollector launches a goroutine that samples connection pool statistics
// every interval and updates DBOpenConnections. It returns when ctx is cancelled.
//
// Call this once, immediately after db.Connect() succeeds in main.go:
//
//	telemetry.StartDBStatsCollector(ctx, database.DB, telemetry.DBStatsInterval)
func StartDBStatsCollector(ctx context.Context, db statser, interval time.Duration) {
	safego.Go(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				DBOpenConnections.Set(float64(db.Stats().OpenConnections))
			}
		}
	})
}
