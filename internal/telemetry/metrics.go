// Package telemetry provides application-level observability for the
// Templates Hub backend.
//
// All metrics are registered against the default Prometheus registry and
// exposed on the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<THB_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is intentionally not served by the Gin
// router so that the scrape path stays off the public ingress and is never
// rate limited.
//
// HTTP metrics use c.FullPath() (route template such as
// /api/v1/templates/:id) rather than the raw URL to keep label cardinality
// bounded regardless of user-supplied path segments.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window): rate(http_requests_total[5m])
//   - p99 latency per route: histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
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

// Catalog sync metrics — recorded once per reconciliation pass.
//
// CatalogSyncDuration covers the whole pass (snapshot fetch through commit).
// An alert on increase(catalog_sync_errors_total[30m]) > 3 is a useful
// signal for descriptor repository outages.
var (
	CatalogSyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_sync_duration_seconds",
			Help:    "Duration of a single catalog reconciliation pass.",
			Buckets: prometheus.DefBuckets,
		},
	)

	CatalogSyncErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_sync_errors_total",
			Help: "Total number of failed catalog reconciliation passes.",
		},
	)

	CatalogSyncTemplates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_sync_templates_total",
			Help: "Total number of template rows touched by reconciliation, by action (created, updated, deleted).",
		},
		[]string{"action"},
	)
)

// TemplateRatingsTotal is incremented on every accepted rating submission,
// labelled by whether the submission created a new score row or overwrote
// an existing one.
var TemplateRatingsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "template_ratings_total",
		Help: "Total number of accepted template ratings, by outcome (created, updated).",
	},
	[]string{"outcome"},
)

// DBOpenConnections tracks the number of open connections currently held by
// the sql.DB pool. It is sampled every 30 seconds by StartDBStatsCollector
// rather than per-request to avoid the overhead of sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB
// connection pool statistics every 30 seconds and updates the
// DBOpenConnections gauge. The goroutine exits when the database becomes
// unreachable, which happens when the application shuts down and defers
// db.Close().
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
