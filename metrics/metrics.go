package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code", "service"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "service"},
	)

	// Refresh pipeline metrics
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_runs_total",
			Help: "Total number of refresh runs by outcome",
		},
		[]string{"status"},
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "refresh_duration_seconds",
			Help:    "Refresh run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RefreshCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refresh_requests_coalesced_total",
			Help: "Refresh requests that joined an in-flight or queued run instead of starting their own",
		},
	)

	RecordsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_fetched_total",
			Help: "Total number of raw records fetched from the upstream source",
		},
		[]string{"category"},
	)

	RecordsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "records_dropped_total",
			Help: "Raw records dropped because they could not be normalized",
		},
	)

	RecordsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "records_expired_total",
			Help: "Raw records filtered out because their window had elapsed",
		},
	)

	SnapshotSlides = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "snapshot_slides",
			Help: "Number of slides in the currently published snapshot",
		},
	)

	SlidesServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slides_served_total",
			Help: "Total number of slides served to dashboard clients",
		},
	)

	// Application health metrics
	ApplicationInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "application_info",
			Help: "Application information",
		},
		[]string{"service", "version", "environment"},
	)
)

// Initialize metrics with default values
func Init(serviceName, version, environment string) {
	ApplicationInfo.WithLabelValues(serviceName, version, environment).Set(1)
}
