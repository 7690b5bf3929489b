// Package metrics provides Prometheus metrics for assetgrid.
package metrics

import (
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetgrid_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "ext", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assetgrid_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	bytesServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assetgrid_http_bytes_served_total",
			Help: "Total response body bytes written",
		},
	)

	notModifiedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assetgrid_http_not_modified_total",
			Help: "Conditional requests answered with 304",
		},
	)

	// Gallery metrics
	catalogRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assetgrid_catalog_records",
			Help: "Number of records in the current catalog",
		},
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assetgrid_scan_duration_seconds",
			Help:    "Time to traverse a picked directory",
			Buckets: prometheus.DefBuckets,
		},
	)

	scanNodeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assetgrid_scan_node_errors_total",
			Help: "Directories or files skipped during a scan",
		},
	)

	previewResources = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assetgrid_preview_resources_active",
			Help: "Preview resources currently attached to tiles",
		},
	)

	previewLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetgrid_preview_loads_total",
			Help: "Preview attach attempts",
		},
		[]string{"kind", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, urlPath string, status int, size int64, duration time.Duration) {
	ext := strings.ToLower(path.Ext(urlPath))
	if ext == "" {
		ext = "none"
	}
	httpRequestsTotal.WithLabelValues(method, ext, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
	bytesServed.Add(float64(size))
	if status == http.StatusNotModified {
		notModifiedTotal.Inc()
	}
}

// SetCatalogRecords sets the current catalog size.
func SetCatalogRecords(n int) {
	catalogRecords.Set(float64(n))
}

// RecordScan records a completed scan.
func RecordScan(duration time.Duration, nodeErrors int) {
	scanDuration.Observe(duration.Seconds())
	scanNodeErrors.Add(float64(nodeErrors))
}

// SetPreviewResources sets the number of attached preview resources.
func SetPreviewResources(n int) {
	previewResources.Set(float64(n))
}

// RecordPreviewLoad records one preview attach attempt.
func RecordPreviewLoad(kind string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	previewLoadsTotal.WithLabelValues(kind, status).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code and size.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += int64(n)
	return n, err
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, rw.size, time.Since(start))
	})
}
