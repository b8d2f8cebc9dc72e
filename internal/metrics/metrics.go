package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tribute_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tribute_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tribute_uploads_total",
			Help: "Uploaded originals by disk and outcome",
		},
		[]string{"disk", "outcome"},
	)

	derivativesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tribute_derivatives_total",
			Help: "Derivative stage outcomes by type, format and status",
		},
		[]string{"type", "format", "status"},
	)

	derivativeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tribute_derivative_bytes",
			Help:    "Size of encoded derivatives in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
		},
		[]string{"type"},
	)

	encodeAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tribute_encode_attempts",
			Help:    "Quality ladder steps needed per derivative",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 7},
		},
		[]string{"type"},
	)

	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tribute_jobs_total",
			Help: "Processed jobs by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tribute_job_duration_seconds",
			Help:    "Job execution time in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"type"},
	)

	registerOnce sync.Once
)

// InitMetrics registers all collectors with the default registry. Safe to
// call more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			uploadsTotal,
			derivativesTotal,
			derivativeBytes,
			encodeAttempts,
			jobsTotal,
			jobDuration,
		)
	})
}

// Middleware records request counts and latency per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// RecordUpload counts an upload attempt.
func RecordUpload(disk, outcome string) {
	uploadsTotal.WithLabelValues(disk, outcome).Inc()
}

// RecordDerivative tracks one pipeline stage outcome. size and attempts are
// only observed for successful stages.
func RecordDerivative(derivativeType, format, status string, size int64, attempts int) {
	derivativesTotal.WithLabelValues(derivativeType, format, status).Inc()
	if status != "success" {
		return
	}
	derivativeBytes.WithLabelValues(derivativeType).Observe(float64(size))
	encodeAttempts.WithLabelValues(derivativeType).Observe(float64(attempts))
}

// RecordJob tracks a finished job run.
func RecordJob(jobType, outcome string, elapsed time.Duration) {
	jobsTotal.WithLabelValues(jobType, outcome).Inc()
	jobDuration.WithLabelValues(jobType).Observe(elapsed.Seconds())
}
