package middleware

import (
	"strconv"
	"time"

	"advising/apperr"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, status class and caller role",
		},
		[]string{"method", "route", "status_class", "role", "service"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "service"},
	)

	httpRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "HTTP requests currently being served; websocket sessions stay counted while open",
		},
		[]string{"service"},
	)

	messageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "message_operations_total",
			Help: "Total number of message store operations",
		},
		[]string{"operation", "status", "service"},
	)

	messageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "message_operation_duration_seconds",
			Help:    "Duration of message store operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "service"},
	)

	messageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "message_errors_total",
			Help: "Total number of message operation errors",
		},
		[]string{"operation", "error_type", "service"},
	)
)

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}

// callerRole is resolved after the handler chain ran, so routes behind
// AuthMiddleware are labelled with the authenticated role.
func callerRole(c *gin.Context) string {
	if caller, ok := CallerFrom(c); ok {
		return string(caller.Role)
	}
	return "anonymous"
}

// PrometheusMiddleware records every request under its route template.
// Unrouted paths share one label value.
func PrometheusMiddleware(serviceName string) gin.HandlerFunc {
	inFlight := httpRequestsInFlight.WithLabelValues(serviceName)
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		inFlight.Inc()
		defer inFlight.Dec()
		start := time.Now()

		c.Next()

		httpRequestsTotal.WithLabelValues(
			c.Request.Method,
			route,
			statusClass(c.Writer.Status()),
			callerRole(c),
			serviceName,
		).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route, serviceName).
			Observe(time.Since(start).Seconds())
	}
}

// RecordMessageOperation counts one messaging operation. Errors are labelled
// by their kind, never by message text, to keep label cardinality bounded.
func RecordMessageOperation(operation, serviceName string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	messageOperationsTotal.WithLabelValues(operation, status, serviceName).Inc()
	messageOperationDuration.WithLabelValues(operation, serviceName).Observe(duration.Seconds())

	if err != nil {
		messageErrors.WithLabelValues(operation, string(apperr.CodeOf(err)), serviceName).Inc()
	}
}
