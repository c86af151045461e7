package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Use registers the probes and the http metrics middleware on router.
func Use(router *gin.Engine, name string, registerer prometheus.Registerer, readiness ReadinessChecker) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: name,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: name,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
	registerer.MustRegister(requests, duration)

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		duration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	})

	probes := NewProbesController(readiness)
	router.GET("/health", probes.HealthCheck)
	router.GET("/ready", probes.Ready)
}
