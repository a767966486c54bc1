// Package metrics registers the prometheus instruments exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MarksWritten counts attendance records written, by status.
	MarksWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "register_attendance_marks_total",
		Help: "Attendance records written, by status.",
	}, []string{"status"})

	// PhotoUploads counts photo uploads, by outcome.
	PhotoUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "register_photo_uploads_total",
		Help: "Student photo uploads, by outcome.",
	}, []string{"outcome"})

	requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "register_http_requests_total",
		Help: "HTTP requests, by route and status code.",
	}, []string{"route", "status"})

	latency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "register_http_request_seconds",
		Help:    "HTTP request latency in seconds, by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// GinMiddleware records request counts and latency per route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
