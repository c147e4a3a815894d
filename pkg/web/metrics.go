package web

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vision",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	classificationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vision",
		Subsystem: "http",
		Name:      "classification_seconds",
		Help:      "End-to-end classification latency including capture and upstream call.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	upstreamFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vision",
		Subsystem: "http",
		Name:      "upstream_failures_total",
		Help:      "Requests that failed because the model backend errored.",
	})
)

// observeRequests counts every request by route and final status.
func (s *Server) observeRequests(c *fiber.Ctx) error {
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else {
			status = fiber.StatusInternalServerError
		}
	}

	route := c.Route().Path
	if route == "" {
		route = c.Path()
	}
	requestCounter.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
	return err
}
