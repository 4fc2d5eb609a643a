package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tool_relay_http_requests_total",
		Help: "Total HTTP requests processed by the relay",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tool_relay_http_request_duration_seconds",
		Help:    "HTTP request duration. Stream routes observe the subscription lifetime.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)
