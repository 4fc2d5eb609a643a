package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	subscribers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tool_relay_subscribers",
		Help: "Push channels currently registered with the relay",
	}, []string{"registry"})

	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tool_relay_deliveries_total",
		Help: "Event deliveries attempted grouped by transport and outcome",
	}, []string{"transport", "status"})

	publishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tool_relay_publish_duration_seconds",
		Help:    "Time taken to fan an event out to every subscriber",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	}, []string{"type"})

	toolInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tool_relay_tool_invocations_total",
		Help: "Tool invocations grouped by tool and outcome",
	}, []string{"tool", "status"})

	toolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tool_relay_tool_duration_seconds",
		Help:    "Duration of tool executions",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool"})
)

// SetSubscribers records the current registry size.
func SetSubscribers(registry string, n int) {
	if registry == "" {
		registry = "default"
	}
	subscribers.WithLabelValues(registry).Set(float64(n))
}

// ObserveDelivery counts a single delivery attempt.
func ObserveDelivery(transport string, ok bool) {
	if transport == "" {
		transport = "unknown"
	}
	status := "success"
	if !ok {
		status = "failed"
	}
	deliveriesTotal.WithLabelValues(transport, status).Inc()
}

// ObservePublish records how long a fan-out took.
func ObservePublish(eventType string, duration time.Duration) {
	if eventType == "" {
		eventType = "unknown"
	}
	publishDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// ObserveToolInvocation records a tool call outcome (success, invalid, failed, not_found).
func ObserveToolInvocation(tool, status string, duration time.Duration) {
	if tool == "" {
		tool = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	toolInvocations.WithLabelValues(tool, status).Inc()
	if duration > 0 {
		toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
	}
}
