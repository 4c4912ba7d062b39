// Package metrics provides Prometheus metrics for the chat backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connections tracks open websocket connections.
	Connections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_connections",
			Help: "Number of currently open websocket connections",
		},
	)

	// OnlineUsers tracks identities with a registered connection.
	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_online_users",
			Help: "Number of users currently online",
		},
	)

	// ActiveConversations tracks conversations with at least one subscriber.
	ActiveConversations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_active_conversations",
			Help: "Number of conversations with live subscribers",
		},
	)

	ActiveCalls = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_active_calls",
			Help: "Number of calls ringing or in progress",
		},
	)

	// Events counts inbound realtime events by name and result status.
	Events = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_realtime_events_total",
			Help: "Total number of inbound realtime events",
		},
		[]string{"event", "status"},
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_fanout_deliveries_total",
			Help: "Total number of events delivered to connections",
		},
		[]string{"event"},
	)

	CallOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_call_outcomes_total",
			Help: "Total number of finished calls by outcome",
		},
		[]string{"outcome"},
	)

	// AssistantReplies counts bot replies by source (model or fallback).
	AssistantReplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_assistant_replies_total",
			Help: "Total number of assistant replies",
		},
		[]string{"source"},
	)

	AssistantLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_assistant_completion_duration_seconds",
			Help:    "Duration of assistant completion requests",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
	)

	MessagesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_persisted_total",
			Help: "Total number of messages written to the store",
		},
		[]string{"conversation_type"},
	)

	// HTTPRequests counts API requests by route pattern, method and status code.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "code"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// RecordEvent increments the inbound event counter.
func RecordEvent(event, status string) {
	Events.WithLabelValues(event, status).Inc()
}

func RecordDelivery(event string, n int) {
	if n > 0 {
		Deliveries.WithLabelValues(event).Add(float64(n))
	}
}
