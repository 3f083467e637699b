// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// SendsTotal tracks send pipeline turns by outcome.
	SendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sends_total",
			Help: "Total send pipeline turns",
		},
		[]string{"outcome"},
	)

	// SendDuration tracks full send turn duration including the webhook round trip.
	SendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "send_duration_seconds",
			Help:    "Send pipeline turn duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	// WebhookResolutionsTotal tracks how the target webhook was chosen.
	WebhookResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_resolutions_total",
			Help: "Webhook resolutions by source",
		},
		[]string{"source"},
	)

	// StorageOpsTotal tracks conversation storage operations.
	StorageOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Conversation storage operations",
		},
		[]string{"backend", "op", "status"},
	)

	// ConversationsTotal tracks conversations created.
	ConversationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversations_total",
			Help: "Total conversations created",
		},
		[]string{"backend"},
	)

	// MessagesTotal tracks messages persisted.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages persisted",
		},
		[]string{"backend", "role"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordSend records metrics for one send pipeline turn.
func RecordSend(outcome string, duration float64) {
	SendsTotal.WithLabelValues(outcome).Inc()
	SendDuration.WithLabelValues(outcome).Observe(duration)
}

// RecordStorageOp records a conversation storage operation.
func RecordStorageOp(backend, op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StorageOpsTotal.WithLabelValues(backend, op, status).Inc()
}
