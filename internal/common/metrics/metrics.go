// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EnquiriesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enquiries_received_total",
			Help: "Inbound enquiries by platform and preferred channel",
		},
		[]string{"platform", "channel"},
	)

	EnquiriesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enquiries_failed_total",
			Help: "Enquiries that ended in an error response",
		},
		[]string{"error_code"},
	)

	DeliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_attempts_total",
			Help: "Outbound delivery attempts by channel and result",
		},
		[]string{"channel", "result"},
	)

	DeliveryFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_fallbacks_total",
			Help: "Deliveries that moved from the preferred channel to the fallback channel",
		},
		[]string{"from", "to"},
	)

	Compositions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reply_compositions_total",
			Help: "Composed replies by source (llm, cache, fallback)",
		},
		[]string{"source"},
	)

	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enquiry_step_duration_seconds",
			Help:    "Duration of each enquiry processing step",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"step"},
	)

	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "enquiry_requests_in_flight",
			Help: "Enquiries currently being processed",
		},
	)
)
