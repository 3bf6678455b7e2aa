package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Metrics exposes OpenTelemetry instruments through the default Prometheus registry.
type Metrics struct {
	meterProvider   *metric.MeterProvider
	enquiryCounter  otelmetric.Int64Counter
	enquiryDuration otelmetric.Float64Histogram
}

// NewMetrics never fails; without an exporter the Record methods are no-ops.
func NewMetrics(serviceName string) (*Metrics, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return &Metrics{}, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	counter, _ := meter.Int64Counter(
		"enquiries.processed",
		otelmetric.WithDescription("Number of enquiries processed"),
	)
	duration, _ := meter.Float64Histogram(
		"enquiries.duration",
		otelmetric.WithDescription("End to end enquiry processing duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Metrics{
		meterProvider:   provider,
		enquiryCounter:  counter,
		enquiryDuration: duration,
	}, nil
}

// RecordEnquiry records one processed enquiry with its outcome
// ("delivered", "fallback", or an error code).
func (m *Metrics) RecordEnquiry(ctx context.Context, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("outcome", outcome))
	if m.enquiryCounter != nil {
		m.enquiryCounter.Add(ctx, 1, attrs)
	}
	if m.enquiryDuration != nil {
		m.enquiryDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.meterProvider == nil {
		return nil
	}
	return m.meterProvider.Shutdown(ctx)
}
