package handler

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Webhook outcomes.
const (
	outcomeApplied      = "applied"
	outcomeUnauthorized = "unauthorized"
	outcomeMalformed    = "malformed"
	outcomeUnknown      = "unknown_tracking"
	outcomeError        = "error"
)

// Metrics records carrier webhook outcomes.
type Metrics struct {
	webhooks metric.Int64Counter
}

// NewMetrics registers the handler instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	webhooks, err := meter.Int64Counter("pod.webhooks",
		metric.WithDescription("Carrier webhook deliveries by outcome"))
	if err != nil {
		return nil, errors.Wrap(err, "webhooks")
	}
	return &Metrics{webhooks: webhooks}, nil
}

func noopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(""))
	return m
}

func (m *Metrics) webhook(ctx context.Context, outcome string) {
	m.webhooks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
