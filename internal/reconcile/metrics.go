package reconcile

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics records reconciliation outcomes.
type Metrics struct {
	orders   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics registers the reconciliation instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	orders, err := meter.Int64Counter("pod.reconcile.orders",
		metric.WithDescription("Orders processed by reconciliation, by outcome"))
	if err != nil {
		return nil, errors.Wrap(err, "reconcile.orders")
	}
	duration, err := meter.Float64Histogram("pod.reconcile.duration",
		metric.WithDescription("Reconciliation run duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, errors.Wrap(err, "reconcile.duration")
	}
	return &Metrics{orders: orders, duration: duration}, nil
}

func noopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(""))
	return m
}

func (m *Metrics) recordRun(ctx context.Context, sum *Summary) {
	for outcome, n := range map[string]int{
		"updated":   sum.Updated,
		"unchanged": sum.Unchanged,
		"failed":    sum.Failed,
	} {
		m.orders.Add(ctx, int64(n), metric.WithAttributes(attribute.String("outcome", outcome)))
	}
	m.duration.Record(ctx, sum.FinishedAt.Sub(sum.StartedAt).Seconds())
}
