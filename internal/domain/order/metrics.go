package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics records order engine counters.
type Metrics struct {
	created  metric.Int64Counter
	reserved metric.Float64Counter
	credited metric.Float64Counter
	updates  metric.Int64Counter
	shipped  metric.Int64Counter
}

// NewMetrics registers the order instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.created, err = meter.Int64Counter("pod.orders.created",
		metric.WithDescription("Funded orders created")); err != nil {
		return nil, errors.Wrap(err, "orders.created")
	}
	if m.reserved, err = meter.Float64Counter("pod.ledger.reserved",
		metric.WithDescription("Amount debited from seller balances for production")); err != nil {
		return nil, errors.Wrap(err, "ledger.reserved")
	}
	if m.credited, err = meter.Float64Counter("pod.ledger.credited",
		metric.WithDescription("Amount credited to sellers on delivery")); err != nil {
		return nil, errors.Wrap(err, "ledger.credited")
	}
	if m.updates, err = meter.Int64Counter("pod.orders.status_updates",
		metric.WithDescription("Status updates by source and outcome")); err != nil {
		return nil, errors.Wrap(err, "orders.status_updates")
	}
	if m.shipped, err = meter.Int64Counter("pod.orders.ship_attempts",
		metric.WithDescription("Parcel creation attempts by outcome")); err != nil {
		return nil, errors.Wrap(err, "orders.ship_attempts")
	}
	return &m, nil
}

func noopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(""))
	return m
}

func (m *Metrics) orderCreated(ctx context.Context, o *Order) {
	m.created.Add(ctx, 1)
	m.reserved.Add(ctx, o.UnitPrice.InexactFloat64())
}

func (m *Metrics) statusUpdated(ctx context.Context, source string, c Change, amount decimal.Decimal) {
	m.updates.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.Bool("changed", c.Changed()),
		attribute.Bool("credited", c.Credit),
	))
	if c.Credit {
		m.credited.Add(ctx, amount.InexactFloat64())
	}
}

func (m *Metrics) shipAttempt(ctx context.Context, ok bool) {
	m.shipped.Add(ctx, 1, metric.WithAttributes(attribute.Bool("ok", ok)))
}
