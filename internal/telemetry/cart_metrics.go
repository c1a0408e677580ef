package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Release reasons recorded on pos.cart.units_released.
const (
	ReleaseReasonRemove = "remove"
	ReleaseReasonClear  = "clear"
)

// CartMetrics records cart and checkout activity. A nil *CartMetrics is
// valid and records nothing.
type CartMetrics struct {
	unitsReserved   metric.Int64Counter
	unitsReleased   metric.Int64Counter
	ordersCompleted metric.Int64Counter
	orderTotal      metric.Float64Histogram
}

func NewCartMetrics(meter metric.Meter) (*CartMetrics, error) {
	unitsReserved, err := meter.Int64Counter("pos.cart.units_reserved",
		metric.WithDescription("Stock units reserved by cart additions"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		return nil, err
	}

	unitsReleased, err := meter.Int64Counter("pos.cart.units_released",
		metric.WithDescription("Stock units returned to the catalog by removals and clears"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		return nil, err
	}

	ordersCompleted, err := meter.Int64Counter("pos.orders.completed",
		metric.WithDescription("Orders finalized at the till"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	orderTotal, err := meter.Float64Histogram("pos.order.total",
		metric.WithDescription("Order totals including tax"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000),
	)
	if err != nil {
		return nil, err
	}

	return &CartMetrics{
		unitsReserved:   unitsReserved,
		unitsReleased:   unitsReleased,
		ordersCompleted: ordersCompleted,
		orderTotal:      orderTotal,
	}, nil
}

func (m *CartMetrics) UnitsReserved(ctx context.Context, quantity int) {
	if m == nil {
		return
	}
	m.unitsReserved.Add(ctx, int64(quantity))
}

func (m *CartMetrics) UnitsReleased(ctx context.Context, quantity int, reason string) {
	if m == nil || quantity == 0 {
		return
	}
	m.unitsReleased.Add(ctx, int64(quantity), metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *CartMetrics) OrderCompleted(ctx context.Context, paymentMethod string, total float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("payment_method", paymentMethod))
	m.ordersCompleted.Add(ctx, 1, attrs)
	m.orderTotal.Record(ctx, total, attrs)
}
