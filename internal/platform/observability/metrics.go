package observability

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OrderMetrics records order lifecycle counters on the global meter provider. Without an
// installed SDK the instruments are no-ops.
type OrderMetrics struct {
	created      metric.Int64Counter
	cancelled    metric.Int64Counter
	insufficient metric.Int64Counter
	totals       metric.Float64Histogram
}

// NewOrderMetrics registers the order instruments on provider, or on the global provider when nil.
func NewOrderMetrics(provider metric.MeterProvider) (*OrderMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(instrumentationName)

	created, err := meter.Int64Counter("orders.created",
		metric.WithDescription("Orders committed"),
		metric.WithUnit("{order}"))
	if err != nil {
		return nil, fmt.Errorf("order metrics: orders.created: %w", err)
	}
	cancelled, err := meter.Int64Counter("orders.cancelled",
		metric.WithDescription("Orders cancelled with stock restored"),
		metric.WithUnit("{order}"))
	if err != nil {
		return nil, fmt.Errorf("order metrics: orders.cancelled: %w", err)
	}
	insufficient, err := meter.Int64Counter("inventory.insufficient",
		metric.WithDescription("Order lines rejected for insufficient stock"),
		metric.WithUnit("{line}"))
	if err != nil {
		return nil, fmt.Errorf("order metrics: inventory.insufficient: %w", err)
	}
	totals, err := meter.Float64Histogram("orders.total_amount",
		metric.WithDescription("Order totals at creation"))
	if err != nil {
		return nil, fmt.Errorf("order metrics: orders.total_amount: %w", err)
	}

	return &OrderMetrics{created: created, cancelled: cancelled, insufficient: insufficient, totals: totals}, nil
}

// OrderCreated counts a committed order and records its total.
func (m *OrderMetrics) OrderCreated(ctx context.Context, lines int, total decimal.Decimal) {
	if m == nil {
		return
	}
	m.created.Add(ctx, 1, metric.WithAttributes(attribute.Int("order.lines", lines)))
	m.totals.Record(ctx, total.InexactFloat64())
}

// OrderCancelled counts a cancellation.
func (m *OrderMetrics) OrderCancelled(ctx context.Context) {
	if m == nil {
		return
	}
	m.cancelled.Add(ctx, 1)
}

// InsufficientStock counts a rejected line for productID.
func (m *OrderMetrics) InsufficientStock(ctx context.Context, productID string) {
	if m == nil {
		return
	}
	m.insufficient.Add(ctx, 1, metric.WithAttributes(attribute.String("product.id", productID)))
}
