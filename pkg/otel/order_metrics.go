package otel

import (
	"context"
	"errors"

	"github.com/erain9/matchbook/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OrderBookMetrics reports order book activity as OpenTelemetry counters.
// It implements core.Metrics.
type OrderBookMetrics struct {
	ordersAccepted metric.Int64Counter
	ordersRejected metric.Int64Counter
	ordersCanceled metric.Int64Counter
	ordersModified metric.Int64Counter
	tradesTotal    metric.Int64Counter
	tradesQuantity metric.Int64Counter
}

// NewOrderBookMetrics creates the order book instruments on meter
func NewOrderBookMetrics(meter metric.Meter) (*OrderBookMetrics, error) {
	var (
		m   OrderBookMetrics
		err error
	)

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.ordersAccepted, "orderbook.orders.accepted", "Orders accepted into the book", "{order}"},
		{&m.ordersRejected, "orderbook.orders.rejected", "Orders rejected by validation", "{order}"},
		{&m.ordersCanceled, "orderbook.orders.canceled", "Orders canceled", "{order}"},
		{&m.ordersModified, "orderbook.orders.modified", "Orders modified", "{order}"},
		{&m.tradesTotal, "orderbook.trades.total", "Trades executed", "{trade}"},
		{&m.tradesQuantity, "orderbook.trades.quantity", "Quantity executed", "{unit}"},
	}

	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return nil, err
		}
	}

	return &m, nil
}

// OrderAccepted implements core.Metrics
func (m *OrderBookMetrics) OrderAccepted(side core.Side) {
	m.ordersAccepted.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(AttributeOrderSide, side.String())))
}

// OrderRejected implements core.Metrics
func (m *OrderBookMetrics) OrderRejected(reason error) {
	m.ordersRejected.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(AttributeRejectReason, RejectReason(reason))))
}

// OrderCanceled implements core.Metrics
func (m *OrderBookMetrics) OrderCanceled() {
	m.ordersCanceled.Add(context.Background(), 1)
}

// OrderModified implements core.Metrics
func (m *OrderBookMetrics) OrderModified() {
	m.ordersModified.Add(context.Background(), 1)
}

// TradeExecuted implements core.Metrics
func (m *OrderBookMetrics) TradeExecuted(trade core.Trade) {
	ctx := context.Background()
	m.tradesTotal.Add(ctx, 1)
	m.tradesQuantity.Add(ctx, int64(trade.Quantity))
}

// RejectReason maps a book error to a low-cardinality label
func RejectReason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, core.ErrNilOrder):
		return "nil_order"
	case errors.Is(err, core.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, core.ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, core.ErrInvalidSide):
		return "invalid_side"
	case errors.Is(err, core.ErrOrderExists):
		return "duplicate_id"
	case errors.Is(err, core.ErrNonexistentOrder):
		return "unknown_order"
	default:
		return "other"
	}
}

var _ core.Metrics = (*OrderBookMetrics)(nil)
