package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/erain9/matchbook/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Sum[int64] {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := make(map[string]metricdata.Sum[int64])
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				sums[m.Name] = sum
			}
		}
	}
	return sums
}

func total(sum metricdata.Sum[int64]) int64 {
	var n int64
	for _, dp := range sum.DataPoints {
		n += dp.Value
	}
	return n
}

func TestOrderBookMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	m, err := NewOrderBookMetrics(provider.Meter("test"))
	require.NoError(t, err)

	m.OrderAccepted(core.Buy)
	m.OrderAccepted(core.Buy)
	m.OrderAccepted(core.Sell)
	m.OrderRejected(core.ErrInvalidPrice)
	m.OrderCanceled()
	m.OrderModified()
	m.TradeExecuted(core.Trade{BuyOrderID: 1, SellOrderID: 2, Quantity: 40})
	m.TradeExecuted(core.Trade{BuyOrderID: 3, SellOrderID: 2, Quantity: 2})

	sums := collect(t, reader)

	accepted := sums["orderbook.orders.accepted"]
	assert.Equal(t, int64(3), total(accepted))
	for _, dp := range accepted.DataPoints {
		side, ok := dp.Attributes.Value(attribute.Key(AttributeOrderSide))
		require.True(t, ok)
		switch side.AsString() {
		case "BUY":
			assert.Equal(t, int64(2), dp.Value)
		case "SELL":
			assert.Equal(t, int64(1), dp.Value)
		default:
			t.Fatalf("unexpected side %q", side.AsString())
		}
	}

	rejected := sums["orderbook.orders.rejected"]
	require.Len(t, rejected.DataPoints, 1)
	reason, _ := rejected.DataPoints[0].Attributes.Value(attribute.Key(AttributeRejectReason))
	assert.Equal(t, "invalid_price", reason.AsString())

	assert.Equal(t, int64(1), total(sums["orderbook.orders.canceled"]))
	assert.Equal(t, int64(1), total(sums["orderbook.orders.modified"]))
	assert.Equal(t, int64(2), total(sums["orderbook.trades.total"]))
	assert.Equal(t, int64(42), total(sums["orderbook.trades.quantity"]))
}

func TestRejectReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{core.ErrNilOrder, "nil_order"},
		{core.ErrInvalidQuantity, "invalid_quantity"},
		{core.ErrInvalidPrice, "invalid_price"},
		{core.ErrInvalidSide, "invalid_side"},
		{core.ErrOrderExists, "duplicate_id"},
		{core.ErrNonexistentOrder, "unknown_order"},
		{errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RejectReason(tt.err))
	}
}

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	_, span := StartSpan(context.Background(), SpanReplayStep, attribute.Int(AttributeStepIndex, 3))
	EndSpan(span, nil)

	_, span = StartSpan(context.Background(), SpanReplayStep)
	EndSpan(span, core.ErrNonexistentOrder)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, SpanReplayStep, spans[0].Name)
	assert.Contains(t, spans[0].Attributes, attribute.Int(AttributeStepIndex, 3))
	assert.Equal(t, otelcodes.Error, spans[1].Status.Code)
}
