package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Span names
	SpanReplayScript = "replay_script"
	SpanReplayStep   = "replay_step"
	SpanPublishTrade = "publish_trade"

	// Attribute keys
	AttributeOrderID       = "order.id"
	AttributeOrderSide     = "order.side"
	AttributeOrderQuantity = "order.quantity"
	AttributeOrderPrice    = "order.price"
	AttributeRejectReason  = "order.reject_reason"
	AttributeStepIndex     = "replay.step"
	AttributeStepOp        = "replay.op"
	AttributeTradeCount    = "trade.count"
)

// StartSpan starts a span on the matching engine tracer. The global no-op
// tracer is used until Init installs a real provider.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
