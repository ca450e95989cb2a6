package replay

import (
	"context"
	"fmt"

	"github.com/erain9/matchbook/pkg/core"
	"github.com/erain9/matchbook/pkg/logging"
	"github.com/erain9/matchbook/pkg/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Result is the outcome of one step
type Result struct {
	Index    int
	Step     Step
	Err      error
	Trades   []core.Trade
	Snapshot *Snapshot
}

// Accepted reports whether the book accepted the step
func (r Result) Accepted() bool {
	return r.Err == nil
}

// Runner applies scripts to an order book
type Runner struct {
	book     *core.OrderBook
	onTrade  core.TradeHandler
	onResult func(Result)
	pending  []core.Trade
}

// Option configures a Runner
type Option func(*Runner)

// WithTradeHandler forwards every trade to fn in addition to collecting it
func WithTradeHandler(fn core.TradeHandler) Option {
	return func(r *Runner) {
		r.onTrade = fn
	}
}

// WithResultHandler calls fn after every step
func WithResultHandler(fn func(Result)) Option {
	return func(r *Runner) {
		r.onResult = fn
	}
}

// NewRunner creates a runner for book. It installs its own trade callback on
// the book, replacing any previous one.
func NewRunner(book *core.OrderBook, opts ...Option) *Runner {
	r := &Runner{book: book}
	for _, opt := range opts {
		opt(r)
	}

	book.SetTradeCallback(func(t core.Trade) {
		r.pending = append(r.pending, t)
		if r.onTrade != nil {
			r.onTrade(t)
		}
	})
	return r
}

// Run applies every step of script in order. It stops at the first step
// whose outcome contradicts its expectation, returning the results so far
// and an error naming the step. Rejections are not errors by themselves.
func (r *Runner) Run(ctx context.Context, script *Script) ([]Result, error) {
	ctx, span := otel.StartSpan(ctx, otel.SpanReplayScript,
		attribute.String("replay.name", script.Name),
		attribute.Int("replay.steps", len(script.Steps)),
	)

	results := make([]Result, 0, len(script.Steps))
	for i, step := range script.Steps {
		if err := ctx.Err(); err != nil {
			otel.EndSpan(span, err)
			return results, err
		}

		res := r.runStep(ctx, i, step)
		results = append(results, res)
		if r.onResult != nil {
			r.onResult(res)
		}

		if err := checkExpectation(res); err != nil {
			otel.EndSpan(span, err)
			return results, err
		}
	}

	otel.EndSpan(span, nil)
	return results, nil
}

func (r *Runner) runStep(ctx context.Context, index int, step Step) Result {
	ctx, span := otel.StartSpan(ctx, otel.SpanReplayStep,
		attribute.Int(otel.AttributeStepIndex, index),
		attribute.String(otel.AttributeStepOp, step.Op),
	)
	logger := logging.FromContext(ctx)

	r.pending = nil
	res := Result{Index: index, Step: step}

	switch step.Op {
	case OpAdd:
		span.SetAttributes(
			attribute.Int64(otel.AttributeOrderID, int64(step.ID)),
			attribute.String(otel.AttributeOrderSide, step.Side),
			attribute.String(otel.AttributeOrderPrice, step.Price),
			attribute.Int64(otel.AttributeOrderQuantity, int64(step.Quantity)),
		)
		// Validated by Parse
		side, _ := core.ParseSide(step.Side)
		price, _ := step.price()
		res.Err = r.book.AddLimitOrder(step.ID, side, price, step.Quantity)
	case OpCancel:
		span.SetAttributes(attribute.Int64(otel.AttributeOrderID, int64(step.ID)))
		res.Err = r.book.CancelOrder(step.ID)
	case OpModify:
		span.SetAttributes(
			attribute.Int64(otel.AttributeOrderID, int64(step.ID)),
			attribute.String(otel.AttributeOrderPrice, step.Price),
			attribute.Int64(otel.AttributeOrderQuantity, int64(step.Quantity)),
		)
		price, _ := step.price()
		res.Err = r.book.ModifyOrder(step.ID, price, step.Quantity)
	case OpClear:
		r.book.Clear()
	case OpSnapshot:
		snap := TakeSnapshot(r.book)
		res.Snapshot = &snap
	}

	res.Trades = r.pending
	r.pending = nil
	span.SetAttributes(attribute.Int(otel.AttributeTradeCount, len(res.Trades)))

	event := logger.Debug()
	if res.Err != nil {
		span.SetAttributes(attribute.String(otel.AttributeRejectReason, otel.RejectReason(res.Err)))
		event = logger.Info().Err(res.Err)
	}
	event.
		Int("step", index).
		Str("op", step.Op).
		Uint64("order_id", step.ID).
		Int("trades", len(res.Trades)).
		Bool("accepted", res.Accepted()).
		Msg("Replay step applied")

	otel.EndSpan(span, res.Err)
	return res
}

func checkExpectation(res Result) error {
	switch res.Step.Expect {
	case ExpectAccepted:
		if res.Err != nil {
			return fmt.Errorf("step %d (%s #%d): expected accepted, got %w", res.Index, res.Step.Op, res.Step.ID, res.Err)
		}
	case ExpectRejected:
		if res.Err == nil {
			return fmt.Errorf("step %d (%s #%d): expected rejected, was accepted", res.Index, res.Step.Op, res.Step.ID)
		}
	}

	if res.Step.ExpectTrades != nil && *res.Step.ExpectTrades != len(res.Trades) {
		return fmt.Errorf("step %d (%s #%d): expected %d trades, got %d",
			res.Index, res.Step.Op, res.Step.ID, *res.Step.ExpectTrades, len(res.Trades))
	}
	return nil
}
