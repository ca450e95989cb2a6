package core

// Metrics receives book activity. Calls happen synchronously under the book
// lock, so implementations must be fast and must not call the book.
type Metrics interface {
	OrderAccepted(side Side)
	OrderRejected(reason error)
	OrderCanceled()
	OrderModified()
	TradeExecuted(trade Trade)
}

type noopMetrics struct{}

func (noopMetrics) OrderAccepted(Side) {}
func (noopMetrics) OrderRejected(error) {}
func (noopMetrics) OrderCanceled() {}
func (noopMetrics) OrderModified() {}
func (noopMetrics) TradeExecuted(Trade) {}

// Option configures an OrderBook.
type Option func(*OrderBook)

// WithMetrics reports book activity to m.
func WithMetrics(m Metrics) Option {
	return func(ob *OrderBook) {
		if m != nil {
			ob.metrics = m
		}
	}
}

// WithTradeHandler registers the initial trade observer.
func WithTradeHandler(fn TradeHandler) Option {
	return func(ob *OrderBook) {
		ob.onTrade = fn
	}
}
