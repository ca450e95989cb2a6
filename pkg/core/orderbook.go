package core

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nikolaydubina/fpdecimal"
)

// OrderBook implements price-time priority matching for a single instrument.
//
// All methods are safe for concurrent use. Mutations are serialized behind a
// single write lock and queries never observe a partially applied mutation.
// The trade handler runs while the write lock is held; calling back into the
// book from it deadlocks.
type OrderBook struct {
	mu      sync.RWMutex
	backend OrderBookBackend
	onTrade TradeHandler
	metrics Metrics
}

// LevelInfo summarizes one price level
type LevelInfo struct {
	Price    fpdecimal.Decimal
	Quantity uint64
	Orders   int
}

// NewOrderBook creates Orderbook object with a backend
func NewOrderBook(backend OrderBookBackend, opts ...Option) *OrderBook {
	ob := &OrderBook{
		backend: backend,
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(ob)
	}
	return ob
}

// SetTradeCallback registers the single trade observer, replacing any
// previous one. A nil handler disables notification.
func (ob *OrderBook) SetTradeCallback(fn TradeHandler) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.onTrade = fn
}

// AddOrder validates and accepts order, then matches it against the book.
// The book stores its own copy; later changes are visible through GetOrder.
// A nil error means the order was accepted, whether or not it traded.
func (ob *OrderBook) AddOrder(order *Order) error {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	if err := ob.validate(order); err != nil {
		ob.metrics.OrderRejected(err)
		return err
	}

	stored := *order
	stored.originalQty = stored.quantity
	stored.timestamp = nextStamp()

	if err := ob.backend.StoreOrder(&stored); err != nil {
		ob.metrics.OrderRejected(err)
		return err
	}
	ob.backend.AppendToSide(stored.side, &stored)
	ob.metrics.OrderAccepted(stored.side)

	ob.match(&stored)
	return nil
}

// AddLimitOrder builds a limit order from its fields and adds it. Invalid
// fields are rejected with the same errors AddOrder returns.
func (ob *OrderBook) AddLimitOrder(orderID uint64, side Side, price fpdecimal.Decimal, quantity uint64) error {
	order, err := NewLimitOrder(orderID, side, price, quantity)
	if err != nil {
		ob.mu.Lock()
		ob.metrics.OrderRejected(err)
		ob.mu.Unlock()
		return err
	}
	return ob.AddOrder(order)
}

// CancelOrder removes the order with given ID from the book
func (ob *OrderBook) CancelOrder(orderID uint64) error {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	order := ob.backend.GetOrder(orderID)
	if order == nil {
		return ErrNonexistentOrder
	}

	ob.deleteOrder(order)
	ob.metrics.OrderCanceled()
	return nil
}

// ModifyOrder withdraws the order, replaces its price and quantity, gives it
// a fresh timestamp and resubmits it. The order always loses time priority,
// and may trade immediately if the new price crosses the book.
func (ob *OrderBook) ModifyOrder(orderID uint64, newPrice fpdecimal.Decimal, newQuantity uint64) error {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	order := ob.backend.GetOrder(orderID)
	if order == nil {
		return ErrNonexistentOrder
	}
	if newQuantity == 0 {
		return ErrInvalidQuantity
	}
	if newPrice.LessThanOrEqual(fpdecimal.Zero) {
		return ErrInvalidPrice
	}

	if !ob.backend.RemoveFromSide(order.side, order) {
		panic(fmt.Errorf("%w: order %d indexed but not on %s side", ErrInvariantViolation, order.id, order.side))
	}

	order.price = newPrice
	order.quantity = newQuantity
	order.originalQty = newQuantity
	order.timestamp = nextStamp()

	ob.backend.AppendToSide(order.side, order)
	ob.metrics.OrderModified()

	ob.match(order)
	return nil
}

// GetOrder returns a copy of the resting order with the given ID
func (ob *OrderBook) GetOrder(orderID uint64) (Order, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	order := ob.backend.GetOrder(orderID)
	if order == nil {
		return Order{}, false
	}
	return *order, true
}

// BestBid returns the highest resting bid price
func (ob *OrderBook) BestBid() (fpdecimal.Decimal, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bestPrice(Buy)
}

// BestAsk returns the lowest resting ask price
func (ob *OrderBook) BestAsk() (fpdecimal.Decimal, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bestPrice(Sell)
}

// Spread returns best ask minus best bid. It is absent when either side is empty.
func (ob *OrderBook) Spread() (fpdecimal.Decimal, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	bid, ok := ob.bestPrice(Buy)
	if !ok {
		return fpdecimal.Zero, false
	}
	ask, ok := ob.bestPrice(Sell)
	if !ok {
		return fpdecimal.Zero, false
	}
	return ask.Sub(bid), true
}

// DepthAtPrice returns the total resting quantity at exactly price on side
func (ob *OrderBook) DepthAtPrice(price fpdecimal.Decimal, side Side) uint64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	level := ob.backend.Level(side, price)
	if level == nil {
		return 0
	}
	return ob.levelQuantity(level)
}

// OrderCount returns the number of resting orders on both sides
func (ob *OrderBook) OrderCount() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.backend.OrderCount()
}

// Levels returns every price level on side, best price first
func (ob *OrderBook) Levels(side Side) []LevelInfo {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	levels := make([]LevelInfo, 0)
	ob.backend.Levels(side, func(level PriceLevel) bool {
		levels = append(levels, LevelInfo{
			Price:    level.Price(),
			Quantity: ob.levelQuantity(level),
			Orders:   level.Len(),
		})
		return true
	})
	return levels
}

// Clear removes every order from the book. The trade callback is kept.
func (ob *OrderBook) Clear() {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.backend.Clear()
}

// String implements fmt.Stringer interface
func (ob *OrderBook) String() string {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	builder := strings.Builder{}
	for _, side := range []Side{Sell, Buy} {
		if side == Sell {
			builder.WriteString("Ask:")
		} else {
			builder.WriteString("Bid:")
		}
		ob.backend.Levels(side, func(level PriceLevel) bool {
			builder.WriteString(fmt.Sprintf("\n%s -> orders: %d, quantity: %d",
				level.Price(), level.Len(), ob.levelQuantity(level)))
			return true
		})
		builder.WriteString("\n")
	}
	return builder.String()
}

// private methods

func (ob *OrderBook) validate(order *Order) error {
	if order == nil {
		return ErrNilOrder
	}
	if order.quantity == 0 {
		return ErrInvalidQuantity
	}
	if order.price.LessThanOrEqual(fpdecimal.Zero) {
		return ErrInvalidPrice
	}
	if !order.side.Valid() {
		return ErrInvalidSide
	}
	if ob.backend.GetOrder(order.id) != nil {
		return ErrOrderExists
	}
	return nil
}

// match crosses order against the opposite side until it no longer crosses
// or is exhausted. order must already be stored and resting on its own side.
func (ob *OrderBook) match(order *Order) {
	opposite := order.side.Opposite()

	for order.quantity > 0 {
		level := ob.backend.BestLevel(opposite)
		if level == nil {
			break
		}

		// The best level is the only candidate; worse levels cannot cross either.
		if !crosses(order.side, order.price, level.Price()) {
			break
		}

		for order.quantity > 0 {
			restingID, ok := level.Front()
			if !ok {
				break
			}

			resting := ob.backend.GetOrder(restingID)
			if resting == nil {
				panic(fmt.Errorf("%w: level %s references unknown order %d",
					ErrInvariantViolation, level.Price(), restingID))
			}

			quantity := min(order.quantity, resting.quantity)
			if order.side == Buy {
				ob.executeTrade(order, resting, quantity)
			} else {
				ob.executeTrade(resting, order, quantity)
			}

			order.decreaseQuantity(quantity)
			resting.decreaseQuantity(quantity)

			// Removing the last order also destroys the level.
			if resting.quantity == 0 {
				ob.deleteOrder(resting)
			}
		}
	}

	if order.quantity == 0 {
		ob.deleteOrder(order)
	}
}

func crosses(side Side, orderPrice, bookPrice fpdecimal.Decimal) bool {
	if side == Buy {
		return orderPrice.GreaterThanOrEqual(bookPrice)
	}
	return orderPrice.LessThanOrEqual(bookPrice)
}

func (ob *OrderBook) executeTrade(buy, sell *Order, quantity uint64) {
	if buy.side != Buy || sell.side != Sell {
		panic(fmt.Errorf("%w: trade between %s #%d and %s #%d",
			ErrInvariantViolation, buy.side, buy.id, sell.side, sell.id))
	}

	trade := Trade{
		BuyOrderID:  buy.id,
		SellOrderID: sell.id,
		Price:       midpoint(buy.price, sell.price),
		Quantity:    quantity,
		Timestamp:   time.Unix(0, nextStamp()),
	}

	ob.metrics.TradeExecuted(trade)
	if ob.onTrade != nil {
		ob.onTrade(trade)
	}
}

func (ob *OrderBook) deleteOrder(order *Order) {
	if !ob.backend.RemoveFromSide(order.side, order) {
		panic(fmt.Errorf("%w: order %d indexed but not on %s side", ErrInvariantViolation, order.id, order.side))
	}
	ob.backend.DeleteOrder(order.id)
}

func (ob *OrderBook) bestPrice(side Side) (fpdecimal.Decimal, bool) {
	level := ob.backend.BestLevel(side)
	if level == nil {
		return fpdecimal.Zero, false
	}
	return level.Price(), true
}

func (ob *OrderBook) levelQuantity(level PriceLevel) uint64 {
	var total uint64
	for _, id := range level.OrderIDs() {
		order := ob.backend.GetOrder(id)
		if order == nil {
			panic(fmt.Errorf("%w: level %s references unknown order %d",
				ErrInvariantViolation, level.Price(), id))
		}
		total += order.quantity
	}
	return total
}
