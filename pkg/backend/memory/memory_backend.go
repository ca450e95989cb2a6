package memory

import (
	"container/list"
	"fmt"
	"strings"

	"github.com/erain9/matchbook/pkg/core"
	"github.com/google/btree"
	"github.com/nikolaydubina/fpdecimal"
)

const priceLevelsBTreeDegree = 32

// queueEntry is one resting order reference inside a price level
type queueEntry struct {
	id    uint64
	stamp int64
}

// OrderQueue represents a price level in the order book. It holds order IDs
// in arrival order; the orders themselves live in MemoryBackend.orders.
type OrderQueue struct {
	price  fpdecimal.Decimal
	orders *list.List
	index  map[uint64]*list.Element
}

// NewOrderQueue creates a new OrderQueue with the given price
func NewOrderQueue(price fpdecimal.Decimal) *OrderQueue {
	return &OrderQueue{
		price:  price,
		orders: list.New(),
		index:  make(map[uint64]*list.Element),
	}
}

// Price returns the level price
func (q *OrderQueue) Price() fpdecimal.Decimal {
	return q.price
}

// Len returns the number of orders at this level
func (q *OrderQueue) Len() int {
	return q.orders.Len()
}

// Front returns the earliest-arrived order ID
func (q *OrderQueue) Front() (uint64, bool) {
	front := q.orders.Front()
	if front == nil {
		return 0, false
	}
	return front.Value.(queueEntry).id, true
}

// OrderIDs returns all order IDs, earliest first
func (q *OrderQueue) OrderIDs() []uint64 {
	ids := make([]uint64, 0, q.orders.Len())
	for e := q.orders.Front(); e != nil; e = e.Next() {
		ids = append(ids, e.Value.(queueEntry).id)
	}
	return ids
}

// push inserts the order keeping timestamps non-decreasing. Arrival stamps
// are monotonic, so the walk from the tail normally stops immediately.
func (q *OrderQueue) push(order *core.Order) {
	entry := queueEntry{id: order.ID(), stamp: order.Stamp()}

	mark := q.orders.Back()
	for mark != nil && mark.Value.(queueEntry).stamp > entry.stamp {
		mark = mark.Prev()
	}

	var elem *list.Element
	if mark == nil {
		elem = q.orders.PushFront(entry)
	} else {
		elem = q.orders.InsertAfter(entry, mark)
	}
	q.index[entry.id] = elem
}

func (q *OrderQueue) remove(orderID uint64) bool {
	elem, ok := q.index[orderID]
	if !ok {
		return false
	}
	q.orders.Remove(elem)
	delete(q.index, orderID)
	return true
}

// OrderSide represents one side (bid/ask) of the order book. Levels are kept
// in a B-tree ordered best price first for the side.
type OrderSide struct {
	side   core.Side
	levels *btree.BTreeG[*OrderQueue]
}

// NewOrderSide creates an empty ledger for side
func NewOrderSide(side core.Side) *OrderSide {
	var less btree.LessFunc[*OrderQueue]
	if side == core.Buy {
		// Bids: highest price first
		less = func(a, b *OrderQueue) bool { return a.price.GreaterThan(b.price) }
	} else {
		// Asks: lowest price first
		less = func(a, b *OrderQueue) bool { return a.price.LessThan(b.price) }
	}

	return &OrderSide{
		side:   side,
		levels: btree.NewG(priceLevelsBTreeDegree, less),
	}
}

// Best returns the best price level or nil
func (os *OrderSide) Best() *OrderQueue {
	level, ok := os.levels.Min()
	if !ok {
		return nil
	}
	return level
}

// Get returns the level at price or nil
func (os *OrderSide) Get(price fpdecimal.Decimal) *OrderQueue {
	level, ok := os.levels.Get(&OrderQueue{price: price})
	if !ok {
		return nil
	}
	return level
}

// Len returns the number of price levels
func (os *OrderSide) Len() int {
	return os.levels.Len()
}

// Prices returns all prices in the order side, best first
func (os *OrderSide) Prices() []fpdecimal.Decimal {
	prices := make([]fpdecimal.Decimal, 0, os.levels.Len())
	os.levels.Ascend(func(level *OrderQueue) bool {
		prices = append(prices, level.price)
		return true
	})
	return prices
}

// String implements fmt.Stringer interface
func (os *OrderSide) String() string {
	sb := strings.Builder{}
	os.levels.Ascend(func(level *OrderQueue) bool {
		sb.WriteString(fmt.Sprintf("\n%s -> orders: %d", level.price, level.Len()))
		return true
	})
	return sb.String()
}

func (os *OrderSide) append(order *core.Order) {
	level := os.Get(order.Price())
	if level == nil {
		level = NewOrderQueue(order.Price())
		os.levels.ReplaceOrInsert(level)
	}
	level.push(order)
}

func (os *OrderSide) remove(order *core.Order) bool {
	level := os.Get(order.Price())
	if level == nil {
		return false
	}
	if !level.remove(order.ID()) {
		return false
	}
	if level.Len() == 0 {
		os.levels.Delete(level)
	}
	return true
}

// MemoryBackend implements OrderBookBackend interface with in-memory storage.
// It is not safe for concurrent use; core.OrderBook serializes access.
type MemoryBackend struct {
	orders map[uint64]*core.Order
	bids   *OrderSide
	asks   *OrderSide
}

// NewMemoryBackend creates new instance of MemoryBackend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		orders: make(map[uint64]*core.Order),
		bids:   NewOrderSide(core.Buy),
		asks:   NewOrderSide(core.Sell),
	}
}

// GetOrder retrieves an order by ID
func (b *MemoryBackend) GetOrder(orderID uint64) *core.Order {
	return b.orders[orderID]
}

// StoreOrder stores an order
func (b *MemoryBackend) StoreOrder(order *core.Order) error {
	if _, exists := b.orders[order.ID()]; exists {
		return core.ErrOrderExists
	}
	b.orders[order.ID()] = order
	return nil
}

// DeleteOrder deletes an order
func (b *MemoryBackend) DeleteOrder(orderID uint64) {
	delete(b.orders, orderID)
}

// OrderCount returns the number of stored orders
func (b *MemoryBackend) OrderCount() int {
	return len(b.orders)
}

// AppendToSide adds an order to the specified side
func (b *MemoryBackend) AppendToSide(side core.Side, order *core.Order) {
	b.orderSide(side).append(order)
}

// RemoveFromSide removes an order from the specified side, dropping its
// price level when it becomes empty
func (b *MemoryBackend) RemoveFromSide(side core.Side, order *core.Order) bool {
	return b.orderSide(side).remove(order)
}

// BestLevel returns the best price level of side
func (b *MemoryBackend) BestLevel(side core.Side) core.PriceLevel {
	level := b.orderSide(side).Best()
	if level == nil {
		return nil
	}
	return level
}

// Level returns the price level at price
func (b *MemoryBackend) Level(side core.Side, price fpdecimal.Decimal) core.PriceLevel {
	level := b.orderSide(side).Get(price)
	if level == nil {
		return nil
	}
	return level
}

// Levels iterates levels of side, best first
func (b *MemoryBackend) Levels(side core.Side, fn func(core.PriceLevel) bool) {
	b.orderSide(side).levels.Ascend(func(level *OrderQueue) bool {
		return fn(level)
	})
}

// Clear drops all orders and price levels
func (b *MemoryBackend) Clear() {
	b.orders = make(map[uint64]*core.Order)
	b.bids = NewOrderSide(core.Buy)
	b.asks = NewOrderSide(core.Sell)
}

// GetBids returns the bid side of the order book for iteration
func (b *MemoryBackend) GetBids() *OrderSide {
	return b.bids
}

// GetAsks returns the ask side of the order book for iteration
func (b *MemoryBackend) GetAsks() *OrderSide {
	return b.asks
}

func (b *MemoryBackend) orderSide(side core.Side) *OrderSide {
	if side == core.Buy {
		return b.bids
	}
	return b.asks
}

var _ core.OrderBookBackend = (*MemoryBackend)(nil)
