package core

import "github.com/nikolaydubina/fpdecimal"

// PriceLevel is a read view of one price on one side of the book. It holds
// order IDs only; quantities live in the order store.
type PriceLevel interface {
	Price() fpdecimal.Decimal
	Len() int
	// Front returns the earliest-arrived order ID at this price.
	Front() (uint64, bool)
	// OrderIDs returns the IDs in priority order.
	OrderIDs() []uint64
}

// OrderBookBackend defines the interface for order book storage.
// Backends are not required to be safe for concurrent use; OrderBook
// serializes every call.
type OrderBookBackend interface {
	// Order operations
	GetOrder(orderID uint64) *Order
	StoreOrder(order *Order) error
	DeleteOrder(orderID uint64)
	OrderCount() int

	// Side operations. RemoveFromSide destroys the price level it empties.
	AppendToSide(side Side, order *Order)
	RemoveFromSide(side Side, order *Order) bool

	// BestLevel returns nil when the side is empty.
	BestLevel(side Side) PriceLevel
	// Level returns nil when no level exists at price.
	Level(side Side, price fpdecimal.Decimal) PriceLevel
	// Levels calls fn for each level, best price first, until fn returns false.
	Levels(side Side, fn func(PriceLevel) bool)

	Clear()
}
