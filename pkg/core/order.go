package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nikolaydubina/fpdecimal"
)

// Side represents buy or sell side of the order
type Side int

// Order sides
const (
	Sell Side = iota
	Buy
)

// String returns side as string
func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the side an order on s trades against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Valid reports whether s is Buy or Sell.
func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// ParseSide parses "buy"/"sell" in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "BID":
		return Buy, nil
	case "SELL", "ASK":
		return Sell, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
}

// MarshalJSON encodes the side by name
func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a side name
func (s *Side) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	side, err := ParseSide(name)
	if err != nil {
		return err
	}
	*s = side
	return nil
}

// Order stores information about a limit order
type Order struct {
	id          uint64
	side        Side
	price       fpdecimal.Decimal
	quantity    uint64
	originalQty uint64
	timestamp   int64
}

// NewLimitOrder creates a limit order stamped with its creation time.
// The book re-stamps it with its arrival time when it is accepted.
func NewLimitOrder(orderID uint64, side Side, price fpdecimal.Decimal, quantity uint64) (*Order, error) {
	if !side.Valid() {
		return nil, ErrInvalidSide
	}

	if quantity == 0 {
		return nil, ErrInvalidQuantity
	}

	if price.LessThanOrEqual(fpdecimal.Zero) {
		return nil, ErrInvalidPrice
	}

	return &Order{
		id:          orderID,
		side:        side,
		price:       price,
		quantity:    quantity,
		originalQty: quantity,
		timestamp:   nextStamp(),
	}, nil
}

// MustLimitOrder is like NewLimitOrder but panics on invalid input.
// Intended for tests and examples with literal arguments.
func MustLimitOrder(orderID uint64, side Side, price string, quantity uint64) *Order {
	p, err := fpdecimal.FromString(price)
	if err != nil {
		panic(err)
	}
	o, err := NewLimitOrder(orderID, side, p, quantity)
	if err != nil {
		panic(err)
	}
	return o
}

// ID returns OrderID field copy
func (o *Order) ID() uint64 {
	return o.id
}

// Side returns side of the Order
func (o *Order) Side() Side {
	return o.side
}

// Price returns Price field copy
func (o *Order) Price() fpdecimal.Decimal {
	return o.price
}

// Quantity returns the remaining quantity
func (o *Order) Quantity() uint64 {
	return o.quantity
}

// OriginalQty returns the quantity the order was (re)submitted with
func (o *Order) OriginalQty() uint64 {
	return o.originalQty
}

// Timestamp returns the order's priority timestamp
func (o *Order) Timestamp() time.Time {
	return time.Unix(0, o.timestamp)
}

// Stamp returns the raw priority timestamp in nanoseconds. Ledgers order
// orders within a price level by this value.
func (o *Order) Stamp() int64 {
	return o.timestamp
}

// Filled returns the quantity executed since the last (re)submission
func (o *Order) Filled() uint64 {
	return o.originalQty - o.quantity
}

func (o *Order) decreaseQuantity(quantity uint64) {
	if quantity > o.quantity {
		panic(fmt.Errorf("%w: fill %d exceeds remaining %d on order %d",
			ErrInvariantViolation, quantity, o.quantity, o.id))
	}
	o.quantity -= quantity
}

// MarshalJSON implements custom JSON marshaling for Order
func (o *Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          uint64 `json:"id"`
		Side        Side   `json:"side"`
		Price       string `json:"price"`
		Quantity    uint64 `json:"quantity"`
		OriginalQty uint64 `json:"originalQty"`
		Timestamp   int64  `json:"timestamp"`
	}{
		ID:          o.id,
		Side:        o.side,
		Price:       o.price.String(),
		Quantity:    o.quantity,
		OriginalQty: o.originalQty,
		Timestamp:   o.timestamp,
	})
}

// String implements Stringer interface
func (o *Order) String() string {
	return fmt.Sprintf("%s #%d %d@%s", o.side, o.id, o.quantity, o.price)
}
