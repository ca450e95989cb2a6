package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/erain9/matchbook/pkg/messaging"
	"github.com/nikolaydubina/fpdecimal"
)

// Trade is an immutable record of one execution between a buy and a sell order
type Trade struct {
	BuyOrderID  uint64
	SellOrderID uint64
	// Price is the mean of the two limit prices, truncated to the third
	// fraction digit (0.001 and 0.002 trade at 0.001).
	Price       fpdecimal.Decimal
	Quantity    uint64
	Timestamp   time.Time
}

// TradeHandler receives trades synchronously as the book produces them.
// It runs while the book is mid-mutation and must not call back into the book.
type TradeHandler func(Trade)

// midpoint returns the execution price of two crossing limit prices.
// Prices are positive and halved before adding, so the sum cannot overflow.
func midpoint(a, b fpdecimal.Decimal) fpdecimal.Decimal {
	x, y := a.Scaled(), b.Scaled()
	return fpdecimal.FromIntScaled(x/2 + y/2 + (x%2+y%2)/2)
}

// MarshalJSON implements Marshaler interface
func (t Trade) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		BuyOrderID  uint64 `json:"buyOrderID"`
		SellOrderID uint64 `json:"sellOrderID"`
		Price       string `json:"price"`
		Quantity    uint64 `json:"quantity"`
		Timestamp   int64  `json:"timestamp"`
	}{
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		Price:       t.Price.String(),
		Quantity:    t.Quantity,
		Timestamp:   t.Timestamp.UnixMicro(),
	})
}

// String implements Stringer interface
func (t Trade) String() string {
	return fmt.Sprintf("buy=%d sell=%d %d@%s", t.BuyOrderID, t.SellOrderID, t.Quantity, t.Price)
}

// ToMessage converts the trade to the outbound messaging format.
func (t Trade) ToMessage() *messaging.TradeMessage {
	return &messaging.TradeMessage{
		BuyOrderID:      t.BuyOrderID,
		SellOrderID:     t.SellOrderID,
		Price:           t.Price.String(),
		Quantity:        t.Quantity,
		TimestampMicros: t.Timestamp.UnixMicro(),
	}
}
