package messaging

import (
	"context"
	"fmt"
)

// MessageSender defines an interface for sending messages
// This helps decouple the core package from specific implementations
// like Kafka in the queue package
type MessageSender interface {
	SendTradeMessage(ctx context.Context, trade *TradeMessage) error
	Close() error
}

// TradeMessage represents one execution as published to the trade topic.
type TradeMessage struct {
	BuyOrderID      uint64 `json:"buyOrderID"`
	SellOrderID     uint64 `json:"sellOrderID"`
	Price           string `json:"price"`
	Quantity        uint64 `json:"quantity"`
	TimestampMicros int64  `json:"timestampMicros"`
}

// Key returns the partitioning key for the message.
func (m *TradeMessage) Key() []byte {
	return []byte(fmt.Sprintf("%d-%d", m.BuyOrderID, m.SellOrderID))
}
