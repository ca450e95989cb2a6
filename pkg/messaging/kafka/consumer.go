package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/erain9/matchbook/pkg/messaging"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Consumer reads trade messages from a topic with a kafka-go reader
type Consumer struct {
	reader *kafka.Reader
	logger zerolog.Logger
}

// NewConsumer creates a consumer. An empty groupID reads partition 0 from
// the latest offset without committing; a group resumes from its committed
// offset.
func NewConsumer(brokers, topic, groupID string, logger zerolog.Logger) (*Consumer, error) {
	if brokers == "" {
		return nil, fmt.Errorf("no kafka brokers configured")
	}

	cfg := kafka.ReaderConfig{
		Brokers:  strings.Split(brokers, ","),
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	}
	reader := kafka.NewReader(cfg)
	// Without a group the reader starts at the first offset.
	if groupID == "" {
		if err := reader.SetOffset(kafka.LastOffset); err != nil {
			_ = reader.Close()
			return nil, fmt.Errorf("failed to seek to latest offset: %w", err)
		}
	}

	return &Consumer{
		reader: reader,
		logger: logger.With().Str("component", "trade_consumer").Str("topic", topic).Logger(),
	}, nil
}

// ConsumeTrades calls fn for every trade message until ctx is done or fn
// returns an error. Undecodable messages are logged and skipped.
func (c *Consumer) ConsumeTrades(ctx context.Context, fn func(*messaging.TradeMessage) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read message: %w", err)
		}

		trade, err := decodeTrade(msg.Value)
		if err != nil {
			c.logger.Warn().Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("Skipping undecodable trade message")
			continue
		}

		if err := fn(trade); err != nil {
			return err
		}
	}
}

// Close closes the reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func decodeTrade(data []byte) (*messaging.TradeMessage, error) {
	var trade messaging.TradeMessage
	if err := json.Unmarshal(data, &trade); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trade message: %w", err)
	}
	return &trade, nil
}
