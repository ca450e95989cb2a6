package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/IBM/sarama"
	"github.com/erain9/matchbook/pkg/messaging"
)

const (
	defaultBrokerList = "localhost:9092"
	defaultTopic      = "matchbook-trades"
	maxRetry          = 5
)

var (
	configMu   sync.RWMutex
	brokerList = defaultBrokerList
	topic      = defaultTopic
)

// Overridable for tests
var (
	newSyncProducer = sarama.NewSyncProducer
	newConsumer     = sarama.NewConsumer
)

// SetBrokerList sets the comma separated Kafka broker list used by new
// senders and consumers
func SetBrokerList(brokers string) {
	configMu.Lock()
	defer configMu.Unlock()
	brokerList = brokers
}

// SetTopic sets the Kafka topic used by new senders and consumers
func SetTopic(t string) {
	configMu.Lock()
	defer configMu.Unlock()
	topic = t
}

func settings() ([]string, string) {
	configMu.RLock()
	defer configMu.RUnlock()
	return strings.Split(brokerList, ","), topic
}

// QueueMessageSender implements the MessageSender interface
// for sending trade messages to Kafka through a sarama sync producer
type QueueMessageSender struct {
	producer sarama.SyncProducer
	topic    string
}

// NewQueueMessageSender creates a sender connected to the configured brokers
func NewQueueMessageSender() (*QueueMessageSender, error) {
	brokers, t := settings()

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = maxRetry
	config.Producer.Return.Successes = true

	producer, err := newSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &QueueMessageSender{
		producer: producer,
		topic:    t,
	}, nil
}

// SendTradeMessage sends the trade to the Kafka topic
func (q *QueueMessageSender) SendTradeMessage(ctx context.Context, trade *messaging.TradeMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	messageBytes, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("failed to marshal trade message: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: q.topic,
		Key:   sarama.ByteEncoder(trade.Key()),
		Value: sarama.ByteEncoder(messageBytes),
	}

	if _, _, err := q.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	return nil
}

// Close closes the producer
func (q *QueueMessageSender) Close() error {
	return q.producer.Close()
}

// QueueMessageConsumer reads trade messages from every partition of the topic
type QueueMessageConsumer struct {
	consumer sarama.Consumer
	topic    string
}

// NewQueueMessageConsumer creates a consumer connected to the configured brokers
func NewQueueMessageConsumer() (*QueueMessageConsumer, error) {
	brokers, t := settings()

	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true

	consumer, err := newConsumer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	return &QueueMessageConsumer{
		consumer: consumer,
		topic:    t,
	}, nil
}

// ConsumeTradeMessages calls handler for every trade message until ctx is
// done or a partition stream ends. Only partition 0 is read when the topic
// metadata lists no partitions.
func (c *QueueMessageConsumer) ConsumeTradeMessages(ctx context.Context, handler func(*messaging.TradeMessage) error) error {
	partitions, err := c.consumer.Partitions(c.topic)
	if err != nil {
		return fmt.Errorf("failed to list partitions: %w", err)
	}
	if len(partitions) == 0 {
		partitions = []int32{0}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(partitions))
	var wg sync.WaitGroup

	for _, partition := range partitions {
		pc, err := c.consumer.ConsumePartition(c.topic, partition, sarama.OffsetNewest)
		if err != nil {
			return fmt.Errorf("failed to consume partition %d: %w", partition, err)
		}

		wg.Add(1)
		go func(pc sarama.PartitionConsumer) {
			defer wg.Done()
			defer pc.AsyncClose()
			errCh <- consumePartition(ctx, pc, handler)
		}(pc)
	}

	err = <-errCh
	cancel()
	wg.Wait()
	return err
}

func consumePartition(ctx context.Context, pc sarama.PartitionConsumer, handler func(*messaging.TradeMessage) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-pc.Messages():
			if !ok {
				return nil
			}
			var trade messaging.TradeMessage
			if err := json.Unmarshal(msg.Value, &trade); err != nil {
				return fmt.Errorf("failed to unmarshal trade message: %w", err)
			}
			if err := handler(&trade); err != nil {
				return err
			}
		case cerr, ok := <-pc.Errors():
			if !ok {
				return nil
			}
			return cerr.Err
		}
	}
}

// Close closes the consumer
func (c *QueueMessageConsumer) Close() error {
	return c.consumer.Close()
}

// Ensure QueueMessageSender implements MessageSender
var _ messaging.MessageSender = (*QueueMessageSender)(nil)
