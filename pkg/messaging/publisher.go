package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// PublisherConfig tunes a Publisher
type PublisherConfig struct {
	// BufferSize bounds the number of messages waiting to be sent.
	BufferSize int
	// SendTimeout bounds a single SendTradeMessage call.
	SendTimeout time.Duration
}

// DefaultPublisherConfig returns the default publisher configuration
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		BufferSize:  4096,
		SendTimeout: 5 * time.Second,
	}
}

// Publisher moves trade messages from the book's synchronous trade callback
// to a MessageSender on its own goroutine. Publish never blocks: when the
// buffer is full the message is dropped and counted.
type Publisher struct {
	sender  MessageSender
	cfg     PublisherConfig
	logger  zerolog.Logger
	queue   chan *TradeMessage
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// NewPublisher creates a publisher and starts its delivery goroutine.
func NewPublisher(sender MessageSender, cfg PublisherConfig, logger zerolog.Logger) *Publisher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultPublisherConfig().BufferSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultPublisherConfig().SendTimeout
	}

	p := &Publisher{
		sender: sender,
		cfg:    cfg,
		logger: logger.With().Str("component", "trade_publisher").Logger(),
		queue:  make(chan *TradeMessage, cfg.BufferSize),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish enqueues msg for delivery
func (p *Publisher) Publish(msg *TradeMessage) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPublisherClosed
	}

	select {
	case p.queue <- msg:
	default:
		p.dropped.Add(1)
		p.logger.Warn().
			Uint64("buy_order_id", msg.BuyOrderID).
			Uint64("sell_order_id", msg.SellOrderID).
			Msg("Trade publish buffer full, dropping message")
	}
	return nil
}

// Stats returns the number of sent, failed and dropped messages
func (p *Publisher) Stats() (sent, failed, dropped uint64) {
	return p.sent.Load(), p.failed.Load(), p.dropped.Load()
}

// Close stops accepting messages, delivers everything already queued and
// closes the underlying sender.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return p.sender.Close()
}

func (p *Publisher) run() {
	defer close(p.done)

	for msg := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.SendTimeout)
		err := p.sender.SendTradeMessage(ctx, msg)
		cancel()

		if err != nil {
			p.failed.Add(1)
			p.logger.Error().Err(err).
				Uint64("buy_order_id", msg.BuyOrderID).
				Uint64("sell_order_id", msg.SellOrderID).
				Msg("Failed to publish trade")
			continue
		}
		p.sent.Add(1)
	}
}
