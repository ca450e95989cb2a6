package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedSender blocks every send until release is closed
type gatedSender struct {
	*MockMessageSender
	started chan struct{}
	release chan struct{}
}

func (g *gatedSender) SendTradeMessage(ctx context.Context, msg *TradeMessage) error {
	select {
	case g.started <- struct{}{}:
	default:
	}
	<-g.release
	return g.MockMessageSender.SendTradeMessage(ctx, msg)
}

func msg(buy, sell uint64) *TradeMessage {
	return &TradeMessage{BuyOrderID: buy, SellOrderID: sell, Price: "100", Quantity: 1}
}

func TestPublisherDeliversInOrder(t *testing.T) {
	sender := NewMockMessageSender()
	p := NewPublisher(sender, DefaultPublisherConfig(), zerolog.Nop())

	for i := uint64(1); i <= 10; i++ {
		require.NoError(t, p.Publish(msg(i, i+100)))
	}
	require.NoError(t, p.Close())

	got := sender.Messages()
	require.Len(t, got, 10)
	for i, m := range got {
		assert.Equal(t, uint64(i+1), m.BuyOrderID)
	}
	assert.True(t, sender.Closed())

	sent, failed, dropped := p.Stats()
	assert.Equal(t, uint64(10), sent)
	assert.Zero(t, failed)
	assert.Zero(t, dropped)
}

func TestPublisherDropsWhenFull(t *testing.T) {
	sender := &gatedSender{
		MockMessageSender: NewMockMessageSender(),
		started:           make(chan struct{}, 1),
		release:           make(chan struct{}),
	}
	p := NewPublisher(sender, PublisherConfig{BufferSize: 2, SendTimeout: time.Second}, zerolog.Nop())

	// First message is picked up and blocks the delivery goroutine
	require.NoError(t, p.Publish(msg(1, 1)))
	select {
	case <-sender.started:
	case <-time.After(time.Second):
		t.Fatal("delivery goroutine did not start")
	}

	// Two fit in the buffer, the rest are dropped without blocking
	for i := uint64(2); i <= 5; i++ {
		require.NoError(t, p.Publish(msg(i, i)))
	}

	close(sender.release)
	require.NoError(t, p.Close())

	sent, _, dropped := p.Stats()
	assert.Equal(t, uint64(3), sent)
	assert.Equal(t, uint64(2), dropped)
	assert.Len(t, sender.Messages(), 3)
}

func TestPublisherCountsFailures(t *testing.T) {
	sender := NewMockMessageSender()
	sender.Err = errors.New("broker unavailable")
	p := NewPublisher(sender, DefaultPublisherConfig(), zerolog.Nop())

	require.NoError(t, p.Publish(msg(1, 2)))
	require.NoError(t, p.Close())

	sent, failed, _ := p.Stats()
	assert.Zero(t, sent)
	assert.Equal(t, uint64(1), failed)
}

func TestPublisherClosed(t *testing.T) {
	sender := NewMockMessageSender()
	p := NewPublisher(sender, PublisherConfig{}, zerolog.Nop())

	require.NoError(t, p.Close())
	require.NoError(t, p.Close(), "second close is a no-op")
	assert.ErrorIs(t, p.Publish(msg(1, 2)), ErrPublisherClosed)
}

func TestTradeMessageKey(t *testing.T) {
	assert.Equal(t, []byte("12-34"), msg(12, 34).Key())
}
