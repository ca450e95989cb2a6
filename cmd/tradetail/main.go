package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/erain9/matchbook/config"
	"github.com/erain9/matchbook/pkg/db/queue"
	"github.com/erain9/matchbook/pkg/logging"
	"github.com/erain9/matchbook/pkg/messaging"
	"github.com/erain9/matchbook/pkg/messaging/kafka"
	"github.com/fatih/color"
)

// tradeSource is satisfied by both Kafka consumers
type tradeSource interface {
	Consume(ctx context.Context, fn func(*messaging.TradeMessage) error) error
	Close() error
}

type kafkaGoSource struct{ *kafka.Consumer }

func (s kafkaGoSource) Consume(ctx context.Context, fn func(*messaging.TradeMessage) error) error {
	return s.ConsumeTrades(ctx, fn)
}

type saramaSource struct{ *queue.QueueMessageConsumer }

func (s saramaSource) Consume(ctx context.Context, fn func(*messaging.TradeMessage) error) error {
	return s.ConsumeTradeMessages(ctx, fn)
}

func main() {
	configFile := flag.String("config", "", "Path to config file (YAML)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tradetail: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Output: os.Stderr})

	source, err := newSource(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Kafka consumer")
	}
	defer source.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Info().
		Str("driver", cfg.Kafka.Driver).
		Str("brokers", cfg.Kafka.Brokers).
		Str("topic", cfg.Kafka.Topic).
		Msg("Tailing trades")

	err = source.Consume(ctx, func(msg *messaging.TradeMessage) error {
		printTrade(os.Stdout, msg)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("Consumer stopped")
	}
}

func newSource(cfg *config.Config) (tradeSource, error) {
	if cfg.Kafka.Driver == config.DriverSarama {
		c, err := queue.NewQueueMessageConsumer()
		if err != nil {
			return nil, err
		}
		return saramaSource{c}, nil
	}

	c, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, logging.FromContext(context.Background()))
	if err != nil {
		return nil, err
	}
	return kafkaGoSource{c}, nil
}

var tradeColor = color.New(color.FgYellow)

func printTrade(w io.Writer, msg *messaging.TradeMessage) {
	ts := time.UnixMicro(msg.TimestampMicros).Format("15:04:05.000000")
	tradeColor.Fprintf(w, "%s  buy=%-8d sell=%-8d %8d @ %s\n",
		ts, msg.BuyOrderID, msg.SellOrderID, msg.Quantity, msg.Price)
}
