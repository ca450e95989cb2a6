package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/erain9/matchbook/config"
	"github.com/erain9/matchbook/pkg/backend/memory"
	"github.com/erain9/matchbook/pkg/core"
	"github.com/erain9/matchbook/pkg/logging"
	"github.com/erain9/matchbook/pkg/messaging"
	"github.com/erain9/matchbook/pkg/otel"
	"github.com/erain9/matchbook/pkg/replay"
	"github.com/rs/zerolog"
)

func main() {
	configFile := flag.String("config", "", "Path to config file (YAML)")
	scriptFile := flag.String("script", "", "Replay script to run instead of the built-in demo")
	flag.Parse()

	if err := run(*configFile, *scriptFile, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "demo: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, scriptFile string, out io.Writer) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdown, err := otel.Init(ctx, otel.Config{
		ServiceName:      cfg.Telemetry.ServiceName,
		Endpoint:         cfg.Telemetry.Endpoint,
		CollectorEnabled: cfg.Telemetry.Enabled,
		RuntimeMetrics:   cfg.Telemetry.RuntimeMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Warn().Err(err).Msg("Telemetry shutdown failed")
		}
	}()

	metrics, err := otel.NewOrderBookMetrics(otel.Meter())
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	script, err := loadScript(scriptFile)
	if err != nil {
		return err
	}

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	if publisher != nil {
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn().Err(err).Msg("Trade publisher close failed")
			}
			sent, failed, dropped := publisher.Stats()
			logger.Info().Uint64("sent", sent).Uint64("failed", failed).Uint64("dropped", dropped).Msg("Trade publisher stopped")
		}()
	}

	p := &printer{out: out}
	p.title("OrderBook Demo Application")

	book := core.NewOrderBook(memory.NewMemoryBackend(), core.WithMetrics(metrics))
	runner := replay.NewRunner(book,
		replay.WithTradeHandler(func(t core.Trade) {
			p.trade(t)
			if publisher != nil {
				_ = publisher.Publish(t.ToMessage())
			}
		}),
		replay.WithResultHandler(p.result),
	)

	ctx = logging.WithRunID(ctx, script.Name)
	if _, err := runner.Run(ctx, script); err != nil {
		return fmt.Errorf("script %q failed: %w", script.Name, err)
	}

	p.title("Demo completed!")
	return nil
}

func loadScript(path string) (*replay.Script, error) {
	if path == "" {
		return replay.ParseBytes(replay.DemoScript)
	}
	return replay.ParseFile(path)
}

func newPublisher(cfg *config.Config, logger zerolog.Logger) (*messaging.Publisher, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}

	sender, err := cfg.NewTradeSender()
	if err != nil {
		return nil, fmt.Errorf("failed to create trade sender: %w", err)
	}

	logger.Info().
		Str("driver", cfg.Kafka.Driver).
		Str("brokers", cfg.Kafka.Brokers).
		Str("topic", cfg.Kafka.Topic).
		Msg("Publishing trades to Kafka")
	return messaging.NewPublisher(sender, cfg.PublisherConfig(), logger), nil
}
