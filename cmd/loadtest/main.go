package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/erain9/matchbook/config"
	"github.com/erain9/matchbook/pkg/backend/memory"
	"github.com/erain9/matchbook/pkg/core"
	"github.com/erain9/matchbook/pkg/logging"
	"github.com/erain9/matchbook/pkg/messaging"
	"github.com/erain9/matchbook/pkg/otel"
	"github.com/fatih/color"
)

func main() {
	configFile := flag.String("config", "", "Path to config file (YAML)")
	workers := flag.Int("workers", 0, "Override loadtest.workers")
	duration := flag.Duration("duration", 0, "Override loadtest.duration")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loadtest: %v\n", err)
		os.Exit(1)
	}
	if *workers > 0 {
		cfg.Loadtest.Workers = *workers
	}
	if *duration > 0 {
		cfg.Loadtest.Duration = *duration
	}

	logger := logging.Setup(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Output: os.Stderr})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	shutdown, err := otel.Init(ctx, otel.Config{
		ServiceName:      cfg.Telemetry.ServiceName,
		Endpoint:         cfg.Telemetry.Endpoint,
		CollectorEnabled: cfg.Telemetry.Enabled,
		RuntimeMetrics:   cfg.Telemetry.RuntimeMetrics,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(ctx)
	}()

	metrics, err := otel.NewOrderBookMetrics(otel.Meter())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create metrics")
	}

	gen, err := newGenerator(cfg.Loadtest)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid load profile")
	}

	onTrade := gen.onTrade
	if cfg.Kafka.Enabled {
		sender, err := cfg.NewTradeSender()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create trade sender")
		}
		publisher := messaging.NewPublisher(sender, cfg.PublisherConfig(), logger)
		defer publisher.Close()
		onTrade = func(t core.Trade) {
			gen.onTrade(t)
			_ = publisher.Publish(t.ToMessage())
		}
	}

	book := core.NewOrderBook(memory.NewMemoryBackend(),
		core.WithMetrics(metrics),
		core.WithTradeHandler(onTrade),
	)

	logger.Info().
		Int("workers", cfg.Loadtest.Workers).
		Int("rate", cfg.Loadtest.Rate).
		Dur("duration", cfg.Loadtest.Duration).
		Msg("Starting load test")

	ctx = logging.WithRunID(ctx, fmt.Sprintf("loadtest-%d", time.Now().Unix()))
	report := gen.Run(ctx, book)

	report.Print(os.Stdout)
	if report.Rejected() > 0 {
		color.New(color.FgYellow).Fprintf(os.Stdout, "%d operations rejected (expected for cancels and modifies of filled orders)\n", report.Rejected())
	}
}
