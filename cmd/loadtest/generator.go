package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/erain9/matchbook/config"
	"github.com/erain9/matchbook/pkg/core"
	"github.com/erain9/matchbook/pkg/logging"
	"github.com/fatih/color"
	"github.com/nikolaydubina/fpdecimal"
	"golang.org/x/time/rate"
)

const (
	opAdd = iota
	opCancel
	opModify
	numOps
)

var opNames = [numOps]string{"add", "cancel", "modify"}

// Latencies are recorded in nanoseconds
const (
	minLatency = 1
	maxLatency = int64(10 * time.Second)
	sigFigs    = 3
)

type generator struct {
	cfg     config.LoadtestConfig
	prices  []fpdecimal.Decimal
	limiter *rate.Limiter
	nextID  atomic.Uint64
	trades  atomic.Uint64
}

// newGenerator builds a price band of 2*PriceLevels+1 ticks of 0.01 around
// the mid price. Buyers draw from the lower three quarters of the band and
// sellers from the upper three quarters so that some orders cross.
func newGenerator(cfg config.LoadtestConfig) (*generator, error) {
	mid, err := fpdecimal.FromString(cfg.MidPrice)
	if err != nil {
		return nil, fmt.Errorf("bad mid price %q: %w", cfg.MidPrice, err)
	}
	if cfg.Workers <= 0 || cfg.Rate <= 0 || cfg.PriceLevels <= 0 || cfg.MaxQuantity == 0 {
		return nil, errors.New("workers, rate, price levels and max quantity must be positive")
	}

	hundred := fpdecimal.FromInt(100)
	prices := make([]fpdecimal.Decimal, 0, 2*cfg.PriceLevels+1)
	for i := -cfg.PriceLevels; i <= cfg.PriceLevels; i++ {
		p := mid.Add(fpdecimal.FromInt(i).Div(hundred))
		if p.LessThanOrEqual(fpdecimal.Zero) {
			return nil, fmt.Errorf("mid price %s too low for %d price levels", cfg.MidPrice, cfg.PriceLevels)
		}
		prices = append(prices, p)
	}

	return &generator{
		cfg:     cfg,
		prices:  prices,
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), max(cfg.Rate/100, 1)),
	}, nil
}

// onTrade counts trades. Install it as (part of) the book's trade handler.
func (g *generator) onTrade(core.Trade) {
	g.trades.Add(1)
}

type opStats struct {
	accepted uint64
	rejected uint64
	latency  *hdrhistogram.Histogram
}

func newOpStats() *opStats {
	return &opStats{latency: hdrhistogram.New(minLatency, maxLatency, sigFigs)}
}

func (s *opStats) merge(o *opStats) {
	s.accepted += o.accepted
	s.rejected += o.rejected
	s.latency.Merge(o.latency)
}

// Report summarizes a load test run
type Report struct {
	Elapsed time.Duration
	Ops     [numOps]*opStats
	Trades  uint64
	Resting int
}

// Total returns the number of operations issued
func (r *Report) Total() uint64 {
	var n uint64
	for _, s := range r.Ops {
		n += s.accepted + s.rejected
	}
	return n
}

// Rejected returns the number of operations the book rejected
func (r *Report) Rejected() uint64 {
	var n uint64
	for _, s := range r.Ops {
		n += s.rejected
	}
	return n
}

// Print writes a latency table to w
func (r *Report) Print(w io.Writer) {
	header := color.New(color.FgCyan, color.Bold)

	header.Fprintf(w, "\nLoad test completed in %v\n", r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "operations: %d (%.0f/s), trades: %d, resting orders: %d\n\n",
		r.Total(), float64(r.Total())/r.Elapsed.Seconds(), r.Trades, r.Resting)

	header.Fprintf(w, "%-8s %10s %10s %10s %10s %10s %10s\n", "op", "accepted", "rejected", "p50", "p99", "p99.9", "max")
	for i, s := range r.Ops {
		fmt.Fprintf(w, "%-8s %10d %10d %10v %10v %10v %10v\n",
			opNames[i], s.accepted, s.rejected,
			time.Duration(s.latency.ValueAtQuantile(50)),
			time.Duration(s.latency.ValueAtQuantile(99)),
			time.Duration(s.latency.ValueAtQuantile(99.9)),
			time.Duration(s.latency.Max()),
		)
	}
}

// Run drives book from cfg.Workers goroutines until the configured duration
// elapses or ctx is done
func (g *generator) Run(ctx context.Context, book *core.OrderBook) *Report {
	logger := logging.FromContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Duration)
	defer cancel()

	perWorker := make([][numOps]*opStats, g.cfg.Workers)
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < g.cfg.Workers; i++ {
		for op := range perWorker[i] {
			perWorker[i][op] = newOpStats()
		}

		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(g.cfg.Seed + int64(workerID)))
			g.work(ctx, book, rng, &perWorker[workerID])
		}(i)
	}

	wg.Wait()

	report := &Report{Elapsed: time.Since(start)}
	for op := range report.Ops {
		report.Ops[op] = newOpStats()
		for i := range perWorker {
			report.Ops[op].merge(perWorker[i][op])
		}
	}
	report.Trades = g.trades.Load()
	report.Resting = book.OrderCount()

	logger.Info().
		Uint64("operations", report.Total()).
		Uint64("trades", report.Trades).
		Int("resting", report.Resting).
		Dur("elapsed", report.Elapsed).
		Msg("Load test finished")

	return report
}

func (g *generator) work(ctx context.Context, book *core.OrderBook, rng *rand.Rand, stats *[numOps]*opStats) {
	for {
		if err := g.limiter.Wait(ctx); err != nil {
			return
		}

		op := g.pickOp(rng)
		start := time.Now()
		err := g.apply(book, rng, op)
		elapsed := time.Since(start)

		s := stats[op]
		_ = s.latency.RecordValue(max(elapsed.Nanoseconds(), minLatency))
		if err != nil {
			s.rejected++
		} else {
			s.accepted++
		}
	}
}

func (g *generator) pickOp(rng *rand.Rand) int {
	if g.nextID.Load() == 0 {
		return opAdd
	}
	x := rng.Float64()
	switch {
	case x < g.cfg.CancelRatio:
		return opCancel
	case x < g.cfg.CancelRatio+g.cfg.ModifyRatio:
		return opModify
	default:
		return opAdd
	}
}

func (g *generator) apply(book *core.OrderBook, rng *rand.Rand, op int) error {
	switch op {
	case opCancel:
		return book.CancelOrder(g.randomID(rng))
	case opModify:
		side := core.Side(rng.Intn(2))
		return book.ModifyOrder(g.randomID(rng), g.randomPrice(rng, side), g.randomQuantity(rng))
	default:
		side := core.Side(rng.Intn(2))
		id := g.nextID.Add(1)
		return book.AddLimitOrder(id, side, g.randomPrice(rng, side), g.randomQuantity(rng))
	}
}

// randomID favours recent orders, which are the ones most likely to rest
func (g *generator) randomID(rng *rand.Rand) uint64 {
	last := g.nextID.Load()
	window := min(last, uint64(10*g.cfg.PriceLevels))
	return last - uint64(rng.Int63n(int64(window)))
}

func (g *generator) randomPrice(rng *rand.Rand, side core.Side) fpdecimal.Decimal {
	n := len(g.prices)
	span := n * 3 / 4
	if side == core.Buy {
		return g.prices[rng.Intn(span)]
	}
	return g.prices[n-1-rng.Intn(span)]
}

func (g *generator) randomQuantity(rng *rand.Rand) uint64 {
	return uint64(rng.Int63n(int64(g.cfg.MaxQuantity))) + 1
}
