package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/erain9/matchbook/pkg/core"
	"github.com/erain9/matchbook/pkg/replay"
	"github.com/fatih/color"
	"github.com/nikolaydubina/fpdecimal"
)

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	stepColor  = color.New(color.FgWhite, color.Bold)
	tradeColor = color.New(color.FgYellow, color.Bold)
	bidColor   = color.New(color.FgGreen)
	askColor   = color.New(color.FgRed)
	errColor   = color.New(color.FgMagenta)
)

type printer struct {
	out io.Writer
}

func (p *printer) title(s string) {
	titleColor.Fprintln(p.out, s)
	titleColor.Fprintln(p.out, strings.Repeat("=", len(s)))
}

func (p *printer) result(res replay.Result) {
	step := res.Step
	switch step.Op {
	case replay.OpAdd:
		stepColor.Fprintf(p.out, "\n[%d] add %s #%d %d@%s", res.Index, step.Side, step.ID, step.Quantity, step.Price)
	case replay.OpModify:
		stepColor.Fprintf(p.out, "\n[%d] modify #%d -> %d@%s", res.Index, step.ID, step.Quantity, step.Price)
	case replay.OpCancel:
		stepColor.Fprintf(p.out, "\n[%d] cancel #%d", res.Index, step.ID)
	case replay.OpClear:
		stepColor.Fprintf(p.out, "\n[%d] clear", res.Index)
	case replay.OpSnapshot:
		p.snapshot(res.Snapshot)
		return
	}

	if step.Note != "" {
		fmt.Fprintf(p.out, " (%s)", step.Note)
	}
	if res.Err != nil {
		errColor.Fprintf(p.out, " rejected: %v", res.Err)
	}
	fmt.Fprintln(p.out)
}

func (p *printer) trade(t core.Trade) {
	tradeColor.Fprintln(p.out, "*** TRADE EXECUTED ***")
	fmt.Fprintf(p.out, "  Buy Order ID:  %d\n", t.BuyOrderID)
	fmt.Fprintf(p.out, "  Sell Order ID: %d\n", t.SellOrderID)
	fmt.Fprintf(p.out, "  Price:         %s\n", t.Price)
	fmt.Fprintf(p.out, "  Quantity:      %d\n", t.Quantity)
	fmt.Fprintf(p.out, "  Timestamp:     %s\n", t.Timestamp.Format("15:04:05.000000"))
}

func (p *printer) snapshot(s *replay.Snapshot) {
	if s == nil {
		return
	}

	titleColor.Fprintln(p.out, "\n=== Order Book ===")
	fmt.Fprintf(p.out, "Best Bid: %s\n", optional(s.BestBid, s.HasBid))
	fmt.Fprintf(p.out, "Best Ask: %s\n", optional(s.BestAsk, s.HasAsk))
	fmt.Fprintf(p.out, "Spread: %s\n", optional(s.Spread, s.HasSpread))
	fmt.Fprintf(p.out, "Total Orders: %d\n", s.OrderCount)

	// Asks are printed worst first so the ladder reads top-down
	for i := len(s.Asks) - 1; i >= 0; i-- {
		level := s.Asks[i]
		askColor.Fprintf(p.out, "  ASK %10s  %8d  (%d)\n", level.Price, level.Quantity, level.Orders)
	}
	for _, level := range s.Bids {
		bidColor.Fprintf(p.out, "  BID %10s  %8d  (%d)\n", level.Price, level.Quantity, level.Orders)
	}
}

func optional(d fpdecimal.Decimal, ok bool) string {
	if !ok {
		return "N/A"
	}
	return d.String()
}
