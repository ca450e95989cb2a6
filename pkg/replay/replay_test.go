package replay

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/erain9/matchbook/pkg/backend/memory"
	"github.com/erain9/matchbook/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) fpdecimal.Decimal {
	d, err := fpdecimal.FromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newBook() *core.OrderBook {
	return core.NewOrderBook(memory.NewMemoryBackend())
}

func TestParse(t *testing.T) {
	script, err := ParseBytes([]byte(`
name: basic
steps:
  - {op: add, id: 1, side: buy, price: "100.50", qty: 10}
  - {op: cancel, id: 1, expect: accepted}
  - {op: modify, id: 1, price: "101", qty: 5, expect: rejected}
  - {op: clear}
  - {op: snapshot}
`))
	require.NoError(t, err)

	assert.Equal(t, "basic", script.Name)
	require.Len(t, script.Steps, 5)
	assert.Equal(t, Step{Op: OpAdd, ID: 1, Side: "buy", Price: "100.50", Quantity: 10}, script.Steps[0])
	assert.Equal(t, ExpectRejected, script.Steps[2].Expect)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"unknown field", "steps:\n  - {op: add, id: 1, side: buy, price: \"1\", qty: 1, color: red}\n"},
		{"unknown op", "steps:\n  - {op: replace, id: 1}\n"},
		{"bad side", "steps:\n  - {op: add, id: 1, side: up, price: \"1\", qty: 1}\n"},
		{"missing price", "steps:\n  - {op: add, id: 1, side: buy, qty: 1}\n"},
		{"bad price", "steps:\n  - {op: modify, id: 1, price: abc, qty: 1}\n"},
		{"bad expect", "steps:\n  - {op: cancel, id: 1, expect: maybe}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrInvalidScript)
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: f\nsteps:\n  - {op: snapshot}\n"), 0o600))

	script, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "f", script.Name)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRunDemoScript(t *testing.T) {
	script, err := ParseBytes(DemoScript)
	require.NoError(t, err)

	book := newBook()
	var forwarded []core.Trade
	runner := NewRunner(book, WithTradeHandler(func(t core.Trade) {
		forwarded = append(forwarded, t)
	}))

	results, err := runner.Run(context.Background(), script)
	require.NoError(t, err)
	require.Len(t, results, len(script.Steps))

	// #6 crosses #1 at the midpoint of 100.50 and 99.50
	cross := results[5]
	require.Len(t, cross.Trades, 1)
	assert.Equal(t, uint64(1), cross.Trades[0].BuyOrderID)
	assert.Equal(t, uint64(6), cross.Trades[0].SellOrderID)
	assert.Equal(t, uint64(50), cross.Trades[0].Quantity)
	assert.Equal(t, dec("100"), cross.Trades[0].Price)

	snap := results[6].Snapshot
	require.NotNil(t, snap)
	assert.True(t, snap.HasBid)
	assert.Equal(t, dec("100.50"), snap.BestBid)
	assert.Equal(t, dec("101"), snap.BestAsk)
	assert.Equal(t, dec("0.5"), snap.Spread)
	assert.Equal(t, 5, snap.OrderCount)

	sweep := results[7]
	require.Len(t, sweep.Trades, 2)
	assert.Equal(t, uint64(1), sweep.Trades[0].BuyOrderID)
	assert.Equal(t, uint64(50), sweep.Trades[0].Quantity)
	assert.Equal(t, dec("100.25"), sweep.Trades[0].Price)
	assert.Equal(t, uint64(2), sweep.Trades[1].BuyOrderID)
	assert.Equal(t, uint64(25), sweep.Trades[1].Quantity)
	assert.Equal(t, dec("100.125"), sweep.Trades[1].Price)

	snap = results[8].Snapshot
	require.NotNil(t, snap)
	assert.Equal(t, 4, snap.OrderCount)
	require.Len(t, snap.Bids, 2)
	assert.Equal(t, core.LevelInfo{Price: dec("100.25"), Quantity: 175, Orders: 1}, snap.Bids[0])

	snap = results[10].Snapshot
	require.NotNil(t, snap)
	assert.Equal(t, 3, snap.OrderCount)
	assert.Equal(t, dec("99.75"), snap.BestBid)
	assert.Equal(t, dec("1.25"), snap.Spread)

	assert.ErrorIs(t, results[11].Err, core.ErrNonexistentOrder)
	assert.Len(t, forwarded, 3)
}

func TestRunStopsOnUnmetExpectation(t *testing.T) {
	script, err := ParseBytes([]byte(`
steps:
  - {op: add, id: 1, side: sell, price: "10", qty: 5}
  - {op: add, id: 1, side: sell, price: "11", qty: 5, expect: accepted}
  - {op: snapshot}
`))
	require.NoError(t, err)

	results, err := NewRunner(newBook()).Run(context.Background(), script)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrOrderExists)
	assert.True(t, strings.Contains(err.Error(), "step 1"))
	assert.Len(t, results, 2)
}

func TestRunExpectTrades(t *testing.T) {
	script, err := ParseBytes([]byte(`
steps:
  - {op: add, id: 1, side: sell, price: "10", qty: 5}
  - {op: add, id: 2, side: buy, price: "9", qty: 5, expect_trades: 1}
`))
	require.NoError(t, err)

	_, err = NewRunner(newBook()).Run(context.Background(), script)
	assert.ErrorContains(t, err, "expected 1 trades, got 0")
}

func TestRunRejectionsAndClear(t *testing.T) {
	script, err := ParseBytes([]byte(`
steps:
  - {op: add, id: 1, side: buy, price: "10", qty: 0, expect: rejected}
  - {op: add, id: 2, side: buy, price: "-1", qty: 3, expect: rejected}
  - {op: add, id: 3, side: buy, price: "10", qty: 3, expect: accepted}
  - {op: modify, id: 3, price: "10", qty: 0, expect: rejected}
  - {op: cancel, id: 99, expect: rejected}
  - {op: clear}
  - {op: snapshot}
  - {op: cancel, id: 3, expect: rejected}
`))
	require.NoError(t, err)

	results, err := NewRunner(newBook()).Run(context.Background(), script)
	require.NoError(t, err)

	assert.ErrorIs(t, results[0].Err, core.ErrInvalidQuantity)
	assert.ErrorIs(t, results[1].Err, core.ErrInvalidPrice)
	assert.ErrorIs(t, results[3].Err, core.ErrInvalidQuantity)
	assert.ErrorIs(t, results[4].Err, core.ErrNonexistentOrder)

	snap := results[6].Snapshot
	require.NotNil(t, snap)
	assert.Equal(t, 0, snap.OrderCount)
	assert.False(t, snap.HasBid)
	assert.False(t, snap.HasAsk)
	assert.False(t, snap.HasSpread)
}

func TestRunCanceledContext(t *testing.T) {
	script, err := ParseBytes([]byte("steps:\n  - {op: snapshot}\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := NewRunner(newBook()).Run(ctx, script)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestResultHandler(t *testing.T) {
	script, err := ParseBytes([]byte(`
steps:
  - {op: add, id: 1, side: sell, price: "10", qty: 5}
  - {op: snapshot}
`))
	require.NoError(t, err)

	var seen []int
	_, err = NewRunner(newBook(), WithResultHandler(func(r Result) {
		seen = append(seen, r.Index)
	})).Run(context.Background(), script)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, seen)
}
