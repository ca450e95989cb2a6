package replay

import (
	"github.com/erain9/matchbook/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
)

// Snapshot is a point-in-time view of the book
type Snapshot struct {
	BestBid    fpdecimal.Decimal
	HasBid     bool
	BestAsk    fpdecimal.Decimal
	HasAsk     bool
	Spread     fpdecimal.Decimal
	HasSpread  bool
	OrderCount int
	Bids       []core.LevelInfo
	Asks       []core.LevelInfo
}

// TakeSnapshot reads the book's top of book, order count and ladder. Each
// query takes the book lock separately; callers that need a consistent view
// under concurrent writers must serialize themselves.
func TakeSnapshot(book *core.OrderBook) Snapshot {
	var s Snapshot
	s.BestBid, s.HasBid = book.BestBid()
	s.BestAsk, s.HasAsk = book.BestAsk()
	s.Spread, s.HasSpread = book.Spread()
	s.OrderCount = book.OrderCount()
	s.Bids = book.Levels(core.Buy)
	s.Asks = book.Levels(core.Sell)
	return s
}
