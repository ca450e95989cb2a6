package main

import (
	"fmt"

	"github.com/erain9/matchbook/pkg/backend/memory"
	"github.com/erain9/matchbook/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
)

func main() {
	// Initialize order book with in-memory backend
	backend := memory.NewMemoryBackend()
	book := core.NewOrderBook(backend)

	book.SetTradeCallback(func(t core.Trade) {
		fmt.Printf("Trade executed: buy=%d sell=%d qty=%d price=%s\n",
			t.BuyOrderID, t.SellOrderID, t.Quantity, t.Price)
	})

	// Rest a sell limit order
	sellOrder := core.MustLimitOrder(1, core.Sell, "10.00", 10)
	if err := book.AddOrder(sellOrder); err != nil {
		panic(err)
	}
	fmt.Printf("Created sell order: %s\n", sellOrder)

	// A crossing buy trades at the midpoint of both limits
	buyOrder := core.MustLimitOrder(2, core.Buy, "10.50", 5)
	if err := book.AddOrder(buyOrder); err != nil {
		panic(err)
	}
	fmt.Printf("Processed buy order: %s\n", buyOrder)

	resting, ok := book.GetOrder(sellOrder.ID())
	if !ok {
		panic("sell order should still rest")
	}
	fmt.Printf("Sell order remaining quantity: %d/%d\n", resting.Quantity(), resting.OriginalQty())

	bestAsk, _ := book.BestAsk()
	fmt.Printf("Best ask: %s, depth: %d, orders: %d\n",
		bestAsk, book.DepthAtPrice(fpdecimal.FromInt(10), core.Sell), book.OrderCount())
}
