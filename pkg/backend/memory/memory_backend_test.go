package memory

import (
	"testing"

	"github.com/erain9/matchbook/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func order(id uint64, side core.Side, price string, qty uint64) *core.Order {
	return core.MustLimitOrder(id, side, price, qty)
}

func dec(s string) fpdecimal.Decimal {
	d, err := fpdecimal.FromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNewMemoryBackend(t *testing.T) {
	backend := NewMemoryBackend()
	assert.NotNil(t, backend)
	assert.NotNil(t, backend.orders)
	assert.NotNil(t, backend.bids)
	assert.NotNil(t, backend.asks)
	assert.Equal(t, 0, backend.OrderCount())
	assert.Nil(t, backend.BestLevel(core.Buy))
	assert.Nil(t, backend.BestLevel(core.Sell))
}

func TestMemoryBackend_OrderOperations(t *testing.T) {
	backend := NewMemoryBackend()
	o := order(1, core.Buy, "100", 10)

	require.NoError(t, backend.StoreOrder(o))
	assert.Same(t, o, backend.GetOrder(1))
	assert.Equal(t, 1, backend.OrderCount())

	assert.ErrorIs(t, backend.StoreOrder(order(1, core.Sell, "1", 1)), core.ErrOrderExists)

	backend.DeleteOrder(1)
	assert.Nil(t, backend.GetOrder(1))
	assert.Equal(t, 0, backend.OrderCount())

	// Deleting an unknown order is a no-op
	backend.DeleteOrder(1)
}

func TestMemoryBackend_AppendToSide(t *testing.T) {
	backend := NewMemoryBackend()
	o1 := order(1, core.Buy, "100", 10)
	o2 := order(2, core.Buy, "100", 5)
	o3 := order(3, core.Buy, "101", 5)
	for _, o := range []*core.Order{o1, o2, o3} {
		require.NoError(t, backend.StoreOrder(o))
		backend.AppendToSide(core.Buy, o)
	}

	best := backend.BestLevel(core.Buy)
	require.NotNil(t, best)
	assert.Equal(t, dec("101"), best.Price())

	level := backend.Level(core.Buy, dec("100"))
	require.NotNil(t, level)
	assert.Equal(t, 2, level.Len())
	assert.Equal(t, []uint64{1, 2}, level.OrderIDs())
	front, ok := level.Front()
	assert.True(t, ok)
	assert.Equal(t, uint64(1), front)

	assert.Nil(t, backend.Level(core.Sell, dec("100")))
	assert.Nil(t, backend.Level(core.Buy, dec("99")))
}

func TestMemoryBackend_RemoveFromSide(t *testing.T) {
	backend := NewMemoryBackend()
	o1 := order(1, core.Sell, "100", 10)
	o2 := order(2, core.Sell, "100", 5)
	backend.AppendToSide(core.Sell, o1)
	backend.AppendToSide(core.Sell, o2)

	assert.True(t, backend.RemoveFromSide(core.Sell, o1))
	assert.False(t, backend.RemoveFromSide(core.Sell, o1), "second removal must fail")
	assert.False(t, backend.RemoveFromSide(core.Buy, o2), "wrong side must fail")

	level := backend.Level(core.Sell, dec("100"))
	require.NotNil(t, level)
	assert.Equal(t, []uint64{2}, level.OrderIDs())

	// Removing the last order destroys the level
	assert.True(t, backend.RemoveFromSide(core.Sell, o2))
	assert.Nil(t, backend.Level(core.Sell, dec("100")))
	assert.Equal(t, 0, backend.GetAsks().Len())
}

func TestOrderQueue_KeepsStampOrder(t *testing.T) {
	o1 := order(1, core.Buy, "100", 1)
	o2 := order(2, core.Buy, "100", 1)
	o3 := order(3, core.Buy, "100", 1)

	q := NewOrderQueue(dec("100"))
	q.push(o3)
	q.push(o1)
	q.push(o2)

	assert.Equal(t, []uint64{1, 2, 3}, q.OrderIDs())
	assert.Equal(t, 3, q.Len())

	assert.True(t, q.remove(2))
	assert.False(t, q.remove(2))
	assert.Equal(t, []uint64{1, 3}, q.OrderIDs())

	empty := NewOrderQueue(dec("1"))
	_, ok := empty.Front()
	assert.False(t, ok)
}

func TestPriceSorting(t *testing.T) {
	tests := []struct {
		side core.Side
		want []string
	}{
		{core.Sell, []string{"95", "100", "105"}},
		{core.Buy, []string{"105", "100", "95"}},
	}

	for _, tt := range tests {
		t.Run(tt.side.String(), func(t *testing.T) {
			os := NewOrderSide(tt.side)
			os.append(order(1, tt.side, "100", 1))
			os.append(order(2, tt.side, "105", 1))
			os.append(order(3, tt.side, "95", 1))
			os.append(order(4, tt.side, "100", 1))

			prices := os.Prices()
			require.Len(t, prices, len(tt.want))
			for i, p := range tt.want {
				assert.True(t, prices[i].Equal(dec(p)), "position %d: want %s, got %s", i, p, prices[i])
			}
			assert.Equal(t, dec(tt.want[0]), os.Best().Price())
		})
	}
}

func TestMemoryBackend_Levels(t *testing.T) {
	backend := NewMemoryBackend()
	for i, p := range []string{"101", "103", "102"} {
		backend.AppendToSide(core.Sell, order(uint64(i+1), core.Sell, p, 1))
	}

	var prices []fpdecimal.Decimal
	backend.Levels(core.Sell, func(level core.PriceLevel) bool {
		prices = append(prices, level.Price())
		return true
	})
	assert.Equal(t, []fpdecimal.Decimal{dec("101"), dec("102"), dec("103")}, prices)

	// Stops when the callback returns false
	count := 0
	backend.Levels(core.Sell, func(core.PriceLevel) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}

func TestMemoryBackend_Clear(t *testing.T) {
	backend := NewMemoryBackend()
	o := order(1, core.Buy, "100", 1)
	require.NoError(t, backend.StoreOrder(o))
	backend.AppendToSide(core.Buy, o)

	backend.Clear()
	assert.Equal(t, 0, backend.OrderCount())
	assert.Nil(t, backend.BestLevel(core.Buy))
	assert.Equal(t, 0, backend.GetBids().Len())
}

func TestOrderSide_String(t *testing.T) {
	os := NewOrderSide(core.Sell)
	os.append(order(1, core.Sell, "100", 1))
	os.append(order(2, core.Sell, "100", 1))
	os.append(order(3, core.Sell, "101", 1))

	s := os.String()
	assert.Contains(t, s, "-> orders: 2")
	assert.Contains(t, s, "-> orders: 1")
}

func TestMemoryBackend_WithOrderBook(t *testing.T) {
	backend := NewMemoryBackend()
	book := core.NewOrderBook(backend)

	require.NoError(t, book.AddOrder(order(1, core.Sell, "100", 10)))
	require.NoError(t, book.AddOrder(order(2, core.Sell, "100", 10)))
	require.NoError(t, book.AddOrder(order(3, core.Buy, "100", 15)))

	level := backend.Level(core.Sell, dec("100"))
	require.NotNil(t, level)
	assert.Equal(t, []uint64{2}, level.OrderIDs())
	assert.Equal(t, uint64(5), backend.GetOrder(2).Quantity())
	assert.Nil(t, backend.GetOrder(1))
	assert.Nil(t, backend.GetOrder(3))
	assert.Equal(t, 0, backend.GetBids().Len())
}
