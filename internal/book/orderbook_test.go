package book

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradecore/exchange/internal/common"
	"github.com/tradecore/exchange/internal/order"
)

var btcUsd = common.Instrument{Base: "btc", Quote: "usd"}

func limitOrder(id uint64, side common.Side, price, amount float64) *order.Order {
	p := price
	return order.New(id, side, common.Limit, &p, amount, "acc", btcUsd, time.Now())
}

func TestOrderBookAddFirstIsBestPrice(t *testing.T) {
	ob := New(btcUsd)

	ob.Add(limitOrder(1, common.Sell, 101, 1))
	ob.Add(limitOrder(2, common.Sell, 99, 1))
	ob.Add(limitOrder(3, common.Sell, 100, 1))

	first, ok := ob.First(common.Sell)
	require.True(t, ok)
	assert.Equal(t, uint64(2), first.ID)

	ob.Add(limitOrder(4, common.Buy, 50, 1))
	ob.Add(limitOrder(5, common.Buy, 52, 1))
	first, ok = ob.First(common.Buy)
	require.True(t, ok)
	assert.Equal(t, uint64(5), first.ID)
}

func TestOrderBookFIFOWithinPriceLevel(t *testing.T) {
	ob := New(btcUsd)
	ob.Add(limitOrder(1, common.Sell, 100, 1))
	ob.Add(limitOrder(2, common.Sell, 100, 1))

	first, ok := ob.PopFirst(common.Sell)
	require.True(t, ok)
	assert.Equal(t, uint64(1), first.ID)

	second, ok := ob.PopFirst(common.Sell)
	require.True(t, ok)
	assert.Equal(t, uint64(2), second.ID)

	_, ok = ob.PopFirst(common.Sell)
	assert.False(t, ok)
}

func TestOrderBookDeleteIsIdempotent(t *testing.T) {
	ob := New(btcUsd)
	o := limitOrder(1, common.Sell, 100, 1)
	ob.Add(o)

	assert.True(t, ob.Contains(o))
	ob.Delete(o)
	assert.False(t, ob.Contains(o))
	assert.Equal(t, 0, ob.Size())

	ob.Delete(o) // no-op, must not panic
}

func TestOrderBookDepthTracksRemainder(t *testing.T) {
	ob := New(btcUsd)
	ob.Add(limitOrder(1, common.Sell, 100, 2))
	ob.Add(limitOrder(2, common.Sell, 100, 3))
	assert.InDelta(t, 5, ob.Depth(100), 1e-9)

	ob.ReducePrice(100, 2)
	assert.InDelta(t, 3, ob.Depth(100), 1e-9)

	ob.ReducePrice(100, 3)
	assert.InDelta(t, 0, ob.Depth(100), 1e-9)
}

func TestRoundPriceSnapsToGrid(t *testing.T) {
	assert.InDelta(t, 100.000001, RoundPrice(100.0000012), 1e-12)
	assert.Equal(t, 0.0, RoundPrice(0))
	assert.Equal(t, 0.0, RoundPrice(-4e-7))
}

func TestCloseEnough(t *testing.T) {
	assert.True(t, CloseEnough(1.0, 1.0+1e-10, MinAmount))
	assert.False(t, CloseEnough(1.0, 1.1, MinAmount))
}
