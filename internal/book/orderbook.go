// Package book implements the per-instrument, two-sided priority order
// book: ascending asks, descending bids, each a price-level index backed by
// a B-tree, with FIFO time-priority within a price level.
//
// Grounded on the teacher's internal/engine/orderbook.go, which already
// shapes the book around github.com/tidwall/btree price levels; this
// package generalizes that shape to the full spec contract (add, delete,
// first, pop_first, contains, depth, size) and fixes the teacher's
// level-slicing bug in the market sweep.
package book

import (
	"math"

	"github.com/tidwall/btree"

	"github.com/tradecore/exchange/internal/common"
	"github.com/tradecore/exchange/internal/order"
)

// Precision constants for the book's price and amount grid.
const (
	MinPrice  = 1e-6
	MinAmount = 1e-8
)

// RoundPrice rounds a price to 6 decimal places, the book's price grid.
func RoundPrice(price float64) float64 {
	return math.Round(price/MinPrice) * MinPrice
}

// CloseEnough reports whether a and b are equal within the given relative
// tolerance, mirroring the reference implementation's numpy.isclose use at
// the default relative tolerance of MinAmount.
func CloseEnough(a, b, rtol float64) bool {
	return math.Abs(a-b) <= rtol*math.Max(math.Abs(a), math.Abs(b))
}

// PriceLevel holds every resting order at a single price, in arrival
// (FIFO) order.
type PriceLevel struct {
	Price  float64
	Orders []*order.Order
}

type priceTree = btree.BTreeG[*PriceLevel]

// OrderBook is the per-instrument priority structure.
type OrderBook struct {
	Instrument common.Instrument

	asks *priceTree // ascending: lowest ask first
	bids *priceTree // descending: highest bid first

	amountPerPrice map[float64]float64
	nAsks, nBids   int
}

// New constructs an empty order book for instrument.
func New(instrument common.Instrument) *OrderBook {
	return &OrderBook{
		Instrument: instrument,
		asks: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.Price < b.Price
		}),
		bids: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.Price > b.Price
		}),
		amountPerPrice: make(map[float64]float64),
	}
}

func (b *OrderBook) treeFor(side common.Side) *priceTree {
	if side == common.Sell {
		return b.asks
	}
	return b.bids
}

// Add inserts a resting Limit order into the correct side at the position
// preserving price priority, then time priority at tie. Updates the
// per-price aggregate by the order's remaining amount.
func (b *OrderBook) Add(o *order.Order) {
	tree := b.treeFor(o.Side)
	price := *o.Price

	level, ok := tree.Get(&PriceLevel{Price: price})
	if ok {
		level.Orders = append(level.Orders, o)
	} else {
		tree.Set(&PriceLevel{Price: price, Orders: []*order.Order{o}})
	}

	b.amountPerPrice[price] += o.Remaining()
	if o.Side == common.Sell {
		b.nAsks++
	} else {
		b.nBids++
	}
}

// Delete removes an order by identity, regardless of where in its price
// level's FIFO queue it sits. It silently no-ops if the order is absent,
// tolerating double-removal during races between cancellation and
// matching.
func (b *OrderBook) Delete(o *order.Order) {
	tree := b.treeFor(o.Side)
	if o.Price == nil {
		return
	}
	price := *o.Price

	level, ok := tree.Get(&PriceLevel{Price: price})
	if !ok {
		return
	}

	idx := -1
	for i, resting := range level.Orders {
		if resting.ID == o.ID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}

	level.Orders = append(level.Orders[:idx], level.Orders[idx+1:]...)
	b.reduceAmount(price, o.Remaining())

	if o.Side == common.Sell {
		b.nAsks--
	} else {
		b.nBids--
	}

	if len(level.Orders) == 0 {
		tree.Delete(&PriceLevel{Price: price})
	}
}

// ReducePrice decrements the per-price remaining-amount aggregate by qty,
// called by the matching model after every match step against a resting
// maker at that price (whether the maker ends up Partial or Full for this
// step) so depth stays equal to the sum of resting remainders continuously,
// not just at order add/remove.
func (b *OrderBook) ReducePrice(price float64, qty float64) {
	b.reduceAmount(price, qty)
}

func (b *OrderBook) reduceAmount(price, qty float64) {
	remaining := b.amountPerPrice[price] - qty
	if math.Abs(remaining) <= MinAmount/10 {
		delete(b.amountPerPrice, price)
		return
	}
	b.amountPerPrice[price] = remaining
}

// First returns the best resting order on side (lowest ask / highest bid)
// without removing it.
func (b *OrderBook) First(side common.Side) (*order.Order, bool) {
	level, ok := b.treeFor(side).Min()
	if !ok || len(level.Orders) == 0 {
		return nil, false
	}
	return level.Orders[0], true
}

// PopFirst removes and returns the best resting order on side.
func (b *OrderBook) PopFirst(side common.Side) (*order.Order, bool) {
	tree := b.treeFor(side)
	level, ok := tree.Min()
	if !ok || len(level.Orders) == 0 {
		return nil, false
	}

	head := level.Orders[0]
	level.Orders = level.Orders[1:]

	if side == common.Sell {
		b.nAsks--
	} else {
		b.nBids--
	}

	if len(level.Orders) == 0 {
		tree.Delete(&PriceLevel{Price: level.Price})
	}
	return head, true
}

// Contains answers membership by order identity.
func (b *OrderBook) Contains(o *order.Order) bool {
	return b.ContainsID(o.Side, o.ID)
}

// ContainsID answers membership by order id on the given side.
func (b *OrderBook) ContainsID(side common.Side, id uint64) bool {
	found := false
	b.treeFor(side).Scan(func(level *PriceLevel) bool {
		for _, resting := range level.Orders {
			if resting.ID == id {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// Depth returns the aggregate remaining amount at price, or 0 if the price
// is not present.
func (b *OrderBook) Depth(price float64) float64 {
	return b.amountPerPrice[price]
}

// Size returns the total resting order count across both sides.
func (b *OrderBook) Size() int {
	return b.nAsks + b.nBids
}

// Levels returns a snapshot of every price level on side, best price
// first, for diagnostics and tests.
func (b *OrderBook) Levels(side common.Side) []*PriceLevel {
	var levels []*PriceLevel
	b.treeFor(side).Scan(func(level *PriceLevel) bool {
		levels = append(levels, level)
		return true
	})
	return levels
}
