// Package matching implements the pure matching algorithms: consume an
// incoming taker against the opposite side of an order book, producing a
// sequence of match reports.
//
// Grounded on original_source/exchange/core/match_model.py (the
// isclose-tolerance loop, the maker/taker report pair per step) and on the
// teacher's internal/engine/orderbook.go Match() sweep shape.
package matching

import (
	"runtime"

	"github.com/tradecore/exchange/internal/book"
	"github.com/tradecore/exchange/internal/common"
	"github.com/tradecore/exchange/internal/order"
)

// OwnerType classifies which side of a match step a report belongs to.
type OwnerType int

const (
	Maker OwnerType = iota
	Taker
)

// ReportType classifies whether this step fully closed the order it
// reports on.
type ReportType int

const (
	Partial ReportType = iota
	Full
)

// Report pairs an order with the base/quote quantities matched in one
// step, and flags the step full/partial for that order.
type Report struct {
	Owner        OwnerType
	Type         ReportType
	Order        *order.Order
	BaseMatched  float64
	QuoteMatched float64
}

const rtol = book.MinAmount

func filled(o *order.Order) bool {
	return book.CloseEnough(o.FilledAmount(), o.Amount, rtol)
}

func crosses(takerSide common.Side, takerPrice, makerPrice float64) bool {
	if takerSide == common.Buy {
		return takerPrice >= makerPrice
	}
	return takerPrice <= makerPrice
}

func oppositeSide(takerSide common.Side) common.Side {
	if takerSide == common.Buy {
		return common.Sell
	}
	return common.Buy
}

// matchStep executes a single match between taker and the best resting
// maker. Trade price is always the resting maker's price.
func matchStep(taker, maker *order.Order) (makerReport, takerReport Report) {
	takerLeft := taker.Amount - taker.FilledAmount()
	makerLeft := maker.Amount - maker.FilledAmount()
	x := takerLeft
	if makerLeft < x {
		x = makerLeft
	}

	taker.AddFilled(x)
	maker.AddFilled(x)

	baseMatched := x
	quoteMatched := x * *maker.Price

	makerType := Partial
	takerType := Partial

	if filled(taker) {
		taker.MarkClosed()
		takerType = Full
	}
	if filled(maker) {
		maker.MarkClosed()
		makerType = Full
	}

	return Report{Owner: Maker, Type: makerType, Order: maker, BaseMatched: baseMatched, QuoteMatched: quoteMatched},
		Report{Owner: Taker, Type: takerType, Order: taker, BaseMatched: baseMatched, QuoteMatched: quoteMatched}
}

// LimitMatch consumes the opposite side of ob for taker, a Limit order not
// yet on the book, stopping when the taker is filled, the book runs out of
// crossing liquidity, or the book is empty. A residual taker is rested on
// its own side of ob.
func LimitMatch(taker *order.Order, ob *book.OrderBook) []Report {
	taker.MarkMatching()
	defer taker.FinishMatching()

	var reports []Report
	opposite := oppositeSide(taker.Side)

	for !filled(taker) {
		maker, ok := ob.First(opposite)
		if !ok {
			break
		}
		if !crosses(taker.Side, *taker.Price, *maker.Price) {
			break
		}

		makerReport, takerReport := matchStep(taker, maker)
		ob.ReducePrice(*maker.Price, makerReport.BaseMatched)
		reports = append(reports, makerReport, takerReport)

		if maker.StatusNow() == common.Closed {
			ob.PopFirst(opposite)
		}

		runtime.Gosched()
	}

	if !filled(taker) {
		taker.MarkOpened()
		ob.Add(taker)
	}

	return reports
}

// MarketMatch consumes the opposite side of ob for taker, a Market order.
// Every maker at the front of the opposite side crosses unconditionally.
// On empty book or exhausted liquidity the taker is closed regardless of
// residual unfilled amount; it is never rested.
func MarketMatch(taker *order.Order, ob *book.OrderBook) []Report {
	var reports []Report
	opposite := oppositeSide(taker.Side)

	for !filled(taker) {
		maker, ok := ob.First(opposite)
		if !ok {
			break
		}

		makerReport, takerReport := matchStep(taker, maker)
		ob.ReducePrice(*maker.Price, makerReport.BaseMatched)
		reports = append(reports, makerReport, takerReport)

		if maker.StatusNow() == common.Closed {
			ob.PopFirst(opposite)
		}

		runtime.Gosched()
	}

	taker.MarkClosed()

	return reports
}
