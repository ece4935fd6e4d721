package exchange

import (
	"github.com/rs/zerolog/log"

	"github.com/tradecore/exchange/internal/book"
	"github.com/tradecore/exchange/internal/common"
	"github.com/tradecore/exchange/internal/eventbus"
	"github.com/tradecore/exchange/internal/matching"
	"github.com/tradecore/exchange/internal/order"
)

type priceSideKey struct {
	price float64
	side  common.Side
}

// applyReports walks every MatchReport produced by one taker's matching
// pass and performs the balance mutations, fee deductions, reservation
// adjustments and open-order bookkeeping a fill requires, then emits
// OrderBookUpdated/OrderClosed events. Reports are applied atomically from
// any other taker's perspective because the caller already holds this
// instrument's book lock for the whole pass.
func (e *Exchange) applyReports(ob *book.OrderBook, taker *order.Order, reports []matching.Report) {
	updated := make(map[priceSideKey]struct{})
	closed := make(map[uint64]struct{})
	var takerSpent float64

	for _, r := range reports {
		o := r.Order
		acc, err := e.GetAccount(o.AccountName)
		if err != nil {
			log.Error().Err(err).Uint64("order_id", o.ID).Msg("account vanished mid-match")
			continue
		}

		feeRate := acc.TakerFee
		if r.Owner == matching.Maker {
			feeRate = acc.MakerFee
		}
		feeKeep := 1 - feeRate

		if o.Price != nil {
			updated[priceSideKey{price: *o.Price, side: o.Side}] = struct{}{}
		}

		// Fees are a unilateral haircut on the *received* side: Buy
		// receives Base, Sell receives Quote. The opposite-side
		// reservation accounting below never applies a fee.
		acc.Lock()
		if o.Side == common.Buy {
			acc.Credit(o.Instrument.Base, r.BaseMatched*feeKeep)
		} else {
			acc.Credit(o.Instrument.Quote, r.QuoteMatched*feeKeep)
		}
		acc.Unlock()

		var consumed float64
		if o.Side == common.Sell {
			consumed = r.BaseMatched
		} else {
			consumed = r.QuoteMatched
		}

		switch r.Owner {
		case matching.Maker:
			// The maker's reservation is decremented by exactly what
			// this step consumed; any leftover is a rounding artifact
			// refunded once the maker closes (finalizeClosedOrder).
			e.ledgerMu.Lock()
			if res, ok := e.ledger[o.ID]; ok {
				res.Amount -= consumed
				e.ledger[o.ID] = res
			}
			e.ledgerMu.Unlock()
		case matching.Taker:
			takerSpent += consumed
		}

		if r.Type == matching.Full {
			closed[o.ID] = struct{}{}
			acc.Lock()
			acc.RemoveOpenOrder(o.ID)
			acc.Unlock()
		}
	}

	for key := range updated {
		e.bus.Emit(eventbus.Event{
			Kind:       eventbus.OrderBookUpdated,
			Instrument: taker.Instrument,
			Side:       key.side,
			Price:      key.price,
		})
	}

	e.restoreTakerDifference(taker, takerSpent)

	// A Market taker is closed even when liquidity runs out before it is
	// filled; no Full report exists for it then, so it is finalized here.
	if _, ok := closed[taker.ID]; !ok && taker.StatusNow() == common.Closed {
		closed[taker.ID] = struct{}{}
		if acc, err := e.GetAccount(taker.AccountName); err == nil {
			acc.Lock()
			acc.RemoveOpenOrder(taker.ID)
			acc.Unlock()
		}
	}

	for orderID := range closed {
		e.finalizeClosedOrder(orderID)
	}
}

// restoreTakerDifference credits the taker back the gap between what its
// reservation was sized to cover for the quantity actually filled this
// pass (valued at the taker's own limit price for a Limit Buy, the filled
// base quantity itself for a Limit Sell, or the whole reservation for
// Market orders) and what was actually paid at trade prices. This is what makes price improvement flow to the taker and what
// refunds a Market buy's over-reservation.
func (e *Exchange) restoreTakerDifference(taker *order.Order, actualSpent float64) {
	e.ledgerMu.Lock()
	res, ok := e.ledger[taker.ID]
	if !ok {
		e.ledgerMu.Unlock()
		return
	}
	symbol := res.Symbol
	frozen := res.Amount

	var expected float64
	switch {
	case taker.Type == common.Limit && taker.Side == common.Sell:
		expected = taker.FilledAmount()
	case taker.Type == common.Limit:
		expected = taker.FilledAmount() * *taker.Price
	default: // Market, either side: this pass decides the reservation's entire fate.
		expected = frozen
	}

	res.Amount = frozen - expected
	e.ledger[taker.ID] = res
	e.ledgerMu.Unlock()

	acc, err := e.GetAccount(taker.AccountName)
	if err != nil {
		return
	}
	acc.Lock()
	acc.Credit(symbol, expected-actualSpent)
	acc.Unlock()
}

// finalizeClosedOrder refunds any residual ledger balance for orderID
// (rounding dust left by tolerance-based closure) back to its account,
// drops the reservation entry, and emits OrderClosed.
func (e *Exchange) finalizeClosedOrder(orderID uint64) {
	e.ledgerMu.Lock()
	res, ok := e.ledger[orderID]
	if ok {
		delete(e.ledger, orderID)
	}
	e.ledgerMu.Unlock()

	if ok && res.Amount != 0 {
		if o, err := e.GetOrder(orderID); err == nil {
			if acc, aerr := e.GetAccount(o.AccountName); aerr == nil {
				acc.Lock()
				acc.Credit(res.Symbol, res.Amount)
				acc.Unlock()
			}
		}
	}

	e.bus.Emit(eventbus.Event{Kind: eventbus.OrderClosed, OrderID: orderID})
}
