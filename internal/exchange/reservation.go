package exchange

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tradecore/exchange/internal/account"
	"github.com/tradecore/exchange/internal/book"
	"github.com/tradecore/exchange/internal/common"
	"github.com/tradecore/exchange/internal/eventbus"
	"github.com/tradecore/exchange/internal/order"
)

// reservationFor computes the (symbol, amount) an incoming order must
// reserve before it may be registered.
//
// For Market Buy, this walks the live ask side of ob, so callers on that
// path must already hold the book lock (see Exchange.CreateMarket).
func reservationFor(o *order.Order, ob *book.OrderBook) (common.Symbol, float64) {
	switch {
	case o.Side == common.Buy && o.Type == common.Limit:
		return o.Instrument.Quote, o.Amount * *o.Price
	case o.Side == common.Buy && o.Type == common.Market:
		return o.Instrument.Quote, marketQuoteSize(ob, o.Amount)
	default: // Sell, Limit or Market
		return o.Instrument.Base, o.Amount
	}
}

// marketQuoteSize computes the aggregate cost, in Quote units, to fill
// `need` Base units by walking the current ask side best-price-first. If
// the book cannot fully cover need, it returns the cost to cover whatever
// it can; it always walks the ask side until need is covered or the side
// runs out.
func marketQuoteSize(ob *book.OrderBook, need float64) float64 {
	var required float64
	left := need

	for _, level := range ob.Levels(common.Sell) {
		if left <= 0 {
			break
		}
		for _, maker := range level.Orders {
			if left <= 0 {
				break
			}
			remaining := maker.Remaining()
			take := remaining
			if left < take {
				take = left
			}
			required += take * *maker.Price
			left -= take
		}
	}

	return required
}

// reserveAndRegister performs the fund reservation for a brand-new order
// under the account lock, and on success registers the order in the
// Exchange's live-order map, the account's open-order set, and the
// reservation ledger, then emits OrderCreated. On failure (insufficient
// funds) no state changes and no event is emitted.
func (e *Exchange) reserveAndRegister(acc *account.Account, o *order.Order, symbol common.Symbol, required float64) error {
	acc.Lock()
	ok := acc.Debit(symbol, required)
	acc.Unlock()

	if !ok {
		return fmt.Errorf("%s needs %v %s: %w", acc.Name, required, symbol, ErrInsufficientFunds)
	}

	e.mu.Lock()
	e.orders[o.ID] = o
	e.mu.Unlock()

	e.ledgerMu.Lock()
	e.ledger[o.ID] = Reservation{Symbol: symbol, Amount: required}
	e.ledgerMu.Unlock()

	acc.Lock()
	acc.AddOpenOrder(o.ID)
	acc.Unlock()

	e.bus.Emit(eventbus.Event{Kind: eventbus.OrderCreated, OrderID: o.ID})

	log.Debug().
		Uint64("order_id", o.ID).
		Str("account", acc.Name).
		Str("symbol", string(symbol)).
		Float64("reserved", required).
		Msg("order reserved and registered")

	return nil
}
