// Package exchange is the coordinator: it owns every account, order book
// and the reservation ledger, serializes matching per instrument,
// translates match reports into balance mutations, and emits lifecycle
// events.
//
// Grounded on original_source/exchange/core/exchange.py, re-expressed with
// one explicit *Exchange value constructed by the caller and passed to
// collaborators, instead of the Python source's process-wide singleton.
package exchange

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tradecore/exchange/internal/account"
	"github.com/tradecore/exchange/internal/book"
	"github.com/tradecore/exchange/internal/common"
	"github.com/tradecore/exchange/internal/eventbus"
	"github.com/tradecore/exchange/internal/idgen"
	"github.com/tradecore/exchange/internal/matching"
	"github.com/tradecore/exchange/internal/order"
)

// Reservation records the funds held against a single live order.
type Reservation struct {
	Symbol common.Symbol
	Amount float64
}

// Exchange is the process-local matching-and-settlement coordinator.
// Construct with New; the zero value is not usable.
type Exchange struct {
	ids *idgen.Generator
	bus *eventbus.Bus

	mu        sync.RWMutex // guards existence of accounts/books/bookLocks/orders maps
	accounts  map[string]*account.Account
	books     map[common.Instrument]*book.OrderBook
	bookLocks map[common.Instrument]*sync.Mutex
	orders    map[uint64]*order.Order

	ledgerMu sync.Mutex
	ledger   map[uint64]Reservation
}

// New constructs an empty Exchange with its own event bus.
func New() *Exchange {
	return &Exchange{
		ids:       idgen.New(),
		bus:       eventbus.New(),
		accounts:  make(map[string]*account.Account),
		books:     make(map[common.Instrument]*book.OrderBook),
		bookLocks: make(map[common.Instrument]*sync.Mutex),
		orders:    make(map[uint64]*order.Order),
		ledger:    make(map[uint64]Reservation),
	}
}

// Subscribe registers handler for every event of kind emitted by this
// Exchange. See internal/eventbus for delivery guarantees.
func (e *Exchange) Subscribe(kind eventbus.Kind, handler func(eventbus.Event)) *eventbus.Subscription {
	return e.bus.Subscribe(kind, handler)
}

// Close stops the Exchange's event bus, releasing its dispatch goroutines.
func (e *Exchange) Close() error {
	return e.bus.Close()
}

// ---- pair (instrument) management ----------------------------------------

// CreatePair registers a new, empty order book for instrument.
func (e *Exchange) CreatePair(instrument common.Instrument) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.books[instrument]; exists {
		return fmt.Errorf("%s: %w", instrument, ErrInstrumentAlreadyExists)
	}
	e.books[instrument] = book.New(instrument)
	e.bookLocks[instrument] = &sync.Mutex{}
	log.Info().Stringer("instrument", instrument).Msg("pair created")
	return nil
}

// DeletePair removes instrument's order book entirely.
func (e *Exchange) DeletePair(instrument common.Instrument) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.books[instrument]; !exists {
		return fmt.Errorf("%s: %w", instrument, ErrInstrumentMissing)
	}
	delete(e.books, instrument)
	delete(e.bookLocks, instrument)
	log.Info().Stringer("instrument", instrument).Msg("pair deleted")
	return nil
}

// ClearOrderBook replaces instrument's order book with a fresh, empty one.
func (e *Exchange) ClearOrderBook(instrument common.Instrument) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.books[instrument]; !exists {
		return fmt.Errorf("%s: %w", instrument, ErrUnsupportedInstrument)
	}
	e.books[instrument] = book.New(instrument)
	return nil
}

// GetOrderBook returns the live order book for instrument.
func (e *Exchange) GetOrderBook(instrument common.Instrument) (*book.OrderBook, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ob, exists := e.books[instrument]
	if !exists {
		return nil, fmt.Errorf("%s: %w", instrument, ErrUnsupportedInstrument)
	}
	return ob, nil
}

// ListPairs returns every registered instrument, sorted for deterministic
// output. Go map iteration is unordered, so a stable sort is applied here
// for callers.
func (e *Exchange) ListPairs() []common.Instrument {
	e.mu.RLock()
	defer e.mu.RUnlock()

	pairs := make([]common.Instrument, 0, len(e.books))
	for instrument := range e.books {
		pairs = append(pairs, instrument)
	}
	sortInstruments(pairs)
	return pairs
}

func (e *Exchange) bookLock(instrument common.Instrument) *sync.Mutex {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bookLocks[instrument]
}

// ---- account management ----------------------------------------------

// CreateAccount registers a new account with initial balances and default
// fee rates.
func (e *Exchange) CreateAccount(name string, initial map[common.Symbol]float64) (*account.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.accounts[name]; exists {
		return nil, fmt.Errorf("%s: %w", name, ErrWrongCredentials)
	}
	acc := account.New(name, initial)
	e.accounts[name] = acc
	log.Info().Str("account", name).Msg("account created")
	return acc, nil
}

// DeleteAccount removes an account. The account must have no open orders.
func (e *Exchange) DeleteAccount(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	acc, exists := e.accounts[name]
	if !exists {
		return fmt.Errorf("%s: %w", name, ErrWrongCredentials)
	}
	if acc.OpenOrderCount() > 0 {
		return fmt.Errorf("%s: %w", name, ErrAccountHasOpenOrders)
	}
	delete(e.accounts, name)
	log.Info().Str("account", name).Msg("account deleted")
	return nil
}

// RefillAccount adds delta to the account's current balances.
func (e *Exchange) RefillAccount(name string, delta map[common.Symbol]float64) error {
	acc, err := e.GetAccount(name)
	if err != nil {
		return err
	}
	acc.Lock()
	defer acc.Unlock()
	acc.Refill(delta)
	return nil
}

// GetAccount looks up an account by name.
func (e *Exchange) GetAccount(name string) (*account.Account, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	acc, exists := e.accounts[name]
	if !exists {
		return nil, fmt.Errorf("%s: %w", name, ErrWrongCredentials)
	}
	return acc, nil
}

// ListAccounts returns every registered account, sorted by name for
// deterministic output.
func (e *Exchange) ListAccounts() []*account.Account {
	e.mu.RLock()
	defer e.mu.RUnlock()

	accounts := make([]*account.Account, 0, len(e.accounts))
	for _, acc := range e.accounts {
		accounts = append(accounts, acc)
	}
	sortAccounts(accounts)
	return accounts
}

// ---- order lookup -------------------------------------------------------

// GetOrder looks up a previously created order by id.
func (e *Exchange) GetOrder(orderID uint64) (*order.Order, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	o, exists := e.orders[orderID]
	if !exists {
		return nil, fmt.Errorf("%d: %w", orderID, ErrWrongOrderID)
	}
	return o, nil
}

// ---- trading --------------------------------------------------------

// CreateLimit validates, reserves funds, registers and matches a new Limit
// order.
func (e *Exchange) CreateLimit(instrument common.Instrument, price float64, side common.Side, amount float64, accountName string) (*order.Order, error) {
	ob, err := e.GetOrderBook(instrument)
	if err != nil {
		return nil, err
	}
	acc, err := e.GetAccount(accountName)
	if err != nil {
		return nil, err
	}

	rounded := book.RoundPrice(price)
	if rounded <= 0 {
		return nil, fmt.Errorf("%v: %w", price, ErrIncorrectPrice)
	}

	o := order.New(e.ids.Next(), side, common.Limit, &rounded, amount, accountName, instrument, time.Now())

	symbol, required := reservationFor(o, ob)
	if err := e.reserveAndRegister(acc, o, symbol, required); err != nil {
		return nil, err
	}

	bookMu := e.bookLock(instrument)
	bookMu.Lock()
	defer bookMu.Unlock()

	reports := matching.LimitMatch(o, ob)
	e.applyReports(ob, o, reports)

	return o, nil
}

// CreateMarket validates, reserves funds and matches a new Market order. A
// Market Buy's reservation sizing must read the live ask side, so the book
// lock for this path is acquired before the account lock: a narrow,
// documented exception to the usual account-before-book ordering.
func (e *Exchange) CreateMarket(instrument common.Instrument, side common.Side, amount float64, accountName string) (*order.Order, error) {
	ob, err := e.GetOrderBook(instrument)
	if err != nil {
		return nil, err
	}
	acc, err := e.GetAccount(accountName)
	if err != nil {
		return nil, err
	}

	o := order.New(e.ids.Next(), side, common.Market, nil, amount, accountName, instrument, time.Now())

	bookMu := e.bookLock(instrument)
	bookMu.Lock()
	defer bookMu.Unlock()

	symbol, required := reservationFor(o, ob)
	if err := e.reserveAndRegister(acc, o, symbol, required); err != nil {
		return nil, err
	}

	reports := matching.MarketMatch(o, ob)
	e.applyReports(ob, o, reports)

	return o, nil
}

// CancelOrder cancels a resting Limit order. Market orders cannot be
// cancelled: they are transient and never rest.
func (e *Exchange) CancelOrder(instrument common.Instrument, orderID uint64) error {
	o, err := e.GetOrder(orderID)
	if err != nil {
		return err
	}
	ob, err := e.GetOrderBook(instrument)
	if err != nil {
		return err
	}
	if o.Type != common.Limit {
		return fmt.Errorf("%d: %w", orderID, ErrOrderCancellationError)
	}

	if o.StatusNow() == common.Matching {
		o.AwaitMatchingComplete(nil)
	}

	bookMu := e.bookLock(instrument)
	bookMu.Lock()
	defer bookMu.Unlock()

	if o.StatusNow() == common.Closed {
		return fmt.Errorf("%d: %w", orderID, ErrOrderCancellationError)
	}
	if !ob.Contains(o) {
		return fmt.Errorf("%d: %w", orderID, ErrOrderCancellationError)
	}

	o.MarkClosed()
	e.bus.Emit(eventbus.Event{Kind: eventbus.OrderCancelled, OrderID: orderID})

	ob.Delete(o)

	acc, err := e.GetAccount(o.AccountName)
	if err == nil {
		acc.Lock()
		acc.RemoveOpenOrder(orderID)
		acc.Unlock()
	}

	e.ledgerMu.Lock()
	reservation, ok := e.ledger[orderID]
	if ok {
		delete(e.ledger, orderID)
	}
	e.ledgerMu.Unlock()

	if ok && err == nil {
		acc.Lock()
		acc.Credit(reservation.Symbol, reservation.Amount)
		acc.Unlock()
	}

	return nil
}
