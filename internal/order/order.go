// Package order defines the single trading-intent entity shared by the
// book, matching and exchange packages.
package order

import (
	"sync"
	"time"

	"github.com/tradecore/exchange/internal/common"
)

// Order is a single trading intent: side, type, price (limit only), amount,
// fill progress, lifecycle status, owning account and instrument.
//
// Back-references to the owning account and instrument are held by value
// (AccountName) / by value (Instrument) rather than by pointer: the account
// and order-book packages never hold a live *Order or *Account across a
// lock boundary they don't own. The exchange package resolves AccountName
// to a live *account.Account on every access.
//
// Filled is unexported and only ever mutated through AddFilled and read
// through FilledAmount/Remaining, all of which take mu. An order can be
// read (GetOrder, ToJSON) from any goroutine independent of the
// per-instrument book lock that serializes matching, so every accessor of
// fill progress must agree on a single lock.
type Order struct {
	ID          uint64
	Side        common.Side
	Type        common.OrderType
	Price       *float64 // nil for Market orders
	Amount      float64
	Status      common.Status
	AccountName string
	Instrument  common.Instrument
	CreatedAt   time.Time

	mu           sync.Mutex
	filled       float64
	matching     chan struct{}
	matchingOnce sync.Once
}

// New constructs an Order in the Opened state. price must be nil for
// Market orders.
func New(id uint64, side common.Side, typ common.OrderType, price *float64, amount float64, accountName string, instrument common.Instrument, createdAt time.Time) *Order {
	return &Order{
		ID:          id,
		Side:        side,
		Type:        typ,
		Price:       price,
		Amount:      amount,
		Status:      common.Opened,
		AccountName: accountName,
		Instrument:  instrument,
		CreatedAt:   createdAt,
		matching:    make(chan struct{}),
	}
}

// FilledAmount reads the quantity matched so far, in Base units.
func (o *Order) FilledAmount() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.filled
}

// AddFilled adds delta to the filled quantity. Called once per match step
// for both the maker and the taker side of that step.
func (o *Order) AddFilled(delta float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.filled += delta
}

// Remaining is the unfilled quantity in Base units.
func (o *Order) Remaining() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Amount - o.filled
}

// MarkMatching transitions Opened -> Matching. It is a no-op if already
// Matching (re-entering the matcher as taker is idempotent for bookkeeping
// purposes).
func (o *Order) MarkMatching() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Status = common.Matching
}

// MarkOpened transitions Matching -> Opened, for a limit taker that rests
// with a residual.
func (o *Order) MarkOpened() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Status = common.Opened
}

// MarkClosed transitions to the terminal Closed state.
func (o *Order) MarkClosed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Status = common.Closed
}

// StatusNow reads the current lifecycle status.
func (o *Order) StatusNow() common.Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Status
}

// FinishMatching signals that this order's matching pass (as taker) has
// completed, releasing any concurrent CancelOrder waiting in
// AwaitMatchingComplete.
// Safe to call multiple times; only the first call has effect.
func (o *Order) FinishMatching() {
	o.matchingOnce.Do(func() {
		close(o.matching)
	})
}

// AwaitMatchingComplete blocks until FinishMatching has been called, or done
// fires. If the order never entered Matching, Order.New's channel starts
// open and this call must not be made before the order has at least been
// submitted to the matcher once; callers should check StatusNow first, as
// CancelOrder does.
func (o *Order) AwaitMatchingComplete(done <-chan struct{}) {
	select {
	case <-o.matching:
	case <-done:
	}
}
