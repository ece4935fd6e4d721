// Package account holds per-trader balances and open-order bookkeeping.
package account

import (
	"sync"

	"github.com/tradecore/exchange/internal/common"
)

// Account is a named holder of per-symbol balances plus the set of
// currently open orders. Balance is *available* (unreserved) funds; unknown
// symbols read as 0.
type Account struct {
	Name      string
	MakerFee  float64
	TakerFee  float64

	mu         sync.Mutex
	balance    map[common.Symbol]float64
	openOrders map[uint64]struct{}
}

// New constructs an Account with the given initial balances and default
// fee rates.
func New(name string, initial map[common.Symbol]float64) *Account {
	balance := make(map[common.Symbol]float64, len(initial))
	for sym, amt := range initial {
		balance[sym] = amt
	}
	return &Account{
		Name:       name,
		MakerFee:   common.DefaultMakerFee,
		TakerFee:   common.DefaultTakerFee,
		balance:    balance,
		openOrders: make(map[uint64]struct{}),
	}
}

// Lock acquires the account's mutex. The exchange coordinator holds this
// for the duration of computing-and-applying a reservation, or a balance
// mutation from match-report application.
func (a *Account) Lock() { a.mu.Lock() }

// Unlock releases the account's mutex.
func (a *Account) Unlock() { a.mu.Unlock() }

// Balance reads the available balance for sym. It takes the account lock
// itself, so it must not be called while that lock is held; Debit checks
// the balance on its own under the caller's lock.
func (a *Account) Balance(sym common.Symbol) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance[sym]
}

// Credit adds delta (which may be negative for internal bookkeeping, but
// public callers should prefer Debit for removals) to the available
// balance of sym. Must be called with the account lock held.
func (a *Account) Credit(sym common.Symbol, delta float64) {
	a.balance[sym] += delta
}

// Debit attempts to subtract amount from the available balance of sym. It
// reports false (and does not mutate anything) if the available balance is
// insufficient. Must be called with the account lock held.
func (a *Account) Debit(sym common.Symbol, amount float64) bool {
	if a.balance[sym] < amount {
		return false
	}
	a.balance[sym] -= amount
	return true
}

// Refill unconditionally adds a map of deltas to the account's balances.
// Must be called with the account lock held.
func (a *Account) Refill(delta map[common.Symbol]float64) {
	for sym, amt := range delta {
		a.balance[sym] += amt
	}
}

// Balances returns a snapshot copy of the full balance map.
func (a *Account) Balances() map[common.Symbol]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[common.Symbol]float64, len(a.balance))
	for sym, amt := range a.balance {
		out[sym] = amt
	}
	return out
}

// AddOpenOrder registers orderID as live for this account. Must be called
// with the account lock held.
func (a *Account) AddOpenOrder(orderID uint64) {
	a.openOrders[orderID] = struct{}{}
}

// RemoveOpenOrder drops orderID from the open set. Must be called with the
// account lock held.
func (a *Account) RemoveOpenOrder(orderID uint64) {
	delete(a.openOrders, orderID)
}

// OpenOrderCount reports how many orders are currently open for this
// account, used by the exchange to enforce "no open orders at deletion."
func (a *Account) OpenOrderCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.openOrders)
}

// OpenOrders returns a snapshot of the open order id set.
func (a *Account) OpenOrders() []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]uint64, 0, len(a.openOrders))
	for id := range a.openOrders {
		ids = append(ids, id)
	}
	return ids
}
