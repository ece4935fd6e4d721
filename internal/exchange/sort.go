package exchange

import (
	"sort"

	"github.com/tradecore/exchange/internal/account"
	"github.com/tradecore/exchange/internal/common"
)

// sortInstruments orders pairs lexicographically by Base then Quote, giving
// ListPairs deterministic output despite Go's randomized map iteration.
func sortInstruments(pairs []common.Instrument) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Base != pairs[j].Base {
			return pairs[i].Base < pairs[j].Base
		}
		return pairs[i].Quote < pairs[j].Quote
	})
}

// sortAccounts orders accounts by name, giving ListAccounts deterministic
// output.
func sortAccounts(accounts []*account.Account) {
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Name < accounts[j].Name
	})
}
