package exchange

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradecore/exchange/internal/common"
)

var btcUsd = common.Instrument{Base: "btc", Quote: "usd"}

func newTestExchange(t *testing.T) *Exchange {
	t.Helper()
	ex := New()
	t.Cleanup(func() { _ = ex.Close() })
	require.NoError(t, ex.CreatePair(btcUsd))
	return ex
}

func TestCreatePairRejectsDuplicate(t *testing.T) {
	ex := newTestExchange(t)
	err := ex.CreatePair(btcUsd)
	assert.ErrorIs(t, err, ErrInstrumentAlreadyExists)
}

func TestCreateLimitRejectsUnknownAccount(t *testing.T) {
	ex := newTestExchange(t)
	_, err := ex.CreateLimit(btcUsd, 100, common.Buy, 1, "nobody")
	assert.ErrorIs(t, err, ErrWrongCredentials)
}

func TestCreateLimitRejectsZeroRoundedPrice(t *testing.T) {
	ex := newTestExchange(t)
	_, err := ex.CreateAccount("alice", map[common.Symbol]float64{"usd": 1000})
	require.NoError(t, err)

	_, err = ex.CreateLimit(btcUsd, 4e-7, common.Buy, 1, "alice")
	assert.ErrorIs(t, err, ErrIncorrectPrice)
}

func TestCreateLimitReservesQuoteOnBuy(t *testing.T) {
	ex := newTestExchange(t)
	acc, err := ex.CreateAccount("alice", map[common.Symbol]float64{"usd": 1000})
	require.NoError(t, err)

	o, err := ex.CreateLimit(btcUsd, 100, common.Buy, 2, "alice")
	require.NoError(t, err)
	assert.InDelta(t, 800, acc.Balance("usd"), 1e-9) // 1000 - 2*100

	ob, err := ex.GetOrderBook(btcUsd)
	require.NoError(t, err)
	assert.True(t, ob.Contains(o))
}

func TestCreateLimitInsufficientFunds(t *testing.T) {
	ex := newTestExchange(t)
	_, err := ex.CreateAccount("alice", map[common.Symbol]float64{"usd": 10})
	require.NoError(t, err)

	_, err = ex.CreateLimit(btcUsd, 100, common.Buy, 2, "alice")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, 0, len(ex.ListAccounts()[0].OpenOrders()))
}

func TestCrossingLimitOrdersSettleWithFees(t *testing.T) {
	ex := newTestExchange(t)
	seller, err := ex.CreateAccount("bob", map[common.Symbol]float64{"btc": 10})
	require.NoError(t, err)
	buyer, err := ex.CreateAccount("alice", map[common.Symbol]float64{"usd": 100000})
	require.NoError(t, err)

	_, err = ex.CreateLimit(btcUsd, 30000, common.Sell, 1, "bob")
	require.NoError(t, err)

	taker, err := ex.CreateLimit(btcUsd, 30000, common.Buy, 1, "alice")
	require.NoError(t, err)

	assert.Equal(t, common.Closed, taker.StatusNow())
	assert.InDelta(t, 1*(1-common.DefaultMakerFee), seller.Balance("usd")/30000, 1e-6)
	assert.InDelta(t, 1*(1-common.DefaultTakerFee), buyer.Balance("btc"), 1e-9)

	ob, err := ex.GetOrderBook(btcUsd)
	require.NoError(t, err)
	assert.Equal(t, 0, ob.Size())
}

func TestMarketBuyRefundsUnusedReservationOnExhaustedLiquidity(t *testing.T) {
	ex := newTestExchange(t)
	_, err := ex.CreateAccount("bob", map[common.Symbol]float64{"btc": 10})
	require.NoError(t, err)
	buyer, err := ex.CreateAccount("alice", map[common.Symbol]float64{"usd": 100000})
	require.NoError(t, err)

	_, err = ex.CreateLimit(btcUsd, 30000, common.Sell, 1, "bob")
	require.NoError(t, err)

	before := buyer.Balance("usd")
	taker, err := ex.CreateMarket(btcUsd, common.Buy, 5, "alice") // only 1 btc of liquidity exists
	require.NoError(t, err)

	assert.Equal(t, common.Closed, taker.StatusNow())
	assert.InDelta(t, 1, taker.FilledAmount(), 1e-9)
	// Should only have spent ~30000 (plus whatever was reserved for the
	// unavailable remainder is refunded), not funds for 5 btc.
	spent := before - buyer.Balance("usd")
	assert.InDelta(t, 30000, spent, 1e-6)
}

func TestCancelOrderRefundsReservation(t *testing.T) {
	ex := newTestExchange(t)
	acc, err := ex.CreateAccount("alice", map[common.Symbol]float64{"usd": 1000})
	require.NoError(t, err)

	o, err := ex.CreateLimit(btcUsd, 100, common.Buy, 2, "alice")
	require.NoError(t, err)
	assert.InDelta(t, 800, acc.Balance("usd"), 1e-9)

	require.NoError(t, ex.CancelOrder(btcUsd, o.ID))
	assert.InDelta(t, 1000, acc.Balance("usd"), 1e-9)

	ob, err := ex.GetOrderBook(btcUsd)
	require.NoError(t, err)
	assert.False(t, ob.Contains(o))
}

func TestCancelMarketOrderIsRejected(t *testing.T) {
	ex := newTestExchange(t)
	_, err := ex.CreateAccount("bob", map[common.Symbol]float64{"btc": 10})
	require.NoError(t, err)
	_, err = ex.CreateAccount("alice", map[common.Symbol]float64{"usd": 100000})
	require.NoError(t, err)
	_, err = ex.CreateLimit(btcUsd, 30000, common.Sell, 1, "bob")
	require.NoError(t, err)

	o, err := ex.CreateMarket(btcUsd, common.Buy, 1, "alice")
	require.NoError(t, err)

	err = ex.CancelOrder(btcUsd, o.ID)
	assert.ErrorIs(t, err, ErrOrderCancellationError)
}

func TestDeleteAccountRejectsOpenOrders(t *testing.T) {
	ex := newTestExchange(t)
	_, err := ex.CreateAccount("alice", map[common.Symbol]float64{"usd": 1000})
	require.NoError(t, err)

	_, err = ex.CreateLimit(btcUsd, 100, common.Buy, 1, "alice")
	require.NoError(t, err)

	err = ex.DeleteAccount("alice")
	assert.ErrorIs(t, err, ErrAccountHasOpenOrders)
}

func TestGetOrderUnknownID(t *testing.T) {
	ex := newTestExchange(t)
	_, err := ex.GetOrder(999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWrongOrderID))
}

func TestListPairsAndAccountsAreSorted(t *testing.T) {
	ex := New()
	defer ex.Close()

	require.NoError(t, ex.CreatePair(common.Instrument{Base: "eth", Quote: "usd"}))
	require.NoError(t, ex.CreatePair(common.Instrument{Base: "btc", Quote: "usd"}))
	pairs := ex.ListPairs()
	require.Len(t, pairs, 2)
	assert.Equal(t, common.Symbol("btc"), pairs[0].Base)
	assert.Equal(t, common.Symbol("eth"), pairs[1].Base)

	_, err := ex.CreateAccount("zoe", nil)
	require.NoError(t, err)
	_, err = ex.CreateAccount("amy", nil)
	require.NoError(t, err)
	accounts := ex.ListAccounts()
	require.Len(t, accounts, 2)
	assert.Equal(t, "amy", accounts[0].Name)
	assert.Equal(t, "zoe", accounts[1].Name)
}
