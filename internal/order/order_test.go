package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tradecore/exchange/internal/common"
)

var btcUsd = common.Instrument{Base: "btc", Quote: "usd"}

func TestRemainingTracksFillProgress(t *testing.T) {
	price := 100.0
	o := New(1, common.Buy, common.Limit, &price, 10, "alice", btcUsd, time.Now())
	assert.Equal(t, 10.0, o.Remaining())

	o.AddFilled(4)
	assert.Equal(t, 6.0, o.Remaining())
}

func TestStatusTransitions(t *testing.T) {
	o := New(1, common.Buy, common.Market, nil, 1, "alice", btcUsd, time.Now())
	assert.Equal(t, common.Opened, o.StatusNow())

	o.MarkMatching()
	assert.Equal(t, common.Matching, o.StatusNow())

	o.MarkOpened()
	assert.Equal(t, common.Opened, o.StatusNow())

	o.MarkClosed()
	assert.Equal(t, common.Closed, o.StatusNow())
}

func TestFinishMatchingUnblocksAwaiters(t *testing.T) {
	o := New(1, common.Buy, common.Limit, nil, 1, "alice", btcUsd, time.Now())

	done := make(chan struct{})
	go func() {
		o.AwaitMatchingComplete(nil)
		close(done)
	}()

	o.FinishMatching()
	o.FinishMatching() // must not panic or double-close

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("AwaitMatchingComplete did not return after FinishMatching")
	}
}

func TestAwaitMatchingCompleteRespectsExternalDone(t *testing.T) {
	o := New(1, common.Buy, common.Limit, nil, 1, "alice", btcUsd, time.Now())
	ext := make(chan struct{})
	close(ext)

	done := make(chan struct{})
	go func() {
		o.AwaitMatchingComplete(ext)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("AwaitMatchingComplete did not honor external done channel")
	}
}
