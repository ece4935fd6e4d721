// Command exchanged boots an in-process Exchange, seeds one demo pair and
// two funded accounts, subscribes a logger to OrderClosed events, and
// blocks until terminated. It exists to exercise the engine end to end;
// the HTTP/TCP front-end that would drive it in production is a
// collaborator's responsibility, not this binary's.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tradecore/exchange/internal/common"
	"github.com/tradecore/exchange/internal/eventbus"
	"github.com/tradecore/exchange/internal/exchange"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug-level logging")
	pretty := flag.Bool("pretty", false, "use human-readable console log output")
	flag.Parse()

	if *pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ex := exchange.New()
	defer ex.Close()

	sub := ex.Subscribe(eventbus.OrderClosed, func(ev eventbus.Event) {
		log.Info().Uint64("order_id", ev.OrderID).Msg("order closed")
	})
	defer sub.Stop()

	seed(ex)

	log.Info().Msg("exchanged: seeded and running")
	<-ctx.Done()
	log.Info().Msg("exchanged: shutting down")
}

func seed(ex *exchange.Exchange) {
	btcUsd := common.Instrument{Base: "btc", Quote: "usd"}
	if err := ex.CreatePair(btcUsd); err != nil {
		log.Fatal().Err(err).Msg("seed: create pair")
	}

	if _, err := ex.CreateAccount("alice", map[common.Symbol]float64{"usd": 100000}); err != nil {
		log.Fatal().Err(err).Msg("seed: create account alice")
	}
	if _, err := ex.CreateAccount("bob", map[common.Symbol]float64{"btc": 10}); err != nil {
		log.Fatal().Err(err).Msg("seed: create account bob")
	}

	if _, err := ex.CreateLimit(btcUsd, 30000, common.Sell, 1, "bob"); err != nil {
		log.Fatal().Err(err).Msg("seed: resting ask")
	}
	if _, err := ex.CreateLimit(btcUsd, 30000, common.Buy, 0.5, "alice"); err != nil {
		log.Fatal().Err(err).Msg("seed: crossing bid")
	}
}
