package engine

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantrail/tickmill/pkg/util"
)

// tickGenerator synthesizes market data on a fixed cadence for every
// symbol that has at least one market-data subscriber. Each symbol
// keeps its own last price, so drift survives unsubscribe/resubscribe;
// a symbol seen for the first time starts at startPrice.
//
// It runs on its own goroutine and only ever touches the registry, so
// a slow listener can delay the next tick but never block matching.
// Cancellation is cooperative: the context is checked once per period.
type tickGenerator struct {
	registry   *Registry
	interval   time.Duration
	startPrice decimal.Decimal
	volume     decimal.Decimal
	clock      util.Clock
	rng        *rand.Rand
	log        *zap.SugaredLogger

	prices map[string]decimal.Decimal // owned by the run goroutine
}

func newTickGenerator(reg *Registry, interval time.Duration, startPrice, volume decimal.Decimal, clock util.Clock, logger *zap.SugaredLogger) *tickGenerator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &tickGenerator{
		registry:   reg,
		interval:   interval,
		startPrice: startPrice,
		volume:     volume,
		clock:      clock,
		rng:        rand.New(rand.NewSource(clock.Now().UnixNano())),
		log:        logger,
		prices:     make(map[string]decimal.Decimal),
	}
}

func (g *tickGenerator) run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	g.log.Debugw("tick_generator_started", "interval", g.interval)
	for {
		select {
		case <-ctx.Done():
			g.log.Debugw("tick_generator_stopped")
			return
		case <-ticker.C:
			g.emit()
		}
	}
}

// emit advances every subscribed symbol's random walk by a bounded
// multiplicative step in [-1%, +1%] and publishes the tick.
func (g *tickGenerator) emit() {
	for _, symbol := range g.registry.MarketDataSymbols() {
		last, ok := g.prices[symbol]
		if !ok {
			last = g.startPrice
		}
		step := (g.rng.Float64()*2 - 1) * 0.01
		next := last.Mul(decimal.NewFromFloat(1 + step))
		g.prices[symbol] = next

		g.registry.PublishMarketData(MarketData{
			Symbol:    symbol,
			Price:     next,
			Volume:    g.volume,
			Timestamp: g.clock.Now(),
		})
	}
}
