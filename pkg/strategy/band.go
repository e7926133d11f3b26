package strategy

import (
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantrail/tickmill/pkg/engine"
)

// BandStrategy is a mean-reversion band around an anchor price: it
// buys when a tick prints below anchor×(1−band) and sells when a tick
// prints above anchor×(1+band), always at the tick price, fixed
// quantity. Stateful only in its subscription handle; decisions are a
// pure function of the tick.
type BandStrategy struct {
	trader Trader
	symbol string
	anchor decimal.Decimal
	band   decimal.Decimal // fraction, e.g. 0.02 for ±2%
	qty    int64
	log    *zap.SugaredLogger

	mu      sync.Mutex
	sub     engine.Subscription
	started bool
}

func NewBandStrategy(trader Trader, symbol string, anchor, band decimal.Decimal, qty int64, logger *zap.SugaredLogger) *BandStrategy {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &BandStrategy{
		trader: trader,
		symbol: symbol,
		anchor: anchor,
		band:   band,
		qty:    qty,
		log:    logger,
	}
}

// Start subscribes to market data. Idempotent.
func (s *BandStrategy) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.sub = s.trader.SubscribeMarketData(s.symbol, s.onTick)
	s.started = true
	s.log.Infow("strategy_started", "symbol", s.symbol,
		"anchor", s.anchor, "band", s.band, "qty", s.qty)
}

// Stop unsubscribes. Idempotent.
func (s *BandStrategy) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.trader.Unsubscribe(s.sub)
	s.started = false
}

func (s *BandStrategy) onTick(md engine.MarketData) {
	lower := s.anchor.Mul(decimal.NewFromInt(1).Sub(s.band))
	upper := s.anchor.Mul(decimal.NewFromInt(1).Add(s.band))

	var side engine.Side
	switch {
	case md.Price.Cmp(lower) < 0:
		side = engine.Buy
	case md.Price.Cmp(upper) > 0:
		side = engine.Sell
	default:
		return
	}

	id, err := s.trader.SubmitOrder(engine.OrderRequest{
		Symbol:   s.symbol,
		Side:     side,
		Price:    md.Price,
		Quantity: s.qty,
	})
	if err != nil {
		s.log.Errorw("strategy_order_rejected", "symbol", s.symbol, "err", err)
		return
	}
	s.log.Debugw("strategy_order_submitted",
		"symbol", s.symbol, "side", side.String(), "price", md.Price, "id", id)
}
