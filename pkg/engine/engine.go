package engine

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantrail/tickmill/pkg/util"
)

// Config tunes the tick generator. Zero values fall back to the
// defaults the simulator has always used: 100ms cadence, walks
// starting at 100, fixed volume 100.
type Config struct {
	TickInterval   time.Duration
	TickStartPrice decimal.Decimal
	TickVolume     decimal.Decimal
	Clock          util.Clock
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 100 * time.Millisecond
	}
	if !c.TickStartPrice.IsPositive() {
		c.TickStartPrice = decimal.NewFromInt(100)
	}
	if !c.TickVolume.IsPositive() {
		c.TickVolume = decimal.NewFromInt(100)
	}
	if c.Clock == nil {
		c.Clock = util.RealClock{}
	}
	return c
}

// Engine routes submissions to per-symbol order books, fans out trades
// and ticks through its subscription registry, and owns the tick
// generator goroutine. Multiple independent engines can coexist in one
// process; nothing here is a process-wide singleton.
type Engine struct {
	mu           sync.Mutex            // guards books and orderSymbols; held for map access only
	books        map[string]*OrderBook
	orderSymbols map[string]string // resting order id -> symbol, for id-only cancellation

	registry *Registry
	cfg      Config
	log      *zap.SugaredLogger

	runMu   sync.Mutex // guards the start/stop lifecycle
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a stopped engine. logger may be nil.
func New(cfg Config, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{
		books:        make(map[string]*OrderBook),
		orderSymbols: make(map[string]string),
		registry:     NewRegistry(logger),
		cfg:          cfg.withDefaults(),
		log:          logger,
	}
}

// Start launches the tick generator. Idempotent: a second Start while
// running is a no-op and never spawns a second goroutine.
func (e *Engine) Start() {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.running = true

	gen := newTickGenerator(e.registry, e.cfg.TickInterval,
		e.cfg.TickStartPrice, e.cfg.TickVolume, e.cfg.Clock, e.log)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		gen.run(ctx)
	}()
	e.log.Infow("engine_started", "tick_interval", e.cfg.TickInterval)
}

// Stop signals the tick generator and blocks until it has exited.
// Idempotent and safe to call on a never-started engine.
func (e *Engine) Stop() {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if !e.running {
		return
	}
	e.cancel()
	e.wg.Wait()
	e.running = false
	e.log.Infow("engine_stopped")
}

// SubmitOrder routes the order to its symbol's book (created lazily),
// returns the assigned id and publishes any resulting trades after the
// book lock has been released.
func (e *Engine) SubmitOrder(req OrderRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	book := e.bookFor(req.Symbol)
	res, err := book.AddOrder(req)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	if res.Resting {
		e.orderSymbols[res.ID] = req.Symbol
	}
	for _, id := range res.Closed {
		delete(e.orderSymbols, id)
	}
	e.mu.Unlock()

	for _, t := range res.Trades {
		e.registry.PublishTrade(t)
	}

	e.log.Debugw("order_submitted",
		"symbol", req.Symbol, "side", req.Side.String(),
		"price", req.Price, "qty", req.Quantity,
		"id", res.ID, "fills", len(res.Trades))
	return res.ID, nil
}

// CancelOrder removes a resting order by id alone, using the engine's
// id->symbol index. Returns false for ids that are unknown, already
// filled, or already cancelled.
func (e *Engine) CancelOrder(id string) bool {
	e.mu.Lock()
	symbol, ok := e.orderSymbols[id]
	var book *OrderBook
	if ok {
		book = e.books[symbol]
	}
	e.mu.Unlock()
	if book == nil {
		return false
	}

	removed := book.CancelOrder(id)
	if removed {
		e.mu.Lock()
		delete(e.orderSymbols, id)
		e.mu.Unlock()
	}
	return removed
}

// CancelOrderIn cancels within an explicit symbol. Unlike the read
// queries, a never-seen symbol is an error here.
func (e *Engine) CancelOrderIn(symbol, id string) (bool, error) {
	e.mu.Lock()
	book := e.books[symbol]
	e.mu.Unlock()
	if book == nil {
		return false, ErrUnknownSymbol
	}

	removed := book.CancelOrder(id)
	if removed {
		e.mu.Lock()
		delete(e.orderSymbols, id)
		e.mu.Unlock()
	}
	return removed, nil
}

// Read queries fail soft: an unknown symbol reports the neutral value,
// never an error, so observability callers need no existence check.

// Position returns the net signed exposure for symbol.
func (e *Engine) Position(symbol string) int64 {
	if b := e.lookup(symbol); b != nil {
		return b.Position()
	}
	return 0
}

// AverageCost returns the open position's volume-weighted entry price.
func (e *Engine) AverageCost(symbol string) decimal.Decimal {
	if b := e.lookup(symbol); b != nil {
		return b.AverageCost()
	}
	return decimal.Zero
}

// UnrealizedPnL marks the open position against the current mid price.
func (e *Engine) UnrealizedPnL(symbol string) decimal.Decimal {
	if b := e.lookup(symbol); b != nil {
		return b.UnrealizedPnL()
	}
	return decimal.Zero
}

// RealizedPnL returns the profit locked in by reducing fills.
func (e *Engine) RealizedPnL(symbol string) decimal.Decimal {
	if b := e.lookup(symbol); b != nil {
		return b.RealizedPnL()
	}
	return decimal.Zero
}

// BestBid returns the highest resting buy price for symbol.
func (e *Engine) BestBid(symbol string) (decimal.Decimal, bool) {
	if b := e.lookup(symbol); b != nil {
		return b.BestBid()
	}
	return decimal.Zero, false
}

// BestAsk returns the lowest resting sell price for symbol.
func (e *Engine) BestAsk(symbol string) (decimal.Decimal, bool) {
	if b := e.lookup(symbol); b != nil {
		return b.BestAsk()
	}
	return decimal.Zero, false
}

// SubscribeMarketData registers a tick listener for symbol.
func (e *Engine) SubscribeMarketData(symbol string, fn MarketDataListener) Subscription {
	return e.registry.SubscribeMarketData(symbol, fn)
}

// SubscribeTrades registers a fill listener for symbol.
func (e *Engine) SubscribeTrades(symbol string, fn TradeListener) Subscription {
	return e.registry.SubscribeTrades(symbol, fn)
}

// Unsubscribe removes one listener.
func (e *Engine) Unsubscribe(sub Subscription) {
	e.registry.Unsubscribe(sub)
}

// UnsubscribeAll drops every listener for a symbol on one channel.
func (e *Engine) UnsubscribeAll(symbol string, ch Channel) {
	e.registry.UnsubscribeAll(symbol, ch)
}

// bookFor returns the symbol's book, creating it on first use. The
// engine lock covers the map access only; matching always runs outside
// it.
func (e *Engine) bookFor(symbol string) *OrderBook {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.books[symbol]
	if !ok {
		b = NewOrderBook(symbol, e.cfg.Clock.Now)
		e.books[symbol] = b
		e.log.Infow("orderbook_created", "symbol", symbol)
	}
	return b
}

func (e *Engine) lookup(symbol string) *OrderBook {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.books[symbol]
}
