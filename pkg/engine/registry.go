package engine

import (
	"sync"

	"go.uber.org/zap"
)

// MarketDataListener receives simulated price ticks.
type MarketDataListener func(MarketData)

// TradeListener receives fills.
type TradeListener func(Trade)

// Channel identifies which listener list a subscription belongs to.
type Channel int8

const (
	ChannelMarketData Channel = iota + 1
	ChannelTrades
)

func (c Channel) String() string {
	switch c {
	case ChannelMarketData:
		return "market_data"
	case ChannelTrades:
		return "trades"
	default:
		return "unknown"
	}
}

// Subscription identifies a registered listener for Unsubscribe.
type Subscription struct {
	Symbol  string
	Channel Channel
	id      uint64
}

type mdEntry struct {
	id uint64
	fn MarketDataListener
}

type tradeEntry struct {
	id uint64
	fn TradeListener
}

// Registry holds per-symbol ordered listener lists for market data and
// trades. It has its own lock so subscribe/unsubscribe never contends
// with matching, and publication snapshots the list before invoking
// anything, so listeners run outside the lock.
type Registry struct {
	mu     sync.RWMutex
	nextID uint64
	md     map[string][]mdEntry
	trades map[string][]tradeEntry
	log    *zap.SugaredLogger
}

// NewRegistry creates an empty registry. logger reports listener
// failures; pass nil to use a no-op logger.
func NewRegistry(logger *zap.SugaredLogger) *Registry {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Registry{
		md:     make(map[string][]mdEntry),
		trades: make(map[string][]tradeEntry),
		log:    logger,
	}
}

// SubscribeMarketData appends fn to the symbol's market-data list.
// Listeners are invoked in subscription order.
func (r *Registry) SubscribeMarketData(symbol string, fn MarketDataListener) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.md[symbol] = append(r.md[symbol], mdEntry{id: r.nextID, fn: fn})
	return Subscription{Symbol: symbol, Channel: ChannelMarketData, id: r.nextID}
}

// SubscribeTrades appends fn to the symbol's trade list.
func (r *Registry) SubscribeTrades(symbol string, fn TradeListener) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.trades[symbol] = append(r.trades[symbol], tradeEntry{id: r.nextID, fn: fn})
	return Subscription{Symbol: symbol, Channel: ChannelTrades, id: r.nextID}
}

// Unsubscribe removes the listener the subscription refers to. Removing
// a subscription twice is a no-op.
func (r *Registry) Unsubscribe(sub Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch sub.Channel {
	case ChannelMarketData:
		list := r.md[sub.Symbol]
		for i, e := range list {
			if e.id == sub.id {
				r.md[sub.Symbol] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(r.md[sub.Symbol]) == 0 {
			delete(r.md, sub.Symbol)
		}
	case ChannelTrades:
		list := r.trades[sub.Symbol]
		for i, e := range list {
			if e.id == sub.id {
				r.trades[sub.Symbol] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(r.trades[sub.Symbol]) == 0 {
			delete(r.trades, sub.Symbol)
		}
	}
}

// UnsubscribeAll drops every listener for the symbol on one channel.
// O(1): the whole list goes at once.
func (r *Registry) UnsubscribeAll(symbol string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch ch {
	case ChannelMarketData:
		delete(r.md, symbol)
	case ChannelTrades:
		delete(r.trades, symbol)
	}
}

// MarketDataSymbols returns the symbols that currently have at least
// one market-data subscriber. The tick generator polls this.
func (r *Registry) MarketDataSymbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	symbols := make([]string, 0, len(r.md))
	for s := range r.md {
		symbols = append(symbols, s)
	}
	return symbols
}

// PublishMarketData delivers a tick to every market-data subscriber of
// its symbol, in subscription order. A panicking listener is logged
// and skipped; delivery to the rest continues.
func (r *Registry) PublishMarketData(md MarketData) {
	r.mu.RLock()
	list := append([]mdEntry(nil), r.md[md.Symbol]...)
	r.mu.RUnlock()

	for _, e := range list {
		r.invokeMD(e, md)
	}
}

// PublishTrade delivers a fill to every trade subscriber of its symbol.
func (r *Registry) PublishTrade(t Trade) {
	r.mu.RLock()
	list := append([]tradeEntry(nil), r.trades[t.Symbol]...)
	r.mu.RUnlock()

	for _, e := range list {
		r.invokeTrade(e, t)
	}
}

func (r *Registry) invokeMD(e mdEntry, md MarketData) {
	defer func() {
		if err := recover(); err != nil {
			r.log.Errorw("market_data_listener_panic",
				"symbol", md.Symbol, "listener_id", e.id, "err", err)
		}
	}()
	e.fn(md)
}

func (r *Registry) invokeTrade(e tradeEntry, t Trade) {
	defer func() {
		if err := recover(); err != nil {
			r.log.Errorw("trade_listener_panic",
				"symbol", t.Symbol, "listener_id", e.id, "err", err)
		}
	}()
	e.fn(t)
}
