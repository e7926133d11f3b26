// Package journal appends executed trades to a pebble database so
// operators can inspect recent activity. It is a write-behind audit
// sink wired in as an ordinary trade subscriber; the engine never
// reads it back and does not depend on it to restart.
package journal

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/quantrail/tickmill/pkg/engine"
)

type Journal struct {
	db  *pebble.DB
	seq atomic.Uint64 // disambiguates trades sharing a timestamp
	log *zap.SugaredLogger
}

// Open opens (or creates) the journal at path.
func Open(path string, logger *zap.SugaredLogger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{db: db, log: logger}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// keys: t:<symbol>:<unixnano, zero padded>:<seq> so a prefix scan over
// one symbol yields trades in time order.
func (j *Journal) tradeKey(t engine.Trade) []byte {
	return []byte(fmt.Sprintf("t:%s:%020d:%012d",
		t.Symbol, t.Timestamp.UnixNano(), j.seq.Add(1)))
}

func tradePrefix(symbol string) []byte {
	return []byte("t:" + symbol + ":")
}

func keyUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// RecordTrade appends one trade. NoSync: the journal is an audit
// trail, not a ledger, and must never stall the publishing path.
func (j *Journal) RecordTrade(t engine.Trade) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}
	if err := j.db.Set(j.tradeKey(t), data, pebble.NoSync); err != nil {
		return fmt.Errorf("append trade: %w", err)
	}
	return nil
}

// RecentTrades returns up to limit trades for symbol, newest first.
func (j *Journal) RecentTrades(symbol string, limit int) ([]engine.Trade, error) {
	prefix := tradePrefix(symbol)
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("journal iterator: %w", err)
	}
	defer iter.Close()

	var trades []engine.Trade
	for iter.Last(); iter.Valid() && len(trades) < limit; iter.Prev() {
		var t engine.Trade
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			continue // skip unreadable entries
		}
		trades = append(trades, t)
	}
	return trades, nil
}

// Attach subscribes the journal to trade events for each symbol and
// returns the subscriptions so the caller can detach later. Write
// errors are logged, never propagated into matching.
func (j *Journal) Attach(e *engine.Engine, symbols []string) []engine.Subscription {
	subs := make([]engine.Subscription, 0, len(symbols))
	for _, symbol := range symbols {
		subs = append(subs, e.SubscribeTrades(symbol, func(t engine.Trade) {
			if err := j.RecordTrade(t); err != nil {
				j.log.Errorw("journal_write_failed", "symbol", t.Symbol, "err", err)
			}
		}))
	}
	return subs
}
