package engine

import (
	"container/heap"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// OrderBook holds the resting orders and the accounting state for one
// symbol. All public methods are internally synchronized and acquire
// the book lock exactly once; everything called while locked is a
// private unlocked helper.
//
// Accounting convention (pinned by the test suite): the book tracks the
// signed exposure taken by the incoming order that triggered matching.
// Position moves +qty per matched unit when the aggressor is a buy and
// -qty when it is a sell. Realized P&L changes only on fills that
// reduce the magnitude of the open position, and always uses the
// pre-trade average cost. When the position returns to zero the average
// cost resets to zero.
type OrderBook struct {
	mu sync.Mutex

	symbol string
	bids   *sideQueue
	asks   *sideQueue

	seq uint64 // submission counter, assigned on AddOrder

	position int64
	avgCost  decimal.Decimal
	realized decimal.Decimal

	now func() time.Time
}

// NewOrderBook creates an empty book for symbol. now stamps trades;
// pass nil for wall-clock time.
func NewOrderBook(symbol string, now func() time.Time) *OrderBook {
	if now == nil {
		now = time.Now
	}
	return &OrderBook{
		symbol: symbol,
		bids:   newSideQueue(true),
		asks:   newSideQueue(false),
		now:    now,
	}
}

// AddResult reports what a submission did to the book.
type AddResult struct {
	ID      string   // id assigned to the submitted order
	Trades  []Trade  // fills produced by the matching pass, in order
	Resting bool     // true if the submitted order still rests (partially or not at all filled)
	Closed  []string // ids of orders removed because they filled completely
}

// AddOrder validates, assigns id and sequence, inserts the order and
// runs matching. Trades are returned, not published: the caller fans
// them out after this lock is released.
func (b *OrderBook) AddOrder(req OrderRequest) (AddResult, error) {
	if err := req.Validate(); err != nil {
		return AddResult{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	o := &Order{
		ID:        NewID(),
		Symbol:    b.symbol,
		Side:      req.Side,
		Price:     req.Price,
		Quantity:  req.Quantity,
		Remaining: req.Quantity,
		Sequence:  b.seq,
	}
	if o.Side == Buy {
		heap.Push(b.bids, o)
	} else {
		heap.Push(b.asks, o)
	}

	trades, closed := b.match(o.Side)
	b.assertUncrossed()

	return AddResult{
		ID:      o.ID,
		Trades:  trades,
		Resting: o.Remaining > 0,
		Closed:  closed,
	}, nil
}

// match crosses the book while the top prices overlap. Caller holds
// the lock. taker is the side of the order whose arrival triggered the
// pass; it decides the sign of the position update.
func (b *OrderBook) match(taker Side) ([]Trade, []string) {
	var trades []Trade
	var closed []string

	for b.bids.Len() > 0 && b.asks.Len() > 0 {
		buy := b.bids.peek()
		sell := b.asks.peek()
		if buy.Price.Cmp(sell.Price) < 0 {
			break
		}

		qty := buy.Remaining
		if sell.Remaining < qty {
			qty = sell.Remaining
		}
		// Crossing price is the midpoint of the two resting prices.
		price := buy.Price.Add(sell.Price).Div(two)

		buy.Remaining -= qty
		sell.Remaining -= qty
		if buy.Remaining == 0 {
			heap.Pop(b.bids)
			closed = append(closed, buy.ID)
		}
		if sell.Remaining == 0 {
			heap.Pop(b.asks)
			closed = append(closed, sell.ID)
		}

		b.applyFill(taker, qty, price)

		trades = append(trades, Trade{
			Symbol:      b.symbol,
			Price:       price,
			Quantity:    qty,
			BuyOrderID:  buy.ID,
			SellOrderID: sell.ID,
			Timestamp:   b.now(),
		})
	}
	return trades, closed
}

// applyFill moves the signed exposure by qty in the taker's direction
// and updates average cost and realized P&L. Caller holds the lock.
func (b *OrderBook) applyFill(taker Side, qty int64, price decimal.Decimal) {
	delta := qty
	if taker == Sell {
		delta = -qty
	}
	before := b.position

	if before == 0 || (before > 0) == (delta > 0) {
		// Opening or extending: volume-weighted average cost.
		absBefore := abs64(before)
		total := decimal.NewFromInt(absBefore + qty)
		b.avgCost = b.avgCost.Mul(decimal.NewFromInt(absBefore)).
			Add(price.Mul(decimal.NewFromInt(qty))).
			Div(total)
		b.position = before + delta
		return
	}

	// Reducing: realize against the pre-trade average cost.
	closeQty := qty
	if absBefore := abs64(before); absBefore < closeQty {
		closeQty = absBefore
	}
	pnl := price.Sub(b.avgCost).Mul(decimal.NewFromInt(closeQty))
	if before < 0 {
		pnl = pnl.Neg()
	}
	b.realized = b.realized.Add(pnl)
	b.position = before + delta

	switch {
	case b.position == 0:
		// Flat again: average cost is undefined until a new
		// position opens.
		b.avgCost = decimal.Zero
	case (b.position > 0) != (before > 0):
		// Crossed through zero: the remainder opens a fresh
		// position at the match price.
		b.avgCost = price
	}
}

// CancelOrder removes a resting order. Returns false if the id is not
// resting (unknown, already filled, or already cancelled).
func (b *OrderBook) CancelOrder(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i, ok := b.bids.pos[id]; ok {
		heap.Remove(b.bids, i)
		return true
	}
	if i, ok := b.asks.pos[id]; ok {
		heap.Remove(b.asks, i)
		return true
	}
	return false
}

// BestBid returns the highest resting buy price.
func (b *OrderBook) BestBid() (decimal.Decimal, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bestBid()
}

// BestAsk returns the lowest resting sell price.
func (b *OrderBook) BestAsk() (decimal.Decimal, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bestAsk()
}

func (b *OrderBook) bestBid() (decimal.Decimal, bool) {
	if o := b.bids.peek(); o != nil {
		return o.Price, true
	}
	return decimal.Zero, false
}

func (b *OrderBook) bestAsk() (decimal.Decimal, bool) {
	if o := b.asks.peek(); o != nil {
		return o.Price, true
	}
	return decimal.Zero, false
}

// Position returns the current net signed exposure.
func (b *OrderBook) Position() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.position
}

// AverageCost is the volume-weighted entry price of the open position.
// Zero while flat.
func (b *OrderBook) AverageCost() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.avgCost
}

// RealizedPnL is the profit locked in by position-reducing fills.
func (b *OrderBook) RealizedPnL() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.realized
}

// UnrealizedPnL is position × (mid − averageCost) at the current mid
// price. Reported as zero when either side of the book is empty: a
// one-sided market has no mid to mark against.
func (b *OrderBook) UnrealizedPnL() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.position == 0 {
		return decimal.Zero
	}
	bid, okBid := b.bestBid()
	ask, okAsk := b.bestAsk()
	if !okBid || !okAsk {
		return decimal.Zero
	}
	mid := bid.Add(ask).Div(two)
	return mid.Sub(b.avgCost).Mul(decimal.NewFromInt(b.position))
}

// restingQuantity sums Remaining across one side. Test hook for the
// conservation property. Caller-facing, takes the lock.
func (b *OrderBook) restingQuantity(side Side) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.asks
	if side == Buy {
		q = b.bids
	}
	var total int64
	for _, o := range q.orders {
		total += o.Remaining
	}
	return total
}

// assertUncrossed panics if matching claims to be done while the book
// is still crossed. That state is a programming error, never
// recoverable input. Caller holds the lock.
func (b *OrderBook) assertUncrossed() {
	bid, okBid := b.bestBid()
	ask, okAsk := b.bestAsk()
	if okBid && okAsk && bid.Cmp(ask) >= 0 {
		panic(fmt.Sprintf("orderbook %s crossed after matching: bid=%s ask=%s",
			b.symbol, bid, ask))
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
