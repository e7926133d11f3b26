package engine

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func mustAdd(t *testing.T, b *OrderBook, side Side, price string, qty int64) AddResult {
	t.Helper()
	res, err := b.AddOrder(OrderRequest{
		Symbol:   "AAPL",
		Side:     side,
		Price:    dec(t, price),
		Quantity: qty,
	})
	if err != nil {
		t.Fatalf("AddOrder(%v %d@%s): %v", side, qty, price, err)
	}
	return res
}

func TestAddOrder_RejectsMalformed(t *testing.T) {
	b := NewOrderBook("AAPL", nil)

	tests := []struct {
		name string
		req  OrderRequest
	}{
		{"zero quantity", OrderRequest{Symbol: "AAPL", Side: Buy, Price: decimal.NewFromInt(100), Quantity: 0}},
		{"negative quantity", OrderRequest{Symbol: "AAPL", Side: Buy, Price: decimal.NewFromInt(100), Quantity: -5}},
		{"zero price", OrderRequest{Symbol: "AAPL", Side: Sell, Price: decimal.Zero, Quantity: 10}},
		{"negative price", OrderRequest{Symbol: "AAPL", Side: Sell, Price: decimal.NewFromInt(-1), Quantity: 10}},
		{"unknown side", OrderRequest{Symbol: "AAPL", Side: 0, Price: decimal.NewFromInt(100), Quantity: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := b.AddOrder(tt.req); !errors.Is(err, ErrInvalidOrder) {
				t.Errorf("AddOrder() err = %v, want ErrInvalidOrder", err)
			}
		})
	}

	// Nothing entered the book.
	if _, ok := b.BestBid(); ok {
		t.Error("rejected order is resting on the bid side")
	}
	if _, ok := b.BestAsk(); ok {
		t.Error("rejected order is resting on the ask side")
	}
}

// The pinned accounting scenario: position follows the aggressor side,
// crossing price is the midpoint of the two resting prices, and fills
// that open or extend exposure never touch realized P&L.
func TestMatch_AggressorConventionScenario(t *testing.T) {
	b := NewOrderBook("AAPL", nil)

	// Buy 100@105 into an empty book: one-sided, no trade.
	res := mustAdd(t, b, Buy, "105", 100)
	if len(res.Trades) != 0 {
		t.Fatalf("expected no trades on one-sided book, got %d", len(res.Trades))
	}
	if got := b.Position(); got != 0 {
		t.Fatalf("position = %d, want 0", got)
	}

	// Sell 50@100 crosses: one trade at the midpoint 102.50.
	res = mustAdd(t, b, Sell, "100", 50)
	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	tr := res.Trades[0]
	if !tr.Price.Equal(dec(t, "102.5")) {
		t.Errorf("trade price = %s, want 102.5", tr.Price)
	}
	if tr.Quantity != 50 {
		t.Errorf("trade qty = %d, want 50", tr.Quantity)
	}
	if got := b.Position(); got != -50 {
		t.Errorf("position = %d, want -50 (aggressor was a sell)", got)
	}
	if got := b.AverageCost(); !got.Equal(dec(t, "102.5")) {
		t.Errorf("averageCost = %s, want 102.5", got)
	}
	if got := b.RealizedPnL(); !got.IsZero() {
		t.Errorf("realizedPnL = %s, want 0 (opening fill)", got)
	}
	if got := b.restingQuantity(Buy); got != 50 {
		t.Errorf("resting buy qty = %d, want 50", got)
	}

	// Sell 50@105 crosses the remaining bid: trade at 105, short
	// extends, average cost re-weights, still nothing realized.
	res = mustAdd(t, b, Sell, "105", 50)
	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	if !res.Trades[0].Price.Equal(dec(t, "105")) {
		t.Errorf("trade price = %s, want 105", res.Trades[0].Price)
	}
	if got := b.Position(); got != -100 {
		t.Errorf("position = %d, want -100", got)
	}
	if got := b.AverageCost(); !got.Equal(dec(t, "103.75")) {
		t.Errorf("averageCost = %s, want 103.75", got)
	}
	if got := b.RealizedPnL(); !got.IsZero() {
		t.Errorf("realizedPnL = %s, want 0", got)
	}
}

func TestMatch_PriceTimePriority(t *testing.T) {
	b := NewOrderBook("AAPL", nil)

	first := mustAdd(t, b, Sell, "100", 30)
	second := mustAdd(t, b, Sell, "100", 30)

	// A crossing buy takes the earlier sell completely before the
	// later one sees any quantity.
	res := mustAdd(t, b, Buy, "100", 40)
	if len(res.Trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(res.Trades))
	}
	if res.Trades[0].SellOrderID != first.ID || res.Trades[0].Quantity != 30 {
		t.Errorf("first fill = %d against %s, want 30 against %s",
			res.Trades[0].Quantity, res.Trades[0].SellOrderID, first.ID)
	}
	if res.Trades[1].SellOrderID != second.ID || res.Trades[1].Quantity != 10 {
		t.Errorf("second fill = %d against %s, want 10 against %s",
			res.Trades[1].Quantity, res.Trades[1].SellOrderID, second.ID)
	}
	if got := b.restingQuantity(Sell); got != 20 {
		t.Errorf("resting sell qty = %d, want 20", got)
	}
}

func TestMatch_NeverLeavesBookCrossed(t *testing.T) {
	b := NewOrderBook("AAPL", nil)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		side := Buy
		if rng.Intn(2) == 1 {
			side = Sell
		}
		price := decimal.NewFromFloat(90 + rng.Float64()*20).Round(2)
		_, err := b.AddOrder(OrderRequest{
			Symbol: "AAPL", Side: side, Price: price,
			Quantity: int64(1 + rng.Intn(100)),
		})
		if err != nil {
			t.Fatalf("AddOrder: %v", err)
		}

		bid, okBid := b.BestBid()
		ask, okAsk := b.BestAsk()
		if okBid && okAsk && bid.Cmp(ask) >= 0 {
			t.Fatalf("book crossed after order %d: bid=%s ask=%s", i, bid, ask)
		}
	}
}

func TestMatch_ConservesQuantity(t *testing.T) {
	b := NewOrderBook("AAPL", nil)
	rng := rand.New(rand.NewSource(11))

	for i := 0; i < 200; i++ {
		side := Buy
		if rng.Intn(2) == 1 {
			side = Sell
		}
		qty := int64(1 + rng.Intn(50))
		before := b.restingQuantity(Buy) + b.restingQuantity(Sell)

		res, err := b.AddOrder(OrderRequest{
			Symbol: "AAPL", Side: side,
			Price:    decimal.NewFromFloat(95 + rng.Float64()*10).Round(2),
			Quantity: qty,
		})
		if err != nil {
			t.Fatalf("AddOrder: %v", err)
		}

		var matched int64
		for _, tr := range res.Trades {
			matched += tr.Quantity
		}
		after := b.restingQuantity(Buy) + b.restingQuantity(Sell)

		// The new order contributes qty; each matched unit removes
		// one unit from each side.
		if after != before+qty-2*matched {
			t.Fatalf("order %d: resting %d -> %d with qty %d matched %d",
				i, before, after, qty, matched)
		}
	}
}

func TestAccounting_AverageCostStableWhileReducing(t *testing.T) {
	b := NewOrderBook("AAPL", nil)

	// Open +100 at 100: resting sell, aggressor buy.
	mustAdd(t, b, Sell, "100", 100)
	mustAdd(t, b, Buy, "100", 100)
	if got := b.Position(); got != 100 {
		t.Fatalf("position = %d, want 100", got)
	}
	want := b.AverageCost()

	// Reduce in three steps via aggressor sells at varying prices.
	for _, price := range []string{"104", "97", "110"} {
		mustAdd(t, b, Buy, price, 20)
		mustAdd(t, b, Sell, price, 20)
		if got := b.AverageCost(); !got.Equal(want) {
			t.Fatalf("averageCost changed while reducing: %s -> %s", want, got)
		}
	}
	if got := b.Position(); got != 40 {
		t.Errorf("position = %d, want 40", got)
	}
}

func TestAccounting_RealizedUsesPreTradeAverageCost(t *testing.T) {
	b := NewOrderBook("AAPL", nil)

	// Open +50 at 100.
	mustAdd(t, b, Sell, "100", 50)
	mustAdd(t, b, Buy, "100", 50)

	// Close half at 110: realized = (110 - 100) × 25, computed against
	// the pre-trade average cost, which itself must not move.
	mustAdd(t, b, Buy, "110", 25)
	mustAdd(t, b, Sell, "110", 25)

	if got := b.RealizedPnL(); !got.Equal(dec(t, "250")) {
		t.Errorf("realizedPnL = %s, want 250", got)
	}
	if got := b.AverageCost(); !got.Equal(dec(t, "100")) {
		t.Errorf("averageCost = %s, want 100", got)
	}
}

func TestAccounting_FlatResetsAverageCost(t *testing.T) {
	b := NewOrderBook("AAPL", nil)

	mustAdd(t, b, Sell, "100", 50)
	mustAdd(t, b, Buy, "100", 50)

	mustAdd(t, b, Buy, "110", 50)
	mustAdd(t, b, Sell, "110", 50)

	if got := b.Position(); got != 0 {
		t.Fatalf("position = %d, want 0", got)
	}
	if got := b.AverageCost(); !got.IsZero() {
		t.Errorf("averageCost = %s, want 0 while flat", got)
	}
	if got := b.RealizedPnL(); !got.Equal(dec(t, "500")) {
		t.Errorf("realizedPnL = %s, want 500", got)
	}
}

func TestAccounting_CrossThroughZero(t *testing.T) {
	b := NewOrderBook("AAPL", nil)

	// Open +50 at 100.
	mustAdd(t, b, Sell, "100", 50)
	mustAdd(t, b, Buy, "100", 50)

	// Aggressor sell for 120 at 80 against a resting bid at 90:
	// trades at the 85 midpoint, closes the 50 long (realizing
	// (85-100)×50 = -750) and opens a 70 short at 85.
	mustAdd(t, b, Buy, "90", 120)
	mustAdd(t, b, Sell, "80", 120)

	if got := b.Position(); got != -70 {
		t.Errorf("position = %d, want -70", got)
	}
	if got := b.AverageCost(); !got.Equal(dec(t, "85")) {
		t.Errorf("averageCost = %s, want 85 (remainder opens at match price)", got)
	}
	if got := b.RealizedPnL(); !got.Equal(dec(t, "-750")) {
		t.Errorf("realizedPnL = %s, want -750", got)
	}
}

func TestCancelOrder(t *testing.T) {
	b := NewOrderBook("AAPL", nil)

	res := mustAdd(t, b, Buy, "100", 10)
	if !b.CancelOrder(res.ID) {
		t.Fatal("cancel of a resting order returned false")
	}
	if b.CancelOrder(res.ID) {
		t.Error("second cancel of the same id returned true")
	}

	// The cancelled order no longer participates in matching.
	sellRes := mustAdd(t, b, Sell, "90", 10)
	if len(sellRes.Trades) != 0 {
		t.Errorf("cancelled order matched: %d trades", len(sellRes.Trades))
	}

	// A fully filled order cannot be cancelled.
	buyRes := mustAdd(t, b, Buy, "95", 10)
	if len(buyRes.Trades) != 1 {
		t.Fatalf("expected fill, got %d trades", len(buyRes.Trades))
	}
	if b.CancelOrder(buyRes.ID) {
		t.Error("cancel of a filled order returned true")
	}
}

func TestUnrealizedPnL(t *testing.T) {
	b := NewOrderBook("AAPL", nil)

	// Open +50 at 100; the matching pass empties both sides.
	mustAdd(t, b, Sell, "100", 50)
	mustAdd(t, b, Buy, "100", 50)
	if got := b.UnrealizedPnL(); !got.IsZero() {
		t.Errorf("unrealizedPnL = %s, want 0 with an empty book", got)
	}

	// One-sided market still reports zero.
	mustAdd(t, b, Buy, "99", 10)
	if got := b.UnrealizedPnL(); !got.IsZero() {
		t.Errorf("unrealizedPnL = %s, want 0 on a one-sided book", got)
	}

	// Two-sided: mid = (99+103)/2 = 101, so 50 × (101-100) = 50.
	mustAdd(t, b, Sell, "103", 10)
	if got := b.UnrealizedPnL(); !got.Equal(dec(t, "50")) {
		t.Errorf("unrealizedPnL = %s, want 50", got)
	}
}

func TestBestBidAsk(t *testing.T) {
	b := NewOrderBook("AAPL", nil)

	if _, ok := b.BestBid(); ok {
		t.Error("BestBid on empty book reported a price")
	}
	if _, ok := b.BestAsk(); ok {
		t.Error("BestAsk on empty book reported a price")
	}

	mustAdd(t, b, Buy, "98", 5)
	mustAdd(t, b, Buy, "99", 5)
	mustAdd(t, b, Sell, "101", 5)
	mustAdd(t, b, Sell, "102", 5)

	if bid, ok := b.BestBid(); !ok || !bid.Equal(dec(t, "99")) {
		t.Errorf("BestBid = %s/%v, want 99", bid, ok)
	}
	if ask, ok := b.BestAsk(); !ok || !ask.Equal(dec(t, "101")) {
		t.Errorf("BestAsk = %s/%v, want 101", ask, ok)
	}
}
