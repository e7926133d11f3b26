package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side int8

const (
	Buy Side = iota + 1
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// ParseSide parses "buy" or "sell" (case-insensitive).
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(s) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return 0, fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, s)
	}
}

var (
	// ErrInvalidOrder rejects malformed orders before they enter a book.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrUnknownSymbol is returned when a cancel is routed to a symbol
	// the engine has never seen. Read queries never return it.
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// OrderRequest is what callers submit. The engine assigns the id and
// the submission sequence.
type OrderRequest struct {
	Symbol   string
	Side     Side
	Price    decimal.Decimal
	Quantity int64
}

// Validate checks the well-formedness rules: positive price, positive
// quantity, known side, non-empty symbol.
func (r OrderRequest) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidOrder)
	}
	if r.Side != Buy && r.Side != Sell {
		return fmt.Errorf("%w: unknown side %d", ErrInvalidOrder, r.Side)
	}
	if !r.Price.IsPositive() {
		return fmt.Errorf("%w: price %s must be positive", ErrInvalidOrder, r.Price)
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("%w: quantity %d must be positive", ErrInvalidOrder, r.Quantity)
	}
	return nil
}

// Order is a resting order. Immutable once resting, except Remaining,
// which only decreases on partial fills. Owned by the book of its
// symbol until fully filled or cancelled.
type Order struct {
	ID        string
	Symbol    string
	Side      Side
	Price     decimal.Decimal
	Quantity  int64 // original quantity
	Remaining int64
	Sequence  uint64 // submission order within the book, drives time priority
}

// MarketData is a simulated price tick. Value type, transient.
type MarketData struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Volume    decimal.Decimal `json:"volume"`
	Timestamp time.Time       `json:"timestamp"`
}

// Trade is produced exactly once per match event and handed to
// subscribers by value.
type Trade struct {
	Symbol      string          `json:"symbol"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
	BuyOrderID  string          `json:"buyOrderId"`
	SellOrderID string          `json:"sellOrderId"`
	Timestamp   time.Time       `json:"timestamp"`
}
