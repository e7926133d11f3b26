// Package risk pre-checks proposed orders against static limits. It is
// a pure function of (limits, current position, proposed order): the
// caller runs it before SubmitOrder, the engine never calls it.
package risk

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quantrail/tickmill/pkg/engine"
)

// ErrLimitExceeded rejects a proposed order.
var ErrLimitExceeded = errors.New("risk limit exceeded")

// Limits are static per-caller bounds. Zero values disable a check.
type Limits struct {
	// MaxOrderQuantity caps the quantity of a single order.
	MaxOrderQuantity int64
	// MaxOrderNotional caps price × quantity of a single order.
	MaxOrderNotional decimal.Decimal
	// MaxPosition caps |position| assuming the order fills completely.
	MaxPosition int64
}

// Check approves or rejects a proposed order given the caller's
// current signed position in the order's symbol.
func Check(l Limits, position int64, req engine.OrderRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	if l.MaxOrderQuantity > 0 && req.Quantity > l.MaxOrderQuantity {
		return fmt.Errorf("%w: quantity %d over max %d",
			ErrLimitExceeded, req.Quantity, l.MaxOrderQuantity)
	}

	if l.MaxOrderNotional.IsPositive() {
		notional := req.Price.Mul(decimal.NewFromInt(req.Quantity))
		if notional.Cmp(l.MaxOrderNotional) > 0 {
			return fmt.Errorf("%w: notional %s over max %s",
				ErrLimitExceeded, notional, l.MaxOrderNotional)
		}
	}

	if l.MaxPosition > 0 {
		projected := position + req.Quantity
		if req.Side == engine.Sell {
			projected = position - req.Quantity
		}
		if projected < 0 {
			projected = -projected
		}
		if projected > l.MaxPosition {
			return fmt.Errorf("%w: projected position %d over max %d",
				ErrLimitExceeded, projected, l.MaxPosition)
		}
	}

	return nil
}
