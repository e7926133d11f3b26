// Package strategy contains trading logic that sits outside the
// engine. Strategies only consume the engine's submit/subscribe
// surface, captured here as the Trader interface.
package strategy

import (
	"github.com/quantrail/tickmill/pkg/engine"
)

// Trader is the slice of the engine a strategy is allowed to touch.
type Trader interface {
	SubmitOrder(req engine.OrderRequest) (string, error)
	SubscribeMarketData(symbol string, fn engine.MarketDataListener) engine.Subscription
	Unsubscribe(sub engine.Subscription)
}

var _ Trader = (*engine.Engine)(nil)
