package api

// API request/response types for REST endpoints and WebSocket messages

// ==============================
// REST Types
// ==============================

// SubmitOrderRequest is the payload for POST /api/v1/orders.
// Price is a decimal string ("102.50").
type SubmitOrderRequest struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"` // "buy" or "sell"
	Price    string `json:"price"`
	Quantity int64  `json:"quantity"`
}

// SubmitOrderResponse is the response from order submission
type SubmitOrderResponse struct {
	Status  string `json:"status"` // "accepted", "rejected"
	OrderID string `json:"orderId,omitempty"`
	Message string `json:"message,omitempty"`
}

// CancelOrderRequest is the payload for POST /api/v1/orders/cancel
type CancelOrderRequest struct {
	OrderID string `json:"orderId"`
}

// CancelOrderResponse reports whether the order was still resting
type CancelOrderResponse struct {
	OrderID   string `json:"orderId"`
	Cancelled bool   `json:"cancelled"`
}

// PositionInfo is the full accounting snapshot for one symbol
type PositionInfo struct {
	Symbol        string `json:"symbol"`
	Position      int64  `json:"position"`      // +ve = long, -ve = short
	AverageCost   string `json:"averageCost"`   // decimal string, "0" while flat
	UnrealizedPnL string `json:"unrealizedPnl"` // "0" when the book is one-sided
	RealizedPnL   string `json:"realizedPnl"`
}

// BookSnapshot is the top of book for one symbol
type BookSnapshot struct {
	Symbol    string `json:"symbol"`
	BestBid   string `json:"bestBid,omitempty"` // absent when that side is empty
	BestAsk   string `json:"bestAsk,omitempty"`
	Timestamp int64  `json:"timestamp"` // Unix milliseconds
}

// TradeInfo is one executed trade
type TradeInfo struct {
	Symbol      string `json:"symbol"`
	Price       string `json:"price"`
	Quantity    int64  `json:"quantity"`
	BuyOrderID  string `json:"buyOrderId"`
	SellOrderID string `json:"sellOrderId"`
	Timestamp   int64  `json:"timestamp"` // Unix milliseconds
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by clients to manage channel subscriptions.
// Channels look like "ticks:AAPL" and "trades:AAPL".
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// TickUpdate is broadcast on the "ticks:<symbol>" channel
type TickUpdate struct {
	Type      string `json:"type"` // "tick"
	Symbol    string `json:"symbol"`
	Price     string `json:"price"`
	Volume    string `json:"volume"`
	Timestamp int64  `json:"timestamp"`
}

// TradeUpdate is broadcast on the "trades:<symbol>" channel
type TradeUpdate struct {
	Type        string `json:"type"` // "trade"
	Symbol      string `json:"symbol"`
	Price       string `json:"price"`
	Quantity    int64  `json:"quantity"`
	BuyOrderID  string `json:"buyOrderId"`
	SellOrderID string `json:"sellOrderId"`
	Timestamp   int64  `json:"timestamp"`
}
