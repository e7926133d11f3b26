package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantrail/tickmill/pkg/engine"
	"github.com/quantrail/tickmill/pkg/journal"
)

// Server exposes the engine over REST and streams ticks/trades over
// WebSocket. The journal is optional; without it the trade-history
// endpoint reports empty.
type Server struct {
	eng    *engine.Engine
	jour   *journal.Journal
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger

	// bridged channels: first WS subscriber to "ticks:SYM" or
	// "trades:SYM" creates the matching engine subscription that
	// forwards into the hub. Bridges live until Close.
	bridgeMu sync.Mutex
	bridges  map[string]engine.Subscription
}

// NewServer creates a new API server. jour may be nil.
func NewServer(eng *engine.Engine, jour *journal.Journal, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		eng:     eng,
		jour:    jour,
		router:  mux.NewRouter(),
		hub:     NewHub(logger),
		log:     logger,
		bridges: make(map[string]engine.Subscription),
	}
	s.hub.onSubscribe = s.ensureBridge
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")

	api.HandleFunc("/positions/{symbol}", s.handleGetPosition).Methods("GET")
	api.HandleFunc("/markets/{symbol}/book", s.handleGetBook).Methods("GET")
	api.HandleFunc("/markets/{symbol}/trades", s.handleGetTrades).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server and blocks.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	})

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// Close tears down the engine subscriptions backing WS bridges.
func (s *Server) Close() {
	s.bridgeMu.Lock()
	defer s.bridgeMu.Unlock()
	for ch, sub := range s.bridges {
		s.eng.Unsubscribe(sub)
		delete(s.bridges, ch)
	}
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	side, err := engine.ParseSide(req.Side)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", "unparseable price: "+req.Price)
		return
	}

	id, err := s.eng.SubmitOrder(engine.OrderRequest{
		Symbol:   req.Symbol,
		Side:     side,
		Price:    price,
		Quantity: req.Quantity,
	})
	if err != nil {
		if errors.Is(err, engine.ErrInvalidOrder) {
			respondError(w, http.StatusBadRequest, "invalid order", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "submit failed", err.Error())
		return
	}

	respondJSON(w, SubmitOrderResponse{Status: "accepted", OrderID: id})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.OrderID == "" {
		respondError(w, http.StatusBadRequest, "missing orderId", "")
		return
	}

	cancelled := s.eng.CancelOrder(req.OrderID)
	respondJSON(w, CancelOrderResponse{OrderID: req.OrderID, Cancelled: cancelled})
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	// Unknown symbols report neutral values on purpose.
	respondJSON(w, PositionInfo{
		Symbol:        symbol,
		Position:      s.eng.Position(symbol),
		AverageCost:   s.eng.AverageCost(symbol).String(),
		UnrealizedPnL: s.eng.UnrealizedPnL(symbol).String(),
		RealizedPnL:   s.eng.RealizedPnL(symbol).String(),
	})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	snap := BookSnapshot{Symbol: symbol, Timestamp: time.Now().UnixMilli()}
	if bid, ok := s.eng.BestBid(symbol); ok {
		snap.BestBid = bid.String()
	}
	if ask, ok := s.eng.BestAsk(symbol); ok {
		snap.BestAsk = ask.String()
	}
	respondJSON(w, snap)
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	if s.jour == nil {
		respondJSON(w, []TradeInfo{})
		return
	}
	trades, err := s.jour.RecentTrades(symbol, 100)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "journal read failed", err.Error())
		return
	}

	out := make([]TradeInfo, len(trades))
	for i, t := range trades {
		out[i] = TradeInfo{
			Symbol:      t.Symbol,
			Price:       t.Price.String(),
			Quantity:    t.Quantity,
			BuyOrderID:  t.BuyOrderID,
			SellOrderID: t.SellOrderID,
			Timestamp:   t.Timestamp.UnixMilli(),
		}
	}
	respondJSON(w, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// WS bridging
// ==============================

// ensureBridge lazily subscribes the hub to the engine channel a WS
// client asked for. Channels: "ticks:<symbol>", "trades:<symbol>".
func (s *Server) ensureBridge(channel string) {
	kind, symbol, ok := strings.Cut(channel, ":")
	if !ok || symbol == "" {
		return
	}

	s.bridgeMu.Lock()
	defer s.bridgeMu.Unlock()
	if _, exists := s.bridges[channel]; exists {
		return
	}

	switch kind {
	case "ticks":
		s.bridges[channel] = s.eng.SubscribeMarketData(symbol, func(md engine.MarketData) {
			s.hub.BroadcastToChannel(channel, TickUpdate{
				Type:      "tick",
				Symbol:    md.Symbol,
				Price:     md.Price.String(),
				Volume:    md.Volume.String(),
				Timestamp: md.Timestamp.UnixMilli(),
			})
		})
	case "trades":
		s.bridges[channel] = s.eng.SubscribeTrades(symbol, func(t engine.Trade) {
			s.hub.BroadcastToChannel(channel, TradeUpdate{
				Type:        "trade",
				Symbol:      t.Symbol,
				Price:       t.Price.String(),
				Quantity:    t.Quantity,
				BuyOrderID:  t.BuyOrderID,
				SellOrderID: t.SellOrderID,
				Timestamp:   t.Timestamp.UnixMilli(),
			})
		})
	default:
		return
	}
	s.log.Infow("ws_bridge_created", "channel", channel)
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
