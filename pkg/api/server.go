package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
	"github.com/uhyunpark/hyperswap/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperswap/pkg/app/core/transaction"
	"github.com/uhyunpark/hyperswap/pkg/app/swap"
	"github.com/uhyunpark/hyperswap/pkg/history"
)

// TokenDirectory is the read side of the asset ledger.
type TokenDirectory interface {
	Token(ctx context.Context, token common.Address) (ledger.Token, error)
	Tokens(ctx context.Context) ([]ledger.Token, error)
	Balance(ctx context.Context, token, owner common.Address) (uint64, error)
}

// History serves settled fills and swaps.
type History interface {
	FillsByOrder(ctx context.Context, id core.OrderID, limit int) ([]history.FillRecord, error)
	FillsByAccount(ctx context.Context, account common.Address, limit int) ([]history.FillRecord, error)
	SwapsByAccount(ctx context.Context, account common.Address, limit int) ([]history.SwapRecord, error)
}

type Options struct {
	App      *swap.App
	Tokens   TokenDirectory
	History  History // optional
	Verifier *transaction.Verifier
	Logger   *zap.SugaredLogger
	// Registry is served on /metrics when set.
	Registry       *prometheus.Registry
	AllowedOrigins []string
}

// Server handles REST API and WebSocket connections
type Server struct {
	app      *swap.App
	tokens   TokenDirectory
	history  History
	verifier *transaction.Verifier
	log      *zap.SugaredLogger
	origins  []string
	router   *mux.Router
	hub      *Hub // WebSocket hub
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:3001"}
	}
	s := &Server{
		app:      opts.App,
		tokens:   opts.Tokens,
		history:  opts.History,
		verifier: opts.Verifier,
		log:      opts.Logger,
		origins:  opts.AllowedOrigins,
		router:   mux.NewRouter(),
		hub:      NewHub(opts.Logger),
	}
	s.setupRoutes(opts.Registry)
	return s
}

func (s *Server) setupRoutes(registry *prometheus.Registry) {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")

	// Token endpoints
	api.HandleFunc("/tokens", s.handleGetTokens).Methods("GET")
	api.HandleFunc("/tokens/{token}/balances/{address}", s.handleGetBalance).Methods("GET")

	// Order endpoints
	api.HandleFunc("/orders", s.handleGetOrders).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}/fills", s.handleGetOrderFills).Methods("GET")

	// Account endpoints
	api.HandleFunc("/accounts/{address}/orders", s.handleGetAccountOrders).Methods("GET")
	api.HandleFunc("/accounts/{address}/fills", s.handleGetAccountFills).Methods("GET")
	api.HandleFunc("/accounts/{address}/swaps", s.handleGetAccountSwaps).Methods("GET")

	api.HandleFunc("/quote", s.handleGetQuote).Methods("GET")

	// Signed writes
	api.HandleFunc("/orders", s.handleCreateOrder).Methods("POST")
	api.HandleFunc("/orders/{id:[0-9]+}/accept", s.handleAcceptOrder).Methods("POST")
	api.HandleFunc("/orders/{id:[0-9]+}/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/swap", s.handleSwap).Methods("POST")
	api.HandleFunc("/admin", s.handleAdmin).Methods("POST")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	if registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")
	}

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the router wrapped with CORS.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start serves on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Infow("api_server_starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast (called from the engine)
// ==============================

// Publish fans an engine event out to WebSocket subscribers. Use it as
// (part of) swap.App.OnEvent.
func (s *Server) Publish(ev swap.Event) {
	ctx := context.Background()
	switch ev.Type {
	case swap.EventOrderCreated, swap.EventOrderCancelled:
		info := s.orderInfo(ctx, ev.Order)
		s.broadcast(ev.Type, "orders", info)
		s.broadcast(ev.Type, accountChannel(ev.Order.Maker), info)
	case swap.EventOrderFilled:
		fill := s.fillInfo(ev.Fill)
		s.broadcast(ev.Type, "orders", s.orderInfo(ctx, &ev.Fill.Order))
		s.broadcast(ev.Type, "fills", fill)
		s.broadcast(ev.Type, accountChannel(ev.Fill.Maker), fill)
		if ev.Fill.Taker != ev.Fill.Maker {
			s.broadcast(ev.Type, accountChannel(ev.Fill.Taker), fill)
		}
	case swap.EventSwapCompleted:
		info := swapInfo(ev.Swap)
		s.broadcast(ev.Type, "swaps", info)
		s.broadcast(ev.Type, accountChannel(ev.Swap.Customer), info)
		if ev.Swap.Recipient != ev.Swap.Customer {
			s.broadcast(ev.Type, accountChannel(ev.Swap.Recipient), info)
		}
	case swap.EventInitialized, swap.EventConfigChanged:
		s.broadcast(ev.Type, "config", ev.Change)
	}
}

func (s *Server) broadcast(t swap.EventType, channel string, data interface{}) {
	s.hub.BroadcastToChannel(channel, WSMessage{Type: string(t), Channel: channel, Data: data})
}

func accountChannel(addr common.Address) string {
	return "account:" + addr.Hex()
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, msg, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg,
		Code:    code,
		Details: details,
	})
}

// respondEngineError maps an engine error kind to its HTTP status.
func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	code := core.Code(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.log.Errorw("request_failed", "code", code, "err", err)
	}
	respondError(w, status, code, kindMessage(err), err.Error())
}

func statusFor(code string) int {
	switch code {
	case "invalid_amount", "invalid_fee_rate", "arithmetic_overflow":
		return http.StatusBadRequest
	case "not_authorized":
		return http.StatusUnauthorized
	case "order_not_found":
		return http.StatusNotFound
	case "already_initialized", "order_not_active":
		return http.StatusConflict
	case "insufficient_balance", "insufficient_allowance", "transfer_failed":
		return http.StatusUnprocessableEntity
	case "contract_paused", "not_initialized":
		return http.StatusServiceUnavailable
	case "swap_failed":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// kindMessage is the short human form of the error kind.
func kindMessage(err error) string {
	if k := core.Kind(err); k != nil {
		return k.Error()
	}
	return "internal error"
}
