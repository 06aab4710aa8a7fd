package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
	"github.com/uhyunpark/hyperswap/pkg/app/core/transaction"
	"github.com/uhyunpark/hyperswap/pkg/app/swap"
	"github.com/uhyunpark/hyperswap/pkg/crypto"
)

// maxBodyBytes bounds a signed request body.
const maxBodyBytes = 64 << 10

// ==============================
// REST Handlers (reads)
// ==============================

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	admin, err := s.app.Gate().Admin(ctx)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	info := ConfigInfo{Admin: admin.Hex(), Custody: s.app.Custody().Hex()}

	// The fee is unset until the admin configures it.
	f, err := s.app.Fee(ctx)
	switch {
	case err == nil:
		info.FeeRate = f.Rate
		info.FeePercent = FormatBps(f.Rate)
		info.FeeRecipient = f.Recipient.Hex()
	case !errors.Is(err, core.ErrNotInitialized):
		s.respondEngineError(w, err)
		return
	}

	if info.SlippageBps, err = s.app.SlippageTolerance(ctx); err != nil {
		s.respondEngineError(w, err)
		return
	}
	info.SlippagePercent = FormatBps(info.SlippageBps)
	if info.Paused, err = s.app.Paused(ctx); err != nil {
		s.respondEngineError(w, err)
		return
	}
	if info.OrderCount, err = s.app.OrderCount(ctx); err != nil {
		s.respondEngineError(w, err)
		return
	}
	allowed, err := s.app.Gate().AllowedTokens(ctx)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	info.AllowedTokens = make([]string, len(allowed))
	for i, a := range allowed {
		info.AllowedTokens[i] = a.Hex()
	}

	respondJSON(w, info)
}

func (s *Server) handleGetTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tokens, err := s.tokens.Tokens(ctx)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}

	response := make([]TokenInfo, len(tokens))
	for i, t := range tokens {
		allowed, err := s.app.Gate().TokenAllowed(ctx, t.Address)
		if err != nil {
			s.respondEngineError(w, err)
			return
		}
		response[i] = TokenInfo{
			Address:  t.Address.Hex(),
			Symbol:   t.Symbol,
			Decimals: t.Decimals,
			Allowed:  allowed,
		}
	}

	respondJSON(w, response)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	token, ok := pathAddress(w, vars["token"])
	if !ok {
		return
	}
	owner, ok := pathAddress(w, vars["address"])
	if !ok {
		return
	}

	t, err := s.tokens.Token(r.Context(), token)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	bal, err := s.tokens.Balance(r.Context(), token, owner)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}

	respondJSON(w, BalanceInfo{
		Token:   token.Hex(),
		Address: owner.Hex(),
		Balance: amount(bal),
		Display: FormatUnits(bal, t.Decimals),
	})
}

// handleGetOrders lists orders, optionally filtered with ?status=active.
func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	var statuses []core.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := core.ParseOrderStatus(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_amount", "invalid status", err.Error())
			return
		}
		statuses = append(statuses, st)
	}

	orders, err := s.app.Orders(r.Context(), statuses...)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, s.orderInfos(r.Context(), orders))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathOrderID(w, r)
	if !ok {
		return
	}
	order, err := s.app.GetOrder(r.Context(), id)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, s.orderInfo(r.Context(), order))
}

func (s *Server) handleGetOrderFills(w http.ResponseWriter, r *http.Request) {
	id, ok := pathOrderID(w, r)
	if !ok || !s.requireHistory(w) {
		return
	}
	fills, err := s.history.FillsByOrder(r.Context(), id, queryLimit(r))
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, fillRecordInfos(fills))
}

func (s *Server) handleGetAccountOrders(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, mux.Vars(r)["address"])
	if !ok {
		return
	}
	orders, err := s.app.OrdersByMaker(r.Context(), addr)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, s.orderInfos(r.Context(), orders))
}

func (s *Server) handleGetAccountFills(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, mux.Vars(r)["address"])
	if !ok || !s.requireHistory(w) {
		return
	}
	fills, err := s.history.FillsByAccount(r.Context(), addr, queryLimit(r))
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, fillRecordInfos(fills))
}

func (s *Server) handleGetAccountSwaps(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, mux.Vars(r)["address"])
	if !ok || !s.requireHistory(w) {
		return
	}
	swaps, err := s.history.SwapsByAccount(r.Context(), addr, queryLimit(r))
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, swapRecordInfos(swaps))
}

// handleGetQuote serves /quote?tokenIn=&tokenOut=&amountIn=
func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tokenIn, ok := pathAddress(w, q.Get("tokenIn"))
	if !ok {
		return
	}
	tokenOut, ok := pathAddress(w, q.Get("tokenOut"))
	if !ok {
		return
	}
	amountIn, err := strconv.ParseUint(q.Get("amountIn"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount", "invalid amountIn", err.Error())
		return
	}

	ctx := r.Context()
	quote, err := s.app.GetSwapQuote(ctx, tokenIn, tokenOut, amountIn)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	outDec := s.decimalsOf(ctx, tokenOut)
	path := make([]string, len(quote.Path))
	for i, p := range quote.Path {
		path[i] = p.Hex()
	}

	respondJSON(w, QuoteInfo{
		TokenIn:            tokenIn.Hex(),
		TokenOut:           tokenOut.Hex(),
		Pair:               quote.Pair.Hex(),
		Path:               path,
		AmountIn:           amount(quote.AmountIn),
		ExpectedOut:        amount(quote.ExpectedOut),
		MinOut:             amount(quote.MinOut),
		ExpectedOutDisplay: FormatUnits(quote.ExpectedOut, outDec),
		MinOutDisplay:      FormatUnits(quote.MinOut, outDec),
		SlippageBps:        quote.SlippageBps,
		SlippagePercent:    FormatBps(quote.SlippageBps),
		ReserveIn:          amount(quote.ReserveIn),
		ReserveOut:         amount(quote.ReserveOut),
	})
}

// ==============================
// REST Handlers (signed writes)
// ==============================

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	v, ctx, ok := s.verify(w, r, transaction.TxTypeCreateOrder)
	if !ok {
		return
	}
	req := v.Request.(*crypto.CreateOrderEIP712)

	var n narrower
	create := swap.CreateOrderRequest{
		Maker:         req.Maker,
		SendToken:     req.SendToken,
		RecvToken:     req.RecvToken,
		SendAmount:    n.u64(req.SendAmount),
		RecvAmount:    n.u64(req.RecvAmount),
		MinRecvAmount: n.u64(req.MinRecvAmount),
	}
	if n.err != nil {
		s.respondEngineError(w, n.err)
		return
	}
	id, err := s.app.CreateOrder(ctx, create)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}

	order, err := s.app.GetOrder(r.Context(), id)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.log.Debugw("signed_order_created", "id", id, "maker", req.Maker.Hex())
	respondJSON(w, SubmitResponse{Status: "ok", Result: s.orderInfo(r.Context(), order)})
}

func (s *Server) handleAcceptOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathOrderID(w, r)
	if !ok {
		return
	}
	v, ctx, ok := s.verify(w, r, transaction.TxTypeAcceptOrder)
	if !ok {
		return
	}
	req := v.Request.(*crypto.AcceptOrderEIP712)
	if core.OrderID(req.OrderID) != id {
		respondError(w, http.StatusBadRequest, "invalid_amount", "order id mismatch",
			fmt.Sprintf("path %d, signed %d", id, req.OrderID))
		return
	}

	amt, err := transaction.Uint64(req.Amount)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	fill, err := s.app.AcceptOrder(ctx, swap.AcceptOrderRequest{Taker: req.Taker, OrderID: id, Amount: amt})
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, SubmitResponse{Status: "ok", Result: s.fillInfo(fill)})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathOrderID(w, r)
	if !ok {
		return
	}
	v, ctx, ok := s.verify(w, r, transaction.TxTypeCancelOrder)
	if !ok {
		return
	}
	req := v.Request.(*crypto.CancelOrderEIP712)
	if core.OrderID(req.OrderID) != id {
		respondError(w, http.StatusBadRequest, "invalid_amount", "order id mismatch",
			fmt.Sprintf("path %d, signed %d", id, req.OrderID))
		return
	}

	order, err := s.app.CancelOrder(ctx, req.Maker, id)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, SubmitResponse{Status: "ok", Result: s.orderInfo(r.Context(), order)})
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	v, ctx, ok := s.verify(w, r, transaction.TxTypeSwap)
	if !ok {
		return
	}
	req := v.Request.(*crypto.SwapEIP712)

	var n narrower
	sr := swap.SwapRequest{
		Customer:  req.Customer,
		Recipient: req.Recipient,
		TokenIn:   req.TokenIn,
		TokenOut:  req.TokenOut,
		AmountIn:  n.u64(req.AmountIn),
		Deadline:  n.u64(req.SwapDeadline),
	}
	if n.err != nil {
		s.respondEngineError(w, n.err)
		return
	}
	res, err := s.app.Swap(ctx, sr)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, SubmitResponse{Status: "ok", Result: swapInfo(res)})
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	v, ctx, ok := s.verify(w, r, transaction.TxTypeAdmin)
	if !ok {
		return
	}
	req := v.Request.(*crypto.AdminEIP712)

	value, err := transaction.Uint64(req.Value)
	if err == nil && value > math.MaxUint32 {
		err = fmt.Errorf("%w: value %d out of range", core.ErrInvalidAmount, value)
	}
	if err != nil {
		s.respondEngineError(w, err)
		return
	}

	switch req.Action {
	case transaction.ActionSetFee:
		err = s.app.SetFee(ctx, uint32(value), req.Target)
	case transaction.ActionSetSlippage:
		err = s.app.SetSlippage(ctx, uint32(value))
	case transaction.ActionSetAdmin:
		err = s.app.SetAdmin(ctx, req.Target)
	case transaction.ActionPause:
		err = s.app.SetPaused(ctx, true)
	case transaction.ActionUnpause:
		err = s.app.SetPaused(ctx, false)
	case transaction.ActionAllowToken:
		err = s.app.AllowToken(ctx, req.Target)
	case transaction.ActionDisallowToken:
		err = s.app.DisallowToken(ctx, req.Target)
	}
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.log.Infow("admin_action_applied", "action", req.Action, "admin", req.Admin.Hex())
	respondJSON(w, SubmitResponse{Status: "ok"})
}

// verify reads a signed request of the wanted type and returns a context
// carrying the signer's proof and nonce.
func (s *Server) verify(w http.ResponseWriter, r *http.Request, want transaction.TxType) (*transaction.Verified, context.Context, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount", "failed to read body", err.Error())
		return nil, nil, false
	}
	tx, err := transaction.Deserialize(body)
	if err != nil {
		s.respondEngineError(w, err)
		return nil, nil, false
	}
	if tx.Type != want {
		respondError(w, http.StatusBadRequest, "invalid_amount", "invalid request type",
			fmt.Sprintf("expected type=%s", want))
		return nil, nil, false
	}
	v, err := s.verifier.Verify(tx)
	if err != nil {
		s.log.Debugw("signed_request_rejected", "type", tx.Type, "err", err)
		s.respondEngineError(w, err)
		return nil, nil, false
	}
	return v, v.Context(r.Context()), true
}

func (s *Server) requireHistory(w http.ResponseWriter) bool {
	if s.history == nil {
		respondError(w, http.StatusNotFound, "internal", "history disabled", "")
		return false
	}
	return true
}

func pathAddress(w http.ResponseWriter, raw string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		respondError(w, http.StatusBadRequest, "invalid_amount", "invalid address", raw)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func pathOrderID(w http.ResponseWriter, r *http.Request) (core.OrderID, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount", "invalid order id", raw)
		return 0, false
	}
	return core.OrderID(id), true
}

func queryLimit(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return n
}

// narrower converts signed big amounts, keeping the first error.
type narrower struct{ err error }

func (n *narrower) u64(v *big.Int) uint64 {
	out, err := transaction.Uint64(v)
	if n.err == nil {
		n.err = err
	}
	return out
}
