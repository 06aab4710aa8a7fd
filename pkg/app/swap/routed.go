package swap

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
	"github.com/uhyunpark/hyperswap/pkg/app/core/slippage"
	"github.com/uhyunpark/hyperswap/pkg/auth"
	"github.com/uhyunpark/hyperswap/pkg/crypto"
)

// GetExpectedAmount is the AMM's current output for amountIn along the
// direct tokenIn → tokenOut pool. It changes nothing.
func (a *App) GetExpectedAmount(ctx context.Context, tokenIn, tokenOut common.Address, amountIn uint64) (uint64, error) {
	amounts, err := a.amm.Quote(ctx, amountIn, []common.Address{tokenIn, tokenOut})
	if err != nil {
		return 0, err
	}
	return last(amounts), nil
}

// GetSwapQuote prices a routed swap and applies the slippage tolerance.
func (a *App) GetSwapQuote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn uint64) (*SwapQuote, error) {
	if amountIn == 0 {
		return nil, fmt.Errorf("%w: zero swap input", core.ErrInvalidAmount)
	}
	if tokenIn == tokenOut {
		return nil, core.ErrSameToken
	}
	pair, err := a.amm.LocatePair(ctx, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	reserveIn, reserveOut, err := a.amm.Reserves(ctx, pair)
	if err != nil {
		return nil, err
	}
	if lo, _ := crypto.SortTokens(tokenIn, tokenOut); lo != tokenIn {
		reserveIn, reserveOut = reserveOut, reserveIn
	}
	path := []common.Address{tokenIn, tokenOut}
	amounts, err := a.amm.Quote(ctx, amountIn, path)
	if err != nil {
		return nil, err
	}
	bps, err := a.slip.Get(ctx)
	if err != nil {
		return nil, err
	}
	expected := last(amounts)
	minOut, err := slippage.MinAmountOut(expected, bps)
	if err != nil {
		return nil, err
	}
	return &SwapQuote{
		AmountIn:    amountIn,
		ExpectedOut: expected,
		MinOut:      minOut,
		SlippageBps: bps,
		Pair:        pair,
		Path:        path,
		ReserveIn:   reserveIn,
		ReserveOut:  reserveOut,
	}, nil
}

// Swap routes the customer's input through the AMM with custody acting
// as the swapping account, then forwards the realized output to the
// recipient. The pool gets a one-off allowance of exactly AmountIn.
// Routed swaps carry no protocol fee; the AMM's pool fee is the only
// cost, and the AMM enforces the MinOut floor.
func (a *App) Swap(ctx context.Context, req SwapRequest) (*SwapResult, error) {
	var res *SwapResult
	err := a.execute(ctx, "swap", func(ctx context.Context, emit func(Event)) error {
		if err := a.auth.RequireAuth(ctx, req.Customer); err != nil {
			return err
		}
		if err := a.gate.RequireNotPaused(ctx); err != nil {
			return err
		}
		if req.AmountIn == 0 {
			return fmt.Errorf("%w: zero swap input", core.ErrInvalidAmount)
		}
		if req.TokenIn == req.TokenOut {
			return core.ErrSameToken
		}
		if err := a.checkAllowed(ctx, req.TokenIn, req.TokenOut); err != nil {
			return err
		}
		recipient := req.Recipient
		if recipient == (common.Address{}) {
			recipient = req.Customer
		}
		if err := a.ensureFunds(ctx, req.TokenIn, req.Customer, req.AmountIn); err != nil {
			return err
		}

		cctx := a.asCustody(ctx)
		if err := a.leg(cctx, "collect", req.TokenIn, req.Customer, a.cfg.Custody, req.AmountIn); err != nil {
			return err
		}
		q, err := a.GetSwapQuote(ctx, req.TokenIn, req.TokenOut, req.AmountIn)
		if err != nil {
			return err
		}
		if err := a.assets.Approve(cctx, req.TokenIn, a.cfg.Custody, q.Pair, req.AmountIn, a.expiry()); err != nil {
			return err
		}
		amounts, err := a.amm.ExactInputSwap(auth.WithInvoker(cctx, a.cfg.Custody), req.AmountIn, q.MinOut, q.Path, a.cfg.Custody, req.Deadline)
		if err != nil {
			return err
		}
		out := last(amounts)
		// whatever the pool did not draw must not stay delegated
		left, err := a.assets.Allowance(cctx, req.TokenIn, a.cfg.Custody, q.Pair)
		if err != nil {
			return err
		}
		if left > 0 {
			if err := a.assets.Approve(cctx, req.TokenIn, a.cfg.Custody, q.Pair, 0, 0); err != nil {
				return err
			}
		}
		if err := a.leg(cctx, "distribute", req.TokenOut, a.cfg.Custody, recipient, out); err != nil {
			return err
		}

		res = &SwapResult{
			ID:        uuid.NewString(),
			Customer:  req.Customer,
			Recipient: recipient,
			TokenIn:   req.TokenIn,
			TokenOut:  req.TokenOut,
			Pair:      q.Pair,
			AmountIn:  req.AmountIn,
			AmountOut: out,
			MinOut:    q.MinOut,
			Timestamp: a.clock.Now().UnixMilli(),
		}
		emit(Event{Type: EventSwapCompleted, Swap: res})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func last(amounts []uint64) uint64 {
	if len(amounts) == 0 {
		return 0
	}
	return amounts[len(amounts)-1]
}
