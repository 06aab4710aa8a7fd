// Package amm talks to a constant-product AMM: the Router interface is the
// AMM's own protocol, Adapter translates it for the settlement engine.
package amm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
)

// Router is the external AMM protocol surface.
type Router interface {
	// GetAmountsOut returns the cumulative amounts along path for amountIn,
	// priced against the pools registered in registry.
	GetAmountsOut(ctx context.Context, registry common.Address, amountIn uint64, path []common.Address) ([]uint64, error)
	// SwapExactTokensForTokens pulls amountIn of path[0] from the invoking
	// account and sends the final output to to. It fails when the output
	// is below amountOutMin or the deadline (Unix seconds, 0 = none) passed.
	SwapExactTokensForTokens(ctx context.Context, amountIn, amountOutMin uint64, path []common.Address, to common.Address, deadline uint64) ([]uint64, error)
	RouterPairFor(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error)
	// GetReserves returns the pool's reserves ordered by sorted token address.
	GetReserves(ctx context.Context, pair common.Address) (uint64, uint64, error)
}

// Adapter surfaces every Router failure as core.ErrSwapFailed.
type Adapter struct {
	router   Router
	registry common.Address
	log      *zap.SugaredLogger
}

func NewAdapter(router Router, registry common.Address, log *zap.SugaredLogger) *Adapter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Adapter{router: router, registry: registry, log: log}
}

// Quote returns the cumulative amounts for amountIn along path; the last
// element is the final output.
func (a *Adapter) Quote(ctx context.Context, amountIn uint64, path []common.Address) ([]uint64, error) {
	if err := checkPath(path); err != nil {
		return nil, a.fail("quote", err)
	}
	amounts, err := a.router.GetAmountsOut(ctx, a.registry, amountIn, path)
	if err != nil {
		return nil, a.fail("quote", err)
	}
	if len(amounts) != len(path) {
		return nil, a.fail("quote", fmt.Errorf("router returned %d amounts for %d hops", len(amounts), len(path)))
	}
	return amounts, nil
}

func (a *Adapter) LocatePair(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	if tokenA == tokenB {
		return common.Address{}, a.fail("locate_pair", ErrInvalidPath)
	}
	pair, err := a.router.RouterPairFor(ctx, tokenA, tokenB)
	if err != nil {
		return common.Address{}, a.fail("locate_pair", err)
	}
	return pair, nil
}

func (a *Adapter) Reserves(ctx context.Context, pair common.Address) (uint64, uint64, error) {
	r0, r1, err := a.router.GetReserves(ctx, pair)
	if err != nil {
		return 0, 0, a.fail("get_reserves", err)
	}
	return r0, r1, nil
}

func (a *Adapter) ExactInputSwap(ctx context.Context, amountIn, minAmountOut uint64, path []common.Address, recipient common.Address, deadline uint64) ([]uint64, error) {
	if err := checkPath(path); err != nil {
		return nil, a.fail("swap", err)
	}
	amounts, err := a.router.SwapExactTokensForTokens(ctx, amountIn, minAmountOut, path, recipient, deadline)
	if err != nil {
		return nil, a.fail("swap", err)
	}
	if len(amounts) != len(path) {
		return nil, a.fail("swap", fmt.Errorf("router returned %d amounts for %d hops", len(amounts), len(path)))
	}
	if Last(amounts) < minAmountOut {
		return nil, a.fail("swap", fmt.Errorf("%w: got %d, floor %d", ErrInsufficientOutputAmount, Last(amounts), minAmountOut))
	}
	return amounts, nil
}

func (a *Adapter) fail(op string, err error) error {
	a.log.Debugw("amm_call_failed", "op", op, "err", err)
	return fmt.Errorf("%w: %s: %w", core.ErrSwapFailed, op, err)
}

func checkPath(path []common.Address) error {
	if len(path) < 2 {
		return ErrInvalidPath
	}
	for i := 1; i < len(path); i++ {
		if path[i] == path[i-1] {
			return ErrInvalidPath
		}
	}
	return nil
}

// Last returns the final output of a router amounts array.
func Last(amounts []uint64) uint64 {
	if len(amounts) == 0 {
		return 0
	}
	return amounts[len(amounts)-1]
}
