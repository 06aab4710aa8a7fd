package swap

import (
	"context"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// Initialize installs the first admin and, optionally, the fee and
// slippage tolerance. It requires the new admin's authorization and
// fails with AlreadyInitialized once an admin exists.
func (a *App) Initialize(ctx context.Context, p InitParams) error {
	return a.execute(ctx, "initialize", func(ctx context.Context, emit func(Event)) error {
		if err := a.auth.RequireAuth(ctx, p.Admin); err != nil {
			return err
		}
		if err := a.gate.Initialize(ctx, p.Admin); err != nil {
			return err
		}
		if p.FeeRecipient != (common.Address{}) {
			if err := a.fees.Set(ctx, p.FeeRate, p.FeeRecipient); err != nil {
				return err
			}
		}
		if p.SlippageBps != 0 {
			if err := a.slip.Set(ctx, p.SlippageBps); err != nil {
				return err
			}
		}
		emit(Event{Type: EventInitialized, Change: &Change{Key: "admin", Value: p.Admin.Hex(), By: p.Admin}})
		return nil
	})
}

// adminChange runs an admin write and records it as ConfigChanged.
func (a *App) adminChange(ctx context.Context, op, key, value string, fn func(ctx context.Context) error) error {
	return a.execute(ctx, op, func(ctx context.Context, emit func(Event)) error {
		by, err := a.gate.Admin(ctx)
		if err != nil {
			return err
		}
		if err := fn(ctx); err != nil {
			return err
		}
		emit(Event{Type: EventConfigChanged, Change: &Change{Key: key, Value: value, By: by}})
		return nil
	})
}

func (a *App) SetFee(ctx context.Context, rate uint32, recipient common.Address) error {
	value := strconv.FormatUint(uint64(rate), 10) + "@" + recipient.Hex()
	return a.adminChange(ctx, "set_fee", "fee", value, func(ctx context.Context) error {
		return a.fees.Set(ctx, rate, recipient)
	})
}

func (a *App) SetSlippage(ctx context.Context, bps uint32) error {
	return a.adminChange(ctx, "set_slippage", "slippage_bps", strconv.FormatUint(uint64(bps), 10), func(ctx context.Context) error {
		return a.slip.Set(ctx, bps)
	})
}

func (a *App) SetAdmin(ctx context.Context, next common.Address) error {
	return a.adminChange(ctx, "set_admin", "admin", next.Hex(), func(ctx context.Context) error {
		return a.gate.SetAdmin(ctx, next)
	})
}

func (a *App) SetPaused(ctx context.Context, paused bool) error {
	return a.adminChange(ctx, "set_paused", "paused", strconv.FormatBool(paused), func(ctx context.Context) error {
		return a.gate.SetPaused(ctx, paused)
	})
}

func (a *App) AllowToken(ctx context.Context, token common.Address) error {
	return a.adminChange(ctx, "allow_token", "allow", token.Hex(), func(ctx context.Context) error {
		return a.gate.AllowToken(ctx, token)
	})
}

func (a *App) DisallowToken(ctx context.Context, token common.Address) error {
	return a.adminChange(ctx, "disallow_token", "disallow", token.Hex(), func(ctx context.Context) error {
		return a.gate.DisallowToken(ctx, token)
	})
}

// Paused reports the pause switch; an uninitialized engine is not paused.
func (a *App) Paused(ctx context.Context) (bool, error) {
	return a.gate.Paused(ctx)
}
