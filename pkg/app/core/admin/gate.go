// Package admin is the access gate: one admin identity that owns the fee,
// slippage and engine configuration, plus the pause switch and the token
// allowlist.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
	"github.com/uhyunpark/hyperswap/pkg/auth"
	"github.com/uhyunpark/hyperswap/pkg/storage"
)

var (
	keyAdmin  = storage.Key("cfg", "admin")
	keyPaused = storage.Key("cfg", "paused")
)

func allowKey(token common.Address) []byte {
	return storage.Key("allow", token.Hex())
}

type Gate struct {
	store storage.KV
	auth  auth.Authorizer
}

func NewGate(store storage.KV, authorizer auth.Authorizer) *Gate {
	return &Gate{store: store, auth: authorizer}
}

// Initialize sets the first admin. It can only happen once.
func (g *Gate) Initialize(ctx context.Context, admin common.Address) error {
	kv := storage.From(ctx, g.store)
	ok, err := kv.Has(keyAdmin)
	if err != nil {
		return err
	}
	if ok {
		return core.ErrAlreadyInitialized
	}
	if admin == (common.Address{}) {
		return fmt.Errorf("%w: zero admin address", core.ErrInvalidAmount)
	}
	return kv.Set(keyAdmin, admin.Bytes())
}

func (g *Gate) Admin(ctx context.Context) (common.Address, error) {
	v, err := storage.From(ctx, g.store).Get(keyAdmin)
	if errors.Is(err, storage.ErrNotFound) {
		return common.Address{}, fmt.Errorf("%w: admin", core.ErrNotInitialized)
	}
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(v), nil
}

// RequireAdmin fails unless the current admin has authorized ctx.
func (g *Gate) RequireAdmin(ctx context.Context) error {
	admin, err := g.Admin(ctx)
	if err != nil {
		return err
	}
	return g.auth.RequireAuth(ctx, admin)
}

// SetAdmin hands ownership to next. Only the current admin may do this.
func (g *Gate) SetAdmin(ctx context.Context, next common.Address) error {
	if err := g.RequireAdmin(ctx); err != nil {
		return err
	}
	if next == (common.Address{}) {
		return fmt.Errorf("%w: zero admin address", core.ErrInvalidAmount)
	}
	return storage.From(ctx, g.store).Set(keyAdmin, next.Bytes())
}

func (g *Gate) Paused(ctx context.Context) (bool, error) {
	v, err := storage.From(ctx, g.store).Get(keyPaused)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(v) == 1 && v[0] == 1, nil
}

func (g *Gate) SetPaused(ctx context.Context, paused bool) error {
	if err := g.RequireAdmin(ctx); err != nil {
		return err
	}
	v := []byte{0}
	if paused {
		v[0] = 1
	}
	return storage.From(ctx, g.store).Set(keyPaused, v)
}

// RequireNotPaused fails with core.ErrContractPaused while paused.
func (g *Gate) RequireNotPaused(ctx context.Context) error {
	paused, err := g.Paused(ctx)
	if err != nil {
		return err
	}
	if paused {
		return core.ErrContractPaused
	}
	return nil
}

func (g *Gate) AllowToken(ctx context.Context, token common.Address) error {
	return g.setAllowed(ctx, token, true)
}

func (g *Gate) DisallowToken(ctx context.Context, token common.Address) error {
	return g.setAllowed(ctx, token, false)
}

func (g *Gate) setAllowed(ctx context.Context, token common.Address, allowed bool) error {
	if err := g.RequireAdmin(ctx); err != nil {
		return err
	}
	v := []byte{0}
	if allowed {
		v[0] = 1
	}
	return storage.From(ctx, g.store).Set(allowKey(token), v)
}

func (g *Gate) TokenAllowed(ctx context.Context, token common.Address) (bool, error) {
	v, err := storage.From(ctx, g.store).Get(allowKey(token))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(v) == 1 && v[0] == 1, nil
}

// AllowedTokens lists every token currently on the allowlist.
func (g *Gate) AllowedTokens(ctx context.Context) ([]common.Address, error) {
	prefix := storage.Prefix("allow")
	var out []common.Address
	err := storage.From(ctx, g.store).Scan(prefix, func(k, v []byte) error {
		if len(v) == 1 && v[0] == 1 {
			out = append(out, common.HexToAddress(string(k[len(prefix):])))
		}
		return nil
	})
	return out, err
}
