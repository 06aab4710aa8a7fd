// Package slippage holds the tolerance applied to AMM-routed swaps.
package slippage

import (
	"context"
	"fmt"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
	"github.com/uhyunpark/hyperswap/pkg/app/core/admin"
	"github.com/uhyunpark/hyperswap/pkg/storage"
)

// Tolerance bounds in basis points.
const (
	MinBps     = 1
	MaxBps     = 5000
	DefaultBps = 50
	bpsScale   = 10_000
)

var keySlippage = storage.Key("cfg", "slippage")

type Record struct {
	ToleranceBps uint32 `json:"tolerance_bps"`
}

type Policy struct {
	store storage.KV
	gate  *admin.Gate
}

func NewPolicy(store storage.KV, gate *admin.Gate) *Policy {
	return &Policy{store: store, gate: gate}
}

func (p *Policy) Set(ctx context.Context, bps uint32) error {
	if err := p.gate.RequireAdmin(ctx); err != nil {
		return err
	}
	if bps < MinBps || bps > MaxBps {
		return fmt.Errorf("%w: %d bps not in [%d, %d]", core.ErrInvalidSlippage, bps, MinBps, MaxBps)
	}
	return storage.SetJSON(storage.From(ctx, p.store), keySlippage, Record{ToleranceBps: bps})
}

// Get returns the configured tolerance, or DefaultBps when none is set.
func (p *Policy) Get(ctx context.Context) (uint32, error) {
	var rec Record
	ok, err := storage.GetJSON(storage.From(ctx, p.store), keySlippage, &rec)
	if err != nil {
		return 0, err
	}
	if !ok {
		return DefaultBps, nil
	}
	return rec.ToleranceBps, nil
}

// MinAmountOut is the least output accepted for a quote:
// quote − floor(quote × bps / 10000).
func MinAmountOut(quote uint64, bps uint32) (uint64, error) {
	if bps > bpsScale {
		return 0, fmt.Errorf("%w: %d bps", core.ErrInvalidSlippage, bps)
	}
	cut, err := core.MulDiv(quote, uint64(bps), bpsScale)
	if err != nil {
		return 0, err
	}
	return quote - cut, nil
}
