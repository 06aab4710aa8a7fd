// Package fee holds the protocol fee record: one rate and one recipient,
// written together by the admin and read by every settlement.
package fee

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
	"github.com/uhyunpark/hyperswap/pkg/app/core/admin"
	"github.com/uhyunpark/hyperswap/pkg/storage"
)

const (
	// FeeDecimals is the fixed-point precision of Rate: 30 means 0.30%.
	FeeDecimals = 4
	FeeScale    = 10_000
)

var keyFee = storage.Key("cfg", "fee")

// Record is stored as one value so rate and recipient never diverge.
type Record struct {
	Rate      uint32         `json:"rate"`
	Recipient common.Address `json:"recipient"`
}

// Amount returns floor(amount × Rate / FeeScale).
func (r Record) Amount(amount uint64) (uint64, error) {
	if r.Rate >= FeeScale {
		return 0, fmt.Errorf("%w: %d/%d", core.ErrInvalidFeeRate, r.Rate, FeeScale)
	}
	return core.MulDiv(amount, uint64(r.Rate), FeeScale)
}

type Ledger struct {
	store storage.KV
	gate  *admin.Gate
}

func NewLedger(store storage.KV, gate *admin.Gate) *Ledger {
	return &Ledger{store: store, gate: gate}
}

func (l *Ledger) Set(ctx context.Context, rate uint32, recipient common.Address) error {
	if err := l.gate.RequireAdmin(ctx); err != nil {
		return err
	}
	if rate >= FeeScale {
		return fmt.Errorf("%w: %d/%d", core.ErrInvalidFeeRate, rate, FeeScale)
	}
	if recipient == (common.Address{}) {
		return fmt.Errorf("%w: zero fee recipient", core.ErrInvalidAmount)
	}
	return storage.SetJSON(storage.From(ctx, l.store), keyFee, Record{Rate: rate, Recipient: recipient})
}

func (l *Ledger) Get(ctx context.Context) (Record, error) {
	var rec Record
	ok, err := storage.GetJSON(storage.From(ctx, l.store), keyFee, &rec)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, fmt.Errorf("%w: fee", core.ErrNotInitialized)
	}
	return rec, nil
}
