package fee

import (
	"context"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
	"github.com/uhyunpark/hyperswap/pkg/app/core/admin"
	"github.com/uhyunpark/hyperswap/pkg/auth"
	"github.com/uhyunpark/hyperswap/pkg/storage"
)

var (
	root   = common.HexToAddress("0xad")
	wallet = common.HexToAddress("0xfee")
)

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	s, err := storage.NewMemStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	gate := admin.NewGate(s, auth.ContextAuthorizer{})
	require.NoError(t, gate.Initialize(context.Background(), root))
	return NewLedger(s, gate)
}

func TestSetAndGet(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	_, err := l.Get(ctx)
	require.ErrorIs(t, err, core.ErrNotInitialized)

	require.ErrorIs(t, l.Set(ctx, 30, wallet), core.ErrNotAuthorized)

	asRoot := auth.WithSigners(ctx, root)
	require.NoError(t, l.Set(asRoot, 30, wallet))
	rec, err := l.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, Record{Rate: 30, Recipient: wallet}, rec)

	require.ErrorIs(t, l.Set(asRoot, FeeScale, wallet), core.ErrInvalidFeeRate)
	require.ErrorIs(t, l.Set(asRoot, 10, common.Address{}), core.ErrInvalidAmount)

	// rejected writes leave the record intact
	rec, _ = l.Get(ctx)
	require.EqualValues(t, 30, rec.Rate)
}

func TestAmount(t *testing.T) {
	rec := Record{Rate: 30}

	got, err := rec.Amount(5_000_000)
	require.NoError(t, err)
	require.EqualValues(t, 15_000, got)

	got, err = rec.Amount(100_000)
	require.NoError(t, err)
	require.EqualValues(t, 300, got)

	got, err = rec.Amount(333)
	require.NoError(t, err)
	require.Zero(t, got)

	_, err = Record{Rate: FeeScale}.Amount(1)
	require.ErrorIs(t, err, core.ErrInvalidFeeRate)

	_, err = rec.Amount(math.MaxUint64)
	require.ErrorIs(t, err, core.ErrArithmeticOverflow)
}

// The fee on any leg is strictly below the leg for every rate under 100%.
func TestAmountBelowLeg(t *testing.T) {
	for _, rate := range []uint32{0, 1, 30, 5000, FeeScale - 1} {
		for _, a := range []uint64{1, 9, 10_000, 123_456_789} {
			f, err := Record{Rate: rate}.Amount(a)
			require.NoError(t, err)
			require.Less(t, f, a)
			require.Equal(t, a*uint64(rate)/FeeScale, f)
		}
	}
}
