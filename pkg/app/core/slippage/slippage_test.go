package slippage

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

var root = common.HexToAddress("0xad")

func newPolicy(t *testing.T) *Policy {
	t.Helper()
	s, err := storage.NewMemStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	gate := admin.NewGate(s, auth.ContextAuthorizer{})
	require.NoError(t, gate.Initialize(context.Background(), root))
	return NewPolicy(s, gate)
}

func TestDefaultWhenUnset(t *testing.T) {
	p := newPolicy(t)
	got, err := p.Get(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, DefaultBps, got)
}

func TestSetBounds(t *testing.T) {
	p := newPolicy(t)
	asRoot := auth.WithSigners(context.Background(), root)

	require.ErrorIs(t, p.Set(context.Background(), 100), core.ErrNotAuthorized)

	for _, bad := range []uint32{0, MaxBps + 1, math.MaxUint32} {
		err := p.Set(asRoot, bad)
		require.ErrorIs(t, err, core.ErrInvalidSlippage)
		require.ErrorIs(t, err, core.ErrInvalidAmount)
	}

	for _, ok := range []uint32{MinBps, 100, MaxBps} {
		require.NoError(t, p.Set(asRoot, ok))
		got, err := p.Get(asRoot)
		require.NoError(t, err)
		require.Equal(t, ok, got)
	}
}

func TestMinAmountOut(t *testing.T) {
	got, err := MinAmountOut(10_000, 50)
	require.NoError(t, err)
	require.EqualValues(t, 9_950, got)

	got, err = MinAmountOut(999, 50)
	require.NoError(t, err)
	require.EqualValues(t, 995, got) // floor of the cut, so the bound rounds up

	got, err = MinAmountOut(0, 50)
	require.NoError(t, err)
	require.Zero(t, got)

	_, err = MinAmountOut(math.MaxUint64, 5000)
	require.ErrorIs(t, err, core.ErrArithmeticOverflow)
}
