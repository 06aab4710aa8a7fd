package amm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
	"github.com/uhyunpark/hyperswap/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperswap/pkg/auth"
	"github.com/uhyunpark/hyperswap/pkg/crypto"
	"github.com/uhyunpark/hyperswap/pkg/storage"
	"github.com/uhyunpark/hyperswap/pkg/util"
)

var (
	factory = common.HexToAddress("0xfac7")
	issuer  = common.HexToAddress("0x15")
	lp      = common.HexToAddress("0x1b")
	trader  = common.HexToAddress("0x7ade")
	tokA    = common.HexToAddress("0x0a")
	tokB    = common.HexToAddress("0x0b")
	tokC    = common.HexToAddress("0x0c")
)

type fixture struct {
	ledger *ledger.Ledger
	router *ConstantProduct
	clock  *util.ManualClock
}

func setup(t *testing.T) *fixture {
	t.Helper()
	s, err := storage.NewMemStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clock := util.NewManualClock(time.Unix(1_700_000_000, 0))
	l := ledger.New(s, auth.ContextAuthorizer{}, clock)
	ctx := context.Background()
	mint := auth.WithSigners(ctx, issuer)
	for _, tok := range []common.Address{tokA, tokB, tokC} {
		require.NoError(t, l.RegisterToken(ctx, ledger.Token{Address: tok, Symbol: tok.Hex()[38:], Issuer: issuer}))
		require.NoError(t, l.Mint(mint, tok, lp, 10_000_000))
		require.NoError(t, l.Mint(mint, tok, trader, 100_000))
	}

	r := NewConstantProduct(s, l, factory, 30, clock)
	lpCtx := auth.WithSigners(ctx, lp)
	for _, pair := range [][2]common.Address{{tokA, tokB}, {tokB, tokC}} {
		_, err := r.CreatePair(ctx, pair[0], pair[1])
		require.NoError(t, err)
		require.NoError(t, r.AddLiquidity(lpCtx, lp, pair[0], pair[1], 1_000_000, 1_000_000))
	}
	return &fixture{ledger: l, router: r, clock: clock}
}

func TestGetAmountOut(t *testing.T) {
	out, err := GetAmountOut(10_000, 1_000_000, 1_000_000, 30)
	require.NoError(t, err)
	require.Equal(t, uint64(9871), out)

	// no fee: 1000*1000/(1000+1000)
	out, err = GetAmountOut(1_000, 1_000, 1_000, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(500), out)

	_, err = GetAmountOut(0, 1, 1, 30)
	require.ErrorIs(t, err, ErrInsufficientInputAmount)
	_, err = GetAmountOut(1, 0, 1, 30)
	require.ErrorIs(t, err, ErrInsufficientLiquidity)

	// large values do not overflow
	out, err = GetAmountOut(1<<62, 1<<63, 1<<63, 30)
	require.NoError(t, err)
	require.Less(t, out, uint64(1<<63))
}

func TestCreatePair(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.router.CreatePair(ctx, tokB, tokA)
	require.ErrorIs(t, err, ErrPairExists)
	_, err = f.router.CreatePair(ctx, tokA, tokA)
	require.ErrorIs(t, err, ErrInvalidPath)

	pair, err := f.router.RouterPairFor(ctx, tokB, tokA)
	require.NoError(t, err)
	require.Equal(t, crypto.PairAddress(factory, tokA, tokB), pair)

	_, err = f.router.RouterPairFor(ctx, tokA, tokC)
	require.ErrorIs(t, err, ErrPairNotFound)

	pools, err := f.router.Pools(ctx)
	require.NoError(t, err)
	require.Len(t, pools, 2)

	r0, r1, err := f.router.GetReserves(ctx, pair)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000), r0)
	require.Equal(t, uint64(1_000_000), r1)
}

func TestGetAmountsOutMultiHop(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	amounts, err := f.router.GetAmountsOut(ctx, factory, 10_000, []common.Address{tokA, tokB, tokC})
	require.NoError(t, err)
	require.Len(t, amounts, 3)
	require.Equal(t, uint64(9871), amounts[1])
	second, err := GetAmountOut(9871, 1_000_000, 1_000_000, 30)
	require.NoError(t, err)
	require.Equal(t, second, amounts[2])

	_, err = f.router.GetAmountsOut(ctx, common.HexToAddress("0xbad"), 10_000, []common.Address{tokA, tokB})
	require.ErrorIs(t, err, ErrUnknownRegistry)
}

func TestSwapExactTokensForTokens(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	path := []common.Address{tokA, tokB}
	pair := crypto.PairAddress(factory, tokA, tokB)

	// no invoker
	_, err := f.router.SwapExactTokensForTokens(ctx, 10_000, 0, path, trader, 0)
	require.ErrorIs(t, err, ErrNoInvoker)

	call := auth.WithInvoker(ctx, trader)
	// no allowance for the pool yet
	_, err = f.router.SwapExactTokensForTokens(call, 10_000, 0, path, trader, 0)
	require.ErrorIs(t, err, core.ErrInsufficientAllowance)

	expiry := uint64(f.clock.Now().Add(time.Hour).Unix())
	require.NoError(t, f.ledger.Approve(auth.WithSigners(ctx, trader), tokA, trader, pair, 10_000, expiry))

	_, err = f.router.SwapExactTokensForTokens(call, 10_000, 9872, path, trader, 0)
	require.ErrorIs(t, err, ErrInsufficientOutputAmount)

	_, err = f.router.SwapExactTokensForTokens(call, 10_000, 0, path, trader, uint64(f.clock.Now().Unix())-1)
	require.ErrorIs(t, err, ErrExpired)

	amounts, err := f.router.SwapExactTokensForTokens(call, 10_000, 9871, path, trader, expiry)
	require.NoError(t, err)
	require.Equal(t, []uint64{10_000, 9871}, amounts)

	balA, _ := f.ledger.Balance(ctx, tokA, trader)
	balB, _ := f.ledger.Balance(ctx, tokB, trader)
	require.Equal(t, uint64(90_000), balA)
	require.Equal(t, uint64(109_871), balB)

	r0, r1, err := f.router.GetReserves(ctx, pair)
	require.NoError(t, err)
	require.Equal(t, uint64(1_010_000), r0)
	require.Equal(t, uint64(1_000_000-9871), r1)
}

func TestSwapMultiHopRoutesThroughPools(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	path := []common.Address{tokA, tokB, tokC}
	first := crypto.PairAddress(factory, tokA, tokB)
	require.NoError(t, f.ledger.Approve(auth.WithSigners(ctx, trader), tokA, trader, first, 10_000, uint64(f.clock.Now().Add(time.Hour).Unix())))

	amounts, err := f.router.SwapExactTokensForTokens(auth.WithInvoker(ctx, trader), 10_000, 1, path, trader, 0)
	require.NoError(t, err)

	balC, _ := f.ledger.Balance(ctx, tokC, trader)
	require.Equal(t, 100_000+amounts[2], balC)
	// intermediate token never lands with the trader
	balB, _ := f.ledger.Balance(ctx, tokB, trader)
	require.Equal(t, uint64(100_000), balB)
}

type failingRouter struct{ Router }

func (failingRouter) GetAmountsOut(context.Context, common.Address, uint64, []common.Address) ([]uint64, error) {
	return nil, errors.New("rpc down")
}

func (failingRouter) SwapExactTokensForTokens(context.Context, uint64, uint64, []common.Address, common.Address, uint64) ([]uint64, error) {
	return []uint64{1}, nil
}

func TestAdapterWrapsFailures(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := NewAdapter(f.router, factory, nil)

	amounts, err := a.Quote(ctx, 10_000, []common.Address{tokA, tokB})
	require.NoError(t, err)
	require.Equal(t, uint64(9871), Last(amounts))

	_, err = a.Quote(ctx, 10_000, []common.Address{tokA})
	require.ErrorIs(t, err, core.ErrSwapFailed)
	_, err = a.Quote(ctx, 0, []common.Address{tokA, tokB})
	require.ErrorIs(t, err, core.ErrSwapFailed)
	require.Equal(t, "swap_failed", core.Code(err))

	_, err = a.LocatePair(ctx, tokA, tokC)
	require.ErrorIs(t, err, core.ErrSwapFailed)
	require.ErrorIs(t, err, ErrPairNotFound)

	bad := NewAdapter(failingRouter{}, factory, nil)
	_, err = bad.Quote(ctx, 1, []common.Address{tokA, tokB})
	require.ErrorIs(t, err, core.ErrSwapFailed)
	// a router that returns a short amounts array is rejected
	_, err = bad.ExactInputSwap(ctx, 1, 0, []common.Address{tokA, tokB}, trader, 0)
	require.ErrorIs(t, err, core.ErrSwapFailed)

	require.Equal(t, uint64(0), Last(nil))
}
