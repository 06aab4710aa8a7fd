package swap

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hyperswap/pkg/amm"
	"github.com/uhyunpark/hyperswap/pkg/app/core"
	"github.com/uhyunpark/hyperswap/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperswap/pkg/auth"
	"github.com/uhyunpark/hyperswap/pkg/crypto"
	"github.com/uhyunpark/hyperswap/pkg/storage"
	"github.com/uhyunpark/hyperswap/pkg/util"
)

var (
	adminAddr    = common.HexToAddress("0xad")
	feeRecipient = common.HexToAddress("0xfee")
	maker        = common.HexToAddress("0x3a4e")
	taker        = common.HexToAddress("0x7a4e")
	customer     = common.HexToAddress("0xc057")
	issuer       = common.HexToAddress("0x15")
	lp           = common.HexToAddress("0x1b")
	factory      = common.HexToAddress("0xfac7")

	tokA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	tokB = common.HexToAddress("0x000000000000000000000000000000000000000b")
	tokC = common.HexToAddress("0x000000000000000000000000000000000000000c")
)

type fixture struct {
	app     *App
	ledger  *ledger.Ledger
	router  *amm.ConstantProduct
	store   *storage.PebbleStore
	clock   *util.ManualClock
	metrics *Metrics
	events  []Event
}

type option func(f *fixture, cfg *Config, d *Deps)

func withConfig(fn func(*Config)) option {
	return func(_ *fixture, cfg *Config, _ *Deps) { fn(cfg) }
}

// newFixture builds an engine over a fresh in-memory store with funded
// accounts and one A/B pool, but does not initialize it.
func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()
	s, err := storage.NewMemStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	f := &fixture{store: s, clock: util.NewManualClock(time.Unix(1_700_000_000, 0))}
	f.ledger = ledger.New(s, auth.ContextAuthorizer{}, f.clock)

	ctx := context.Background()
	mint := auth.WithSigners(ctx, issuer)
	for _, tok := range []common.Address{tokA, tokB, tokC} {
		require.NoError(t, f.ledger.RegisterToken(ctx, ledger.Token{Address: tok, Symbol: tok.Hex()[40:], Decimals: 6, Issuer: issuer}))
		require.NoError(t, f.ledger.Mint(mint, tok, lp, 10_000_000))
	}
	require.NoError(t, f.ledger.Mint(mint, tokA, maker, 10_000_000))
	require.NoError(t, f.ledger.Mint(mint, tokB, taker, 10_000_000))
	require.NoError(t, f.ledger.Mint(mint, tokA, customer, 1_000_000))

	f.router = amm.NewConstantProduct(s, f.ledger, factory, 30, f.clock)
	_, err = f.router.CreatePair(ctx, tokA, tokB)
	require.NoError(t, err)
	require.NoError(t, f.router.AddLiquidity(auth.WithSigners(ctx, lp), lp, tokA, tokB, 1_000_000, 1_000_000))

	f.metrics = NewMetrics(prometheus.NewRegistry())
	cfg := DefaultConfig(crypto.CustodyAddress(crypto.DefaultDomain()))
	d := Deps{
		Store:   s,
		Assets:  f.ledger,
		AMM:     amm.NewAdapter(f.router, factory, nil),
		Clock:   f.clock,
		Metrics: f.metrics,
	}
	for _, o := range opts {
		o(f, &cfg, &d)
	}
	f.app = New(cfg, d)
	f.app.OnEvent = func(ev Event) { f.events = append(f.events, ev) }
	return f
}

// setup is newFixture plus the standard initialization: 0.3% fee.
func setup(t *testing.T, opts ...option) *fixture {
	t.Helper()
	f := newFixture(t, opts...)
	require.NoError(t, f.app.Initialize(as(adminAddr), InitParams{
		Admin:        adminAddr,
		FeeRate:      30,
		FeeRecipient: feeRecipient,
	}))
	return f
}

func as(addrs ...common.Address) context.Context {
	return auth.WithSigners(context.Background(), addrs...)
}

func (f *fixture) balance(t *testing.T, token, owner common.Address) uint64 {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), token, owner)
	require.NoError(t, err)
	return b
}

func (f *fixture) eventTypes() []EventType {
	var out []EventType
	for _, ev := range f.events {
		out = append(out, ev.Type)
	}
	return out
}

func TestInitialize(t *testing.T) {
	f := newFixture(t)

	err := f.app.Initialize(as(maker), InitParams{Admin: adminAddr})
	require.ErrorIs(t, err, core.ErrNotAuthorized)

	_, err = f.app.Fee(context.Background())
	require.ErrorIs(t, err, core.ErrNotInitialized)

	require.NoError(t, f.app.Initialize(as(adminAddr), InitParams{
		Admin:        adminAddr,
		FeeRate:      30,
		FeeRecipient: feeRecipient,
		SlippageBps:  75,
	}))
	err = f.app.Initialize(as(adminAddr), InitParams{Admin: adminAddr})
	require.ErrorIs(t, err, core.ErrAlreadyInitialized)

	rec, err := f.app.Fee(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(30), rec.Rate)
	require.Equal(t, feeRecipient, rec.Recipient)

	bps, err := f.app.SlippageTolerance(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(75), bps)

	require.Equal(t, []EventType{EventInitialized}, f.eventTypes())
	require.NotEmpty(t, f.events[0].ID)
}

func TestInitializeRollsBackOnBadFee(t *testing.T) {
	f := newFixture(t)
	err := f.app.Initialize(as(adminAddr), InitParams{Admin: adminAddr, FeeRate: 10_000, FeeRecipient: feeRecipient})
	require.ErrorIs(t, err, core.ErrInvalidFeeRate)

	// the admin write was rolled back with the fee
	_, err = f.app.Gate().Admin(context.Background())
	require.ErrorIs(t, err, core.ErrNotInitialized)
	require.Empty(t, f.events)
}

func TestAdminOperations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.ErrorIs(t, f.app.SetFee(as(maker), 50, feeRecipient), core.ErrNotAuthorized)
	require.ErrorIs(t, f.app.SetFee(as(adminAddr), 10_000, feeRecipient), core.ErrInvalidFeeRate)
	require.NoError(t, f.app.SetFee(as(adminAddr), 50, maker))
	rec, err := f.app.Fee(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(50), rec.Rate)
	require.Equal(t, maker, rec.Recipient)

	require.ErrorIs(t, f.app.SetSlippage(as(adminAddr), 5001), core.ErrInvalidAmount)
	require.NoError(t, f.app.SetSlippage(as(adminAddr), 5000))

	require.NoError(t, f.app.SetPaused(as(adminAddr), true))
	paused, err := f.app.Paused(ctx)
	require.NoError(t, err)
	require.True(t, paused)

	require.NoError(t, f.app.SetAdmin(as(adminAddr), maker))
	require.ErrorIs(t, f.app.SetPaused(as(adminAddr), false), core.ErrNotAuthorized)
	require.NoError(t, f.app.SetPaused(as(maker), false))

	var changes []string
	for _, ev := range f.events {
		if ev.Type == EventConfigChanged {
			changes = append(changes, ev.Change.Key)
		}
	}
	require.Equal(t, []string{"fee", "slippage_bps", "paused", "admin", "paused"}, changes)
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Operations.WithLabelValues("set_fee", "ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Operations.WithLabelValues("set_fee", "not_authorized")))
}

func TestNonceConsumedWithOperation(t *testing.T) {
	f := setup(t)
	ctx := auth.WithNonce(as(maker), maker, 7)
	req := CreateOrderRequest{Maker: maker, SendToken: tokA, RecvToken: tokB, SendAmount: 1000, RecvAmount: 100}

	// a rejected operation leaves the nonce unused
	bad := req
	bad.SendAmount = 0
	_, err := f.app.CreateOrder(ctx, bad)
	require.ErrorIs(t, err, core.ErrInvalidAmount)
	used, err := f.app.Nonces().Used(context.Background(), maker, 7)
	require.NoError(t, err)
	require.False(t, used)

	_, err = f.app.CreateOrder(ctx, req)
	require.NoError(t, err)
	_, err = f.app.CreateOrder(ctx, req)
	require.ErrorIs(t, err, core.ErrNotAuthorized)

	n, err := f.app.OrderCount(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)
}
