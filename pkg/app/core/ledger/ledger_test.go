package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
	"github.com/uhyunpark/hyperswap/pkg/auth"
	"github.com/uhyunpark/hyperswap/pkg/storage"
	"github.com/uhyunpark/hyperswap/pkg/util"
)

var (
	usdc   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	issuer = common.HexToAddress("0x15")
	alice  = common.HexToAddress("0xa11ce")
	bob    = common.HexToAddress("0xb0b")
	carol  = common.HexToAddress("0xca201")
)

func setup(t *testing.T) (*Ledger, *storage.PebbleStore, *util.ManualClock) {
	t.Helper()
	s, err := storage.NewMemStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clock := util.NewManualClock(time.Unix(1_700_000_000, 0))
	l := New(s, auth.ContextAuthorizer{}, clock)

	ctx := context.Background()
	require.NoError(t, l.RegisterToken(ctx, Token{Address: usdc, Symbol: "USDC", Decimals: 7, Issuer: issuer}))
	require.NoError(t, l.Mint(auth.WithSigners(ctx, issuer), usdc, alice, 1_000))
	return l, s, clock
}

func TestRegisterAndMint(t *testing.T) {
	l, _, _ := setup(t)
	ctx := context.Background()

	err := l.RegisterToken(ctx, Token{Address: usdc, Symbol: "USDC"})
	require.ErrorIs(t, err, core.ErrAlreadyInitialized)

	tokens, err := l.Tokens(ctx)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.Equal(t, "USDC", tokens[0].Symbol)

	require.ErrorIs(t, l.Mint(auth.WithSigners(ctx, alice), usdc, alice, 1), core.ErrNotAuthorized)

	_, err = l.Token(ctx, common.HexToAddress("0xdead"))
	require.ErrorIs(t, err, ErrUnknownToken)
}

func TestTransferOwnFunds(t *testing.T) {
	l, _, _ := setup(t)
	ctx := auth.WithSigners(context.Background(), alice)

	require.NoError(t, l.Transfer(ctx, usdc, alice, alice, bob, 400))
	bal, _ := l.Balance(ctx, usdc, alice)
	require.EqualValues(t, 600, bal)
	bal, _ = l.Balance(ctx, usdc, bob)
	require.EqualValues(t, 400, bal)

	err := l.Transfer(ctx, usdc, alice, alice, bob, 601)
	require.ErrorIs(t, err, core.ErrInsufficientBalance)

	// bob has not signed
	err = l.Transfer(ctx, usdc, bob, bob, alice, 1)
	require.ErrorIs(t, err, core.ErrNotAuthorized)

	// zero is a no-op even for unknown tokens
	require.NoError(t, l.Transfer(ctx, common.HexToAddress("0xdead"), alice, alice, bob, 0))
}

func TestDelegatedTransferConsumesAllowance(t *testing.T) {
	l, _, clock := setup(t)
	owner := auth.WithSigners(context.Background(), alice)
	expiry := uint64(clock.Now().Add(time.Hour).Unix())

	require.NoError(t, l.Approve(owner, usdc, alice, carol, 300, expiry))
	got, err := l.Allowance(owner, usdc, alice, carol)
	require.NoError(t, err)
	require.EqualValues(t, 300, got)

	spender := auth.WithSigners(context.Background(), carol)
	require.NoError(t, l.Transfer(spender, usdc, carol, alice, bob, 200))
	got, _ = l.Allowance(spender, usdc, alice, carol)
	require.EqualValues(t, 100, got)

	err = l.Transfer(spender, usdc, carol, alice, bob, 101)
	require.ErrorIs(t, err, core.ErrInsufficientAllowance)

	clock.Advance(2 * time.Hour)
	got, _ = l.Allowance(spender, usdc, alice, carol)
	require.Zero(t, got)
	err = l.Transfer(spender, usdc, carol, alice, bob, 1)
	require.ErrorIs(t, err, core.ErrInsufficientAllowance)
}

func TestApproveRequiresOwner(t *testing.T) {
	l, _, clock := setup(t)
	expiry := uint64(clock.Now().Add(time.Hour).Unix())

	err := l.Approve(auth.WithSigners(context.Background(), carol), usdc, alice, carol, 10, expiry)
	require.ErrorIs(t, err, core.ErrNotAuthorized)

	err = l.Approve(auth.WithSigners(context.Background(), alice), usdc, alice, carol, 10, 1)
	require.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestLedgerJoinsTransaction(t *testing.T) {
	l, s, _ := setup(t)

	txn := s.Begin()
	ctx := storage.WithKV(auth.WithSigners(context.Background(), alice), txn)
	require.NoError(t, l.Transfer(ctx, usdc, alice, alice, bob, 500))
	bal, _ := l.Balance(ctx, usdc, bob)
	require.EqualValues(t, 500, bal)
	txn.Discard()

	bal, _ = l.Balance(context.Background(), usdc, bob)
	require.Zero(t, bal)
	bal, _ = l.Balance(context.Background(), usdc, alice)
	require.EqualValues(t, 1_000, bal)
}
