package auth

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
	"github.com/uhyunpark/hyperswap/pkg/storage"
)

var (
	alice = common.HexToAddress("0xa11ce")
	bob   = common.HexToAddress("0xb0b")
)

func TestContextAuthorizer(t *testing.T) {
	var a ContextAuthorizer
	ctx := context.Background()

	require.ErrorIs(t, a.RequireAuth(ctx, alice), core.ErrNotAuthorized)

	ctx = WithSigners(ctx, alice)
	require.NoError(t, a.RequireAuth(ctx, alice))
	require.ErrorIs(t, a.RequireAuth(ctx, bob), core.ErrNotAuthorized)

	both := WithSigners(ctx, bob)
	require.NoError(t, a.RequireAuth(both, alice))
	require.NoError(t, a.RequireAuth(both, bob))
	// parent context is unchanged
	require.Len(t, Signers(ctx), 1)
}

func TestNonceTracker(t *testing.T) {
	s, err := storage.NewMemStore()
	require.NoError(t, err)
	defer s.Close()
	n := NewNonceTracker(s)

	require.NoError(t, n.Consume(context.Background()))

	ctx := WithNonce(context.Background(), alice, 1)
	require.NoError(t, n.Consume(ctx))
	require.ErrorIs(t, n.Consume(ctx), core.ErrNotAuthorized)

	used, err := n.Used(context.Background(), alice, 1)
	require.NoError(t, err)
	require.True(t, used)

	// same nonce, different account
	require.NoError(t, n.Consume(WithNonce(context.Background(), bob, 1)))
}

func TestNonceRollsBackWithTransaction(t *testing.T) {
	s, err := storage.NewMemStore()
	require.NoError(t, err)
	defer s.Close()
	n := NewNonceTracker(s)

	txn := s.Begin()
	ctx := storage.WithKV(WithNonce(context.Background(), alice, 9), txn)
	require.NoError(t, n.Consume(ctx))
	txn.Discard()

	used, err := n.Used(context.Background(), alice, 9)
	require.NoError(t, err)
	require.False(t, used)
}
