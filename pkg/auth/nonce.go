package auth

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
	"github.com/uhyunpark/hyperswap/pkg/storage"
)

type nonceKey struct{}

type pendingNonce struct {
	owner common.Address
	nonce uint64
}

// WithNonce attaches a signed request's nonce so the operation consumes
// it in the same transaction as its other writes.
func WithNonce(ctx context.Context, owner common.Address, nonce uint64) context.Context {
	return context.WithValue(ctx, nonceKey{}, pendingNonce{owner: owner, nonce: nonce})
}

// NonceTracker records consumed request nonces per account.
type NonceTracker struct {
	store storage.KV
}

func NewNonceTracker(store storage.KV) *NonceTracker {
	return &NonceTracker{store: store}
}

func nonceKeyFor(owner common.Address, nonce uint64) []byte {
	return storage.Key("nonce", owner.Hex(), strconv.FormatUint(nonce, 10))
}

// Consume marks the nonce on ctx as used. It is a no-op when ctx carries
// no nonce, and fails with core.ErrNotAuthorized on reuse.
func (n *NonceTracker) Consume(ctx context.Context) error {
	p, ok := ctx.Value(nonceKey{}).(pendingNonce)
	if !ok {
		return nil
	}
	kv := storage.From(ctx, n.store)
	key := nonceKeyFor(p.owner, p.nonce)
	used, err := kv.Has(key)
	if err != nil {
		return err
	}
	if used {
		return fmt.Errorf("%w: nonce %d already used by %s", core.ErrNotAuthorized, p.nonce, p.owner.Hex())
	}
	return kv.Set(key, []byte{1})
}

// Used reports whether owner has already consumed nonce.
func (n *NonceTracker) Used(ctx context.Context, owner common.Address, nonce uint64) (bool, error) {
	return storage.From(ctx, n.store).Has(nonceKeyFor(owner, nonce))
}
