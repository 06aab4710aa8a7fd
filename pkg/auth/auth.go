// Package auth is the authorization capability: it answers whether the
// current operation carries proof of control over an account.
package auth

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
)

// Authorizer fails with core.ErrNotAuthorized unless the caller has proven
// control of identity for the current operation.
type Authorizer interface {
	RequireAuth(ctx context.Context, identity common.Address) error
}

type signersKey struct{}

// WithSigners records identities whose control has been proven, e.g. by
// a verified EIP-712 signature. Existing signers are kept.
func WithSigners(ctx context.Context, addrs ...common.Address) context.Context {
	prev := Signers(ctx)
	next := make([]common.Address, 0, len(prev)+len(addrs))
	next = append(next, prev...)
	next = append(next, addrs...)
	return context.WithValue(ctx, signersKey{}, next)
}

// Signers returns the proven identities carried by ctx.
func Signers(ctx context.Context) []common.Address {
	s, _ := ctx.Value(signersKey{}).([]common.Address)
	return s
}

// ContextAuthorizer checks identities against the signers on the context.
type ContextAuthorizer struct{}

func (ContextAuthorizer) RequireAuth(ctx context.Context, identity common.Address) error {
	for _, s := range Signers(ctx) {
		if s == identity {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", core.ErrNotAuthorized, identity.Hex())
}
