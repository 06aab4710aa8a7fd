package auth

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

type invokerKey struct{}

// WithInvoker records which account is calling into an external
// collaborator (the AMM pulls funds from it).
func WithInvoker(ctx context.Context, addr common.Address) context.Context {
	return context.WithValue(ctx, invokerKey{}, addr)
}

func Invoker(ctx context.Context) (common.Address, bool) {
	addr, ok := ctx.Value(invokerKey{}).(common.Address)
	return addr, ok
}
