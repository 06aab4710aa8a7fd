// Package ledger is the asset ledger: per-token balances and expiring
// allowances, with every mutation authorization-checked.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
	"github.com/uhyunpark/hyperswap/pkg/auth"
	"github.com/uhyunpark/hyperswap/pkg/storage"
	"github.com/uhyunpark/hyperswap/pkg/util"
)

// ErrUnknownToken is returned for operations on unregistered tokens.
var ErrUnknownToken = fmt.Errorf("%w: unknown token", core.ErrInvalidAmount)

// Token is a registered fungible asset.
type Token struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
	// Issuer is the only account allowed to mint.
	Issuer common.Address `json:"issuer"`
}

// Allowance is a spender's remaining delegated amount. Expiry is Unix
// seconds; an allowance is worth nothing once the clock passes it.
type Allowance struct {
	Amount uint64 `json:"amount"`
	Expiry uint64 `json:"expiry"`
}

// Ledger stores balances under bal:{token}:{owner} and allowances under
// alw:{token}:{owner}:{spender}. All reads and writes go through the KV
// on the context so they join the caller's transaction.
type Ledger struct {
	store storage.KV
	auth  auth.Authorizer
	clock util.Clock
}

func New(store storage.KV, authorizer auth.Authorizer, clock util.Clock) *Ledger {
	return &Ledger{store: store, auth: authorizer, clock: clock}
}

func tokenKey(token common.Address) []byte {
	return storage.Key("tok", token.Hex())
}

func balanceKey(token, owner common.Address) []byte {
	return storage.Key("bal", token.Hex(), owner.Hex())
}

func allowanceKey(token, owner, spender common.Address) []byte {
	return storage.Key("alw", token.Hex(), owner.Hex(), spender.Hex())
}

// RegisterToken adds token metadata. Re-registering is rejected.
func (l *Ledger) RegisterToken(ctx context.Context, t Token) error {
	kv := storage.From(ctx, l.store)
	exists, err := kv.Has(tokenKey(t.Address))
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: token %s", core.ErrAlreadyInitialized, t.Address.Hex())
	}
	return storage.SetJSON(kv, tokenKey(t.Address), t)
}

func (l *Ledger) Token(ctx context.Context, token common.Address) (Token, error) {
	var t Token
	ok, err := storage.GetJSON(storage.From(ctx, l.store), tokenKey(token), &t)
	if err != nil {
		return Token{}, err
	}
	if !ok {
		return Token{}, fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}
	return t, nil
}

func (l *Ledger) Tokens(ctx context.Context) ([]Token, error) {
	var out []Token
	err := storage.From(ctx, l.store).Scan(storage.Prefix("tok"), func(_, v []byte) error {
		var t Token
		if err := json.Unmarshal(v, &t); err != nil {
			return storage.Error.Wrap(err)
		}
		out = append(out, t)
		return nil
	})
	return out, err
}

func (l *Ledger) Balance(ctx context.Context, token, owner common.Address) (uint64, error) {
	return storage.GetUint64(storage.From(ctx, l.store), balanceKey(token, owner))
}

// Allowance returns the unexpired amount spender may move from owner.
func (l *Ledger) Allowance(ctx context.Context, token, owner, spender common.Address) (uint64, error) {
	a, err := l.allowance(storage.From(ctx, l.store), token, owner, spender)
	if err != nil {
		return 0, err
	}
	if a.Expiry < l.now() {
		return 0, nil
	}
	return a.Amount, nil
}

func (l *Ledger) allowance(kv storage.KV, token, owner, spender common.Address) (Allowance, error) {
	var a Allowance
	if _, err := storage.GetJSON(kv, allowanceKey(token, owner, spender), &a); err != nil {
		return Allowance{}, err
	}
	return a, nil
}

// Approve replaces spender's allowance over owner's funds. Requires owner.
func (l *Ledger) Approve(ctx context.Context, token, owner, spender common.Address, amount, expiry uint64) error {
	if err := l.auth.RequireAuth(ctx, owner); err != nil {
		return err
	}
	if _, err := l.Token(ctx, token); err != nil {
		return err
	}
	if amount > 0 && expiry < l.now() {
		return fmt.Errorf("%w: allowance expiry %d is in the past", core.ErrInvalidAmount, expiry)
	}
	return storage.SetJSON(storage.From(ctx, l.store), allowanceKey(token, owner, spender), Allowance{Amount: amount, Expiry: expiry})
}

// Transfer moves amount of token from one account to another on behalf of
// spender. Requires spender; when spender is not the owner, the move is
// drawn from the owner's allowance. A zero amount is a no-op.
func (l *Ledger) Transfer(ctx context.Context, token, spender, from, to common.Address, amount uint64) error {
	if err := l.auth.RequireAuth(ctx, spender); err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	if _, err := l.Token(ctx, token); err != nil {
		return err
	}
	kv := storage.From(ctx, l.store)

	if spender != from {
		a, err := l.allowance(kv, token, from, spender)
		if err != nil {
			return err
		}
		if a.Expiry < l.now() || a.Amount < amount {
			return fmt.Errorf("%w: %s may move %d of %s, needs %d", core.ErrInsufficientAllowance, spender.Hex(), a.Amount, from.Hex(), amount)
		}
		a.Amount -= amount
		if err := storage.SetJSON(kv, allowanceKey(token, from, spender), a); err != nil {
			return err
		}
	}

	fromBal, err := storage.GetUint64(kv, balanceKey(token, from))
	if err != nil {
		return err
	}
	if fromBal < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", core.ErrInsufficientBalance, from.Hex(), fromBal, amount)
	}
	if err := storage.SetUint64(kv, balanceKey(token, from), fromBal-amount); err != nil {
		return err
	}
	return l.credit(kv, token, to, amount)
}

// Mint creates amount of token for to. Requires the token issuer.
func (l *Ledger) Mint(ctx context.Context, token, to common.Address, amount uint64) error {
	t, err := l.Token(ctx, token)
	if err != nil {
		return err
	}
	if err := l.auth.RequireAuth(ctx, t.Issuer); err != nil {
		return err
	}
	return l.credit(storage.From(ctx, l.store), token, to, amount)
}

func (l *Ledger) credit(kv storage.KV, token, to common.Address, amount uint64) error {
	bal, err := storage.GetUint64(kv, balanceKey(token, to))
	if err != nil {
		return err
	}
	next, err := core.Add(bal, amount)
	if err != nil {
		return err
	}
	return storage.SetUint64(kv, balanceKey(token, to), next)
}

func (l *Ledger) now() uint64 {
	return uint64(l.clock.Now().Unix())
}
