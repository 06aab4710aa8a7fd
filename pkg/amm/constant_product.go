package amm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
	"github.com/uhyunpark/hyperswap/pkg/auth"
	"github.com/uhyunpark/hyperswap/pkg/crypto"
	"github.com/uhyunpark/hyperswap/pkg/storage"
	"github.com/uhyunpark/hyperswap/pkg/util"
)

var (
	ErrInvalidPath              = errors.New("amm: invalid path")
	ErrPairNotFound             = errors.New("amm: pair not found")
	ErrPairExists               = errors.New("amm: pair exists")
	ErrUnknownRegistry          = errors.New("amm: unknown pool registry")
	ErrInsufficientInputAmount  = errors.New("amm: insufficient input amount")
	ErrInsufficientLiquidity    = errors.New("amm: insufficient liquidity")
	ErrInsufficientOutputAmount = errors.New("amm: insufficient output amount")
	ErrExpired                  = errors.New("amm: deadline expired")
	ErrNoInvoker                = errors.New("amm: no invoking account")
)

const bpsScale = 10_000

// AssetLedger is the part of the asset ledger pools settle through.
type AssetLedger interface {
	Balance(ctx context.Context, token, owner common.Address) (uint64, error)
	Transfer(ctx context.Context, token, spender, from, to common.Address, amount uint64) error
}

// Pool is a registered token pair. Its reserves are simply the pool
// account's ledger balances of Token0 and Token1.
type Pool struct {
	Address common.Address `json:"address"`
	Token0  common.Address `json:"token0"`
	Token1  common.Address `json:"token1"`
}

// ConstantProduct is an x·y=k router over ledger-held reserves. Pool
// addresses are derived from the factory and the sorted token pair.
type ConstantProduct struct {
	store   storage.KV
	ledger  AssetLedger
	factory common.Address
	feeBps  uint32
	clock   util.Clock
}

func NewConstantProduct(store storage.KV, ledger AssetLedger, factory common.Address, feeBps uint32, clock util.Clock) *ConstantProduct {
	return &ConstantProduct{store: store, ledger: ledger, factory: factory, feeBps: feeBps, clock: clock}
}

func poolKey(pair common.Address) []byte {
	return storage.Key("pool", pair.Hex())
}

func (c *ConstantProduct) CreatePair(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	if tokenA == tokenB {
		return common.Address{}, ErrInvalidPath
	}
	t0, t1 := crypto.SortTokens(tokenA, tokenB)
	p := Pool{Address: crypto.PairAddress(c.factory, t0, t1), Token0: t0, Token1: t1}

	kv := storage.From(ctx, c.store)
	exists, err := kv.Has(poolKey(p.Address))
	if err != nil {
		return common.Address{}, err
	}
	if exists {
		return common.Address{}, fmt.Errorf("%w: %s", ErrPairExists, p.Address.Hex())
	}
	if err := storage.SetJSON(kv, poolKey(p.Address), p); err != nil {
		return common.Address{}, err
	}
	return p.Address, nil
}

func (c *ConstantProduct) Pool(ctx context.Context, pair common.Address) (Pool, error) {
	var p Pool
	ok, err := storage.GetJSON(storage.From(ctx, c.store), poolKey(pair), &p)
	if err != nil {
		return Pool{}, err
	}
	if !ok {
		return Pool{}, fmt.Errorf("%w: %s", ErrPairNotFound, pair.Hex())
	}
	return p, nil
}

func (c *ConstantProduct) Pools(ctx context.Context) ([]Pool, error) {
	var out []Pool
	err := storage.From(ctx, c.store).Scan(storage.Prefix("pool"), func(_, v []byte) error {
		var p Pool
		if err := json.Unmarshal(v, &p); err != nil {
			return storage.Error.Wrap(err)
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

// AddLiquidity moves provider funds into the pool. The provider must
// have authorized ctx.
func (c *ConstantProduct) AddLiquidity(ctx context.Context, provider, tokenA, tokenB common.Address, amountA, amountB uint64) error {
	pair, err := c.RouterPairFor(ctx, tokenA, tokenB)
	if err != nil {
		return err
	}
	if err := c.ledger.Transfer(ctx, tokenA, provider, provider, pair, amountA); err != nil {
		return err
	}
	return c.ledger.Transfer(ctx, tokenB, provider, provider, pair, amountB)
}

func (c *ConstantProduct) RouterPairFor(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	if tokenA == tokenB {
		return common.Address{}, ErrInvalidPath
	}
	pair := crypto.PairAddress(c.factory, tokenA, tokenB)
	if _, err := c.Pool(ctx, pair); err != nil {
		return common.Address{}, err
	}
	return pair, nil
}

func (c *ConstantProduct) GetReserves(ctx context.Context, pair common.Address) (uint64, uint64, error) {
	p, err := c.Pool(ctx, pair)
	if err != nil {
		return 0, 0, err
	}
	r0, err := c.ledger.Balance(ctx, p.Token0, pair)
	if err != nil {
		return 0, 0, err
	}
	r1, err := c.ledger.Balance(ctx, p.Token1, pair)
	if err != nil {
		return 0, 0, err
	}
	return r0, r1, nil
}

// reservesFor returns the pool reserves oriented as (in, out).
func (c *ConstantProduct) reservesFor(ctx context.Context, tokenIn, tokenOut common.Address) (common.Address, uint64, uint64, error) {
	pair, err := c.RouterPairFor(ctx, tokenIn, tokenOut)
	if err != nil {
		return common.Address{}, 0, 0, err
	}
	r0, r1, err := c.GetReserves(ctx, pair)
	if err != nil {
		return common.Address{}, 0, 0, err
	}
	t0, _ := crypto.SortTokens(tokenIn, tokenOut)
	if tokenIn == t0 {
		return pair, r0, r1, nil
	}
	return pair, r1, r0, nil
}

// GetAmountOut prices one hop:
// out = in·(10000−fee)·Rout / (Rin·10000 + in·(10000−fee))
func GetAmountOut(amountIn, reserveIn, reserveOut uint64, feeBps uint32) (uint64, error) {
	if amountIn == 0 {
		return 0, ErrInsufficientInputAmount
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, ErrInsufficientLiquidity
	}
	if feeBps >= bpsScale {
		return 0, fmt.Errorf("%w: pool fee %d bps", core.ErrInvalidFeeRate, feeBps)
	}
	inWithFee := new(big.Int).Mul(new(big.Int).SetUint64(amountIn), big.NewInt(int64(bpsScale-feeBps)))
	num := new(big.Int).Mul(inWithFee, new(big.Int).SetUint64(reserveOut))
	den := new(big.Int).Mul(new(big.Int).SetUint64(reserveIn), big.NewInt(bpsScale))
	den.Add(den, inWithFee)
	out := num.Quo(num, den)
	// out < reserveOut always, so it fits
	return out.Uint64(), nil
}

func (c *ConstantProduct) GetAmountsOut(ctx context.Context, registry common.Address, amountIn uint64, path []common.Address) ([]uint64, error) {
	if registry != c.factory {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRegistry, registry.Hex())
	}
	if len(path) < 2 {
		return nil, ErrInvalidPath
	}
	amounts := make([]uint64, len(path))
	amounts[0] = amountIn
	for i := 0; i < len(path)-1; i++ {
		_, rIn, rOut, err := c.reservesFor(ctx, path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		out, err := GetAmountOut(amounts[i], rIn, rOut, c.feeBps)
		if err != nil {
			return nil, err
		}
		amounts[i+1] = out
	}
	return amounts, nil
}

func (c *ConstantProduct) SwapExactTokensForTokens(ctx context.Context, amountIn, amountOutMin uint64, path []common.Address, to common.Address, deadline uint64) ([]uint64, error) {
	if deadline != 0 && uint64(c.clock.Now().Unix()) > deadline {
		return nil, ErrExpired
	}
	invoker, ok := auth.Invoker(ctx)
	if !ok {
		return nil, ErrNoInvoker
	}
	amounts, err := c.GetAmountsOut(ctx, c.factory, amountIn, path)
	if err != nil {
		return nil, err
	}
	if amounts[len(amounts)-1] < amountOutMin {
		return nil, fmt.Errorf("%w: got %d, min %d", ErrInsufficientOutputAmount, amounts[len(amounts)-1], amountOutMin)
	}

	// the first pool draws the input through the allowance the invoker
	// granted it
	first := crypto.PairAddress(c.factory, path[0], path[1])
	if err := c.ledger.Transfer(auth.WithSigners(ctx, first), path[0], first, invoker, first, amountIn); err != nil {
		return nil, err
	}
	for i := 0; i < len(path)-1; i++ {
		pair := crypto.PairAddress(c.factory, path[i], path[i+1])
		dest := to
		if i < len(path)-2 {
			dest = crypto.PairAddress(c.factory, path[i+1], path[i+2])
		}
		if err := c.ledger.Transfer(auth.WithSigners(ctx, pair), path[i+1], pair, pair, dest, amounts[i+1]); err != nil {
			return nil, err
		}
	}
	return amounts, nil
}

var _ Router = (*ConstantProduct)(nil)
