// Package swap is the order book and settlement engine. Makers lock a rate
// by moving funds into custody, takers fill against it in whole or in part,
// and direct swaps fall back to the AMM.
package swap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
	"github.com/uhyunpark/hyperswap/pkg/app/core/admin"
	"github.com/uhyunpark/hyperswap/pkg/app/core/fee"
	"github.com/uhyunpark/hyperswap/pkg/app/core/slippage"
	"github.com/uhyunpark/hyperswap/pkg/auth"
	"github.com/uhyunpark/hyperswap/pkg/storage"
	"github.com/uhyunpark/hyperswap/pkg/util"
)

// Store is a KV that can open per-operation transactions.
type Store interface {
	storage.KV
	Begin() *storage.Txn
}

// AssetLedger moves and delegates fungible balances.
type AssetLedger interface {
	Balance(ctx context.Context, token, owner common.Address) (uint64, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (uint64, error)
	Approve(ctx context.Context, token, owner, spender common.Address, amount, expiry uint64) error
	Transfer(ctx context.Context, token, spender, from, to common.Address, amount uint64) error
}

// Quoter prices a path without side effects.
type Quoter interface {
	Quote(ctx context.Context, amountIn uint64, path []common.Address) ([]uint64, error)
	LocatePair(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error)
	// Reserves returns a pool's reserves ordered by sorted token address.
	Reserves(ctx context.Context, pair common.Address) (uint64, uint64, error)
}

// Swapper executes an exact-input swap, pulling the input from the
// invoker on ctx.
type Swapper interface {
	ExactInputSwap(ctx context.Context, amountIn, minAmountOut uint64, path []common.Address, recipient common.Address, deadline uint64) ([]uint64, error)
}

type AMM interface {
	Quoter
	Swapper
}

type Config struct {
	// Custody holds maker funds and routes swaps. Nobody has its key; the
	// engine signs for it.
	Custody common.Address
	// AllowanceTTL bounds allowances the engine grants or extends.
	AllowanceTTL time.Duration
	// AutoApprove lets the engine extend a signer's allowance to custody
	// when it falls short, instead of failing with InsufficientAllowance.
	AutoApprove bool
	// RequireAllowedTokens enforces the admin token allowlist on new
	// orders and swaps.
	RequireAllowedTokens bool
}

func DefaultConfig(custody common.Address) Config {
	return Config{Custody: custody, AllowanceTTL: 24 * time.Hour, AutoApprove: true}
}

type Deps struct {
	Store      Store
	Assets     AssetLedger
	AMM        AMM
	Authorizer auth.Authorizer
	Clock      util.Clock
	Logger     *zap.SugaredLogger
	Metrics    *Metrics
}

type App struct {
	cfg     Config
	store   Store
	assets  AssetLedger
	amm     AMM
	auth    auth.Authorizer
	gate    *admin.Gate
	fees    *fee.Ledger
	slip    *slippage.Policy
	nonces  *auth.NonceTracker
	clock   util.Clock
	log     *zap.SugaredLogger
	metrics *Metrics

	mu    sync.Mutex // serializes operations
	pubMu sync.Mutex // keeps event delivery in commit order

	// OnEvent receives every event after its operation commits.
	OnEvent func(Event)
}

func New(cfg Config, d Deps) *App {
	if d.Authorizer == nil {
		d.Authorizer = auth.ContextAuthorizer{}
	}
	if d.Clock == nil {
		d.Clock = util.RealClock{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop().Sugar()
	}
	gate := admin.NewGate(d.Store, d.Authorizer)
	return &App{
		cfg:     cfg,
		store:   d.Store,
		assets:  d.Assets,
		amm:     d.AMM,
		auth:    d.Authorizer,
		gate:    gate,
		fees:    fee.NewLedger(d.Store, gate),
		slip:    slippage.NewPolicy(d.Store, gate),
		nonces:  auth.NewNonceTracker(d.Store),
		clock:   d.Clock,
		log:     d.Logger,
		metrics: d.Metrics,
	}
}

func (a *App) Custody() common.Address    { return a.cfg.Custody }
func (a *App) Gate() *admin.Gate          { return a.gate }
func (a *App) Nonces() *auth.NonceTracker { return a.nonces }

func (a *App) Fee(ctx context.Context) (fee.Record, error) {
	return a.fees.Get(ctx)
}

// SlippageTolerance returns the configured tolerance in bps, or the default.
func (a *App) SlippageTolerance(ctx context.Context) (uint32, error) {
	return a.slip.Get(ctx)
}

// execute runs fn as one unit of work: serialized, inside a single
// transaction that commits only if fn succeeds. Events emitted by fn are
// delivered after the commit.
func (a *App) execute(ctx context.Context, op string, fn func(ctx context.Context, emit func(Event)) error) error {
	start := time.Now()
	var events []Event
	emit := func(ev Event) { events = append(events, ev) }

	a.mu.Lock()
	txn := a.store.Begin()
	tctx := storage.WithKV(ctx, txn)
	err := a.nonces.Consume(tctx)
	if err == nil {
		err = fn(tctx, emit)
	}
	if err == nil {
		err = txn.Commit()
	} else {
		txn.Discard()
	}
	a.pubMu.Lock()
	a.mu.Unlock()
	defer a.pubMu.Unlock()

	result := "ok"
	if err != nil {
		result = core.Code(err)
	}
	a.metrics.ObserveOperation(op, result, time.Since(start))
	if err != nil {
		a.log.Debugw("operation_rejected", "op", op, "code", result, "err", err)
		return err
	}
	for _, ev := range events {
		a.publish(ev)
	}
	return nil
}

func (a *App) publish(ev Event) {
	ev.ID = uuid.NewString()
	ev.Timestamp = a.clock.Now().UnixMilli()

	switch ev.Type {
	case EventOrderCreated:
		a.metrics.AddActiveOrders(1)
		a.metrics.ObserveFee(ev.Order.SendToken.Hex(), ev.Fee)
		a.log.Infow("order_created", "id", ev.Order.ID, "maker", ev.Order.Maker.Hex(),
			"send", ev.Order.SendAmount, "recv", ev.Order.RecvAmount, "fee", ev.Fee)
	case EventOrderFilled:
		if ev.Fill.Order.Status == core.OrderComplete {
			a.metrics.AddActiveOrders(-1)
		}
		a.metrics.ObserveSettlement(ev.Fill.Order.SendToken.Hex(), ev.Fill.SendOut)
		a.metrics.ObserveSettlement(ev.Fill.Order.RecvToken.Hex(), ev.Fill.Amount)
		a.metrics.ObserveFee(ev.Fill.Order.RecvToken.Hex(), ev.Fill.Fee)
		a.log.Infow("order_filled", "id", ev.Fill.OrderID, "taker", ev.Fill.Taker.Hex(),
			"amount", ev.Fill.Amount, "send_out", ev.Fill.SendOut, "fee", ev.Fill.Fee, "status", ev.Fill.Order.Status.String())
	case EventOrderCancelled:
		a.metrics.AddActiveOrders(-1)
		a.log.Infow("order_cancelled", "id", ev.Order.ID, "refund", ev.Order.SendAmount)
	case EventSwapCompleted:
		a.metrics.ObserveSettlement(ev.Swap.TokenOut.Hex(), ev.Swap.AmountOut)
		a.log.Infow("swap_completed", "customer", ev.Swap.Customer.Hex(), "pair", ev.Swap.Pair.Hex(),
			"amount_in", ev.Swap.AmountIn, "amount_out", ev.Swap.AmountOut, "min_out", ev.Swap.MinOut)
	default:
		a.log.Infow(string(ev.Type), "key", ev.Change.Key, "value", ev.Change.Value, "by", ev.Change.By.Hex())
	}

	if a.OnEvent != nil {
		a.OnEvent(ev)
	}
}

// SyncMetrics resets gauges from stored state. Call once at startup.
func (a *App) SyncMetrics(ctx context.Context) error {
	active, err := a.ActiveOrders(ctx)
	if err != nil {
		return err
	}
	a.metrics.SetActiveOrders(len(active))
	return nil
}

// asCustody returns ctx with the engine acting for its custody account.
func (a *App) asCustody(ctx context.Context) context.Context {
	return auth.WithSigners(ctx, a.cfg.Custody)
}

func (a *App) expiry() uint64 {
	return uint64(a.clock.Now().Add(a.cfg.AllowanceTTL).Unix())
}

// ensureFunds checks owner can cover need of token through custody,
// extending the allowance when AutoApprove is on. Requires owner on ctx.
func (a *App) ensureFunds(ctx context.Context, token, owner common.Address, need uint64) error {
	bal, err := a.assets.Balance(ctx, token, owner)
	if err != nil {
		return err
	}
	if bal < need {
		return fmt.Errorf("%w: %s holds %d of %s, needs %d", core.ErrInsufficientBalance, owner.Hex(), bal, token.Hex(), need)
	}
	allowed, err := a.assets.Allowance(ctx, token, owner, a.cfg.Custody)
	if err != nil {
		return err
	}
	if allowed >= need {
		return nil
	}
	if !a.cfg.AutoApprove {
		return fmt.Errorf("%w: custody may move %d of %s, needs %d", core.ErrInsufficientAllowance, allowed, owner.Hex(), need)
	}
	return a.assets.Approve(ctx, token, owner, a.cfg.Custody, need, a.expiry())
}

// leg moves amount with custody as the spender. ctx must carry custody.
func (a *App) leg(ctx context.Context, name string, token, from, to common.Address, amount uint64) error {
	if err := a.assets.Transfer(ctx, token, a.cfg.Custody, from, to, amount); err != nil {
		return fmt.Errorf("%w: %s: %w", core.ErrTransferFailed, name, err)
	}
	return nil
}

func (a *App) checkAllowed(ctx context.Context, tokens ...common.Address) error {
	if !a.cfg.RequireAllowedTokens {
		return nil
	}
	for _, t := range tokens {
		ok, err := a.gate.TokenAllowed(ctx, t)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", core.ErrTokenNotAllowed, t.Hex())
		}
	}
	return nil
}
