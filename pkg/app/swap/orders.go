package swap

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
	"github.com/uhyunpark/hyperswap/pkg/storage"
)

var keyOrderCount = storage.Key("cfg", "order_count")

func orderKey(id core.OrderID) []byte {
	return storage.Key("ord", storage.Seq(uint64(id)))
}

func makerKey(maker common.Address, id core.OrderID) []byte {
	return storage.Key("ordm", maker.Hex(), storage.Seq(uint64(id)))
}

// CreateOrder locks SendAmount of SendToken in custody, charges the
// protocol fee on it, and records an Active order under the next id.
func (a *App) CreateOrder(ctx context.Context, req CreateOrderRequest) (core.OrderID, error) {
	var id core.OrderID
	err := a.execute(ctx, "create_order", func(ctx context.Context, emit func(Event)) error {
		if err := a.gate.RequireNotPaused(ctx); err != nil {
			return err
		}
		rec, err := a.fees.Get(ctx)
		if err != nil {
			return err
		}
		if req.SendAmount == 0 || req.RecvAmount == 0 {
			return fmt.Errorf("%w: send %d, recv %d", core.ErrInvalidAmount, req.SendAmount, req.RecvAmount)
		}
		if req.MinRecvAmount > req.RecvAmount {
			return fmt.Errorf("%w: minimum %d exceeds receive amount %d", core.ErrInvalidAmount, req.MinRecvAmount, req.RecvAmount)
		}
		if req.SendToken == req.RecvToken {
			return core.ErrSameToken
		}
		if err := a.checkAllowed(ctx, req.SendToken, req.RecvToken); err != nil {
			return err
		}
		if err := a.auth.RequireAuth(ctx, req.Maker); err != nil {
			return err
		}

		fee, err := rec.Amount(req.SendAmount)
		if err != nil {
			return err
		}
		need, err := core.Add(req.SendAmount, fee)
		if err != nil {
			return err
		}
		if err := a.ensureFunds(ctx, req.SendToken, req.Maker, need); err != nil {
			return err
		}

		cctx := a.asCustody(ctx)
		if err := a.leg(cctx, "lock", req.SendToken, req.Maker, a.cfg.Custody, req.SendAmount); err != nil {
			return err
		}
		if err := a.leg(cctx, "fee", req.SendToken, req.Maker, rec.Recipient, fee); err != nil {
			return err
		}

		kv := storage.From(ctx, a.store)
		n, err := storage.GetUint64(kv, keyOrderCount)
		if err != nil {
			return err
		}
		if n > math.MaxUint32 {
			return fmt.Errorf("%w: order counter exhausted", core.ErrArithmeticOverflow)
		}
		now := a.clock.Now().UnixMilli()
		o := core.Order{
			ID:              core.OrderID(n),
			Maker:           req.Maker,
			SendToken:       req.SendToken,
			RecvToken:       req.RecvToken,
			SendAmount:      req.SendAmount,
			RecvAmount:      req.RecvAmount,
			MinOutputAmount: req.MinRecvAmount,
			Status:          core.OrderActive,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := o.Validate(); err != nil {
			return err
		}
		if err := putOrder(kv, &o); err != nil {
			return err
		}
		if err := kv.Set(makerKey(o.Maker, o.ID), nil); err != nil {
			return err
		}
		if err := storage.SetUint64(kv, keyOrderCount, n+1); err != nil {
			return err
		}
		id = o.ID
		emit(Event{Type: EventOrderCreated, Order: &o, Fee: fee})
		return nil
	})
	return id, err
}

// AcceptOrder fills Amount of an order's recv side. The taker pays the
// fee and Amount in the recv token and receives the proportional share
// of the locked send token.
func (a *App) AcceptOrder(ctx context.Context, req AcceptOrderRequest) (*FillResult, error) {
	var fill *FillResult
	err := a.execute(ctx, "accept_order", func(ctx context.Context, emit func(Event)) error {
		if err := a.gate.RequireNotPaused(ctx); err != nil {
			return err
		}
		kv := storage.From(ctx, a.store)
		o, err := getOrder(kv, req.OrderID)
		if err != nil {
			return err
		}
		rec, err := a.fees.Get(ctx)
		if err != nil {
			return err
		}
		if o.Status != core.OrderActive {
			return fmt.Errorf("%w: order %d is %s", core.ErrOrderNotActive, o.ID, o.Status)
		}
		if req.Amount == 0 {
			return fmt.Errorf("%w: zero fill", core.ErrInvalidAmount)
		}
		if req.Amount > o.RecvAmount {
			return fmt.Errorf("%w: %d > %d", core.ErrOverFill, req.Amount, o.RecvAmount)
		}
		if req.Amount < o.MinOutputAmount {
			return fmt.Errorf("%w: %d < %d", core.ErrBelowMinimum, req.Amount, o.MinOutputAmount)
		}
		if err := a.auth.RequireAuth(ctx, req.Taker); err != nil {
			return err
		}

		fee, err := rec.Amount(req.Amount)
		if err != nil {
			return err
		}
		need, err := core.Add(req.Amount, fee)
		if err != nil {
			return err
		}
		if err := a.ensureFunds(ctx, o.RecvToken, req.Taker, need); err != nil {
			return err
		}
		sendOut, err := o.FillOutput(req.Amount)
		if err != nil {
			return err
		}

		cctx := a.asCustody(ctx)
		if err := a.leg(cctx, "fee", o.RecvToken, req.Taker, rec.Recipient, fee); err != nil {
			return err
		}
		if err := a.leg(cctx, "pay maker", o.RecvToken, req.Taker, o.Maker, req.Amount); err != nil {
			return err
		}
		if err := a.leg(cctx, "release", o.SendToken, a.cfg.Custody, req.Taker, sendOut); err != nil {
			return err
		}

		if err := o.ApplyFill(req.Amount, sendOut); err != nil {
			return err
		}
		now := a.clock.Now().UnixMilli()
		o.UpdatedAt = now
		if err := putOrder(kv, o); err != nil {
			return err
		}
		fill = &FillResult{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			Maker:     o.Maker,
			Taker:     req.Taker,
			Amount:    req.Amount,
			SendOut:   sendOut,
			Fee:       fee,
			Order:     *o,
			Timestamp: now,
		}
		emit(Event{Type: EventOrderFilled, Order: o, Fill: fill})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fill, nil
}

// CancelOrder returns what is left in custody to the maker and closes
// the order. Makers can cancel while the engine is paused.
func (a *App) CancelOrder(ctx context.Context, maker common.Address, id core.OrderID) (*core.Order, error) {
	var out *core.Order
	err := a.execute(ctx, "cancel_order", func(ctx context.Context, emit func(Event)) error {
		kv := storage.From(ctx, a.store)
		o, err := getOrder(kv, id)
		if err != nil {
			return err
		}
		if o.Maker != maker {
			return fmt.Errorf("%w: order %d belongs to %s", core.ErrNotAuthorized, id, o.Maker.Hex())
		}
		if err := a.auth.RequireAuth(ctx, maker); err != nil {
			return err
		}
		if o.Status != core.OrderActive {
			return fmt.Errorf("%w: order %d is %s", core.ErrOrderNotActive, o.ID, o.Status)
		}
		if err := a.leg(a.asCustody(ctx), "refund", o.SendToken, a.cfg.Custody, o.Maker, o.SendAmount); err != nil {
			return err
		}
		o.Status = core.OrderCancelled
		o.UpdatedAt = a.clock.Now().UnixMilli()
		if err := putOrder(kv, o); err != nil {
			return err
		}
		out = o
		emit(Event{Type: EventOrderCancelled, Order: o})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *App) GetOrder(ctx context.Context, id core.OrderID) (*core.Order, error) {
	return getOrder(storage.From(ctx, a.store), id)
}

// OrderCount is the number of orders ever created; it is also the next id.
func (a *App) OrderCount(ctx context.Context) (uint64, error) {
	return storage.GetUint64(storage.From(ctx, a.store), keyOrderCount)
}

// Orders lists orders in id order, optionally filtered by status.
func (a *App) Orders(ctx context.Context, status ...core.OrderStatus) ([]*core.Order, error) {
	var out []*core.Order
	err := storage.From(ctx, a.store).Scan(storage.Prefix("ord"), func(_, v []byte) error {
		o, err := decodeOrder(v)
		if err != nil {
			return err
		}
		if matchStatus(o.Status, status) {
			out = append(out, o)
		}
		return nil
	})
	return out, err
}

func (a *App) ActiveOrders(ctx context.Context) ([]*core.Order, error) {
	return a.Orders(ctx, core.OrderActive)
}

func (a *App) OrdersByMaker(ctx context.Context, maker common.Address) ([]*core.Order, error) {
	kv := storage.From(ctx, a.store)
	prefix := storage.Prefix("ordm", maker.Hex())
	var ids []core.OrderID
	err := kv.Scan(prefix, func(k, _ []byte) error {
		n, err := strconv.ParseUint(string(k[len(prefix):]), 10, 32)
		if err != nil {
			return storage.Error.New("maker index %q: %v", k, err)
		}
		ids = append(ids, core.OrderID(n))
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]*core.Order, 0, len(ids))
	for _, id := range ids {
		o, err := getOrder(kv, id)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// OrderBalances returns account's balances of the two tokens of an order.
func (a *App) OrderBalances(ctx context.Context, account, sendToken, recvToken common.Address) (Balances, error) {
	send, err := a.assets.Balance(ctx, sendToken, account)
	if err != nil {
		return Balances{}, err
	}
	recv, err := a.assets.Balance(ctx, recvToken, account)
	if err != nil {
		return Balances{}, err
	}
	return Balances{Send: send, Recv: recv}, nil
}

func matchStatus(s core.OrderStatus, want []core.OrderStatus) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		if s == w {
			return true
		}
	}
	return false
}

func getOrder(kv storage.KV, id core.OrderID) (*core.Order, error) {
	var o core.Order
	ok, err := storage.GetJSON(kv, orderKey(id), &o)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", core.ErrOrderNotFound, id)
	}
	return &o, nil
}

func decodeOrder(v []byte) (*core.Order, error) {
	var o core.Order
	if err := json.Unmarshal(v, &o); err != nil {
		return nil, storage.Error.Wrap(err)
	}
	return &o, nil
}

func putOrder(kv storage.KV, o *core.Order) error {
	if err := storage.SetJSON(kv, orderKey(o.ID), o); err != nil {
		return err
	}
	return storage.Extend(kv, orderKey(o.ID))
}
