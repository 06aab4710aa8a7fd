package api

import (
	"context"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
	"github.com/uhyunpark/hyperswap/pkg/app/swap"
	"github.com/uhyunpark/hyperswap/pkg/history"
)

// rateDigits bounds the fractional digits of an order's display rate.
const rateDigits = 8

func units(v uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), -int32(decimals))
}

// FormatUnits renders base units as a decimal amount: 1500000 with 6
// decimals is "1.5".
func FormatUnits(v uint64, decimals uint8) string {
	return units(v, decimals).String()
}

// FormatBps renders basis points as a percentage: 30 is "0.3%".
func FormatBps(bps uint32) string {
	return decimal.New(int64(bps), -2).String() + "%"
}

func amount(v uint64) string { return strconv.FormatUint(v, 10) }

// decimalsOf falls back to 0 for unknown tokens so formatting never fails.
func (s *Server) decimalsOf(ctx context.Context, token common.Address) uint8 {
	t, err := s.tokens.Token(ctx, token)
	if err != nil {
		return 0
	}
	return t.Decimals
}

func (s *Server) orderInfo(ctx context.Context, o *core.Order) OrderInfo {
	sendDec := s.decimalsOf(ctx, o.SendToken)
	recvDec := s.decimalsOf(ctx, o.RecvToken)

	rate := ""
	if o.SendAmount > 0 {
		rate = units(o.RecvAmount, recvDec).
			DivRound(units(o.SendAmount, sendDec), rateDigits).String()
	}
	return OrderInfo{
		ID:                   uint32(o.ID),
		Maker:                o.Maker.Hex(),
		SendToken:            o.SendToken.Hex(),
		RecvToken:            o.RecvToken.Hex(),
		SendAmount:           amount(o.SendAmount),
		RecvAmount:           amount(o.RecvAmount),
		MinRecvAmount:        amount(o.MinOutputAmount),
		SendAmountDisplay:    FormatUnits(o.SendAmount, sendDec),
		RecvAmountDisplay:    FormatUnits(o.RecvAmount, recvDec),
		MinRecvAmountDisplay: FormatUnits(o.MinOutputAmount, recvDec),
		Rate:                 rate,
		Status:               o.Status.String(),
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
	}
}

func (s *Server) orderInfos(ctx context.Context, orders []*core.Order) []OrderInfo {
	out := make([]OrderInfo, len(orders))
	for i, o := range orders {
		out[i] = s.orderInfo(ctx, o)
	}
	return out
}

func (s *Server) fillInfo(f *swap.FillResult) FillInfo {
	return FillInfo{
		ID:        f.ID,
		OrderID:   uint32(f.OrderID),
		Maker:     f.Maker.Hex(),
		Taker:     f.Taker.Hex(),
		SendToken: f.Order.SendToken.Hex(),
		RecvToken: f.Order.RecvToken.Hex(),
		Amount:    amount(f.Amount),
		SendOut:   amount(f.SendOut),
		Fee:       amount(f.Fee),
		Remaining: amount(f.Order.RecvAmount),
		Status:    f.Order.Status.String(),
		Timestamp: f.Timestamp,
	}
}

func fillRecordInfos(recs []history.FillRecord) []FillInfo {
	out := make([]FillInfo, len(recs))
	for i, r := range recs {
		out[i] = FillInfo{
			ID:        r.ID,
			OrderID:   r.OrderID,
			Maker:     r.Maker,
			Taker:     r.Taker,
			SendToken: r.SendToken,
			RecvToken: r.RecvToken,
			Amount:    r.Amount,
			SendOut:   r.SendOut,
			Fee:       r.Fee,
			Remaining: r.Remaining,
			Status:    r.Status,
			Timestamp: r.CreatedAt.UnixMilli(),
		}
	}
	return out
}

func swapInfo(r *swap.SwapResult) SwapInfo {
	return SwapInfo{
		ID:        r.ID,
		Customer:  r.Customer.Hex(),
		Recipient: r.Recipient.Hex(),
		TokenIn:   r.TokenIn.Hex(),
		TokenOut:  r.TokenOut.Hex(),
		Pair:      r.Pair.Hex(),
		AmountIn:  amount(r.AmountIn),
		AmountOut: amount(r.AmountOut),
		MinOut:    amount(r.MinOut),
		Timestamp: r.Timestamp,
	}
}

func swapRecordInfos(recs []history.SwapRecord) []SwapInfo {
	out := make([]SwapInfo, len(recs))
	for i, r := range recs {
		out[i] = SwapInfo{
			ID:        r.ID,
			Customer:  r.Customer,
			Recipient: r.Recipient,
			TokenIn:   r.TokenIn,
			TokenOut:  r.TokenOut,
			Pair:      r.Pair,
			AmountIn:  r.AmountIn,
			AmountOut: r.AmountOut,
			MinOut:    r.MinOut,
			Timestamp: r.CreatedAt.UnixMilli(),
		}
	}
	return out
}
