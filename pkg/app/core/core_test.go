package core

import (
	"fmt"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestMulDiv(t *testing.T) {
	got, err := MulDiv(100_000, 5_000_000, 500_000)
	require.NoError(t, err)
	require.EqualValues(t, 1_000_000, got)

	got, err = MulDiv(7, 10, 3)
	require.NoError(t, err)
	require.EqualValues(t, 23, got)

	_, err = MulDiv(math.MaxUint64, 2, 2)
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	_, err = MulDiv(1, 1, 0)
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	_, err = Add(math.MaxUint64, 1)
	require.ErrorIs(t, err, ErrArithmeticOverflow)
}

func newOrder(send, recv, min uint64) *Order {
	return &Order{
		SendToken:       common.HexToAddress("0x01"),
		RecvToken:       common.HexToAddress("0x02"),
		SendAmount:      send,
		RecvAmount:      recv,
		MinOutputAmount: min,
		Status:          OrderActive,
	}
}

func TestApplyFillPartial(t *testing.T) {
	o := newOrder(5_000_000, 500_000, 100_000)

	out, err := o.FillOutput(100_000)
	require.NoError(t, err)
	require.EqualValues(t, 1_000_000, out)

	require.NoError(t, o.ApplyFill(100_000, out))
	require.EqualValues(t, 4_000_000, o.SendAmount)
	require.EqualValues(t, 400_000, o.RecvAmount)
	require.EqualValues(t, 100_000, o.MinOutputAmount)
	require.Equal(t, OrderActive, o.Status)
	require.NoError(t, o.Validate())
}

func TestApplyFillLowersMinimum(t *testing.T) {
	o := newOrder(1000, 100, 40)

	require.NoError(t, o.ApplyFill(70, 700))
	require.EqualValues(t, 30, o.RecvAmount)
	require.EqualValues(t, 30, o.MinOutputAmount)
	require.Equal(t, OrderActive, o.Status)

	out, err := o.FillOutput(30)
	require.NoError(t, err)
	require.EqualValues(t, 300, out)
	require.NoError(t, o.ApplyFill(30, out))
	require.Equal(t, OrderComplete, o.Status)
	require.True(t, o.IsClosed())
	require.Zero(t, o.SendAmount)
}

// The last fill always releases whatever send amount remains, even when
// the rate does not divide evenly.
func TestFillOutputDrainsOnFinalFill(t *testing.T) {
	o := newOrder(10, 3, 1)
	for o.RecvAmount > 0 {
		out, err := o.FillOutput(1)
		require.NoError(t, err)
		require.NoError(t, o.ApplyFill(1, out))
	}
	require.Zero(t, o.SendAmount)
	require.Equal(t, OrderComplete, o.Status)
}

func TestApplyFillRejectsOverFill(t *testing.T) {
	o := newOrder(10, 5, 1)
	require.ErrorIs(t, o.ApplyFill(6, 1), ErrInvalidAmount)
	require.EqualValues(t, 5, o.RecvAmount)
}

func TestOrderStatusRoundTrip(t *testing.T) {
	for st := OrderInit; st <= OrderCancelled; st++ {
		got, err := ParseOrderStatus(st.String())
		require.NoError(t, err)
		require.Equal(t, st, got)
	}
	_, err := ParseOrderStatus("filled")
	require.Error(t, err)
}

func TestCode(t *testing.T) {
	require.Equal(t, "", Code(nil))
	require.Equal(t, "invalid_amount", Code(ErrOverFill))
	require.Equal(t, "order_not_found", Code(fmt.Errorf("load 3: %w", ErrOrderNotFound)))
	require.Equal(t, "insufficient_balance", Code(fmt.Errorf("%w: leg: %w", ErrTransferFailed, ErrInsufficientBalance)))
	require.Equal(t, "transfer_failed", Code(fmt.Errorf("%w: boom", ErrTransferFailed)))
	require.Equal(t, "internal", Code(fmt.Errorf("disk")))
}

func TestCodeSwapFailedWinsOverCause(t *testing.T) {
	err := fmt.Errorf("%w: swap: %w", ErrSwapFailed, ErrInsufficientAllowance)
	require.Equal(t, "swap_failed", Code(err))
}

func TestKind(t *testing.T) {
	require.Equal(t, ErrInvalidAmount, Kind(ErrSameToken))
	require.Equal(t, ErrSwapFailed, Kind(fmt.Errorf("%w: x: %w", ErrSwapFailed, ErrInsufficientBalance)))
	require.Nil(t, Kind(fmt.Errorf("disk")))
}
