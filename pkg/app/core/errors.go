// Package core holds the domain types shared by the settlement engine and
// the records it depends on: error kinds, orders and checked arithmetic.
package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every rejected operation returns an error that matches
// exactly one of these with errors.Is; nothing is reported through
// sentinel return values.
var (
	ErrNotInitialized        = errors.New("not initialized")
	ErrAlreadyInitialized    = errors.New("already initialized")
	ErrNotAuthorized         = errors.New("not authorized")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidFeeRate        = errors.New("invalid fee rate")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderNotActive        = errors.New("order not active")
	ErrSwapFailed            = errors.New("swap failed")
	ErrTransferFailed        = errors.New("transfer failed")
	ErrContractPaused        = errors.New("contract paused")
	ErrArithmeticOverflow    = errors.New("arithmetic overflow")
)

// Refinements of ErrInvalidAmount.
var (
	ErrOverFill        = fmt.Errorf("%w: fill exceeds remaining amount", ErrInvalidAmount)
	ErrBelowMinimum    = fmt.Errorf("%w: fill below order minimum", ErrInvalidAmount)
	ErrSameToken       = fmt.Errorf("%w: send and receive token are the same", ErrInvalidAmount)
	ErrInvalidSlippage = fmt.Errorf("%w: slippage tolerance out of range", ErrInvalidAmount)
	ErrTokenNotAllowed = fmt.Errorf("%w: token not allowed", ErrInvalidAmount)
)

var kinds = []struct {
	err  error
	code string
}{
	// SwapFailed wraps whatever the AMM reported, so it is matched first.
	{ErrSwapFailed, "swap_failed"},
	{ErrNotInitialized, "not_initialized"},
	{ErrAlreadyInitialized, "already_initialized"},
	{ErrNotAuthorized, "not_authorized"},
	{ErrInvalidFeeRate, "invalid_fee_rate"},
	{ErrInsufficientBalance, "insufficient_balance"},
	{ErrInsufficientAllowance, "insufficient_allowance"},
	{ErrOrderNotFound, "order_not_found"},
	{ErrOrderNotActive, "order_not_active"},
	{ErrContractPaused, "contract_paused"},
	{ErrArithmeticOverflow, "arithmetic_overflow"},
	// TransferFailed wraps the ledger's own reason, so the specific
	// balance/allowance kinds above are matched first.
	{ErrTransferFailed, "transfer_failed"},
	{ErrInvalidAmount, "invalid_amount"},
}

// Kind returns the sentinel err matches, or nil.
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.err
		}
	}
	return nil
}

// Code returns a stable identifier for the kind of err, or "internal".
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "internal"
}
