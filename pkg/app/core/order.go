package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// OrderID is the engine-assigned sequence number of an order.
type OrderID uint32

// OrderStatus represents the lifecycle state of an order
type OrderStatus uint8

const (
	OrderInit OrderStatus = iota
	OrderActive
	OrderComplete
	OrderCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case OrderInit:
		return "init"
	case OrderActive:
		return "active"
	case OrderComplete:
		return "complete"
	case OrderCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseOrderStatus is the inverse of String.
func ParseOrderStatus(s string) (OrderStatus, error) {
	for st := OrderInit; st <= OrderCancelled; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown order status %q", s)
}

// Order is a maker's standing offer: SendAmount of SendToken, held in
// custody, for up to RecvAmount of RecvToken, never less than
// MinOutputAmount per fill.
type Order struct {
	ID        OrderID        `json:"id"`
	Maker     common.Address `json:"maker"`
	SendToken common.Address `json:"send_token"`
	RecvToken common.Address `json:"recv_token"`

	SendAmount      uint64 `json:"send_amount"`
	RecvAmount      uint64 `json:"recv_amount"`
	MinOutputAmount uint64 `json:"min_output_amount"`

	Status OrderStatus `json:"status"`

	// Unix milliseconds
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// IsClosed returns true once the order can no longer be filled.
func (o *Order) IsClosed() bool {
	return o.Status == OrderComplete || o.Status == OrderCancelled
}

// FillOutput is the send-token amount released for a fill of amount
// recv-token units: floor(amount × SendAmount / RecvAmount).
func (o *Order) FillOutput(amount uint64) (uint64, error) {
	return MulDiv(amount, o.SendAmount, o.RecvAmount)
}

// ApplyFill reduces the order by one fill and moves it to Complete when
// nothing remains. A remainder smaller than the per-fill minimum lowers
// the minimum so the rest can still be taken in one fill.
func (o *Order) ApplyFill(amount, sendOut uint64) error {
	if amount > o.RecvAmount || sendOut > o.SendAmount {
		return ErrOverFill
	}
	o.SendAmount -= sendOut
	o.RecvAmount -= amount
	if o.RecvAmount == 0 {
		o.Status = OrderComplete
	} else if o.RecvAmount < o.MinOutputAmount {
		o.MinOutputAmount = o.RecvAmount
	}
	return nil
}

// Validate checks the invariants every stored order must hold.
func (o *Order) Validate() error {
	if o.SendToken == o.RecvToken {
		return ErrSameToken
	}
	if o.MinOutputAmount > o.RecvAmount {
		return fmt.Errorf("%w: minimum %d exceeds receive amount %d", ErrInvalidAmount, o.MinOutputAmount, o.RecvAmount)
	}
	if o.Status == OrderActive && (o.SendAmount == 0 || o.RecvAmount == 0) {
		return fmt.Errorf("%w: active order with zero amount", ErrInvalidAmount)
	}
	return nil
}
