package swap

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
)

type EventType string

const (
	EventInitialized    EventType = "initialized"
	EventConfigChanged  EventType = "config_changed"
	EventOrderCreated   EventType = "order_created"
	EventOrderFilled    EventType = "order_filled"
	EventOrderCancelled EventType = "order_cancelled"
	EventSwapCompleted  EventType = "swap_completed"
)

// Event is published after the operation that produced it has committed.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp int64       `json:"timestamp"` // Unix milliseconds
	Order     *core.Order `json:"order,omitempty"`
	Fill      *FillResult `json:"fill,omitempty"`
	Swap      *SwapResult `json:"swap,omitempty"`
	Change    *Change     `json:"change,omitempty"`
	// Fee charged to the maker on OrderCreated.
	Fee uint64 `json:"fee,omitempty"`
}

// Change records an admin write.
type Change struct {
	Key   string         `json:"key"`
	Value string         `json:"value"`
	By    common.Address `json:"by"`
}
