package swap

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
)

// InitParams configures a fresh deployment. A zero FeeRecipient leaves
// the fee unset; a zero SlippageBps leaves the default in force.
type InitParams struct {
	Admin        common.Address
	FeeRate      uint32
	FeeRecipient common.Address
	SlippageBps  uint32
}

type CreateOrderRequest struct {
	Maker         common.Address
	SendToken     common.Address
	RecvToken     common.Address
	SendAmount    uint64
	RecvAmount    uint64
	MinRecvAmount uint64
}

type AcceptOrderRequest struct {
	Taker   common.Address
	OrderID core.OrderID
	Amount  uint64
}

// FillResult describes one settled fill. Order is the order after the fill.
type FillResult struct {
	ID      string         `json:"id"`
	OrderID core.OrderID   `json:"order_id"`
	Maker   common.Address `json:"maker"`
	Taker   common.Address `json:"taker"`
	// Amount of the order's recv token paid to the maker.
	Amount uint64 `json:"amount"`
	// SendOut of the order's send token released to the taker.
	SendOut   uint64     `json:"send_out"`
	Fee       uint64     `json:"fee"`
	Order     core.Order `json:"order"`
	Timestamp int64      `json:"timestamp"`
}

// SwapRequest routes AmountIn of TokenIn through the AMM. Deadline is
// Unix seconds; zero means no deadline.
type SwapRequest struct {
	Customer  common.Address
	Recipient common.Address
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  uint64
	Deadline  uint64
}

type SwapResult struct {
	ID        string         `json:"id"`
	Customer  common.Address `json:"customer"`
	Recipient common.Address `json:"recipient"`
	TokenIn   common.Address `json:"token_in"`
	TokenOut  common.Address `json:"token_out"`
	Pair      common.Address `json:"pair"`
	AmountIn  uint64         `json:"amount_in"`
	AmountOut uint64         `json:"amount_out"`
	MinOut    uint64         `json:"min_out"`
	Timestamp int64          `json:"timestamp"`
}

// SwapQuote prices a routed swap. Reserves are the pool's at quote time,
// oriented as (in, out).
type SwapQuote struct {
	AmountIn    uint64           `json:"amount_in"`
	ExpectedOut uint64           `json:"expected_out"`
	MinOut      uint64           `json:"min_out"`
	SlippageBps uint32           `json:"slippage_bps"`
	Pair        common.Address   `json:"pair"`
	Path        []common.Address `json:"path"`
	ReserveIn   uint64           `json:"reserve_in"`
	ReserveOut  uint64           `json:"reserve_out"`
}

// Balances is an account's holdings of an order's two tokens.
type Balances struct {
	Send uint64 `json:"send"`
	Recv uint64 `json:"recv"`
}
