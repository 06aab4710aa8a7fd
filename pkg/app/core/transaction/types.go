package transaction

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
	"github.com/uhyunpark/hyperswap/pkg/crypto"
)

// TxType represents the type of a signed request
type TxType string

const (
	TxTypeCreateOrder TxType = "create_order"
	TxTypeAcceptOrder TxType = "accept_order"
	TxTypeCancelOrder TxType = "cancel_order"
	TxTypeSwap        TxType = "swap"
	TxTypeAdmin       TxType = "admin"
)

// Admin actions carried by AdminPayload.Action.
const (
	ActionSetFee        = "set_fee"      // Target = recipient, Value = rate
	ActionSetSlippage   = "set_slippage" // Value = bps
	ActionSetAdmin      = "set_admin"    // Target = new admin
	ActionPause         = "pause"
	ActionUnpause       = "unpause"
	ActionAllowToken    = "allow_token"    // Target = token
	ActionDisallowToken = "disallow_token" // Target = token
)

// SignedRequest is the JSON envelope of an EIP-712 signed request.
// Exactly one payload matches Type.
type SignedRequest struct {
	Type        TxType              `json:"type"`
	CreateOrder *CreateOrderPayload `json:"create_order,omitempty"`
	AcceptOrder *AcceptOrderPayload `json:"accept_order,omitempty"`
	CancelOrder *CancelOrderPayload `json:"cancel_order,omitempty"`
	Swap        *SwapPayload        `json:"swap,omitempty"`
	Admin       *AdminPayload       `json:"admin,omitempty"`
	Signature   string              `json:"signature"` // Hex-encoded signature (0x...)
}

// Amounts, nonces and deadlines are decimal strings so JavaScript
// clients never lose precision.

type CreateOrderPayload struct {
	Maker         string `json:"maker"`
	SendToken     string `json:"send_token"`
	RecvToken     string `json:"recv_token"`
	SendAmount    string `json:"send_amount"`
	RecvAmount    string `json:"recv_amount"`
	MinRecvAmount string `json:"min_recv_amount"`
	Nonce         string `json:"nonce"`
	Deadline      string `json:"deadline"` // Unix seconds (0 = no expiry)
}

type AcceptOrderPayload struct {
	Taker    string `json:"taker"`
	OrderID  uint32 `json:"order_id"`
	Amount   string `json:"amount"`
	Nonce    string `json:"nonce"`
	Deadline string `json:"deadline"`
}

type CancelOrderPayload struct {
	Maker    string `json:"maker"`
	OrderID  uint32 `json:"order_id"`
	Nonce    string `json:"nonce"`
	Deadline string `json:"deadline"`
}

type SwapPayload struct {
	Customer     string `json:"customer"`
	Recipient    string `json:"recipient"`
	TokenIn      string `json:"token_in"`
	TokenOut     string `json:"token_out"`
	AmountIn     string `json:"amount_in"`
	SwapDeadline string `json:"swap_deadline"` // forwarded to the AMM
	Nonce        string `json:"nonce"`
	Deadline     string `json:"deadline"`
}

type AdminPayload struct {
	Admin    string `json:"admin"`
	Action   string `json:"action"`
	Target   string `json:"target"`
	Value    string `json:"value"`
	Nonce    string `json:"nonce"`
	Deadline string `json:"deadline"`
}

// NewSignedRequest wraps a typed request in an unsigned envelope.
func NewSignedRequest(req crypto.TypedRequest) (*SignedRequest, error) {
	switch r := req.(type) {
	case *crypto.CreateOrderEIP712:
		return &SignedRequest{Type: TxTypeCreateOrder, CreateOrder: &CreateOrderPayload{
			Maker:         r.Maker.Hex(),
			SendToken:     r.SendToken.Hex(),
			RecvToken:     r.RecvToken.Hex(),
			SendAmount:    decString(r.SendAmount),
			RecvAmount:    decString(r.RecvAmount),
			MinRecvAmount: decString(r.MinRecvAmount),
			Nonce:         decString(r.Nonce),
			Deadline:      decString(r.Deadline),
		}}, nil
	case *crypto.AcceptOrderEIP712:
		return &SignedRequest{Type: TxTypeAcceptOrder, AcceptOrder: &AcceptOrderPayload{
			Taker:    r.Taker.Hex(),
			OrderID:  r.OrderID,
			Amount:   decString(r.Amount),
			Nonce:    decString(r.Nonce),
			Deadline: decString(r.Deadline),
		}}, nil
	case *crypto.CancelOrderEIP712:
		return &SignedRequest{Type: TxTypeCancelOrder, CancelOrder: &CancelOrderPayload{
			Maker:    r.Maker.Hex(),
			OrderID:  r.OrderID,
			Nonce:    decString(r.Nonce),
			Deadline: decString(r.Deadline),
		}}, nil
	case *crypto.SwapEIP712:
		return &SignedRequest{Type: TxTypeSwap, Swap: &SwapPayload{
			Customer:     r.Customer.Hex(),
			Recipient:    r.Recipient.Hex(),
			TokenIn:      r.TokenIn.Hex(),
			TokenOut:     r.TokenOut.Hex(),
			AmountIn:     decString(r.AmountIn),
			SwapDeadline: decString(r.SwapDeadline),
			Nonce:        decString(r.Nonce),
			Deadline:     decString(r.Deadline),
		}}, nil
	case *crypto.AdminEIP712:
		return &SignedRequest{Type: TxTypeAdmin, Admin: &AdminPayload{
			Admin:    r.Admin.Hex(),
			Action:   r.Action,
			Target:   r.Target.Hex(),
			Value:    decString(r.Value),
			Nonce:    decString(r.Nonce),
			Deadline: decString(r.Deadline),
		}}, nil
	default:
		return nil, fmt.Errorf("unsupported request type %T", req)
	}
}

// Typed converts the payload back to the EIP-712 struct that was signed.
func (tx *SignedRequest) Typed() (crypto.TypedRequest, error) {
	if err := tx.validatePayload(); err != nil {
		return nil, err
	}
	var p parser
	var out crypto.TypedRequest
	switch tx.Type {
	case TxTypeCreateOrder:
		c := tx.CreateOrder
		out = &crypto.CreateOrderEIP712{
			Maker:         p.address("maker", c.Maker),
			SendToken:     p.address("send_token", c.SendToken),
			RecvToken:     p.address("recv_token", c.RecvToken),
			SendAmount:    p.amount("send_amount", c.SendAmount),
			RecvAmount:    p.amount("recv_amount", c.RecvAmount),
			MinRecvAmount: p.amount("min_recv_amount", c.MinRecvAmount),
			Nonce:         p.amount("nonce", c.Nonce),
			Deadline:      p.amount("deadline", c.Deadline),
		}
	case TxTypeAcceptOrder:
		a := tx.AcceptOrder
		out = &crypto.AcceptOrderEIP712{
			Taker:    p.address("taker", a.Taker),
			OrderID:  a.OrderID,
			Amount:   p.amount("amount", a.Amount),
			Nonce:    p.amount("nonce", a.Nonce),
			Deadline: p.amount("deadline", a.Deadline),
		}
	case TxTypeCancelOrder:
		c := tx.CancelOrder
		out = &crypto.CancelOrderEIP712{
			Maker:    p.address("maker", c.Maker),
			OrderID:  c.OrderID,
			Nonce:    p.amount("nonce", c.Nonce),
			Deadline: p.amount("deadline", c.Deadline),
		}
	case TxTypeSwap:
		s := tx.Swap
		recipient := common.Address{}
		if s.Recipient != "" {
			recipient = p.address("recipient", s.Recipient)
		}
		out = &crypto.SwapEIP712{
			Customer:     p.address("customer", s.Customer),
			Recipient:    recipient,
			TokenIn:      p.address("token_in", s.TokenIn),
			TokenOut:     p.address("token_out", s.TokenOut),
			AmountIn:     p.amount("amount_in", s.AmountIn),
			SwapDeadline: p.amount("swap_deadline", s.SwapDeadline),
			Nonce:        p.amount("nonce", s.Nonce),
			Deadline:     p.amount("deadline", s.Deadline),
		}
	case TxTypeAdmin:
		a := tx.Admin
		target := common.Address{}
		if a.Target != "" {
			target = p.address("target", a.Target)
		}
		out = &crypto.AdminEIP712{
			Admin:    p.address("admin", a.Admin),
			Action:   a.Action,
			Target:   target,
			Value:    p.amount("value", a.Value),
			Nonce:    p.amount("nonce", a.Nonce),
			Deadline: p.amount("deadline", a.Deadline),
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return out, nil
}

// Serialize converts SignedRequest to JSON bytes
func (tx *SignedRequest) Serialize() ([]byte, error) {
	return json.Marshal(tx)
}

// Deserialize parses JSON bytes into SignedRequest
func Deserialize(data []byte) (*SignedRequest, error) {
	var tx SignedRequest
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal request: %v", core.ErrInvalidAmount, err)
	}
	return &tx, nil
}

// Validate performs basic validation on the envelope structure
func (tx *SignedRequest) Validate() error {
	if err := tx.validatePayload(); err != nil {
		return err
	}
	if tx.Signature == "" {
		return fmt.Errorf("%w: missing signature", core.ErrNotAuthorized)
	}
	return nil
}

func (tx *SignedRequest) validatePayload() error {
	if tx.Type == "" {
		return fmt.Errorf("%w: missing request type", core.ErrInvalidAmount)
	}

	var missing bool
	switch tx.Type {
	case TxTypeCreateOrder:
		missing = tx.CreateOrder == nil
	case TxTypeAcceptOrder:
		missing = tx.AcceptOrder == nil
	case TxTypeCancelOrder:
		missing = tx.CancelOrder == nil
	case TxTypeSwap:
		missing = tx.Swap == nil
	case TxTypeAdmin:
		missing = tx.Admin == nil
		if !missing && !knownAction(tx.Admin.Action) {
			return fmt.Errorf("%w: unknown admin action %q", core.ErrInvalidAmount, tx.Admin.Action)
		}
	default:
		return fmt.Errorf("%w: unknown request type: %s", core.ErrInvalidAmount, tx.Type)
	}
	if missing {
		return fmt.Errorf("%w: %s request requires a %s payload", core.ErrInvalidAmount, tx.Type, tx.Type)
	}
	return nil
}

func knownAction(a string) bool {
	switch a {
	case ActionSetFee, ActionSetSlippage, ActionSetAdmin, ActionPause, ActionUnpause, ActionAllowToken, ActionDisallowToken:
		return true
	}
	return false
}

// Uint64 narrows a signed amount to the engine's unit type.
func Uint64(v *big.Int) (uint64, error) {
	if v == nil {
		return 0, nil
	}
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s out of range", core.ErrInvalidAmount, v)
	}
	return v.Uint64(), nil
}

// parser collects the first field error so conversions read straight.
type parser struct{ err error }

func (p *parser) address(field, s string) common.Address {
	if p.err == nil && !common.IsHexAddress(s) {
		p.err = fmt.Errorf("%w: invalid %s address %q", core.ErrInvalidAmount, field, s)
	}
	return common.HexToAddress(s)
}

func (p *parser) amount(field, s string) *big.Int {
	if s == "" {
		return new(big.Int)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if p.err == nil && (!ok || v.Sign() < 0) {
		p.err = fmt.Errorf("%w: invalid %s %q", core.ErrInvalidAmount, field, s)
	}
	if !ok {
		return new(big.Int)
	}
	return v
}

func decString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// Example (signed create_order):
//   {
//     "type": "create_order",
//     "create_order": {
//       "maker": "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
//       "send_token": "0x...",
//       "recv_token": "0x...",
//       "send_amount": "5000000",
//       "recv_amount": "500000",
//       "min_recv_amount": "100000",
//       "nonce": "42",
//       "deadline": "0"
//     },
//     "signature": "0x1234567890abcdef..."
//   }
