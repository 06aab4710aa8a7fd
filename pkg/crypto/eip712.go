package crypto

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain represents the domain separator for EIP-712 typed data
// This prevents replay attacks across different chains/deployments
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// DefaultDomain returns the devnet domain.
func DefaultDomain() EIP712Domain {
	return EIP712Domain{
		Name:              "HyperSwap",
		Version:           "1",
		ChainID:           big.NewInt(1337),
		VerifyingContract: common.Address{},
	}
}

var domainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// TypedRequest is a request a wallet signs with eth_signTypedData_v4.
type TypedRequest interface {
	PrimaryType() string
	Fields() []apitypes.Type
	Message() apitypes.TypedDataMessage
	// Actor is the identity the signature must recover to.
	Actor() common.Address
}

// CreateOrderEIP712 authorizes a maker to lock SendAmount of SendToken.
type CreateOrderEIP712 struct {
	Maker         common.Address
	SendToken     common.Address
	RecvToken     common.Address
	SendAmount    *big.Int
	RecvAmount    *big.Int
	MinRecvAmount *big.Int
	Nonce         *big.Int
	Deadline      *big.Int // Unix seconds, 0 = no expiry
}

func (r *CreateOrderEIP712) PrimaryType() string   { return "CreateOrder" }
func (r *CreateOrderEIP712) Actor() common.Address { return r.Maker }
func (r *CreateOrderEIP712) Fields() []apitypes.Type {
	return []apitypes.Type{
		{Name: "maker", Type: "address"},
		{Name: "sendToken", Type: "address"},
		{Name: "recvToken", Type: "address"},
		{Name: "sendAmount", Type: "uint256"},
		{Name: "recvAmount", Type: "uint256"},
		{Name: "minRecvAmount", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	}
}
func (r *CreateOrderEIP712) Message() apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"maker":         r.Maker.Hex(),
		"sendToken":     r.SendToken.Hex(),
		"recvToken":     r.RecvToken.Hex(),
		"sendAmount":    bigString(r.SendAmount),
		"recvAmount":    bigString(r.RecvAmount),
		"minRecvAmount": bigString(r.MinRecvAmount),
		"nonce":         bigString(r.Nonce),
		"deadline":      bigString(r.Deadline),
	}
}

// AcceptOrderEIP712 authorizes a taker to fill Amount of an order.
type AcceptOrderEIP712 struct {
	Taker    common.Address
	OrderID  uint32
	Amount   *big.Int
	Nonce    *big.Int
	Deadline *big.Int
}

func (r *AcceptOrderEIP712) PrimaryType() string   { return "AcceptOrder" }
func (r *AcceptOrderEIP712) Actor() common.Address { return r.Taker }
func (r *AcceptOrderEIP712) Fields() []apitypes.Type {
	return []apitypes.Type{
		{Name: "taker", Type: "address"},
		{Name: "orderId", Type: "uint32"},
		{Name: "amount", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	}
}
func (r *AcceptOrderEIP712) Message() apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"taker":    r.Taker.Hex(),
		"orderId":  fmt.Sprintf("%d", r.OrderID),
		"amount":   bigString(r.Amount),
		"nonce":    bigString(r.Nonce),
		"deadline": bigString(r.Deadline),
	}
}

// CancelOrderEIP712 authorizes a maker to withdraw an open order.
type CancelOrderEIP712 struct {
	Maker    common.Address
	OrderID  uint32
	Nonce    *big.Int
	Deadline *big.Int
}

func (r *CancelOrderEIP712) PrimaryType() string   { return "CancelOrder" }
func (r *CancelOrderEIP712) Actor() common.Address { return r.Maker }
func (r *CancelOrderEIP712) Fields() []apitypes.Type {
	return []apitypes.Type{
		{Name: "maker", Type: "address"},
		{Name: "orderId", Type: "uint32"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	}
}
func (r *CancelOrderEIP712) Message() apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"maker":    r.Maker.Hex(),
		"orderId":  fmt.Sprintf("%d", r.OrderID),
		"nonce":    bigString(r.Nonce),
		"deadline": bigString(r.Deadline),
	}
}

// SwapEIP712 authorizes a routed AMM swap paid by Customer.
type SwapEIP712 struct {
	Customer     common.Address
	Recipient    common.Address
	TokenIn      common.Address
	TokenOut     common.Address
	AmountIn     *big.Int
	SwapDeadline *big.Int // forwarded to the AMM, 0 = unbounded
	Nonce        *big.Int
	Deadline     *big.Int
}

func (r *SwapEIP712) PrimaryType() string   { return "Swap" }
func (r *SwapEIP712) Actor() common.Address { return r.Customer }
func (r *SwapEIP712) Fields() []apitypes.Type {
	return []apitypes.Type{
		{Name: "customer", Type: "address"},
		{Name: "recipient", Type: "address"},
		{Name: "tokenIn", Type: "address"},
		{Name: "tokenOut", Type: "address"},
		{Name: "amountIn", Type: "uint256"},
		{Name: "swapDeadline", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	}
}
func (r *SwapEIP712) Message() apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"customer":     r.Customer.Hex(),
		"recipient":    r.Recipient.Hex(),
		"tokenIn":      r.TokenIn.Hex(),
		"tokenOut":     r.TokenOut.Hex(),
		"amountIn":     bigString(r.AmountIn),
		"swapDeadline": bigString(r.SwapDeadline),
		"nonce":        bigString(r.Nonce),
		"deadline":     bigString(r.Deadline),
	}
}

// AdminEIP712 authorizes one configuration change. Target and Value are
// interpreted per Action (fee recipient/rate, new admin, token, ...).
type AdminEIP712 struct {
	Admin    common.Address
	Action   string
	Target   common.Address
	Value    *big.Int
	Nonce    *big.Int
	Deadline *big.Int
}

func (r *AdminEIP712) PrimaryType() string   { return "AdminAction" }
func (r *AdminEIP712) Actor() common.Address { return r.Admin }
func (r *AdminEIP712) Fields() []apitypes.Type {
	return []apitypes.Type{
		{Name: "admin", Type: "address"},
		{Name: "action", Type: "string"},
		{Name: "target", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	}
}
func (r *AdminEIP712) Message() apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"admin":    r.Admin.Hex(),
		"action":   r.Action,
		"target":   r.Target.Hex(),
		"value":    bigString(r.Value),
		"nonce":    bigString(r.Nonce),
		"deadline": bigString(r.Deadline),
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// EIP712Signer handles EIP-712 typed data signing for requests
type EIP712Signer struct {
	domain EIP712Domain
}

func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

func (e *EIP712Signer) Domain() EIP712Domain { return e.domain }

// TypedData builds the full eth_signTypedData_v4 document for req.
func (e *EIP712Signer) TypedData(req TypedRequest) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain":    domainType,
			req.PrimaryType(): req.Fields(),
		},
		PrimaryType: req.PrimaryType(),
		Domain: apitypes.TypedDataDomain{
			Name:              e.domain.Name,
			Version:           e.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
			VerifyingContract: e.domain.VerifyingContract.Hex(),
		},
		Message: req.Message(),
	}
}

// Hash returns the digest a wallet signs for req.
func (e *EIP712Signer) Hash(req TypedRequest) ([]byte, error) {
	typedData := e.TypedData(req)

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	typedDataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	// keccak256("\x19\x01" || domainSeparator || typedDataHash)
	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(typedDataHash)))
	return crypto.Keccak256Hash(rawData).Bytes(), nil
}

func (e *EIP712Signer) Sign(signer *Signer, req TypedRequest) ([]byte, error) {
	hash, err := e.Hash(req)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", req.PrimaryType(), err)
	}
	return signer.Sign(hash)
}

// Recover returns the address that signed req.
func (e *EIP712Signer) Recover(req TypedRequest, signature []byte) (common.Address, error) {
	hash, err := e.Hash(req)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash %s: %w", req.PrimaryType(), err)
	}
	return RecoverAddress(hash, signature)
}

// Verify reports whether signature recovers to req.Actor().
func (e *EIP712Signer) Verify(req TypedRequest, signature []byte) (bool, error) {
	addr, err := e.Recover(req, signature)
	if err != nil {
		return false, err
	}
	return addr == req.Actor(), nil
}

// ToJSON renders req for wallet signing (MetaMask eth_signTypedData_v4).
func (e *EIP712Signer) ToJSON(req TypedRequest) (string, error) {
	out, err := json.MarshalIndent(e.TypedData(req), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(out), nil
}
