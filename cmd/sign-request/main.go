package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperswap/params"
	"github.com/uhyunpark/hyperswap/pkg/app/core/transaction"
	"github.com/uhyunpark/hyperswap/pkg/crypto"
)

type options struct {
	kind      string
	key       string
	sendToken string
	recvToken string
	send      string
	recv      string
	min       string
	orderID   uint
	amount    string
	recipient string
	swapBy    string
	action    string
	target    string
	value     string
	nonce     string
	deadline  string
	typedData bool
}

func main() {
	var o options
	flag.StringVar(&o.kind, "type", "create_order", "create_order | accept_order | cancel_order | swap | admin")
	flag.StringVar(&o.key, "key", "", "hex private key (generated when empty)")
	flag.StringVar(&o.sendToken, "send-token", "", "create_order: token locked by the maker; swap: token in")
	flag.StringVar(&o.recvToken, "recv-token", "", "create_order: token wanted; swap: token out")
	flag.StringVar(&o.send, "send", "0", "create_order: send amount")
	flag.StringVar(&o.recv, "recv", "0", "create_order: receive amount")
	flag.StringVar(&o.min, "min", "0", "create_order: minimum fill")
	flag.UintVar(&o.orderID, "order", 0, "accept_order/cancel_order: order id")
	flag.StringVar(&o.amount, "amount", "0", "accept_order: fill amount; swap: amount in")
	flag.StringVar(&o.recipient, "recipient", "", "swap: recipient (defaults to signer)")
	flag.StringVar(&o.swapBy, "swap-deadline", "0", "swap: AMM deadline, Unix seconds")
	flag.StringVar(&o.action, "action", "", "admin: set_fee | set_slippage | set_admin | pause | unpause | allow_token | disallow_token")
	flag.StringVar(&o.target, "target", "", "admin: address argument")
	flag.StringVar(&o.value, "value", "0", "admin: numeric argument")
	flag.StringVar(&o.nonce, "nonce", "1", "request nonce")
	flag.StringVar(&o.deadline, "deadline", "0", "request deadline, Unix seconds (0 = none)")
	flag.BoolVar(&o.typedData, "typed-data", false, "also print the eth_signTypedData_v4 document")
	flag.Parse()

	if err := run(o); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(o options) error {
	cfg := params.LoadFromEnv("")

	// Step 1: Generate or load key
	var signer *crypto.Signer
	var err error
	if o.key == "" {
		fmt.Println("Generating new keypair...")
		signer, err = crypto.GenerateKey()
	} else {
		signer, err = crypto.FromPrivateKeyHex(o.key)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Address: %s\n", signer.Address().Hex())
	if o.key == "" {
		fmt.Printf("Private Key: %s (KEEP SECRET!)\n", signer.PrivateKeyHex())
	}
	fmt.Println()

	// Step 2: Build the typed request
	req, path, err := build(o, signer.Address())
	if err != nil {
		return err
	}

	// Step 3: Sign with EIP-712
	verifier := transaction.NewVerifier(cfg.Domain.EIP712(), nil)
	tx, err := transaction.NewSignedRequest(req)
	if err != nil {
		return err
	}
	if err := verifier.Sign(tx, signer); err != nil {
		return fmt.Errorf("signing: %w", err)
	}

	if o.typedData {
		doc, err := verifier.Signer().ToJSON(req)
		if err != nil {
			return err
		}
		fmt.Println("Typed Data (eth_signTypedData_v4):")
		fmt.Println(doc)
		fmt.Println()
	}

	// Step 4: Serialize to JSON
	txJSON, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println("Signed Request (JSON):")
	fmt.Println(string(txJSON))
	fmt.Println()

	// Step 5: Verify signature
	fmt.Println("Verifying signature...")
	verified, err := verifier.Verify(tx)
	if err != nil {
		return fmt.Errorf("verifying: %w", err)
	}
	fmt.Println("✓ Signature VALID")
	fmt.Printf("  Signer: %s\n", verified.Signer.Hex())
	fmt.Printf("  Nonce: %d\n\n", verified.Nonce)

	// Step 6: Show how to submit to API
	fmt.Println("To submit this request:")
	fmt.Printf("  POST http://localhost%s/api/v1%s\n", cfg.Node.APIAddr, path)
	fmt.Println("  Content-Type: application/json")
	return nil
}

// build returns the typed request for o and the API path it is posted to.
func build(o options, signer common.Address) (crypto.TypedRequest, string, error) {
	var p parser
	nonce := p.amount("nonce", o.nonce)
	deadline := p.amount("deadline", o.deadline)

	var req crypto.TypedRequest
	var path string
	switch transaction.TxType(o.kind) {
	case transaction.TxTypeCreateOrder:
		req = &crypto.CreateOrderEIP712{
			Maker:         signer,
			SendToken:     p.address("send-token", o.sendToken),
			RecvToken:     p.address("recv-token", o.recvToken),
			SendAmount:    p.amount("send", o.send),
			RecvAmount:    p.amount("recv", o.recv),
			MinRecvAmount: p.amount("min", o.min),
			Nonce:         nonce,
			Deadline:      deadline,
		}
		path = "/orders"
	case transaction.TxTypeAcceptOrder:
		req = &crypto.AcceptOrderEIP712{
			Taker:    signer,
			OrderID:  uint32(o.orderID),
			Amount:   p.amount("amount", o.amount),
			Nonce:    nonce,
			Deadline: deadline,
		}
		path = fmt.Sprintf("/orders/%d/accept", o.orderID)
	case transaction.TxTypeCancelOrder:
		req = &crypto.CancelOrderEIP712{
			Maker:    signer,
			OrderID:  uint32(o.orderID),
			Nonce:    nonce,
			Deadline: deadline,
		}
		path = fmt.Sprintf("/orders/%d/cancel", o.orderID)
	case transaction.TxTypeSwap:
		recipient := signer
		if o.recipient != "" {
			recipient = p.address("recipient", o.recipient)
		}
		req = &crypto.SwapEIP712{
			Customer:     signer,
			Recipient:    recipient,
			TokenIn:      p.address("send-token", o.sendToken),
			TokenOut:     p.address("recv-token", o.recvToken),
			AmountIn:     p.amount("amount", o.amount),
			SwapDeadline: p.amount("swap-deadline", o.swapBy),
			Nonce:        nonce,
			Deadline:     deadline,
		}
		path = "/swap"
	case transaction.TxTypeAdmin:
		target := common.Address{}
		if o.target != "" {
			target = p.address("target", o.target)
		}
		req = &crypto.AdminEIP712{
			Admin:    signer,
			Action:   o.action,
			Target:   target,
			Value:    p.amount("value", o.value),
			Nonce:    nonce,
			Deadline: deadline,
		}
		path = "/admin"
	default:
		return nil, "", fmt.Errorf("unknown request type %q", o.kind)
	}
	if o.orderID > 1<<32-1 {
		return nil, "", fmt.Errorf("order id %d out of range", o.orderID)
	}
	return req, path, p.err
}

type parser struct{ err error }

func (p *parser) address(flag, s string) common.Address {
	if p.err == nil && !common.IsHexAddress(s) {
		p.err = fmt.Errorf("-%s: %q is not an address", flag, s)
	}
	return common.HexToAddress(s)
}

func (p *parser) amount(flag, s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		if p.err == nil {
			p.err = fmt.Errorf("-%s: %q is not a non-negative integer", flag, s)
		}
		return new(big.Int)
	}
	return v
}
