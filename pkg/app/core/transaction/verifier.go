package transaction

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
	"github.com/uhyunpark/hyperswap/pkg/auth"
	"github.com/uhyunpark/hyperswap/pkg/crypto"
	"github.com/uhyunpark/hyperswap/pkg/util"
)

// Verifier checks EIP-712 signatures on request envelopes
type Verifier struct {
	eip712Signer *crypto.EIP712Signer
	clock        util.Clock
}

func NewVerifier(domain crypto.EIP712Domain, clock util.Clock) *Verifier {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Verifier{eip712Signer: crypto.NewEIP712Signer(domain), clock: clock}
}

func (v *Verifier) Signer() *crypto.EIP712Signer { return v.eip712Signer }

// Verified is a request whose signature recovered to its actor.
type Verified struct {
	Signer  common.Address
	Nonce   uint64
	Request crypto.TypedRequest
}

// Context returns ctx carrying the signer's proof and the nonce the
// operation must consume.
func (v *Verified) Context(ctx context.Context) context.Context {
	return auth.WithNonce(auth.WithSigners(ctx, v.Signer), v.Signer, v.Nonce)
}

// Verify recovers the signer of tx and checks it against the identity the
// request acts for. Expired requests are rejected. Nonce reuse is caught
// later, when the operation consumes it.
func (v *Verifier) Verify(tx *SignedRequest) (*Verified, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	req, err := tx.Typed()
	if err != nil {
		return nil, err
	}
	sig, err := decodeSignature(tx.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNotAuthorized, err)
	}
	signer, err := v.eip712Signer.Recover(req, sig)
	if err != nil {
		return nil, fmt.Errorf("%w: signature verification failed: %v", core.ErrNotAuthorized, err)
	}
	if signer != req.Actor() {
		return nil, fmt.Errorf("%w: signed by %s, acts for %s", core.ErrNotAuthorized, signer.Hex(), req.Actor().Hex())
	}

	nonce, deadline, err := nonceAndDeadline(req)
	if err != nil {
		return nil, err
	}
	if deadline != 0 && uint64(v.clock.Now().Unix()) > deadline {
		return nil, fmt.Errorf("%w: request expired at %d", core.ErrNotAuthorized, deadline)
	}
	return &Verified{Signer: signer, Nonce: nonce, Request: req}, nil
}

// Sign fills tx.Signature using signer.
func (v *Verifier) Sign(tx *SignedRequest, signer *crypto.Signer) error {
	req, err := tx.Typed()
	if err != nil {
		return err
	}
	sig, err := v.eip712Signer.Sign(signer, req)
	if err != nil {
		return err
	}
	tx.Signature = "0x" + hex.EncodeToString(sig)
	return nil
}

func nonceAndDeadline(req crypto.TypedRequest) (uint64, uint64, error) {
	var n, d uint64
	var err1, err2 error
	switch r := req.(type) {
	case *crypto.CreateOrderEIP712:
		n, err1 = Uint64(r.Nonce)
		d, err2 = Uint64(r.Deadline)
	case *crypto.AcceptOrderEIP712:
		n, err1 = Uint64(r.Nonce)
		d, err2 = Uint64(r.Deadline)
	case *crypto.CancelOrderEIP712:
		n, err1 = Uint64(r.Nonce)
		d, err2 = Uint64(r.Deadline)
	case *crypto.SwapEIP712:
		n, err1 = Uint64(r.Nonce)
		d, err2 = Uint64(r.Deadline)
	case *crypto.AdminEIP712:
		n, err1 = Uint64(r.Nonce)
		d, err2 = Uint64(r.Deadline)
	}
	if err1 != nil {
		return 0, 0, err1
	}
	return n, d, err2
}

// decodeSignature decodes hex-encoded signature (with or without 0x prefix)
func decodeSignature(sig string) ([]byte, error) {
	sig = strings.TrimPrefix(sig, "0x")

	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("invalid hex signature: %w", err)
	}

	if len(sigBytes) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sigBytes))
	}

	return sigBytes, nil
}
