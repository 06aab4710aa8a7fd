// Package loadgen feeds a devnet node with signed traffic from simulated
// traders: makers posting orders, takers filling them and customers
// swapping through the AMM.
package loadgen

import (
	"fmt"
	"math/big"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperswap/pkg/api"
	"github.com/uhyunpark/hyperswap/pkg/app/core/transaction"
	"github.com/uhyunpark/hyperswap/pkg/crypto"
)

// Request is a signed request and the API path it is posted to.
type Request struct {
	Path string
	Tx   *transaction.SignedRequest
}

// Generator creates signed requests for a fixed set of simulated traders
type Generator struct {
	signers  []*crypto.Signer // Keypairs for simulated traders
	tokens   [2]common.Address
	rng      *rand.Rand
	nonces   map[common.Address]uint64 // Track nonces per address
	verifier *transaction.Verifier
}

// NewGenerator creates numAccounts fresh keys trading tokens[0] against
// tokens[1].
func NewGenerator(numAccounts int, tokens [2]common.Address, verifier *transaction.Verifier) (*Generator, error) {
	signers := make([]*crypto.Signer, numAccounts)
	for i := range signers {
		s, err := crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		signers[i] = s
	}
	return &Generator{
		signers:  signers,
		tokens:   tokens,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		nonces:   make(map[common.Address]uint64, numAccounts),
		verifier: verifier,
	}, nil
}

// Accounts returns every simulated trader address.
func (g *Generator) Accounts() []common.Address {
	out := make([]common.Address, len(g.signers))
	for i, s := range g.signers {
		out[i] = s.Address()
	}
	return out
}

func (g *Generator) pick() *crypto.Signer {
	return g.signers[g.rng.Intn(len(g.signers))]
}

func (g *Generator) nextNonce(addr common.Address) *big.Int {
	g.nonces[addr]++
	return new(big.Int).SetUint64(g.nonces[addr])
}

// pair returns the tokens in random direction.
func (g *Generator) pair() (common.Address, common.Address) {
	if g.rng.Intn(2) == 1 {
		return g.tokens[1], g.tokens[0]
	}
	return g.tokens[0], g.tokens[1]
}

// CreateOrder signs an order locking 1,000-10,000 units at a rate
// within ±5% of parity, fillable in tenths.
func (g *Generator) CreateOrder() (Request, error) {
	signer := g.pick()
	sendToken, recvToken := g.pair()

	send := int64(g.rng.Intn(9_000) + 1_000)
	recv := send * int64(95+g.rng.Intn(11)) / 100

	return g.sign(signer, "/orders", &crypto.CreateOrderEIP712{
		Maker:         signer.Address(),
		SendToken:     sendToken,
		RecvToken:     recvToken,
		SendAmount:    big.NewInt(send),
		RecvAmount:    big.NewInt(recv),
		MinRecvAmount: big.NewInt(recv / 10),
		Nonce:         g.nextNonce(signer.Address()),
		Deadline:      big.NewInt(0),
	})
}

// AcceptOrder signs a fill of between the minimum and the remainder of
// order.
func (g *Generator) AcceptOrder(order api.OrderInfo) (Request, error) {
	signer := g.pick()

	remaining, ok := new(big.Int).SetString(order.RecvAmount, 10)
	if !ok {
		return Request{}, fmt.Errorf("order %d: bad recv amount %q", order.ID, order.RecvAmount)
	}
	minimum, ok := new(big.Int).SetString(order.MinRecvAmount, 10)
	if !ok {
		return Request{}, fmt.Errorf("order %d: bad minimum %q", order.ID, order.MinRecvAmount)
	}
	amount := new(big.Int).Set(remaining)
	if span := new(big.Int).Sub(remaining, minimum); span.IsInt64() && span.Int64() > 0 {
		amount.Sub(remaining, big.NewInt(g.rng.Int63n(span.Int64()+1)))
	}

	return g.sign(signer, fmt.Sprintf("/orders/%d/accept", order.ID), &crypto.AcceptOrderEIP712{
		Taker:    signer.Address(),
		OrderID:  order.ID,
		Amount:   amount,
		Nonce:    g.nextNonce(signer.Address()),
		Deadline: big.NewInt(0),
	})
}

// Swap signs a routed swap of 100-1,000 units.
func (g *Generator) Swap() (Request, error) {
	signer := g.pick()
	tokenIn, tokenOut := g.pair()

	return g.sign(signer, "/swap", &crypto.SwapEIP712{
		Customer:     signer.Address(),
		Recipient:    signer.Address(),
		TokenIn:      tokenIn,
		TokenOut:     tokenOut,
		AmountIn:     big.NewInt(int64(g.rng.Intn(900) + 100)),
		SwapDeadline: big.NewInt(0),
		Nonce:        g.nextNonce(signer.Address()),
		Deadline:     big.NewInt(0),
	})
}

func (g *Generator) sign(signer *crypto.Signer, path string, req crypto.TypedRequest) (Request, error) {
	tx, err := transaction.NewSignedRequest(req)
	if err != nil {
		return Request{}, err
	}
	if err := g.verifier.Sign(tx, signer); err != nil {
		return Request{}, err
	}
	return Request{Path: path, Tx: tx}, nil
}
