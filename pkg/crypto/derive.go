package crypto

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// DeriveAddress returns the last 20 bytes of keccak256(parts...).
// Used for accounts nobody holds a key for: engine custody and AMM pools.
func DeriveAddress(parts ...[]byte) common.Address {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	return common.BytesToAddress(h.Sum(nil)[12:])
}

// SortTokens orders a token pair the way pools key their reserves.
func SortTokens(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		return b, a
	}
	return a, b
}

// PairAddress is the pool address for a token pair under a factory. The
// result does not depend on argument order.
func PairAddress(factory, tokenA, tokenB common.Address) common.Address {
	t0, t1 := SortTokens(tokenA, tokenB)
	return DeriveAddress([]byte("pair"), factory.Bytes(), t0.Bytes(), t1.Bytes())
}

// CustodyAddress is the account the engine holds maker funds in.
func CustodyAddress(domain EIP712Domain) common.Address {
	chainID := domain.ChainID
	if chainID == nil {
		chainID = new(big.Int)
	}
	return DeriveAddress([]byte("custody"), []byte(domain.Name), chainID.Bytes(), domain.VerifyingContract.Bytes())
}
