package storage

import (
	"fmt"
	"strings"
)

// Key schema. Every component owns one prefix:
//
//	cfg:*                          admin, fee, slippage, paused, order counter
//	ord:{id:010d}                  order record
//	ordm:{maker}:{id:010d}         maker → order index
//	tok:{token}                    token metadata
//	bal:{token}:{owner}            balance
//	alw:{token}:{owner}:{spender}  allowance
//	allow:{token}                  token allowlist
//	pool:{pair}                    AMM pool
//	nonce:{addr}:{nonce}           consumed request nonces
//
// Addresses are rendered with common.Address.Hex so keys sort stably.

// Key joins parts with ':' separators.
func Key(parts ...string) []byte {
	return []byte(strings.Join(parts, ":"))
}

// Prefix is Key with a trailing separator, for range scans.
func Prefix(parts ...string) []byte {
	return append(Key(parts...), ':')
}

// Seq renders a sequence number zero-padded so lexicographic order
// matches numeric order.
func Seq(n uint64) string {
	return fmt.Sprintf("%010d", n)
}

// UpperBound returns the exclusive upper bound for a prefix scan.
// Example: prefix "ord:" -> upper bound "ord;"
func UpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	for i := len(bound) - 1; i >= 0; i-- {
		if bound[i] < 0xff {
			bound[i]++
			return bound[:i+1]
		}
	}
	return nil
}
