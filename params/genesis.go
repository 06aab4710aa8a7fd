package params

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Genesis is the initial state a node writes into an empty store.
type Genesis struct {
	Admin       string         `yaml:"admin"`
	Fee         GenesisFee     `yaml:"fee"`
	SlippageBps uint32         `yaml:"slippage_bps"`
	Tokens      []GenesisToken `yaml:"tokens"`
	Mints       []GenesisMint  `yaml:"mints"`
	Pools       []GenesisPool  `yaml:"pools"`
	Allowlist   []string       `yaml:"allowlist"`
}

type GenesisFee struct {
	Rate      uint32 `yaml:"rate"` // basis points
	Recipient string `yaml:"recipient"`
}

type GenesisToken struct {
	Address  string `yaml:"address"`
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
	Issuer   string `yaml:"issuer"`
}

type GenesisMint struct {
	Token  string `yaml:"token"`
	To     string `yaml:"to"`
	Amount uint64 `yaml:"amount"`
}

type GenesisPool struct {
	TokenA   string `yaml:"token_a"`
	TokenB   string `yaml:"token_b"`
	AmountA  uint64 `yaml:"amount_a"`
	AmountB  uint64 `yaml:"amount_b"`
	Provider string `yaml:"provider"`
}

// LoadGenesis reads and validates a YAML genesis document.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read genesis file: %w", err)
	}

	var g Genesis
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse genesis file: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}
	return &g, nil
}

// Validate checks every address field and that mints and pools only
// reference declared tokens.
func (g *Genesis) Validate() error {
	if !common.IsHexAddress(g.Admin) {
		return fmt.Errorf("admin %q is not an address", g.Admin)
	}
	if g.Fee.Recipient != "" && !common.IsHexAddress(g.Fee.Recipient) {
		return fmt.Errorf("fee.recipient %q is not an address", g.Fee.Recipient)
	}

	declared := make(map[common.Address]bool, len(g.Tokens))
	for i, t := range g.Tokens {
		if !common.IsHexAddress(t.Address) || !common.IsHexAddress(t.Issuer) {
			return fmt.Errorf("tokens[%d]: address and issuer must be addresses", i)
		}
		addr := common.HexToAddress(t.Address)
		if declared[addr] {
			return fmt.Errorf("tokens[%d]: %s declared twice", i, addr.Hex())
		}
		declared[addr] = true
	}
	known := func(s string) bool {
		return common.IsHexAddress(s) && declared[common.HexToAddress(s)]
	}

	for i, m := range g.Mints {
		if !known(m.Token) {
			return fmt.Errorf("mints[%d]: unknown token %q", i, m.Token)
		}
		if !common.IsHexAddress(m.To) {
			return fmt.Errorf("mints[%d]: to %q is not an address", i, m.To)
		}
	}
	for i, p := range g.Pools {
		if !known(p.TokenA) || !known(p.TokenB) {
			return fmt.Errorf("pools[%d]: unknown token", i)
		}
		if !common.IsHexAddress(p.Provider) {
			return fmt.Errorf("pools[%d]: provider %q is not an address", i, p.Provider)
		}
	}
	for i, a := range g.Allowlist {
		if !known(a) {
			return fmt.Errorf("allowlist[%d]: unknown token %q", i, a)
		}
	}
	return nil
}
