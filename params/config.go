package params

import (
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/uhyunpark/hyperswap/pkg/crypto"
)

type Node struct {
	DataDir  string // Pebble state lives in DataDir/state
	APIAddr  string
	LogFile  string // empty logs to console only
	LogLevel string // debug | info | warn | error
	// Log rotation (lumberjack)
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	// AllowedOrigins for CORS on the API
	AllowedOrigins []string
	// HistoryDB is the SQLite audit trail; empty disables it.
	HistoryDB string
	// GenesisFile is applied once, on an empty store.
	GenesisFile string
	// Devnet traffic generator
	EnableTxGen  bool
	TxGenProfile string // default | high
}

// Domain is the EIP-712 signing domain.
type Domain struct {
	Name              string
	Version           string
	ChainID           int64
	VerifyingContract common.Address
}

func (d Domain) EIP712() crypto.EIP712Domain {
	return crypto.EIP712Domain{
		Name:              d.Name,
		Version:           d.Version,
		ChainID:           big.NewInt(d.ChainID),
		VerifyingContract: d.VerifyingContract,
	}
}

type Engine struct {
	// Custody defaults to the address derived from the domain.
	Custody              common.Address
	AllowanceTTL         time.Duration
	AutoApprove          bool
	RequireAllowedTokens bool
}

type AMM struct {
	FeeBps   uint32
	Registry common.Address // factory the adapter is bound to
}

type Config struct {
	Node   Node
	Domain Domain
	Engine Engine
	AMM    AMM
}

// DefaultRegistry is the devnet factory address.
var DefaultRegistry = crypto.DeriveAddress([]byte("hyperswap/factory"))

func Default() Config {
	return Config{
		Node: Node{
			DataDir:        "data",
			APIAddr:        ":8080",
			LogFile:        "data/node.log",
			LogLevel:       "info",
			LogMaxSizeMB:   100,
			LogMaxBackups:  5,
			LogMaxAgeDays:  30,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
			HistoryDB:      "data/history.db",
			GenesisFile:    "genesis.yaml",
			TxGenProfile:   "default",
		},
		Domain: Domain{
			Name:    "HyperSwap",
			Version: "1",
			ChainID: 1337,
		},
		Engine: Engine{
			AllowanceTTL: 24 * time.Hour,
			AutoApprove:  true,
		},
		AMM: AMM{
			FeeBps:   30,
			Registry: DefaultRegistry,
		},
	}
}

// CustodyAddress returns Engine.Custody, or the domain-derived address
// when unset.
func (c Config) CustodyAddress() common.Address {
	if c.Engine.Custody != (common.Address{}) {
		return c.Engine.Custody
	}
	return crypto.CustodyAddress(c.Domain.EIP712())
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Node.DataDir = getEnv("DATA_DIR", cfg.Node.DataDir)
	cfg.Node.APIAddr = getEnv("API_ADDR", cfg.Node.APIAddr)
	if v, ok := os.LookupEnv("LOG_FILE"); ok {
		cfg.Node.LogFile = strings.TrimSpace(v)
	}
	cfg.Node.LogLevel = getEnv("LOG_LEVEL", cfg.Node.LogLevel)
	cfg.Node.LogMaxSizeMB = getInt("LOG_MAX_SIZE_MB", cfg.Node.LogMaxSizeMB)
	cfg.Node.LogMaxBackups = getInt("LOG_MAX_BACKUPS", cfg.Node.LogMaxBackups)
	cfg.Node.LogMaxAgeDays = getInt("LOG_MAX_AGE_DAYS", cfg.Node.LogMaxAgeDays)
	cfg.Node.HistoryDB = getEnv("HISTORY_DB", cfg.Node.HistoryDB)
	cfg.Node.GenesisFile = getEnv("GENESIS_FILE", cfg.Node.GenesisFile)
	cfg.Node.EnableTxGen = os.Getenv("ENABLE_TXGEN") == "true"
	cfg.Node.TxGenProfile = getEnv("TXGEN_PROFILE", cfg.Node.TxGenProfile)
	// Origins from comma-separated list
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.Node.AllowedOrigins = splitList(origins)
	}

	cfg.Domain.Name = getEnv("EIP712_NAME", cfg.Domain.Name)
	cfg.Domain.Version = getEnv("EIP712_VERSION", cfg.Domain.Version)
	if id := os.Getenv("CHAIN_ID"); id != "" {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			cfg.Domain.ChainID = n
		}
	}
	cfg.Domain.VerifyingContract = getAddress("EIP712_VERIFYING_CONTRACT", cfg.Domain.VerifyingContract)

	cfg.Engine.Custody = getAddress("CUSTODY_ADDRESS", cfg.Engine.Custody)
	if ttl := os.Getenv("ALLOWANCE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.Engine.AllowanceTTL = d
		}
	}
	if v := os.Getenv("AUTO_APPROVE"); v != "" {
		cfg.Engine.AutoApprove = v == "true"
	}
	if v := os.Getenv("REQUIRE_ALLOWED_TOKENS"); v != "" {
		cfg.Engine.RequireAllowedTokens = v == "true"
	}

	if fee := os.Getenv("AMM_FEE_BPS"); fee != "" {
		if bps, err := strconv.ParseUint(fee, 10, 32); err == nil {
			cfg.AMM.FeeBps = uint32(bps)
		}
	}
	cfg.AMM.Registry = getAddress("AMM_REGISTRY", cfg.AMM.Registry)

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getAddress ignores values that are not hex addresses.
func getAddress(key string, defaultValue common.Address) common.Address {
	if value := os.Getenv(key); common.IsHexAddress(value) {
		return common.HexToAddress(value)
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
