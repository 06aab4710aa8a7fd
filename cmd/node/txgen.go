package main

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperswap/params"
	"github.com/uhyunpark/hyperswap/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperswap/pkg/app/core/transaction"
	"github.com/uhyunpark/hyperswap/pkg/auth"
	"github.com/uhyunpark/hyperswap/pkg/loadgen"
	"github.com/uhyunpark/hyperswap/pkg/storage"
)

// startTxGen funds simulated traders from the token issuers and starts
// feeding the node's own API. Needs at least two registered tokens.
func startTxGen(ctx context.Context, cfg params.Config, store *storage.PebbleStore, l *ledger.Ledger, verifier *transaction.Verifier, log *zap.SugaredLogger) (context.CancelFunc, error) {
	tokens, err := l.Tokens(ctx)
	if err != nil {
		return nil, err
	}
	if len(tokens) < 2 {
		return nil, fmt.Errorf("txgen needs two tokens, ledger has %d", len(tokens))
	}

	feedCfg := loadgen.DefaultConfig()
	if cfg.Node.TxGenProfile == "high" {
		feedCfg = loadgen.HighLoadConfig()
	}
	gen, err := loadgen.NewGenerator(feedCfg.NumAccounts, [2]common.Address{tokens[0].Address, tokens[1].Address}, verifier)
	if err != nil {
		return nil, err
	}
	feeder := loadgen.NewFeeder(feedCfg, gen, localURL(cfg.Node.APIAddr), log)

	if err := feeder.Fund(ctx, issuerFaucet(store, l, tokens[:2])); err != nil {
		return nil, err
	}
	return feeder.Start(ctx), nil
}

// issuerFaucet mints every token to the account as its issuer, all in
// one batch.
func issuerFaucet(store *storage.PebbleStore, l *ledger.Ledger, tokens []ledger.Token) loadgen.Faucet {
	return func(ctx context.Context, to common.Address, amount uint64) error {
		txn := store.Begin()
		defer txn.Discard()
		tctx := storage.WithKV(ctx, txn)
		for _, t := range tokens {
			if err := l.Mint(auth.WithSigners(tctx, t.Issuer), t.Address, to, amount); err != nil {
				return err
			}
		}
		return txn.Commit()
	}
}

// localURL turns a listen address like ":8080" into a loopback base URL.
func localURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + strings.TrimPrefix(addr, "http://")
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
