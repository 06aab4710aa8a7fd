package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperswap/params"
	"github.com/uhyunpark/hyperswap/pkg/amm"
	"github.com/uhyunpark/hyperswap/pkg/app/core"
	"github.com/uhyunpark/hyperswap/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperswap/pkg/app/swap"
	"github.com/uhyunpark/hyperswap/pkg/auth"
	"github.com/uhyunpark/hyperswap/pkg/storage"
)

// applyGenesis writes g into a fresh store. Assets and pools commit in
// one transaction, then the engine is initialized. Either phase is
// skipped when it has already happened, so a node interrupted between
// the two finishes on the next start.
func applyGenesis(ctx context.Context, g *params.Genesis, store swap.Store, l *ledger.Ledger, pools *amm.ConstantProduct, app *swap.App, log *zap.SugaredLogger) error {
	tokens, err := l.Tokens(ctx)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		if err := applyAssets(ctx, g, store, l, pools); err != nil {
			return fmt.Errorf("genesis assets: %w", err)
		}
		log.Infow("genesis_assets_applied", "tokens", len(g.Tokens), "mints", len(g.Mints), "pools", len(g.Pools))
	}

	_, err = app.Gate().Admin(ctx)
	if !errors.Is(err, core.ErrNotInitialized) {
		return err
	}
	admin := common.HexToAddress(g.Admin)
	actx := auth.WithSigners(ctx, admin)
	init := swap.InitParams{Admin: admin, FeeRate: g.Fee.Rate, SlippageBps: g.SlippageBps}
	if g.Fee.Recipient != "" {
		init.FeeRecipient = common.HexToAddress(g.Fee.Recipient)
	}
	if err := app.Initialize(actx, init); err != nil {
		return fmt.Errorf("genesis initialize: %w", err)
	}
	for _, tok := range g.Allowlist {
		if err := app.AllowToken(actx, common.HexToAddress(tok)); err != nil {
			return fmt.Errorf("genesis allowlist: %w", err)
		}
	}
	log.Infow("genesis_engine_initialized", "admin", admin.Hex(), "fee_rate", g.Fee.Rate, "allowlist", len(g.Allowlist))
	return nil
}

func applyAssets(ctx context.Context, g *params.Genesis, store swap.Store, l *ledger.Ledger, pools *amm.ConstantProduct) error {
	txn := store.Begin()
	defer txn.Discard()
	ctx = storage.WithKV(ctx, txn)

	issuers := make(map[common.Address]common.Address, len(g.Tokens))
	for _, t := range g.Tokens {
		tok := ledger.Token{
			Address:  common.HexToAddress(t.Address),
			Symbol:   t.Symbol,
			Decimals: t.Decimals,
			Issuer:   common.HexToAddress(t.Issuer),
		}
		if err := l.RegisterToken(ctx, tok); err != nil {
			return err
		}
		issuers[tok.Address] = tok.Issuer
	}
	for _, m := range g.Mints {
		token := common.HexToAddress(m.Token)
		if err := l.Mint(auth.WithSigners(ctx, issuers[token]), token, common.HexToAddress(m.To), m.Amount); err != nil {
			return err
		}
	}
	for _, p := range g.Pools {
		a, b := common.HexToAddress(p.TokenA), common.HexToAddress(p.TokenB)
		if _, err := pools.CreatePair(ctx, a, b); err != nil {
			return err
		}
		provider := common.HexToAddress(p.Provider)
		if err := pools.AddLiquidity(auth.WithSigners(ctx, provider), provider, a, b, p.AmountA, p.AmountB); err != nil {
			return err
		}
	}
	return txn.Commit()
}
