package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/uhyunpark/hyperswap/params"
	"github.com/uhyunpark/hyperswap/pkg/amm"
	"github.com/uhyunpark/hyperswap/pkg/api"
	"github.com/uhyunpark/hyperswap/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperswap/pkg/app/core/transaction"
	"github.com/uhyunpark/hyperswap/pkg/app/swap"
	"github.com/uhyunpark/hyperswap/pkg/auth"
	"github.com/uhyunpark/hyperswap/pkg/history"
	"github.com/uhyunpark/hyperswap/pkg/storage"
	"github.com/uhyunpark/hyperswap/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Setup logging (write to both console and file)
	level, err := zapcore.ParseLevel(cfg.Node.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	var logger *zap.Logger
	if cfg.Node.LogFile == "" {
		logger, err = util.NewLogger(level)
	} else {
		logger, err = util.NewLoggerWithFile(cfg.Node.LogFile, util.Rotation{
			MaxSizeMB:  cfg.Node.LogMaxSizeMB,
			MaxBackups: cfg.Node.LogMaxBackups,
			MaxAgeDays: cfg.Node.LogMaxAgeDays,
			Compress:   true,
		}, level)
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile, "level", level.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- State ----
	store, err := storage.NewPebbleStore(filepath.Join(cfg.Node.DataDir, "state"))
	if err != nil {
		sugar.Fatalw("store_open_failed", "dir", cfg.Node.DataDir, "err", err)
	}
	defer store.Close()

	clock := util.RealClock{}
	authorizer := auth.ContextAuthorizer{}
	assets := ledger.New(store, authorizer, clock)
	pools := amm.NewConstantProduct(store, assets, cfg.AMM.Registry, cfg.AMM.FeeBps, clock)

	// ---- App: order book + AMM fallback ----
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	domain := cfg.Domain.EIP712()
	custody := cfg.CustodyAddress()
	app := swap.New(swap.Config{
		Custody:              custody,
		AllowanceTTL:         cfg.Engine.AllowanceTTL,
		AutoApprove:          cfg.Engine.AutoApprove,
		RequireAllowedTokens: cfg.Engine.RequireAllowedTokens,
	}, swap.Deps{
		Store:      store,
		Assets:     assets,
		AMM:        amm.NewAdapter(pools, cfg.AMM.Registry, sugar.Named("amm")),
		Authorizer: authorizer,
		Clock:      clock,
		Logger:     sugar.Named("swap"),
		Metrics:    swap.NewMetrics(registry),
	})

	// ---- Genesis (first start only) ----
	genesis, err := params.LoadGenesis(cfg.Node.GenesisFile)
	switch {
	case err == nil:
		if err := applyGenesis(ctx, genesis, store, assets, pools, app, sugar); err != nil {
			sugar.Fatalw("genesis_failed", "file", cfg.Node.GenesisFile, "err", err)
		}
	case errors.Is(err, os.ErrNotExist):
		sugar.Warnw("genesis_missing", "file", cfg.Node.GenesisFile)
	default:
		sugar.Fatalw("genesis_invalid", "file", cfg.Node.GenesisFile, "err", err)
	}

	if err := app.SyncMetrics(ctx); err != nil {
		sugar.Warnw("metrics_sync_failed", "err", err)
	}

	// ---- History (optional) ----
	var hist *history.Store
	if cfg.Node.HistoryDB != "" {
		hist, err = history.Open(cfg.Node.HistoryDB, sugar.Named("history"))
		if err != nil {
			sugar.Fatalw("history_open_failed", "path", cfg.Node.HistoryDB, "err", err)
		}
		defer hist.Close()
	}

	// ---- API Server ----
	verifier := transaction.NewVerifier(domain, clock)
	opts := api.Options{
		App:            app,
		Tokens:         assets,
		Verifier:       verifier,
		Logger:         sugar.Named("api"),
		Registry:       registry,
		AllowedOrigins: cfg.Node.AllowedOrigins,
	}
	if hist != nil {
		opts.History = hist
	}
	apiServer := api.NewServer(opts)

	// Hook app to history and API server: record and broadcast every
	// committed event
	var record func(swap.Event)
	if hist != nil {
		record = hist.Hook()
	}
	app.OnEvent = func(ev swap.Event) {
		if record != nil {
			record(ev)
		}
		apiServer.Publish(ev)
	}

	if cfg.Node.EnableTxGen {
		stopTxGen, err := startTxGen(ctx, cfg, store, assets, verifier, sugar.Named("txgen"))
		if err != nil {
			sugar.Warnw("txgen_disabled", "err", err)
		} else {
			defer stopTxGen()
		}
	}

	sugar.Infow("node_starting",
		"api_addr", cfg.Node.APIAddr,
		"chain_id", cfg.Domain.ChainID,
		"custody", custody.Hex(),
		"amm_registry", cfg.AMM.Registry.Hex(),
		"auto_approve", cfg.Engine.AutoApprove,
		"require_allowed_tokens", cfg.Engine.RequireAllowedTokens)

	if err := apiServer.Start(ctx, cfg.Node.APIAddr); err != nil {
		sugar.Errorw("api_server_failed", "err", err)
		return
	}
	sugar.Info("node_stopped")
}
