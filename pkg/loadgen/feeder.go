package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperswap/pkg/api"
)

// Config controls request generation rate
type Config struct {
	BatchSize   int           // Number of requests per batch
	Interval    time.Duration // How often to generate batches
	NumAccounts int           // Number of simulated traders
	// Funding minted to every trader in each token before the first batch.
	Funding uint64
}

// DefaultConfig returns reasonable defaults for a devnet
func DefaultConfig() Config {
	return Config{
		BatchSize:   5,
		Interval:    500 * time.Millisecond,
		NumAccounts: 20,
		Funding:     10_000_000,
	}
}

// HighLoadConfig returns config for stress testing
func HighLoadConfig() Config {
	return Config{
		BatchSize:   100,
		Interval:    100 * time.Millisecond,
		NumAccounts: 200,
		Funding:     100_000_000,
	}
}

// Faucet credits amount of every traded token to account.
type Faucet func(ctx context.Context, account common.Address, amount uint64) error

// Stats counts submitted requests by outcome.
type Stats struct {
	Accepted atomic.Uint64
	Rejected atomic.Uint64
	Failed   atomic.Uint64 // transport errors
}

// Feeder posts generated requests to a node's API
type Feeder struct {
	cfg     Config
	gen     *Generator
	baseURL string
	client  *http.Client
	log     *zap.SugaredLogger
	stats   Stats
}

// NewFeeder targets the API at baseURL, e.g. "http://localhost:8080".
func NewFeeder(cfg Config, gen *Generator, baseURL string, log *zap.SugaredLogger) *Feeder {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Feeder{
		cfg:     cfg,
		gen:     gen,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		log:     log,
	}
}

func (f *Feeder) Stats() *Stats { return &f.stats }

// Fund gives every simulated trader cfg.Funding through faucet.
func (f *Feeder) Fund(ctx context.Context, faucet Faucet) error {
	for _, acct := range f.gen.Accounts() {
		if err := faucet(ctx, acct, f.cfg.Funding); err != nil {
			return fmt.Errorf("fund %s: %w", acct.Hex(), err)
		}
	}
	return nil
}

// Start runs batches until ctx is done. Returns a cancel function to stop
// the feeder.
func (f *Feeder) Start(ctx context.Context) context.CancelFunc {
	feedCtx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(f.cfg.Interval)
		defer ticker.Stop()

		startTime := time.Now()
		lastReport := startTime
		f.log.Infow("txgen_started", "batch", f.cfg.BatchSize, "interval", f.cfg.Interval, "accounts", f.cfg.NumAccounts)

		for {
			select {
			case <-feedCtx.Done():
				f.report("txgen_stopped", startTime)
				return

			case now := <-ticker.C:
				f.RunBatch(feedCtx)

				// Log stats every 10 seconds
				if now.Sub(lastReport) >= 10*time.Second {
					f.report("txgen_stats", startTime)
					lastReport = now
				}
			}
		}
	}()

	return cancel
}

func (f *Feeder) report(event string, start time.Time) {
	elapsed := time.Since(start)
	total := f.stats.Accepted.Load() + f.stats.Rejected.Load()
	f.log.Infow(event,
		"accepted", f.stats.Accepted.Load(),
		"rejected", f.stats.Rejected.Load(),
		"failed", f.stats.Failed.Load(),
		"rate_per_sec", float64(total)/elapsed.Seconds())
}

// RunBatch submits one batch: 40% new orders, 40% fills of active
// orders, 20% AMM swaps.
func (f *Feeder) RunBatch(ctx context.Context) {
	var active []api.OrderInfo
	if err := f.getJSON(ctx, "/orders?status=active", &active); err != nil {
		f.stats.Failed.Add(1)
		f.log.Debugw("txgen_orders_failed", "err", err)
	}

	for i := 0; i < f.cfg.BatchSize; i++ {
		var (
			req Request
			err error
		)
		switch r := f.gen.rng.Intn(100); {
		case r < 40 || (r < 80 && len(active) == 0):
			req, err = f.gen.CreateOrder()
		case r < 80:
			req, err = f.gen.AcceptOrder(active[f.gen.rng.Intn(len(active))])
		default:
			req, err = f.gen.Swap()
		}
		if err != nil {
			f.stats.Failed.Add(1)
			f.log.Debugw("txgen_sign_failed", "err", err)
			continue
		}
		f.submit(ctx, req)
	}
}

func (f *Feeder) submit(ctx context.Context, req Request) {
	body, err := req.Tx.Serialize()
	if err != nil {
		f.stats.Failed.Add(1)
		return
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/api/v1"+req.Path, bytes.NewReader(body))
	if err != nil {
		f.stats.Failed.Add(1)
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		f.stats.Failed.Add(1)
		f.log.Debugw("txgen_submit_failed", "path", req.Path, "err", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		f.stats.Accepted.Add(1)
		return
	}
	// Rejections are expected: fills race each other for the same order.
	f.stats.Rejected.Add(1)
	var e api.ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&e)
	f.log.Debugw("txgen_rejected", "path", req.Path, "status", resp.StatusCode, "code", e.Code)
}

func (f *Feeder) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/api/v1"+path, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
