// Package history keeps a queryable audit trail of fills and routed swaps
// in SQLite. It is fed from engine events and is not part of settlement:
// losing it loses history, never funds.
package history

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/uhyunpark/hyperswap/pkg/app/core"
	"github.com/uhyunpark/hyperswap/pkg/app/swap"
)

// Error is the error class for history failures.
var Error = errs.Class("history")

// DefaultLimit caps queries that pass limit <= 0.
const DefaultLimit = 100

// Amounts are stored as decimal strings; SQLite integers are signed.
type FillRecord struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	OrderID   uint32    `gorm:"index" json:"order_id"`
	Maker     string    `gorm:"index" json:"maker"`
	Taker     string    `gorm:"index" json:"taker"`
	SendToken string    `json:"send_token"`
	RecvToken string    `json:"recv_token"`
	Amount    string    `json:"amount"`
	SendOut   string    `json:"send_out"`
	Fee       string    `json:"fee"`
	Remaining string    `json:"remaining"`
	Status    string    `json:"status"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

type SwapRecord struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Customer  string    `gorm:"index" json:"customer"`
	Recipient string    `gorm:"index" json:"recipient"`
	TokenIn   string    `json:"token_in"`
	TokenOut  string    `json:"token_out"`
	Pair      string    `json:"pair"`
	AmountIn  string    `json:"amount_in"`
	AmountOut string    `json:"amount_out"`
	MinOut    string    `json:"min_out"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

type Store struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string, log *zap.SugaredLogger) (*Store, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, Error.New("create dir for %s: %v", path, err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, Error.New("open %s: %v", path, err)
	}
	if err := db.AutoMigrate(&FillRecord{}, &SwapRecord{}); err != nil {
		return nil, Error.New("migrate: %v", err)
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(sqlDB.Close())
}

// RecordEvent stores fills and swaps; other events are ignored.
func (s *Store) RecordEvent(ev swap.Event) error {
	switch ev.Type {
	case swap.EventOrderFilled:
		f := ev.Fill
		return Error.Wrap(s.db.Create(&FillRecord{
			ID:        f.ID,
			OrderID:   uint32(f.OrderID),
			Maker:     f.Maker.Hex(),
			Taker:     f.Taker.Hex(),
			SendToken: f.Order.SendToken.Hex(),
			RecvToken: f.Order.RecvToken.Hex(),
			Amount:    fmtAmount(f.Amount),
			SendOut:   fmtAmount(f.SendOut),
			Fee:       fmtAmount(f.Fee),
			Remaining: fmtAmount(f.Order.RecvAmount),
			Status:    f.Order.Status.String(),
			CreatedAt: time.UnixMilli(f.Timestamp).UTC(),
		}).Error)
	case swap.EventSwapCompleted:
		r := ev.Swap
		return Error.Wrap(s.db.Create(&SwapRecord{
			ID:        r.ID,
			Customer:  r.Customer.Hex(),
			Recipient: r.Recipient.Hex(),
			TokenIn:   r.TokenIn.Hex(),
			TokenOut:  r.TokenOut.Hex(),
			Pair:      r.Pair.Hex(),
			AmountIn:  fmtAmount(r.AmountIn),
			AmountOut: fmtAmount(r.AmountOut),
			MinOut:    fmtAmount(r.MinOut),
			CreatedAt: time.UnixMilli(r.Timestamp).UTC(),
		}).Error)
	}
	return nil
}

// Hook adapts RecordEvent to the engine's event callback. Failures are
// logged, not returned: the operation has already committed.
func (s *Store) Hook() func(swap.Event) {
	return func(ev swap.Event) {
		if err := s.RecordEvent(ev); err != nil {
			s.log.Warnw("history_record_failed", "event", ev.Type, "err", err)
		}
	}
}

func (s *Store) FillsByOrder(ctx context.Context, id core.OrderID, limit int) ([]FillRecord, error) {
	var out []FillRecord
	err := s.db.WithContext(ctx).
		Where("order_id = ?", uint32(id)).
		Order("created_at desc").Limit(clamp(limit)).
		Find(&out).Error
	return out, Error.Wrap(err)
}

// FillsByAccount returns fills where account was maker or taker, newest first.
func (s *Store) FillsByAccount(ctx context.Context, account common.Address, limit int) ([]FillRecord, error) {
	var out []FillRecord
	err := s.db.WithContext(ctx).
		Where("maker = ? OR taker = ?", account.Hex(), account.Hex()).
		Order("created_at desc").Limit(clamp(limit)).
		Find(&out).Error
	return out, Error.Wrap(err)
}

func (s *Store) SwapsByAccount(ctx context.Context, account common.Address, limit int) ([]SwapRecord, error) {
	var out []SwapRecord
	err := s.db.WithContext(ctx).
		Where("customer = ? OR recipient = ?", account.Hex(), account.Hex()).
		Order("created_at desc").Limit(clamp(limit)).
		Find(&out).Error
	return out, Error.Wrap(err)
}

func clamp(limit int) int {
	if limit <= 0 || limit > DefaultLimit {
		return DefaultLimit
	}
	return limit
}

func fmtAmount(v uint64) string { return strconv.FormatUint(v, 10) }
