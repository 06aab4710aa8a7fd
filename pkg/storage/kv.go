package storage

import (
	"context"
	"errors"

	"github.com/zeebo/errs"
)

// Error is the error class for storage failures other than a missing key.
var Error = errs.Class("storage")

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("storage: key not found")

// KV is the key/value surface every component persists through.
// Keys are scoped to a single logical instance (one node, one data dir).
type KV interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	// Scan visits every key starting with prefix in ascending order.
	// fn must not retain key or value after returning.
	Scan(prefix []byte, fn func(key, value []byte) error) error
}

type kvKey struct{}

// WithKV attaches the KV an operation should read and write through.
// The engine uses it to route every component onto one transaction.
func WithKV(ctx context.Context, kv KV) context.Context {
	return context.WithValue(ctx, kvKey{}, kv)
}

// From returns the KV carried by ctx, or fallback when there is none.
func From(ctx context.Context, fallback KV) KV {
	if kv, ok := ctx.Value(kvKey{}).(KV); ok && kv != nil {
		return kv
	}
	return fallback
}

// Extend bumps the retention of key. Pebble keeps keys until deleted,
// so this only checks the key is present.
func Extend(kv KV, key []byte) error {
	ok, err := kv.Has(key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
