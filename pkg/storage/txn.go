package storage

import (
	"errors"

	"github.com/cockroachdb/pebble"
)

var errTxnDone = errors.New("transaction already finished")

// Txn is a single unit of work over a PebbleStore. It is not safe for
// concurrent use; the engine serializes operations before opening one.
type Txn struct {
	batch *pebble.Batch
	done  bool
}

func (t *Txn) Has(key []byte) (bool, error) {
	_, err := t.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (t *Txn) Get(key []byte) ([]byte, error) {
	if t.done {
		return nil, Error.Wrap(errTxnDone)
	}
	val, closer, err := t.batch.Get(key)
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

func (t *Txn) Set(key, value []byte) error {
	if t.done {
		return Error.Wrap(errTxnDone)
	}
	return Error.Wrap(t.batch.Set(key, value, nil))
}

func (t *Txn) Scan(prefix []byte, fn func(key, value []byte) error) error {
	if t.done {
		return Error.Wrap(errTxnDone)
	}
	iter, err := t.batch.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: UpperBound(prefix),
	})
	if err != nil {
		return Error.Wrap(err)
	}
	return scan(iter, fn)
}

// Commit applies every write atomically and releases the batch.
func (t *Txn) Commit() error {
	if t.done {
		return Error.Wrap(errTxnDone)
	}
	t.done = true
	err := t.batch.Commit(pebble.Sync)
	closeErr := t.batch.Close()
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(closeErr)
}

// Discard drops every write. Safe to call after Commit.
func (t *Txn) Discard() {
	if t.done {
		return
	}
	t.done = true
	_ = t.batch.Close()
}

var _ KV = (*Txn)(nil)
