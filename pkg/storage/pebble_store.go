package storage

import (
	"errors"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MemTableSize: 32 << 20,
		MaxOpenFiles: 1000,
		BytesPerSync: 512 << 10,
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, Error.New("open %s: %v", path, err)
	}
	return &PebbleStore{db: db}, nil
}

// NewMemStore opens a Pebble instance on an in-memory filesystem.
func NewMemStore() (*PebbleStore, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return Error.Wrap(s.db.Close()) }

func (s *PebbleStore) Has(key []byte) (bool, error) {
	_, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *PebbleStore) Get(key []byte) ([]byte, error) {
	val, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

func (s *PebbleStore) Set(key, value []byte) error {
	return Error.Wrap(s.db.Set(key, value, pebble.Sync))
}

func (s *PebbleStore) Scan(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: UpperBound(prefix),
	})
	if err != nil {
		return Error.Wrap(err)
	}
	return scan(iter, fn)
}

// Begin starts a transaction. Reads see the committed state plus the
// transaction's own writes; nothing is visible to others until Commit.
func (s *PebbleStore) Begin() *Txn {
	return &Txn{batch: s.db.NewIndexedBatch()}
}

func scan(iter *pebble.Iterator, fn func(key, value []byte) error) error {
	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			iter.Close()
			return err
		}
	}
	return Error.Wrap(iter.Close())
}

var _ KV = (*PebbleStore)(nil)
