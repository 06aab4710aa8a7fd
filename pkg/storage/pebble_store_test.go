package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *PebbleStore {
	t.Helper()
	s, err := NewMemStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPebbleStoreGetSet(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)

	ok, err := s.Has([]byte("k"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set([]byte("k"), []byte("v")))
	got, err := s.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)

	ok, err = s.Has([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestTxnCommitAndDiscard(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set([]byte("a"), []byte("1")))

	txn := s.Begin()
	require.NoError(t, txn.Set([]byte("a"), []byte("2")))
	require.NoError(t, txn.Set([]byte("b"), []byte("3")))

	// the transaction reads its own writes; the store does not
	got, err := txn.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), got)
	got, err = s.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), got)

	txn.Discard()
	_, err = s.Get([]byte("b"))
	require.ErrorIs(t, err, ErrNotFound)

	txn = s.Begin()
	require.NoError(t, txn.Set([]byte("b"), []byte("3")))
	require.NoError(t, txn.Commit())
	txn.Discard()

	got, err = s.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("3"), got)

	require.Error(t, txn.Set([]byte("c"), nil))
}

func TestScanPrefix(t *testing.T) {
	s := newTestStore(t)
	for _, k := range []string{"ord:0000000002", "ord:0000000001", "orx:1", "bal:x"} {
		require.NoError(t, s.Set([]byte(k), []byte(k)))
	}

	txn := s.Begin()
	defer txn.Discard()
	require.NoError(t, txn.Set([]byte("ord:0000000003"), []byte("pending")))

	var keys []string
	require.NoError(t, txn.Scan([]byte("ord:"), func(k, _ []byte) error {
		keys = append(keys, string(k))
		return nil
	}))
	require.Equal(t, []string{"ord:0000000001", "ord:0000000002", "ord:0000000003"}, keys)

	stop := errors.New("stop")
	n := 0
	err := s.Scan([]byte("ord:"), func(_, _ []byte) error {
		n++
		return stop
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 1, n)
}

func TestJSONAndCounters(t *testing.T) {
	s := newTestStore(t)

	type rec struct {
		Rate uint32
		Name string
	}
	var out rec
	ok, err := GetJSON(s, Key("cfg", "fee"), &out)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, SetJSON(s, Key("cfg", "fee"), rec{Rate: 30, Name: "x"}))
	ok, err = GetJSON(s, Key("cfg", "fee"), &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec{Rate: 30, Name: "x"}, out)

	n, err := GetUint64(s, Key("cfg", "count"))
	require.NoError(t, err)
	require.Zero(t, n)
	require.NoError(t, SetUint64(s, Key("cfg", "count"), 7))
	n, err = GetUint64(s, Key("cfg", "count"))
	require.NoError(t, err)
	require.EqualValues(t, 7, n)
}

func TestContextCarrier(t *testing.T) {
	s := newTestStore(t)
	require.Same(t, KV(s), From(context.Background(), s))

	txn := s.Begin()
	defer txn.Discard()
	ctx := WithKV(context.Background(), txn)
	require.Same(t, KV(txn), From(ctx, s))
}

func TestUpperBound(t *testing.T) {
	require.Equal(t, []byte("ord;"), UpperBound([]byte("ord:")))
	require.Equal(t, []byte("b"), UpperBound([]byte{'a', 0xff}))
	require.Nil(t, UpperBound([]byte{0xff}))
	require.Equal(t, "0000000042", Seq(42))
	require.Equal(t, []byte("bal:a:b:"), Prefix("bal", "a", "b"))
}

func TestExtend(t *testing.T) {
	s := newTestStore(t)
	require.ErrorIs(t, Extend(s, []byte("ord:1")), ErrNotFound)

	txn := s.Begin()
	defer txn.Discard()
	require.NoError(t, txn.Set([]byte("ord:1"), []byte("{}")))
	require.NoError(t, Extend(txn, []byte("ord:1")))
	// not yet visible outside the batch
	require.ErrorIs(t, Extend(s, []byte("ord:1")), ErrNotFound)

	require.NoError(t, txn.Commit())
	require.NoError(t, Extend(s, []byte("ord:1")))
}
