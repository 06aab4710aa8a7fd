package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
)

// GetJSON decodes the value at key into v. It reports false, nil when
// the key is absent.
func GetJSON(kv KV, key []byte, v any) (bool, error) {
	data, err := kv.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, Error.New("decode %q: %v", key, err)
	}
	return true, nil
}

func SetJSON(kv KV, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return Error.New("encode %q: %v", key, err)
	}
	return kv.Set(key, data)
}

// GetUint64 reads a big-endian counter, returning 0 when absent.
func GetUint64(kv KV, key []byte) (uint64, error) {
	data, err := kv.Get(key)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, Error.New("counter %q: bad length %d", key, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

func SetUint64(kv KV, key []byte, n uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	return kv.Set(key, b[:])
}
