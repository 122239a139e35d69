package lru

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrBusy is returned by SaveToFile and LoadFromFile when the cache lock
	// could not be acquired without blocking.
	ErrBusy = errors.New(`lru: cache busy`)

	// ErrSerializer wraps failures raised by a Codec.
	ErrSerializer = errors.New(`lru: serializer failure`)
)

// Codec supplies the key and value byte representations used by SaveToFile
// and LoadFromFile. All four functions are required; encode/decode pairs
// must round-trip.
type Codec[K comparable, V any] struct {
	EncodeKey   func(K) ([]byte, error)
	DecodeKey   func([]byte) (K, error)
	EncodeValue func(V) ([]byte, error)
	DecodeValue func([]byte) (V, error)
}

func (x Codec[K, V]) ok() bool {
	return x.EncodeKey != nil && x.DecodeKey != nil &&
		x.EncodeValue != nil && x.DecodeValue != nil
}

// StringCodec returns a Codec for string-keyed, string-valued caches.
func StringCodec() Codec[string, string] {
	str := func(b []byte) (string, error) { return string(b), nil }
	raw := func(s string) ([]byte, error) { return []byte(s), nil }
	return Codec[string, string]{
		EncodeKey:   raw,
		DecodeKey:   str,
		EncodeValue: raw,
		DecodeValue: str,
	}
}

// SaveToFile writes a binary snapshot of the cache to path, in
// most-recently-used-first order: a little-endian uint64 entry count, then,
// per entry, a length-prefixed key and a length-prefixed value (uint64
// lengths, little-endian). Expiry deadlines are not persisted.
//
// The snapshot is taken under a non-blocking exclusive acquire; ErrBusy is
// returned on contention. Codec failures return an error wrapping
// ErrSerializer. On any error, no file content is written.
func (x *Cache[K, V]) SaveToFile(path string, codec Codec[K, V]) error {
	if codec.EncodeKey == nil || codec.EncodeValue == nil {
		return fmt.Errorf(`%w: incomplete codec`, ErrSerializer)
	}

	if !x.mu.TryLock() {
		return ErrBusy
	}
	type pair struct {
		key   K
		value V
	}
	pairs := make([]pair, 0, len(x.entries))
	for n := x.list.front; n != nil; n = n.next {
		pairs = append(pairs, pair{key: n.key, value: n.value})
	}
	x.mu.Unlock()

	// Encoding runs the caller's serializers, so it happens outside the
	// lock.
	var buf []byte
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(pairs)))
	for _, p := range pairs {
		key, err := codec.EncodeKey(p.key)
		if err != nil {
			return fmt.Errorf(`%w: encode key: %w`, ErrSerializer, err)
		}
		value, err := codec.EncodeValue(p.value)
		if err != nil {
			return fmt.Errorf(`%w: encode value: %w`, ErrSerializer, err)
		}
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(key)))
		buf = append(buf, key...)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(value)))
		buf = append(buf, value...)
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf(`lru: save to file: %w`, err)
	}
	return nil
}

// LoadFromFile atomically replaces the cache contents with the snapshot at
// path, preserving its order. Loaded entries never expire (expiry is not
// part of the snapshot format). Entries beyond the maximum size are dropped
// from the least-recently-used end. No callbacks fire.
//
// The file is read and decoded before any lock is taken; on a decode or I/O
// failure the cache is left untouched. ErrBusy is returned on lock
// contention.
func (x *Cache[K, V]) LoadFromFile(path string, codec Codec[K, V]) error {
	if !codec.ok() {
		return fmt.Errorf(`%w: incomplete codec`, ErrSerializer)
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf(`lru: load from file: %w`, err)
	}
	nodes, err := decodeSnapshot(buf, codec)
	if err != nil {
		return err
	}

	if !x.mu.TryLock() {
		return ErrBusy
	}
	defer x.mu.Unlock()

	x.entries = make(map[K]*node[K, V], len(nodes))
	x.list = list[K, V]{}
	for _, n := range nodes {
		if len(x.entries) >= x.maxSize {
			break
		}
		if _, ok := x.entries[n.key]; ok {
			continue
		}
		x.entries[n.key] = n
		x.list.pushBack(n)
	}
	return nil
}

func decodeSnapshot[K comparable, V any](buf []byte, codec Codec[K, V]) ([]*node[K, V], error) {
	count, buf, err := readUint64(buf)
	if err != nil {
		return nil, err
	}
	nodes := make([]*node[K, V], 0, min(count, 1<<16))
	for i := uint64(0); i < count; i++ {
		var keyBytes, valueBytes []byte
		if keyBytes, buf, err = readChunk(buf); err != nil {
			return nil, err
		}
		if valueBytes, buf, err = readChunk(buf); err != nil {
			return nil, err
		}
		key, err := codec.DecodeKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf(`%w: decode key: %w`, ErrSerializer, err)
		}
		value, err := codec.DecodeValue(valueBytes)
		if err != nil {
			return nil, fmt.Errorf(`%w: decode value: %w`, ErrSerializer, err)
		}
		nodes = append(nodes, &node[K, V]{key: key, value: value})
	}
	return nodes, nil
}

func readUint64(buf []byte) (uint64, []byte, error) {
	if len(buf) < 8 {
		return 0, nil, fmt.Errorf(`lru: load from file: %w`, io.ErrUnexpectedEOF)
	}
	return binary.LittleEndian.Uint64(buf), buf[8:], nil
}

func readChunk(buf []byte) ([]byte, []byte, error) {
	size, buf, err := readUint64(buf)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(buf)) < size {
		return nil, nil, fmt.Errorf(`lru: load from file: %w`, io.ErrUnexpectedEOF)
	}
	return buf[:size], buf[size:], nil
}
