package rescache

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/joeycumines/go-utilpkg/jsonenc"
)

var (
	// ErrBusy is returned by the persistence methods when the cache lock
	// could not be acquired without blocking.
	ErrBusy = errors.New(`rescache: cache busy`)

	// ErrSerializer wraps failures raised by a caller-supplied serializer or
	// deserializer.
	ErrSerializer = errors.New(`rescache: serializer failure`)
)

// pair is one snapshot element, in insertion order.
type pair[V any] struct {
	key    string
	value  V
	expiry time.Time
}

// WriteToFile writes a binary snapshot to path, in insertion order: a
// little-endian uint64 entry count, then, per entry, a length-prefixed key
// and a length-prefixed serialized value (uint64 lengths, little-endian).
// Expiry deadlines are not persisted.
//
// The snapshot is a consistent point-in-time image taken under a
// non-blocking exclusive acquire; ErrBusy is returned on contention, and
// serialization runs after the lock is released. On any error the cache is
// unchanged and no file content is written.
func (x *Cache[V]) WriteToFile(path string, serializer func(V) ([]byte, error)) error {
	if serializer == nil {
		return fmt.Errorf(`%w: nil serializer`, ErrSerializer)
	}
	pairs, err := x.snapshot()
	if err != nil {
		return err
	}

	var buf []byte
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(pairs)))
	for _, p := range pairs {
		value, err := serializer(p.value)
		if err != nil {
			return fmt.Errorf(`%w: encode value: %w`, ErrSerializer, err)
		}
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(p.key)))
		buf = append(buf, p.key...)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(value)))
		buf = append(buf, value...)
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf(`rescache: write to file: %w`, err)
	}
	return nil
}

// ReadFromFile atomically replaces the cache contents with the binary
// snapshot at path, preserving its insertion order. Loaded entries never
// expire (expiry is not part of the format), and no callbacks fire. Entries
// beyond the maximum size are dropped, oldest first. The file is read and
// deserialized before any lock is taken; on failure the cache is untouched.
// ErrBusy is returned on lock contention.
func (x *Cache[V]) ReadFromFile(path string, deserializer func([]byte) (V, error)) error {
	if deserializer == nil {
		return fmt.Errorf(`%w: nil deserializer`, ErrSerializer)
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf(`rescache: read from file: %w`, err)
	}

	count, buf, err := readUint64(buf)
	if err != nil {
		return err
	}
	pairs := make([]pair[V], 0, min(count, 1<<16))
	for i := uint64(0); i < count; i++ {
		var keyBytes, valueBytes []byte
		if keyBytes, buf, err = readChunk(buf); err != nil {
			return err
		}
		if valueBytes, buf, err = readChunk(buf); err != nil {
			return err
		}
		value, err := deserializer(valueBytes)
		if err != nil {
			return fmt.Errorf(`%w: decode value: %w`, ErrSerializer, err)
		}
		pairs = append(pairs, pair[V]{key: string(keyBytes), value: value})
	}

	if !x.mu.TryLock() {
		return ErrBusy
	}
	defer x.mu.Unlock()

	x.entries = make(map[string]*entry[V], len(pairs))
	for _, p := range pairs {
		x.seq++
		x.entries[p.key] = &entry[V]{value: p.value, seq: x.seq}
	}
	for len(x.entries) > x.maxSize {
		x.evictOldestLocked()
	}
	return nil
}

// jsonEntry is the wire form of one JSON snapshot entry.
type jsonEntry struct {
	Value    json.RawMessage `json:"value"`
	ExpiryMS int64           `json:"expiry_ms"`
}

// WriteToJSONFile writes a JSON snapshot to path: an object mapping each
// key to {"value": <serializer output>, "expiry_ms": <ms since epoch>},
// with -1 for entries that never expire. The serializer must produce valid
// JSON. Locking and error behavior are as for WriteToFile.
func (x *Cache[V]) WriteToJSONFile(path string, toJSON func(V) ([]byte, error)) error {
	if toJSON == nil {
		return fmt.Errorf(`%w: nil serializer`, ErrSerializer)
	}
	pairs, err := x.snapshot()
	if err != nil {
		return err
	}

	buf := []byte{'{'}
	for i, p := range pairs {
		value, err := toJSON(p.value)
		if err != nil {
			return fmt.Errorf(`%w: encode value: %w`, ErrSerializer, err)
		}
		if !json.Valid(value) {
			return fmt.Errorf(`%w: encode value: not valid JSON`, ErrSerializer)
		}
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = jsonenc.AppendString(buf, p.key)
		buf = append(buf, `:{"value":`...)
		buf = append(buf, value...)
		buf = append(buf, `,"expiry_ms":`...)
		buf = strconv.AppendInt(buf, expiryMS(p.expiry), 10)
		buf = append(buf, '}')
	}
	buf = append(buf, '}')

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf(`rescache: write to json file: %w`, err)
	}
	return nil
}

// ReadFromJSONFile merges the JSON snapshot at path into the cache,
// overwriting existing keys. Merged entries adopt the persisted expiry
// deadlines (-1 meaning never), count as fresh insertions for eviction
// order, and fire the insert callback. The file is read and deserialized
// before any lock is taken; on failure the cache is untouched. ErrBusy is
// returned on lock contention.
func (x *Cache[V]) ReadFromJSONFile(path string, fromJSON func(json.RawMessage) (V, error)) error {
	if fromJSON == nil {
		return fmt.Errorf(`%w: nil deserializer`, ErrSerializer)
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf(`rescache: read from json file: %w`, err)
	}

	var raw map[string]jsonEntry
	if err := json.Unmarshal(buf, &raw); err != nil {
		return fmt.Errorf(`rescache: read from json file: %w`, err)
	}

	pairs := make([]pair[V], 0, len(raw))
	for key, je := range raw {
		value, err := fromJSON(je.Value)
		if err != nil {
			return fmt.Errorf(`%w: decode value: %w`, ErrSerializer, err)
		}
		var expiry time.Time
		if je.ExpiryMS >= 0 {
			expiry = time.UnixMilli(je.ExpiryMS)
		}
		pairs = append(pairs, pair[V]{key: key, value: value, expiry: expiry})
	}
	// JSON objects are unordered; merge deterministically.
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	if !x.mu.TryLock() {
		return ErrBusy
	}
	var evicted []string
	for _, p := range pairs {
		if _, ok := x.entries[p.key]; !ok {
			for len(x.entries) >= x.maxSize {
				k, ok := x.evictOldestLocked()
				if !ok {
					break
				}
				evicted = append(evicted, k)
			}
		}
		x.seq++
		x.entries[p.key] = &entry[V]{value: p.value, expiry: p.expiry, seq: x.seq}
	}
	onInsert, onRemove := x.onInsert, x.onRemove
	x.mu.Unlock()

	for _, key := range evicted {
		x.fireRemove(onRemove, key)
	}
	for _, p := range pairs {
		x.fireInsert(onInsert, p.key, p.value)
	}
	return nil
}

// snapshot copies the cache contents in insertion order, under a
// non-blocking exclusive acquire.
func (x *Cache[V]) snapshot() ([]pair[V], error) {
	if !x.mu.TryLock() {
		return nil, ErrBusy
	}
	pairs := make([]pair[V], 0, len(x.entries))
	seqs := make(map[string]uint64, len(x.entries))
	for key, e := range x.entries {
		pairs = append(pairs, pair[V]{key: key, value: e.value, expiry: e.expiry})
		seqs[key] = e.seq
	}
	x.mu.Unlock()

	sort.Slice(pairs, func(i, j int) bool { return seqs[pairs[i].key] < seqs[pairs[j].key] })
	return pairs, nil
}

func expiryMS(expiry time.Time) int64 {
	if expiry.IsZero() {
		return -1
	}
	return expiry.UnixMilli()
}

func readUint64(buf []byte) (uint64, []byte, error) {
	if len(buf) < 8 {
		return 0, nil, fmt.Errorf(`rescache: read from file: %w`, io.ErrUnexpectedEOF)
	}
	return binary.LittleEndian.Uint64(buf), buf[8:], nil
}

func readChunk(buf []byte) ([]byte, []byte, error) {
	size, buf, err := readUint64(buf)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(buf)) < size {
		return nil, nil, fmt.Errorf(`rescache: read from file: %w`, io.ErrUnexpectedEOF)
	}
	return buf[:size], buf[size:], nil
}
