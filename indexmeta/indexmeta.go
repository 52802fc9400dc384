// Package indexmeta implements a small, self-describing key/value metadata
// block embedded in a dartidx header: the codec name that built the index,
// a format version, and any caller-supplied tags (e.g. a build timestamp).
// It lets a reader refuse to open a blob built with an incompatible codec
// before ever touching BASE/CHECK/DATA.
package indexmeta

import (
	"bytes"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

const (
	MaxNumKVs    = 255
	MaxKeySize   = 255
	MaxValueSize = 255
)

// KV is a single metadata key/value pair.
type KV struct {
	Key   []byte
	Value []byte
}

// NewKV constructs a KV.
func NewKV(key, value []byte) KV {
	return KV{Key: key, Value: value}
}

// Meta is an ordered list of metadata key/value pairs.
type Meta struct {
	KeyVals []KV
}

// Bytes returns the serialized metadata, panicking on the encoding errors
// that Add already prevents (oversized keys/values/count).
func (m *Meta) Bytes() []byte {
	b, err := m.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return b
}

// MarshalBinary encodes the metadata as a count byte followed by
// length-prefixed key/value pairs.
func (m Meta) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if len(m.KeyVals) > MaxNumKVs {
		return nil, fmt.Errorf("indexmeta: %d key-value pairs exceeds max %d", len(m.KeyVals), MaxNumKVs)
	}
	buf.WriteByte(byte(len(m.KeyVals)))
	for i, kv := range m.KeyVals {
		if len(kv.Key) > MaxKeySize {
			return nil, fmt.Errorf("indexmeta: key %d size %d exceeds max %d", i, len(kv.Key), MaxKeySize)
		}
		if len(kv.Value) > MaxValueSize {
			return nil, fmt.Errorf("indexmeta: value %d size %d exceeds max %d", i, len(kv.Value), MaxValueSize)
		}
		buf.WriteByte(byte(len(kv.Key)))
		buf.Write(kv.Key)
		buf.WriteByte(byte(len(kv.Value)))
		buf.Write(kv.Value)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes the metadata produced by MarshalBinary.
func (m *Meta) UnmarshalBinary(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	numKVs := int(b[0])
	r := bytes.NewReader(b[1:])
	for i := 0; i < numKVs; i++ {
		var kv KV
		keyLen, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("indexmeta: reading key length %d: %w", i, err)
		}
		kv.Key = make([]byte, keyLen)
		if _, err := io.ReadFull(r, kv.Key); err != nil {
			return fmt.Errorf("indexmeta: reading key %d: %w", i, err)
		}
		valueLen, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("indexmeta: reading value length %d: %w", i, err)
		}
		kv.Value = make([]byte, valueLen)
		if _, err := io.ReadFull(r, kv.Value); err != nil {
			return fmt.Errorf("indexmeta: reading value %d: %w", i, err)
		}
		m.KeyVals = append(m.KeyVals, kv)
	}
	return nil
}

// Checksum returns an xxHash64 digest of the serialized metadata, stored
// alongside it in the header so a reader can detect a truncated or
// corrupted metadata block independently of the five-field header layout.
func (m Meta) Checksum() uint64 {
	b, err := m.MarshalBinary()
	if err != nil {
		return 0
	}
	return xxhash.Sum64(b)
}

func cloneBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}

// Add appends a key-value pair.
func (m *Meta) Add(key, value []byte) error {
	if len(m.KeyVals) >= MaxNumKVs {
		return fmt.Errorf("indexmeta: %d key-value pairs exceeds max %d", len(m.KeyVals), MaxNumKVs)
	}
	if len(key) > MaxKeySize {
		return fmt.Errorf("indexmeta: key size %d exceeds max %d", len(key), MaxKeySize)
	}
	if len(value) > MaxValueSize {
		return fmt.Errorf("indexmeta: value size %d exceeds max %d", len(value), MaxValueSize)
	}
	m.KeyVals = append(m.KeyVals, KV{Key: cloneBytes(key), Value: cloneBytes(value)})
	return nil
}

// AddString adds a string-valued key.
func (m *Meta) AddString(key []byte, value string) error {
	return m.Add(key, []byte(value))
}

// GetString returns a string-valued key.
func (m Meta) GetString(key []byte) (string, bool) {
	value, ok := m.Get(key)
	if !ok {
		return "", false
	}
	return string(value), true
}

// Get returns the first value for the given key.
func (m Meta) Get(key []byte) ([]byte, bool) {
	for _, kv := range m.KeyVals {
		if bytes.Equal(kv.Key, key) {
			return kv.Value, true
		}
	}
	return nil, false
}

// Well-known metadata keys used by the dartidx header.
var (
	KeyCodec   = []byte("codec")
	KeyVersion = []byte("ver")
)
