// Package valuecodec defines the pluggable serializer the double-array
// index uses to turn a key's ordered value list into an opaque byte block
// and back. The core index packages never inspect V's structure; they only
// call Encode/Decode.
package valuecodec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/valyala/bytebufferpool"
)

// Codec turns a sequence of values into a self-delimiting byte block and
// back. Encode must be deterministic: the same value sequence always
// produces the same bytes, since the double-array build is required to be
// deterministic end to end.
type Codec[V any] interface {
	// Name identifies the codec; it is recorded in the index header so a
	// reader can refuse to open a blob built with an incompatible codec.
	Name() string
	Encode(values []V) ([]byte, error)
	Decode(data []byte) ([]V, error)
}

// BytesVarint is the default codec: a varint count of values, followed by
// each value as a varint length prefix plus its raw bytes.
type BytesVarint struct{}

// Name implements Codec.
func (BytesVarint) Name() string { return "bytesvarint/v1" }

// Encode implements Codec.
func (BytesVarint) Encode(values [][]byte) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.Reset()

	var hdr [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(len(values)))
	buf.Write(hdr[:n])
	for _, v := range values {
		n = binary.PutUvarint(hdr[:], uint64(len(v)))
		buf.Write(hdr[:n])
		buf.Write(v)
	}

	out := make([]byte, len(buf.B))
	copy(out, buf.B)
	return out, nil
}

// Decode implements Codec.
func (BytesVarint) Decode(data []byte) ([][]byte, error) {
	r := bytes.NewReader(data)
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("valuecodec: reading value count: %w", err)
	}
	values := make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		ln, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("valuecodec: reading length of value %d: %w", i, err)
		}
		v := make([]byte, ln)
		if _, err := io.ReadFull(r, v); err != nil {
			return nil, fmt.Errorf("valuecodec: reading value %d (%d bytes): %w", i, ln, err)
		}
		values = append(values, v)
	}
	return values, nil
}

// Uint64Varint encodes sequences of uint64, e.g. file offsets. Useful when
// a key's values are themselves small integers rather than opaque blobs.
type Uint64Varint struct{}

// Name implements Codec.
func (Uint64Varint) Name() string { return "uint64varint/v1" }

// Encode implements Codec.
func (Uint64Varint) Encode(values []uint64) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.Reset()

	var hdr [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(len(values)))
	buf.Write(hdr[:n])
	for _, v := range values {
		n = binary.PutUvarint(hdr[:], v)
		buf.Write(hdr[:n])
	}
	out := make([]byte, len(buf.B))
	copy(out, buf.B)
	return out, nil
}

// Decode implements Codec.
func (Uint64Varint) Decode(data []byte) ([]uint64, error) {
	r := bytes.NewReader(data)
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("valuecodec: reading value count: %w", err)
	}
	values := make([]uint64, 0, count)
	for i := uint64(0); i < count; i++ {
		v, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("valuecodec: reading value %d: %w", i, err)
		}
		values = append(values, v)
	}
	return values, nil
}
