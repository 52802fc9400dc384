package dartidx

import (
	"encoding/binary"
	"fmt"

	"github.com/rpcpool/dartidx/trie"
	"github.com/rpcpool/dartidx/valuecodec"
)

// Index is an immutable, memory-mappable double-array trie over
// byte-string keys, each associated with an ordered multi-set of values of
// type V. The zero value is not usable; construct one with Build,
// FromArrays, FromBytes, or FromFile.
type Index[V any] struct {
	src   source
	hdr   *Header
	codec valuecodec.Codec[V]
}

// Close releases the backing mapping (a no-op for in-memory indexes built
// by Build/FromArrays/FromBytes).
func (idx *Index[V]) Close() error {
	return idx.src.Close()
}

// Len returns the number of elements in BASE/CHECK.
func (idx *Index[V]) Len() int {
	return int(idx.hdr.BaseLen)
}

// Stats summarizes the compiled array for introspection and logging; it is
// not part of the lookup surface.
type Stats struct {
	ArrayLen     int
	OccupiedSlot int // number of CHECK slots with CHECK[i] != 0, plus the root slot 1
	DataLen      int
}

// Stats reads back occupancy counts. It is O(array length) and intended
// for diagnostics, not the hot path.
func (idx *Index[V]) Stats() (Stats, error) {
	occupied := 0
	for i := 0; i < int(idx.hdr.CheckLen); i++ {
		v, ok := idx.checkAt(i)
		if !ok {
			return Stats{}, fmt.Errorf("dartidx: reading check[%d]: %w", i, ErrMalformedBlob)
		}
		if v != 0 || i == 1 {
			occupied++
		}
	}
	return Stats{
		ArrayLen:     int(idx.hdr.BaseLen),
		OccupiedSlot: occupied,
		DataLen:      int(idx.src.Len()) - int(idx.hdr.DataIdx),
	}, nil
}

func (idx *Index[V]) baseAt(i int) (uint32, bool) {
	if i < 0 || uint64(i) >= idx.hdr.BaseLen {
		return 0, false
	}
	var buf [4]byte
	n, err := idx.src.ReadAt(buf[:], int64(idx.hdr.BaseIdx)+4*int64(i))
	if n < 4 || err != nil {
		return 0, false
	}
	return binary.LittleEndian.Uint32(buf[:]), true
}

func (idx *Index[V]) checkAt(i int) (uint32, bool) {
	if i < 0 || uint64(i) >= idx.hdr.CheckLen {
		return 0, false
	}
	var buf [4]byte
	n, err := idx.src.ReadAt(buf[:], int64(idx.hdr.CheckIdx)+4*int64(i))
	if n < 4 || err != nil {
		return 0, false
	}
	return binary.LittleEndian.Uint32(buf[:]), true
}

// dataAt returns the tail of the DATA region starting at offset; codecs
// are self-delimiting, so handing them the whole remaining tail (rather
// than a precomputed length) is sufficient and keeps the file format
// simple (§6: DATA length is implicit, from data_idx to end of blob).
func (idx *Index[V]) dataAt(offset int) ([]byte, error) {
	start := int64(idx.hdr.DataIdx) + int64(offset)
	total := idx.src.Len()
	if start < int64(idx.hdr.DataIdx) || start > total {
		return nil, fmt.Errorf("dartidx: data offset %d out of range", offset)
	}
	buf := make([]byte, total-start)
	if len(buf) == 0 {
		return buf, nil
	}
	n, err := idx.src.ReadAt(buf, start)
	if n < len(buf) {
		return nil, fmt.Errorf("dartidx: short read of data region: %w", err)
	}
	return buf, nil
}

// Get performs an exact-match lookup. It returns (values, true, nil) when
// key is associated with a nonempty value list, (nil, false, nil) when key
// has no association (including out-of-range transitions in a corrupted
// blob, which are treated as "no match" per the bounds-check policy), and
// a non-nil error only if the value block exists but fails to decode.
func (idx *Index[V]) Get(key []byte) ([]V, bool, error) {
	base, ok := idx.baseAt(1)
	if !ok {
		return nil, false, nil
	}
	nodeIdx := 1
	for _, b := range key {
		next := int(base) + int(b)
		c, ok := idx.checkAt(next)
		if !ok || c != uint32(nodeIdx) {
			return nil, false, nil
		}
		nodeIdx = next
		base, ok = idx.baseAt(nodeIdx)
		if !ok {
			return nil, false, nil
		}
	}
	valueIdx := int(base) + trie.SentinelByte
	c, ok := idx.checkAt(valueIdx)
	if !ok || c != uint32(nodeIdx) {
		return nil, false, nil
	}
	dataOff, ok := idx.baseAt(valueIdx)
	if !ok {
		return nil, false, nil
	}
	values, err := idx.decodeAt(int(dataOff))
	if err != nil {
		return nil, false, err
	}
	return values, true, nil
}

func (idx *Index[V]) decodeAt(dataOff int) ([]V, error) {
	tail, err := idx.dataAt(dataOff)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	values, err := idx.codec.Decode(tail)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	return values, nil
}

// PrefixMatch is one (prefix, values) result from PrefixSearch or
// PrefixSearchIter.
type PrefixMatch[V any] struct {
	Prefix []byte
	Values []V
}

// PrefixSearch walks key one byte at a time; at each successful transition
// it probes the sentinel slot of the node just reached and, if present,
// appends (key[:i+1], decoded values) to the result. It halts at the
// first failing transition rather than erroring: a partial prefix match is
// not an error condition. Results are ordered from shortest to longest
// matching prefix.
func (idx *Index[V]) PrefixSearch(key []byte) ([]PrefixMatch[V], error) {
	base, ok := idx.baseAt(1)
	if !ok {
		return nil, nil
	}
	nodeIdx := 1
	var results []PrefixMatch[V]
	for i, b := range key {
		next := int(base) + int(b)
		c, ok := idx.checkAt(next)
		if !ok || c != uint32(nodeIdx) {
			break
		}
		nodeIdx = next
		base, ok = idx.baseAt(nodeIdx)
		if !ok {
			break
		}
		match, present, err := idx.probeSentinel(nodeIdx, base, key[:i+1])
		if err != nil {
			return results, err
		}
		if present {
			results = append(results, match)
		}
	}
	return results, nil
}

func (idx *Index[V]) probeSentinel(nodeIdx int, base uint32, prefix []byte) (PrefixMatch[V], bool, error) {
	valueIdx := int(base) + trie.SentinelByte
	c, ok := idx.checkAt(valueIdx)
	if !ok || c != uint32(nodeIdx) {
		return PrefixMatch[V]{}, false, nil
	}
	dataOff, ok := idx.baseAt(valueIdx)
	if !ok {
		return PrefixMatch[V]{}, false, nil
	}
	values, err := idx.decodeAt(int(dataOff))
	if err != nil {
		return PrefixMatch[V]{}, false, err
	}
	out := make([]byte, len(prefix))
	copy(out, prefix)
	return PrefixMatch[V]{Prefix: out, Values: values}, true, nil
}

// PrefixIter is a single-pass, non-restartable iterator over the prefixes
// of a query key that have associated values, from shortest to longest.
type PrefixIter[V any] struct {
	idx     *Index[V]
	key     []byte
	pos     int
	nodeIdx int
	base    uint32
	done    bool
}

// PrefixSearchIter returns a lazy, incremental equivalent of PrefixSearch:
// each call to Next resumes from the last-visited node instead of
// rescanning the query from the start.
func (idx *Index[V]) PrefixSearchIter(key []byte) *PrefixIter[V] {
	base, ok := idx.baseAt(1)
	it := &PrefixIter[V]{idx: idx, key: key, nodeIdx: 1, base: base}
	if !ok {
		it.done = true
	}
	return it
}

// Next advances the iterator by zero or more bytes of the query and
// returns the next (prefix, values) match, or ok == false once the query
// is exhausted or a transition fails.
func (it *PrefixIter[V]) Next() (match PrefixMatch[V], ok bool, err error) {
	for !it.done && it.pos < len(it.key) {
		b := it.key[it.pos]
		next := int(it.base) + int(b)
		c, found := it.idx.checkAt(next)
		if !found || c != uint32(it.nodeIdx) {
			it.done = true
			return PrefixMatch[V]{}, false, nil
		}
		it.nodeIdx = next
		base, found := it.idx.baseAt(it.nodeIdx)
		if !found {
			it.done = true
			return PrefixMatch[V]{}, false, nil
		}
		it.base = base
		it.pos++

		m, present, probeErr := it.idx.probeSentinel(it.nodeIdx, it.base, it.key[:it.pos])
		if probeErr != nil {
			it.done = true
			return PrefixMatch[V]{}, false, probeErr
		}
		if present {
			return m, true, nil
		}
	}
	it.done = true
	return PrefixMatch[V]{}, false, nil
}
