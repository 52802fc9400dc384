package dartidx

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/rpcpool/dartidx/bitcache"
	"github.com/rpcpool/dartidx/indexmeta"
	"github.com/rpcpool/dartidx/trie"
	"github.com/rpcpool/dartidx/valuecodec"
)

// Build compiles a finalized trie into a double-array Index using a
// depth-first traversal and a BitCache to find collision-free base
// offsets. The trie is not mutated; t may be discarded afterward.
func Build[V any](t *trie.Trie[V], codec valuecodec.Codec[V]) (*Index[V], error) {
	count := t.Len()
	length := 256
	if 4*count > length {
		length = 4 * count
	}
	base := make([]uint32, length)
	check := make([]uint32, length)
	var data []byte

	bc := bitcache.New()
	bc.Set(0)
	bc.Set(1)

	grow := func(minLen int) {
		if minLen <= len(base) {
			return
		}
		newLen := len(base) * 2
		if newLen < minLen {
			newLen = minLen
		}
		slog.Debug("dartidx: growing arrays", "old_len", len(base), "new_len", newLen)
		nb := make([]uint32, newLen)
		copy(nb, base)
		base = nb
		nc := make([]uint32, newLen)
		copy(nc, check)
		check = nc
	}

	type workItem struct {
		index int
		node  *trie.Node[V]
	}

	root := t.Root()
	var stack []workItem
	if len(root.Children) > 0 || len(root.Values) > 0 {
		stack = append(stack, workItem{index: 1, node: root})
	}

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		bc.UpdateStart()

		children := it.node.Children
		if len(it.node.Values) > 0 {
			sentinel := &trie.Node[V]{KeyByte: trie.SentinelByte}
			merged := make([]*trie.Node[V], len(children), len(children)+1)
			copy(merged, children)
			children = append(merged, sentinel)
		}
		if len(children) == 0 {
			return nil, fmt.Errorf("dartidx: find_base called with no children at index %d: %w", it.index, ErrBuildInconsistency)
		}

		baseOff, err := findBase(children, bc)
		if err != nil {
			return nil, err
		}
		if baseOff < 0 {
			return nil, fmt.Errorf("dartidx: negative base %d at index %d: %w", baseOff, it.index, ErrBuildInconsistency)
		}
		base[it.index] = uint32(baseOff)

		if need := baseOff + trie.SentinelByte + 1; need > len(base) {
			grow(need)
		}

		for _, c := range children {
			i := baseOff + int(c.KeyByte)
			bc.Set(i)
			check[i] = uint32(it.index)
			if c.KeyByte == trie.SentinelByte {
				enc, err := codec.Encode(it.node.Values)
				if err != nil {
					return nil, fmt.Errorf("dartidx: encoding values at index %d: %w", it.index, err)
				}
				d := len(data)
				data = append(data, enc...)
				base[i] = uint32(d)
			} else {
				stack = append(stack, workItem{index: i, node: c})
			}
		}
	}

	finalLen := 256
	if count > 0 {
		if last, ok := bc.LastIndexOfOne(); ok {
			finalLen = last + 256
		}
	}
	grow(finalLen)
	slog.Info("dartidx: truncating arrays to final size", "grown_len", len(base), "final_len", finalLen)
	base = base[:finalLen]
	check = check[:finalLen]

	return FromArrays(base, check, data, codec)
}

// findBase returns the smallest new_base such that every child's slot
// new_base+key_byte is unoccupied, by a monotone search over an
// increasing offset from the BitCache's current cursor. children must be
// sorted ascending by KeyByte and nonempty.
func findBase[V any](children []*trie.Node[V], bc *bitcache.BitCache) (int, error) {
	if len(children) == 0 {
		return 0, ErrBuildInconsistency
	}
	firstKey := int(children[0].KeyByte)
	offset := 0
	for {
		emptyIdx := bc.FindEmptyIdx(offset)
		if emptyIdx < 256 {
			offset++
			continue
		}
		newBase := emptyIdx - firstKey
		collision := false
		for _, c := range children[1:] {
			if bc.Get(newBase+int(c.KeyByte)) != 0 {
				collision = true
				break
			}
		}
		if collision {
			offset++
			continue
		}
		return newBase, nil
	}
}

// FromArrays packages a compiled (BASE, CHECK, DATA) triple into a single
// in-memory blob, described by a Header, and returns an immutable view
// over it. This is also the path Build uses internally after compiling
// the arrays.
func FromArrays[V any](base, check []uint32, data []byte, codec valuecodec.Codec[V]) (*Index[V], error) {
	var meta indexmeta.Meta
	if err := meta.AddString(indexmeta.KeyCodec, codec.Name()); err != nil {
		return nil, fmt.Errorf("dartidx: %w", err)
	}
	if err := meta.Add(indexmeta.KeyVersion, []byte{1}); err != nil {
		return nil, fmt.Errorf("dartidx: %w", err)
	}

	h := &Header{
		BaseLen:  uint64(len(base)),
		CheckLen: uint64(len(check)),
		Metadata: meta,
	}
	hdrSize, err := h.Size()
	if err != nil {
		return nil, fmt.Errorf("dartidx: %w", err)
	}
	h.BaseIdx = uint64(hdrSize)
	h.CheckIdx = h.BaseIdx + 4*uint64(len(base))
	h.DataIdx = h.CheckIdx + 4*uint64(len(check))

	hdrBytes, err := h.Bytes()
	if err != nil {
		return nil, fmt.Errorf("dartidx: %w", err)
	}

	blob := make([]byte, int(h.DataIdx)+len(data))
	copy(blob, hdrBytes)

	off := int(h.BaseIdx)
	for _, v := range base {
		binary.LittleEndian.PutUint32(blob[off:off+4], v)
		off += 4
	}
	off = int(h.CheckIdx)
	for _, v := range check {
		binary.LittleEndian.PutUint32(blob[off:off+4], v)
		off += 4
	}
	copy(blob[h.DataIdx:], data)

	return &Index[V]{
		src:   &byteSource{b: blob},
		hdr:   h,
		codec: codec,
	}, nil
}
