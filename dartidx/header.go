package dartidx

import (
	"encoding/binary"
	"fmt"

	"github.com/rpcpool/dartidx/indexmeta"
)

// Magic are the first eight bytes of a dartidx blob.
var Magic = [8]byte{'d', 'a', 'r', 't', 'i', 'd', 'x', '1'}

// headerFixedSize is the length, in bytes, of the five self-describing
// integer fields plus the metadata checksum that follow the magic and the
// body-length field.
const headerFixedSize = 8*5 + 8

// Header is the record at byte offset 0 of a persisted blob; its encoded
// size depends on the length of its metadata block (see Size). It names the byte offset of each region and the element count of BASE
// and CHECK; the DATA region's length is implicit (from DataIdx to the end
// of the blob).
type Header struct {
	BaseIdx  uint64
	CheckIdx uint64
	DataIdx  uint64
	BaseLen  uint64
	CheckLen uint64
	Metadata indexmeta.Meta
}

// Bytes serializes the header: Magic, a little-endian u32 giving the
// length of everything that follows, the five u64 fields in declared
// order, a u64 xxHash64 checksum of the metadata block, and finally the
// metadata block itself.
func (h *Header) Bytes() ([]byte, error) {
	metaBytes, err := h.Metadata.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("dartidx: marshaling header metadata: %w", err)
	}
	bodyLen := headerFixedSize + len(metaBytes)

	buf := make([]byte, 8+4+bodyLen)
	copy(buf[0:8], Magic[:])
	binary.LittleEndian.PutUint32(buf[8:12], uint32(bodyLen))

	off := 12
	putU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[off:off+8], v)
		off += 8
	}
	putU64(h.BaseIdx)
	putU64(h.CheckIdx)
	putU64(h.DataIdx)
	putU64(h.BaseLen)
	putU64(h.CheckLen)
	putU64(h.Metadata.Checksum())
	copy(buf[off:], metaBytes)
	return buf, nil
}

// Size returns the total encoded size of the header in bytes.
func (h *Header) Size() (int, error) {
	b, err := h.Bytes()
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// headerPrefixLen inspects the first 12 bytes of a blob (magic + body
// length) and returns the total encoded size of the header that follows,
// without requiring the rest of the blob to be resident in memory. This
// lets FromFile read only the header through the mapping before deciding
// how many more bytes it needs, instead of materializing the whole
// (possibly huge) DATA region.
func headerPrefixLen(prefix []byte) (int, error) {
	if len(prefix) < 12 {
		return 0, fmt.Errorf("%w: blob too small for magic and body length (%d bytes)", ErrMalformedBlob, len(prefix))
	}
	if *(*[8]byte)(prefix[:8]) != Magic {
		return 0, fmt.Errorf("%w: bad magic", ErrMalformedBlob)
	}
	bodyLen := int(binary.LittleEndian.Uint32(prefix[8:12]))
	if bodyLen < headerFixedSize {
		return 0, fmt.Errorf("%w: header body length %d shorter than fixed fields %d", ErrMalformedBlob, bodyLen, headerFixedSize)
	}
	return 12 + bodyLen, nil
}

// parseHeader reads and validates a Header from a buffer holding exactly
// the header region (headerPrefixLen(buf) bytes); blobLen is the total
// size of the backing blob, used only to validate that DataIdx does not
// run past the end of it. It returns MalformedBlob-wrapped errors for any
// inconsistency, since buf may come from an untrusted source (FromBytes,
// FromFile).
func parseHeader(buf []byte, blobLen int64) (*Header, int, error) {
	headerTotal, err := headerPrefixLen(buf)
	if err != nil {
		return nil, 0, err
	}
	if headerTotal > len(buf) {
		return nil, 0, fmt.Errorf("%w: header claims %d bytes but only %d supplied", ErrMalformedBlob, headerTotal, len(buf))
	}

	off := 12
	getU64 := func() uint64 {
		v := binary.LittleEndian.Uint64(buf[off : off+8])
		off += 8
		return v
	}
	h := &Header{}
	h.BaseIdx = getU64()
	h.CheckIdx = getU64()
	h.DataIdx = getU64()
	h.BaseLen = getU64()
	h.CheckLen = getU64()
	wantChecksum := getU64()

	metaBytes := buf[off:headerTotal]
	if err := h.Metadata.UnmarshalBinary(metaBytes); err != nil {
		return nil, 0, fmt.Errorf("%w: metadata: %v", ErrMalformedBlob, err)
	}
	if got := h.Metadata.Checksum(); got != wantChecksum {
		return nil, 0, fmt.Errorf("%w: metadata checksum mismatch (want %x got %x)", ErrMalformedBlob, wantChecksum, got)
	}

	if h.BaseIdx != uint64(headerTotal) {
		return nil, 0, fmt.Errorf("%w: base_idx %d does not follow header (%d)", ErrMalformedBlob, h.BaseIdx, headerTotal)
	}
	if h.CheckIdx != h.BaseIdx+4*h.BaseLen {
		return nil, 0, fmt.Errorf("%w: check_idx %d inconsistent with base region (base_idx=%d base_len=%d)", ErrMalformedBlob, h.CheckIdx, h.BaseIdx, h.BaseLen)
	}
	if h.DataIdx != h.CheckIdx+4*h.CheckLen {
		return nil, 0, fmt.Errorf("%w: data_idx %d inconsistent with check region (check_idx=%d check_len=%d)", ErrMalformedBlob, h.DataIdx, h.CheckIdx, h.CheckLen)
	}
	if h.DataIdx > uint64(blobLen) {
		return nil, 0, fmt.Errorf("%w: data_idx %d past end of blob (%d bytes)", ErrMalformedBlob, h.DataIdx, blobLen)
	}
	return h, headerTotal, nil
}
