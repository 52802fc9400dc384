package dartidx

import (
	"errors"

	"github.com/rpcpool/dartidx/trie"
)

// Error kinds returned by this package. Build errors abort the build;
// lookup errors on corrupt data are reported rather than silently turned
// into "no match" (the one exception being out-of-range base+b offsets
// encountered during a lookup, which are bounds-checked and treated as
// "no match" since they can originate from an untrusted blob).
var (
	// ErrIoFailure wraps a file open/map/write/flush failure from
	// FromFile or Dump.
	ErrIoFailure = errors.New("dartidx: io failure")
	// ErrMalformedBlob marks header fields inconsistent with the blob
	// length, returned by FromBytes and FromFile.
	ErrMalformedBlob = errors.New("dartidx: malformed blob")
	// ErrValueOverflow is re-exported from trie for convenience; see
	// trie.ErrValueOverflow.
	ErrValueOverflow = trie.ErrValueOverflow
	// ErrBuildInconsistency marks a provably impossible internal build
	// state (find_base called with no children). It indicates a bug in
	// this package, not bad user data.
	ErrBuildInconsistency = errors.New("dartidx: build inconsistency")
	// ErrDecodeFailure wraps a ValueCodec.Decode failure encountered by
	// Get, PrefixSearch, or the prefix iterator.
	ErrDecodeFailure = errors.New("dartidx: value decode failure")
	// ErrCodecMismatch is returned by FromBytes/FromFile when the codec
	// passed by the caller does not match the one recorded in the header
	// metadata at build time.
	ErrCodecMismatch = errors.New("dartidx: codec name does not match the one recorded in the index header")
)
