package dartidx

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/exp/mmap"
	"golang.org/x/sys/unix"

	"github.com/rpcpool/dartidx/indexmeta"
	"github.com/rpcpool/dartidx/valuecodec"
)

// checkCodec refuses to open a blob whose recorded codec name does not
// match the one the caller is asking to decode it with; decoding DATA
// with the wrong codec would otherwise fail confusingly deep inside
// Get/PrefixSearch instead of at open time.
func checkCodec(meta indexmeta.Meta, codec interface{ Name() string }) error {
	name, ok := meta.GetString(indexmeta.KeyCodec)
	if !ok {
		return nil
	}
	if name != codec.Name() {
		return fmt.Errorf("%w: header recorded %q, caller passed %q", ErrCodecMismatch, name, codec.Name())
	}
	return nil
}

// newIndexFromSource reads only as much of src as is needed to parse the
// header: a 12-byte prefix (magic + body length) to learn the header's
// total encoded size, then exactly that many bytes. BASE/CHECK/DATA are
// left unread, addressed later by offset through src; this is what makes
// FromFile safe to use against a multi-gigabyte blob without materializing
// it in the Go heap.
func newIndexFromSource[V any](src source, codec valuecodec.Codec[V]) (*Index[V], error) {
	total := src.Len()
	prefixLen := int64(12)
	if total < prefixLen {
		prefixLen = total
	}
	prefix := make([]byte, prefixLen)
	if _, err := src.ReadAt(prefix, 0); err != nil && err != io.EOF {
		_ = src.Close()
		return nil, fmt.Errorf("%w: reading blob header prefix: %v", ErrIoFailure, err)
	}
	headerTotal, err := headerPrefixLen(prefix)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	if int64(headerTotal) > total {
		_ = src.Close()
		return nil, fmt.Errorf("%w: header claims %d bytes but blob is %d bytes", ErrMalformedBlob, headerTotal, total)
	}

	headerBuf := make([]byte, headerTotal)
	n, err := src.ReadAt(headerBuf, 0)
	if n < headerTotal && err != io.EOF {
		_ = src.Close()
		return nil, fmt.Errorf("%w: reading blob header: %v", ErrIoFailure, err)
	}
	hdr, _, err := parseHeader(headerBuf, total)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	if err := checkCodec(hdr.Metadata, codec); err != nil {
		_ = src.Close()
		return nil, err
	}
	return &Index[V]{src: src, hdr: hdr, codec: codec}, nil
}

// FromBytes copies buf into a fresh in-memory buffer, parses the header,
// and returns an immutable view. buf may come from an untrusted source;
// header/region inconsistencies are reported as ErrMalformedBlob rather
// than panicking.
func FromBytes[V any](buf []byte, codec valuecodec.Codec[V]) (*Index[V], error) {
	owned := make([]byte, len(buf))
	copy(owned, buf)
	return newIndexFromSource(&byteSource{b: owned}, codec)
}

// fileSource adapts golang.org/x/exp/mmap.ReaderAt to the source
// interface used internally by Index. It also retains the plain *os.File
// that FromFile opens to fadvise the backing file before mapping it (since
// mmap.ReaderAt exposes no descriptor), exposes it through Fd()/Name(), and
// closes it together with the mapping.
type fileSource struct {
	r  *mmap.ReaderAt
	fd *os.File
}

func (f *fileSource) ReadAt(p []byte, off int64) (int, error)  { return f.r.ReadAt(p, off) }
func (f *fileSource) Len() int64                               { return int64(f.r.Len()) }
func (f *fileSource) Fd() uintptr                              { return f.fd.Fd() }
func (f *fileSource) Name() string                             { return f.fd.Name() }

func (f *fileSource) Close() error {
	err := f.r.Close()
	if cerr := f.fd.Close(); err == nil {
		err = cerr
	}
	return err
}

// FromFile memory-maps path read-only and returns an immutable view over
// it. Before mapping, it fadvises the file for random access and warms the
// page cache over the BASE/CHECK arrays (the structures every lookup
// touches), matching the cache-warmup pattern of compactindexsized.Open
// and bucketteer.OpenMMAP. DATA is left cold; it can be arbitrarily large
// and is only touched by the keys actually looked up.
func FromFile[V any](path string, codec valuecodec.Codec[V]) (*Index[V], error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrIoFailure, path, err)
	}
	if err := unix.Fadvise(int(fd.Fd()), 0, 0, unix.FADV_RANDOM); err != nil {
		slog.Warn("dartidx: fadvise(RANDOM) failed", "path", path, "error", err)
	}

	r, err := mmap.Open(path)
	if err != nil {
		_ = fd.Close()
		return nil, fmt.Errorf("%w: mmap %s: %v", ErrIoFailure, path, err)
	}

	src := &fileSource{r: r, fd: fd}
	slog.Debug("dartidx: mapped index file", "path", path, "bytes", r.Len())

	idx, err := newIndexFromSource(src, codec)
	if err != nil {
		return nil, err
	}
	warmupArrays(idx, path)
	return idx, nil
}

// warmupArrays reads the BASE and CHECK regions once to fault their pages
// into the OS page cache ahead of the first lookup. It is best-effort: a
// failed warmup read only produces a warning, since Get/PrefixSearch will
// surface the same read failure (bounded to "no match") on demand anyway.
func warmupArrays[V any](idx *Index[V], path string) {
	total := int64(idx.hdr.DataIdx) - int64(idx.hdr.BaseIdx)
	if total <= 0 {
		return
	}
	started := time.Now()
	buf := make([]byte, total)
	if _, err := idx.src.ReadAt(buf, int64(idx.hdr.BaseIdx)); err != nil && err != io.EOF {
		slog.Warn("dartidx: page-cache warmup read failed", "path", path, "error", err)
		return
	}
	slog.Info("dartidx: warmed BASE/CHECK page cache", "path", path, "bytes", total, "duration", time.Since(started).String())
}

// Dump consumes idx, writing its backing blob to path, then reopens it via
// FromFile. Atomicity against partial writes is bounded by the same
// guarantee a plain file Sync gives; there is no crash-safety beyond that,
// and no locking, so concurrent Dump calls to the same path race.
func Dump[V any](idx *Index[V], path string, codec valuecodec.Codec[V]) (*Index[V], error) {
	total := idx.src.Len()
	blob := make([]byte, total)
	if _, err := idx.src.ReadAt(blob, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: reading index for dump: %v", ErrIoFailure, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", ErrIoFailure, path, err)
	}
	if _, err := f.Write(blob); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: writing %s: %v", ErrIoFailure, path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: syncing %s: %v", ErrIoFailure, path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("%w: closing %s: %v", ErrIoFailure, path, err)
	}
	if err := idx.Close(); err != nil {
		slog.Warn("dartidx: closing old mapping after dump", "error", err)
	}

	slog.Info("dartidx: dumped index", "path", path, "bytes", len(blob))
	return FromFile[V](path, codec)
}
