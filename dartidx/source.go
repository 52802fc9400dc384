package dartidx

import (
	"fmt"
	"io"
)

// source is the minimal random-access view a loaded Index needs over its
// backing blob, satisfied both by an in-memory byte slice and by a
// memory-mapped file.
type source interface {
	io.ReaderAt
	Len() int64
	Close() error
}

// byteSource is a source backed by a plain Go byte slice, used for
// FromArrays (the builder's own in-memory blob) and FromBytes.
type byteSource struct {
	b []byte
}

func (s *byteSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("dartidx: negative offset %d", off)
	}
	if off >= int64(len(s.b)) {
		return 0, io.EOF
	}
	n := copy(p, s.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *byteSource) Len() int64 {
	return int64(len(s.b))
}

func (s *byteSource) Close() error {
	return nil
}
