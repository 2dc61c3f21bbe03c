// Package window implements the file-window primitive: an immutable,
// bounds-checked byte region backed by a memory-mapped file. Everything
// above this package addresses the file purely by byte offset; window
// hides whether those bytes came from a real mapping or a plain read.
package window

import (
	"errors"
	"fmt"
	"io"
)

// ErrOutOfRange is returned when a read would cross the end of the window.
var ErrOutOfRange = errors.New("window: read out of range")

// Window is an immutable view over a file's bytes, addressable from a
// base of 0 regardless of how the bytes are actually stored.
type Window struct {
	data []byte
	closer func() error
}

// ReadAt implements io.ReaderAt with window bounds-checking: a read that
// would extend past the end of the window fails with ErrOutOfRange rather
// than a short read, since HDF5's fixed-width structures never tolerate
// partial reads.
func (w *Window) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(w.data)) {
		return 0, fmt.Errorf("%w: offset %d, window length %d", ErrOutOfRange, off, len(w.data))
	}
	end := off + int64(len(p))
	if end > int64(len(w.data)) {
		return 0, fmt.Errorf("%w: read [%d,%d) exceeds window length %d", ErrOutOfRange, off, end, len(w.data))
	}
	n := copy(p, w.data[off:end])
	return n, nil
}

// Len returns the total size of the mapped region in bytes.
func (w *Window) Len() int64 {
	return int64(len(w.data))
}

// Slice returns a bounds-checked sub-window view of the region [off, off+n).
// The returned bytes alias the window's backing storage and must not be
// retained past Close.
func (w *Window) Slice(off, n int64) ([]byte, error) {
	if off < 0 || n < 0 || off+n > int64(len(w.data)) {
		return nil, fmt.Errorf("%w: slice [%d,%d) exceeds window length %d", ErrOutOfRange, off, off+n, len(w.data))
	}
	return w.data[off : off+n], nil
}

// HasSignature reports whether the bytes at off match sig exactly, without
// error on a short read at the window boundary (used for superblock scans
// that probe increasingly distant offsets).
func (w *Window) HasSignature(off int64, sig []byte) bool {
	got, err := w.Slice(off, int64(len(sig)))
	if err != nil {
		return false
	}
	for i := range sig {
		if got[i] != sig[i] {
			return false
		}
	}
	return true
}

// Close releases the underlying mapping. Bytes returned by Slice must not
// be used after Close.
func (w *Window) Close() error {
	if w.closer == nil {
		return nil
	}
	c := w.closer
	w.closer = nil
	return c()
}

var _ io.ReaderAt = (*Window)(nil)
