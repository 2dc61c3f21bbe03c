// Package h5core provides a pure Go implementation for reading HDF5 files.
package h5core

import (
	"errors"
	"fmt"
)

// Kind classifies the failure modes a core operation can produce.
type Kind int

const (
	// KindFormatError means the bytes on disk don't match the format
	// (bad signature, a size field that would overrun the window, an
	// unsupported encoding version).
	KindFormatError Kind = iota
	// KindUnsupported means the bytes are well-formed HDF5 but describe
	// a variant outside core's scope (non-integer/non-float datatype,
	// a layout that is neither contiguous nor chunked).
	KindUnsupported
	// KindNotFound means a requested name, link, or chunk key is absent.
	KindNotFound
	// KindIoError means the byte-window primitive failed: bounds
	// violation, short read, or a failed mmap.
	KindIoError
	// KindArgumentError means the caller supplied a nonsensical argument,
	// such as a frame index of zero (frames are numbered from 1) or a
	// negative dimension.
	KindArgumentError
)

func (k Kind) String() string {
	switch k {
	case KindFormatError:
		return "format error"
	case KindUnsupported:
		return "unsupported"
	case KindNotFound:
		return "not found"
	case KindIoError:
		return "io error"
	case KindArgumentError:
		return "argument error"
	default:
		return "unknown error"
	}
}

// Error is the classified error type returned by every h5core operation.
// It wraps an underlying cause and tags it with a Kind so callers can
// branch on failure category without parsing message text.
type Error struct {
	Op    string // operation in progress, e.g. "superblock.Read"
	Path  string // object or file path involved, if any
	K     Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Path, e.K, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.K, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.K }

func newError(k Kind, op, path string, cause error) *Error {
	return &Error{Op: op, Path: path, K: k, Cause: cause}
}

// NewFormatError builds a KindFormatError error.
func NewFormatError(op, path string, cause error) *Error {
	return newError(KindFormatError, op, path, cause)
}

// NewUnsupported builds a KindUnsupported error.
func NewUnsupported(op, path string, cause error) *Error {
	return newError(KindUnsupported, op, path, cause)
}

// NewNotFound builds a KindNotFound error.
func NewNotFound(op, path string, cause error) *Error {
	return newError(KindNotFound, op, path, cause)
}

// NewIoError builds a KindIoError error.
func NewIoError(op, path string, cause error) *Error {
	return newError(KindIoError, op, path, cause)
}

// NewArgumentError builds a KindArgumentError error.
func NewArgumentError(op, path string, cause error) *Error {
	return newError(KindArgumentError, op, path, cause)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.K == k
	}
	return false
}

// Sentinel causes wrapped by the constructors above. Callers that only
// care about the Kind should use IsKind; these exist for readable
// %w-wrapping at call sites and for errors.Is comparisons against the
// underlying cause.
var (
	causeNotHDF5    = errors.New("not an HDF5 file")
	causeNotFound   = errors.New("object not found")
	causeNotDataset = errors.New("object is not a dataset")
	causeNotGroup   = errors.New("object is not a group")
	causeLinkDepth  = errors.New("maximum link depth exceeded")
	causeInvalidArg = errors.New("invalid argument")
)

// ErrClosed is returned by operations attempted on a closed File.
var ErrClosed = NewArgumentError("h5core", "", errors.New("file is closed"))

// ErrLinkDepth is returned when path resolution follows more than
// MaxLinkDepth soft or external links without reaching a terminal object.
var ErrLinkDepth = NewFormatError("h5core", "", causeLinkDepth)

// ErrNotFound is returned when a path component cannot be resolved.
var ErrNotFound = NewNotFound("h5core", "", causeNotFound)

// ErrNotGroup is returned when a path component expected to be a group
// turns out to be a dataset.
var ErrNotGroup = NewArgumentError("h5core", "", causeNotGroup)

// ErrNotDataset is returned when a path component expected to be a
// dataset turns out to be a group.
var ErrNotDataset = NewArgumentError("h5core", "", causeNotDataset)

// MaxLinkDepth is the maximum number of soft/external links that can be
// followed in a single path resolution, guarding against cyclic links.
const MaxLinkDepth = 100
