package utils

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Errors found while decoding a file's header,
// trees and records match one of these via errors.Is, even after
// WrapError has attached file/operation context. Errors from opening a
// file, from reading a data block's raw bytes, and from argument checks
// (an invalid query region or feature range, unsorted records) carry no
// sentinel.
var (
	// ErrInvalidMagic means a header or tree magic did not match the
	// expected constant.
	ErrInvalidMagic = errors.New("bigbed: invalid magic")

	// ErrUnsupportedVersion means the file header version is below the
	// minimum this package understands.
	ErrUnsupportedVersion = errors.New("bigbed: unsupported version")

	// ErrNotSeekable means a writer was given a stream that cannot seek.
	ErrNotSeekable = errors.New("bigbed: stream is not seekable")

	// ErrNotFound means a requested sequence name is absent from the
	// chromosome index.
	ErrNotFound = errors.New("bigbed: not found")

	// ErrUnexpectedEOF means a fixed-size record was truncated.
	ErrUnexpectedEOF = errors.New("bigbed: unexpected end of file")

	// ErrMalformedRecord means a BED-in-block record violated the
	// expected grammar.
	ErrMalformedRecord = errors.New("bigbed: malformed record")

	// ErrIoError means an underlying I/O operation failed.
	ErrIoError = errors.New("bigbed: i/o error")

	// ErrCorruptIndex means a B+-tree or R-tree node was structurally
	// invalid: a count exceeded block_size, an offset fell outside the
	// file, or a bounding box was inverted.
	ErrCorruptIndex = errors.New("bigbed: corrupt index")
)

// BBError is a structured bigbed error: a short operation context plus
// the underlying cause. Unwrap returns Cause, so errors.Is/errors.As see
// through it to one of the sentinels above.
type BBError struct {
	Context string
	Cause   error
}

// Error implements the error interface.
func (e *BBError) Error() string {
	return fmt.Sprintf("%s: %v", e.Context, e.Cause)
}

// Unwrap provides compatibility with errors.Unwrap().
func (e *BBError) Unwrap() error {
	return e.Cause
}

// WrapError attaches context to cause without discarding it: errors.Is
// and errors.As still match through the wrapper. Returns nil if cause is
// nil, so it is safe to call inline on a possibly-nil error.
func WrapError(context string, cause error) error {
	if cause == nil {
		return nil
	}
	return &BBError{
		Context: context,
		Cause:   cause,
	}
}
