package format

import "errors"

var (
	// ErrTruncated indicates the buffer lacked the bytes required for a structure.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrNotFree indicates a header was expected but the tag byte did not match.
	ErrNotFree = errors.New("format: block not tagged free")
)
