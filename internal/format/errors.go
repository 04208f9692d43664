package format

import "errors"

var (
	// ErrTruncated indicates the buffer lacked the bytes required for a header.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrBadSize indicates a header declared a size smaller than the header itself.
	ErrBadSize = errors.New("format: block size smaller than header")
)
