package format

import (
	"fmt"

	"github.com/joshuapare/heapkit/internal/buf"
)

// Header is the decoded form of a block header.
type Header struct {
	Next uint32 // Address of the next block, NoNext for the tail
	Size uint32 // Total size including the header
	Free bool   // True when the block may be handed out
}

// End returns the address one past the last byte of the block at addr.
func (h Header) End(addr uint32) uint64 {
	return uint64(addr) + uint64(h.Size)
}

// PayloadCap returns the number of payload bytes the block can hold.
func (h Header) PayloadCap() uint32 {
	if h.Size < HeaderSize {
		return 0
	}
	return h.Size - HeaderSize
}

// ReadHeader decodes the header at addr. The header must lie entirely inside
// b and declare a size of at least HeaderSize.
func ReadHeader(b []byte, addr uint32) (Header, error) {
	if !buf.Has(b, int(addr), HeaderSize) {
		return Header{}, fmt.Errorf("header at 0x%X: %w", addr, ErrTruncated)
	}
	off := int(addr)
	h := Header{
		Next: ReadU32(b, off+NextOffset),
		Size: ReadU32(b, off+SizeOffset),
		Free: ReadU32(b, off+FlagsOffset)&FlagFree != 0,
	}
	if h.Size < HeaderSize {
		return h, fmt.Errorf("header at 0x%X declares %d bytes: %w", addr, h.Size, ErrBadSize)
	}
	return h, nil
}

// PutHeader encodes h at addr.
func PutHeader(b []byte, addr uint32, h Header) error {
	if !buf.Has(b, int(addr), HeaderSize) {
		return fmt.Errorf("header at 0x%X: %w", addr, ErrTruncated)
	}
	off := int(addr)
	var flags uint32
	if h.Free {
		flags = FlagFree
	}
	PutU32(b, off+NextOffset, h.Next)
	PutU32(b, off+SizeOffset, h.Size)
	PutU32(b, off+FlagsOffset, flags)
	return nil
}
