// Package format describes the in-band layout the heap writes into its
// address space: the block header that precedes every payload, the page
// geometry of the address space, and the helpers used to read and write them.
// It performs no allocation policy of its own so both the allocators and the
// verifiers can share one definition of the bytes.
package format

const (
	// PageSize is the unit in which the address space grows (64 KiB, the
	// WebAssembly page size).
	PageSize = 0x10000

	// PageShift is log2(PageSize).
	PageShift = 16

	// MaxPages bounds the address space so that every block start and every
	// block end still fits a uint32 offset.
	MaxPages = 0xFFFF

	// HeaderSize is the footprint of a block header. Layout (little-endian):
	//
	//	Offset  Size  Description
	//	0x00    4     next: address of the following block, 0 for the tail
	//	0x04    4     size: total block size including this header
	//	0x08    4     flags: bit 0 set while the block is free
	HeaderSize = 0x0C

	// Header field offsets.
	NextOffset  = 0x00
	SizeOffset  = 0x04
	FlagsOffset = 0x08

	// FlagFree marks a block as available for allocation.
	FlagFree = 0x1

	// WordAlignment is the natural word size of the 32-bit address space.
	// Payload sizes are rounded up to it so every header stays aligned.
	WordAlignment = 4

	// WordAlignmentMask is WordAlignment - 1.
	WordAlignmentMask = WordAlignment - 1

	// NullAddr is the null pointer. A payload can never live at address 0
	// because its header always precedes it.
	NullAddr = 0

	// NoNext is the value of the next field on the tail block. The next block
	// always lies at a higher address than its predecessor, so 0 is free to
	// act as "none" even when the head itself sits at address 0.
	NoNext = 0
)
